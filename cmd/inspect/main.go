// Command inspect samples a pregen CSV file and prints per-column type
// inference, to help author the indicators section of a load config
// (which columns hold values, where a data_type override is needed).
//
// Usage:
//
//	inspect -file data/grad.csv
//	inspect -file data/grad.csv -delimiter ";" -max-bytes 1000000
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"datahub/internal/probe"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run is split out from main so the command can be unit tested without
// spawning an OS process.
//
// Exit codes: 0 success, 2 usage errors, 1 operational errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)

	file := fs.String("file", "", "CSV file to sample (required)")
	delimiter := fs.String("delimiter", "", "Field delimiter; default ','")
	maxBytes := fs.Int("max-bytes", 0, "Sample size cap in bytes; default 64 KiB")
	maxRows := fs.Int("max-rows", 0, "Sampled row cap; default 1000")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		fmt.Fprintf(stderr, "missing -file\n")
		return 2
	}

	opt := probe.Options{MaxBytes: *maxBytes, MaxRows: *maxRows}
	if *delimiter != "" {
		runes := []rune(*delimiter)
		if len(runes) != 1 {
			fmt.Fprintf(stderr, "-delimiter must be a single character\n")
			return 2
		}
		opt.Delimiter = runes[0]
	}

	rep, err := probe.File(ctx, *file, opt)
	if err != nil {
		fmt.Fprintf(stderr, "probe: %v\n", err)
		return 1
	}
	if err := rep.WriteText(stdout); err != nil {
		fmt.Fprintf(stderr, "write report: %v\n", err)
		return 1
	}
	return 0
}
