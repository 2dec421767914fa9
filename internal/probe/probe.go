// Package probe samples pregen CSV files and infers per-column types, so
// a load config can be authored with the right value columns and
// data_type overrides before running the import.
//
// Inference mirrors the builder's classification: a cell is numeric when
// its cleaned form parses as a float. A column whose non-empty cells are
// all numeric is suggested as "numeric"; anything else is "string".
//
// Design constraints:
//   - Sampling is bounded in bytes and rows; probing a multi-gigabyte
//     file must stay cheap.
//   - Inference is best-effort and never fails the probe run; malformed
//     rows are counted and skipped.
package probe

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"datahub/internal/normalize"
)

// Options bound the sample.
type Options struct {
	// Delimiter is the field separator; zero means ','.
	Delimiter rune
	// MaxBytes caps how much of the file is read. If <= 0, defaults to
	// 64 KiB. The sample is cut back to the last complete line.
	MaxBytes int
	// MaxRows caps how many data rows are inferred. If <= 0, defaults
	// to 1000.
	MaxRows int
}

// Column is the inference result for one CSV column.
type Column struct {
	Name string
	// Rows counts sampled cells, EmptyRows those whose cleaned form is
	// empty, NumericRows those that parse as a float.
	Rows        int
	EmptyRows   int
	NumericRows int
	// Suggested is the data_type the builder would assign to most cells:
	// "numeric" when every non-empty cell parses, otherwise "string".
	Suggested string
}

// Report summarizes one sampled file.
type Report struct {
	Columns []Column
	// RowsSampled counts data rows that parsed; RowsSkipped counts
	// malformed rows dropped during sampling.
	RowsSampled int
	RowsSkipped int
	// Truncated reports whether MaxBytes or MaxRows cut the sample short.
	Truncated bool
}

// File samples path and infers its columns.
func File(ctx context.Context, path string, opt Options) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, err
	}
	defer f.Close()
	return Infer(ctx, f, opt)
}

// Infer reads a bounded CSV sample from r and infers column types.
//
// Edge cases:
//   - An empty input or a header-only input yields a Report with columns
//     (if any) and zero sampled rows.
//   - Short rows leave trailing columns untouched; long rows are counted
//     as skipped.
func Infer(ctx context.Context, r io.Reader, opt Options) (Report, error) {
	maxBytes := opt.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 64 * 1024
	}
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = 1000
	}

	sample, truncated, err := readSample(r, maxBytes)
	if err != nil {
		return Report{}, err
	}

	cr := csv.NewReader(strings.NewReader(sample))
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return Report{Truncated: truncated}, nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("read header: %w", err)
	}

	rep := Report{Truncated: truncated}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\uFEFF")
		}
		rep.Columns = append(rep.Columns, Column{Name: name})
	}

	for rep.RowsSampled < maxRows {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				rep.RowsSkipped++
				continue
			}
			return rep, err
		}
		if len(rec) > len(rep.Columns) {
			rep.RowsSkipped++
			continue
		}

		for i, raw := range rec {
			observeCell(&rep.Columns[i], raw)
		}
		rep.RowsSampled++
	}
	if rep.RowsSampled == maxRows {
		rep.Truncated = true
	}

	for i := range rep.Columns {
		rep.Columns[i].Suggested = suggestType(rep.Columns[i])
	}
	return rep, nil
}

func observeCell(c *Column, raw string) {
	c.Rows++

	cleaned, _ := normalize.CleanValue(raw).(string)
	if cleaned == "" {
		c.EmptyRows++
		return
	}
	if _, err := strconv.ParseFloat(cleaned, 64); err == nil {
		c.NumericRows++
	}
}

func suggestType(c Column) string {
	nonEmpty := c.Rows - c.EmptyRows
	if nonEmpty > 0 && c.NumericRows == nonEmpty {
		return "numeric"
	}
	return "string"
}

// readSample reads up to maxBytes from r and cuts the sample back to the
// last complete line, so a truncated final row cannot skew inference.
func readSample(r io.Reader, maxBytes int) (string, bool, error) {
	b, err := io.ReadAll(io.LimitReader(r, int64(maxBytes)))
	if err != nil {
		return "", false, err
	}
	if len(b) < maxBytes {
		return string(b), false, nil
	}

	if i := strings.LastIndexByte(string(b), '\n'); i >= 0 {
		b = b[:i+1]
	}
	return string(b), true, nil
}

// WriteText renders the report as an aligned table for the CLI.
func (rep Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tROWS\tNUMERIC\tEMPTY\tSUGGESTED")
	for _, c := range rep.Columns {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", c.Name, c.Rows, c.NumericRows, c.EmptyRows, c.Suggested)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nsampled %d rows", rep.RowsSampled)
	if rep.RowsSkipped > 0 {
		fmt.Fprintf(w, " (%d malformed rows skipped)", rep.RowsSkipped)
	}
	if rep.Truncated {
		fmt.Fprint(w, " [sample truncated]")
	}
	fmt.Fprintln(w)
	return nil
}
