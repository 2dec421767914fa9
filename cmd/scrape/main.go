// Command scrape reads an HTML page (from stdin or a URL), extracts raw
// indicator observations from a table, and either prints them as JSON or
// appends them to an indicator in the configured storage backend.
//
// Print observations (stdin):
//
//	cat page.html | scrape -mapping mapping.json
//
// Print observations (fetch URL):
//
//	scrape -url "https://example.com/stats" -mapping mapping.json
//
// Load into storage:
//
//	scrape -url "https://example.com/stats" \
//	  -config configs/load.json -indicator graduation-rate \
//	  -key-type district -time-type "School Year" -time-key 2010-2011
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"datahub/internal/config"
	"datahub/internal/importer"
	"datahub/internal/indicator"
	"datahub/internal/scrape"
	"datahub/internal/storage"

	_ "datahub/internal/storage/all"

	_ "github.com/microsoft/go-mssqldb"
)

func main() {
	os.Exit(run(
		context.Background(),
		os.Args[1:],
		os.Stdin,
		os.Stdout,
		os.Stderr,
		http.DefaultClient,
	))
}

// run is split out from main so the command can be unit tested without
// spawning an OS process.
//
// Exit codes: 0 success, 2 usage/config errors, 1 operational errors.
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	httpClient *http.Client,
) int {
	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	fs.SetOutput(stderr)

	mappingPath := fs.String("mapping", "", "Path to table mapping JSON file (optional; defaults extract the first two cells of each table row)")
	urlFlag := fs.String("url", "", "Fetch HTML from URL instead of stdin")
	timeout := fs.Duration("timeout", 20*time.Second, "Timeout for -url fetch")

	cfgPath := fs.String("config", "", "Load job config JSON; when set, observations are loaded instead of printed")
	slug := fs.String("indicator", "", "Indicator slug from the config to load into (requires -config)")
	keyType := fs.String("key-type", "", "Key unit type for the scraped keys (e.g. school, district)")
	timeType := fs.String("time-type", "", "Time type stored on each record")
	timeKey := fs.String("time-key", "", "Time key stored on each record")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	var m scrape.TableMapping
	if *mappingPath != "" {
		raw, err := os.ReadFile(*mappingPath)
		if err != nil {
			fmt.Fprintf(stderr, "load mapping: %v\n", err)
			return 2
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			fmt.Fprintf(stderr, "parse mapping: %v\n", err)
			return 2
		}
	}

	html, err := loadHTML(ctx, httpClient, *urlFlag, *timeout, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "load html: %v\n", err)
		return 1
	}

	obs, err := scrape.ExtractObservations(html, m)
	if err != nil {
		fmt.Fprintf(stderr, "extract: %v\n", err)
		return 1
	}

	// Print mode: JSON array of observations, one run per page.
	if *cfgPath == "" {
		enc := json.NewEncoder(stdout)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(obs); err != nil {
			fmt.Fprintf(stderr, "encode json: %v\n", err)
			return 1
		}
		return 0
	}

	// Load mode: append observations to one indicator from the config.
	if *slug == "" {
		fmt.Fprintf(stderr, "-config requires -indicator\n")
		return 2
	}

	job, err := readJob(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	ind, ok := findIndicator(job, *slug)
	if !ok {
		fmt.Fprintf(stderr, "indicator %q not found in %s\n", *slug, *cfgPath)
		return 2
	}

	repo, err := storage.New(ctx, storage.Config{Kind: job.Storage.Kind, DSN: job.Storage.DSN})
	if err != nil {
		fmt.Fprintf(stderr, "storage: %v\n", err)
		return 1
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(stderr, "ensure schema: %v\n", err)
		return 1
	}

	imp := importer.New(repo, nil)
	n, err := imp.LoadObservations(ctx, &ind, *keyType, *timeType, *timeKey, obs)
	if err != nil {
		fmt.Fprintf(stderr, "load observations: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "loaded %d observations into %s\n", n, ind.Slug)
	return 0
}

// loadHTML reads the page body from url when set, otherwise from stdin.
func loadHTML(ctx context.Context, client *http.Client, url string, timeout time.Duration, stdin io.Reader) (string, error) {
	if url == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readJob(path string) (config.Job, error) {
	var job config.Job
	f, err := os.Open(path)
	if err != nil {
		return job, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&job); err != nil {
		return job, fmt.Errorf("decode config: %w", err)
	}
	return job, nil
}

func findIndicator(job config.Job, slug string) (indicator.Indicator, bool) {
	for _, c := range job.Indicators {
		if c.Slug == slug {
			return c.ToIndicator(), true
		}
	}
	return indicator.Indicator{}, false
}
