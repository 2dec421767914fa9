package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"datahub/internal/config"
	"datahub/internal/importer"
	"datahub/internal/indicator"
	"datahub/internal/metrics"
	"datahub/internal/metrics/datadog"
	"datahub/internal/storage"

	// register all storage backends with the factory. Config selects which
	// to use, but support for all of them must be compiled in.
	_ "datahub/internal/storage/all"

	// register the "sqlserver" driver for the mssql backend, which
	// intentionally does not import it itself.
	_ "github.com/microsoft/go-mssqldb"
)

// main is the entry point for the load binary. It reads the job config,
// optionally initializes a metrics backend, loads indicator metadata, and
// runs the pregen data load.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		dataDirFlg        string
		publishFlg        string
		unpublishFlg      string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/load.json", "load job config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none)")
	flag.StringVar(&dataDirFlg, "data-dir", "", "override data_dir from the config")
	flag.StringVar(&publishFlg, "publish", "", "comma-separated slugs to publish (runs instead of the load)")
	flag.StringVar(&unpublishFlg, "unpublish", "", "comma-separated slugs to unpublish (runs instead of the load)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}
	var job config.Job
	err = json.NewDecoder(f).Decode(&job)
	f.Close()
	if err != nil {
		fatalf("decode config: %v", err)
	}

	issues := config.ValidateJob(job)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	if dataDirFlg != "" {
		job.DataDir = dataDirFlg
	}

	// Decide metrics backend: flag → env → default (none).
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}

	var mb metrics.Backend = metrics.Nop{}
	switch backendName {
	case "datadog":
		jobName := job.Job
		if jobName == "" {
			jobName = "datahub_load"
		}
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    jobName,
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
			mb = b
			// Close stops the periodic flush loop and performs a final Flush.
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	repo, err := storage.New(ctx, storage.Config{Kind: job.Storage.Kind, DSN: job.Storage.DSN})
	if err != nil {
		fatalf("storage: %v", err)
	}
	defer repo.Close()

	// Publish/unpublish are admin actions that replace the load run.
	if publishFlg != "" || unpublishFlg != "" {
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("%v", err)
		}
		runPublish(ctx, repo, publishFlg, true)
		runPublish(ctx, repo, unpublishFlg, false)
		return
	}

	inds := make([]indicator.Indicator, 0, len(job.Indicators))
	ptrs := make([]*indicator.Indicator, 0, len(job.Indicators))
	for _, c := range job.Indicators {
		ind := c.ToIndicator()
		inds = append(inds, ind)
	}
	for i := range inds {
		ptrs = append(ptrs, &inds[i])
	}

	imp := importer.New(repo, mb)
	imp.DataDir = job.DataDir

	if err := imp.LoadMetadata(ctx, inds); err != nil {
		log.Fatalf("load metadata: %v", err)
	}

	sum, err := imp.RunAll(ctx, ptrs)
	if err != nil {
		log.Fatalf("%v", err)
	}

	log.Printf("loaded %d records across %d indicators (%d indicators skipped, %d rows skipped)",
		sum.RecordsLoaded, sum.IndicatorsLoaded, sum.IndicatorsSkipped, sum.RowsSkipped)
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func runPublish(ctx context.Context, repo storage.Repository, csvSlugs string, published bool) {
	slugs := splitSlugs(csvSlugs)
	if len(slugs) == 0 {
		return
	}
	n, err := repo.SetPublished(ctx, slugs, published)
	if err != nil {
		log.Fatalf("set published=%v: %v", published, err)
	}
	log.Printf("set published=%v on %d indicators", published, n)
}

func splitSlugs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
