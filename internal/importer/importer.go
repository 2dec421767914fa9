// Package importer drives the load pipeline: pregen CSV files (or scraped
// observations) through the normalizer into the configured repository.
//
// Failure policy, mirrored across every entry point:
//   - Ambiguous indicator definitions and unreadable part files are soft
//     failures: logged, counted, skipped.
//   - Storage errors abort the run; a half-working database is not a
//     condition worth limping through.
package importer

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"datahub/internal/indicator"
	"datahub/internal/metrics"
	"datahub/internal/normalize"
	csvparser "datahub/internal/parser/csv"
	"datahub/internal/scrape"
	"datahub/internal/storage"
)

// Summary aggregates the outcome of a run.
type Summary struct {
	// IndicatorsLoaded counts indicators whose data was replaced.
	IndicatorsLoaded int
	// IndicatorsSkipped counts indicators dropped for ambiguous or missing
	// definitions.
	IndicatorsSkipped int
	// RecordsLoaded counts data records written.
	RecordsLoaded int64
	// RowsSkipped counts malformed CSV rows dropped by the parser.
	RowsSkipped int64
}

// Importer loads indicator data into a repository.
//
// Repo is required. Metrics defaults to the nop backend and Logf to
// log.Printf. The zero DataDir resolves part file names against the
// working directory.
type Importer struct {
	Repo    storage.Repository
	Metrics metrics.Backend
	DataDir string
	Logf    func(format string, args ...any)

	// open is a test seam over os.Open.
	open func(name string) (io.ReadCloser, error)
	// now is a test seam over time.Now for duration metrics.
	now func() time.Time
}

// New constructs an Importer with default seams.
func New(repo storage.Repository, m metrics.Backend) *Importer {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Importer{
		Repo:    repo,
		Metrics: m,
		open:    func(name string) (io.ReadCloser, error) { return os.Open(name) },
		now:     time.Now,
	}
}

func (imp *Importer) logf(format string, args ...any) {
	if imp.Logf != nil {
		imp.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (imp *Importer) metrics() metrics.Backend {
	if imp.Metrics == nil {
		return metrics.Nop{}
	}
	return imp.Metrics
}

func (imp *Importer) builder() *normalize.Builder {
	return &normalize.Builder{Logf: imp.Logf}
}

func (imp *Importer) openFile(name string) (io.ReadCloser, error) {
	if imp.open != nil {
		return imp.open(name)
	}
	return os.Open(name)
}

func (imp *Importer) timeNow() time.Time {
	if imp.now != nil {
		return imp.now()
	}
	return time.Now()
}

// LoadMetadata makes sure the schema exists and upserts indicator metadata
// rows. Run it before RunAll; it is idempotent.
func (imp *Importer) LoadMetadata(ctx context.Context, inds []indicator.Indicator) error {
	if err := imp.Repo.EnsureSchema(ctx); err != nil {
		return err
	}
	return imp.Repo.UpsertIndicators(ctx, inds)
}

// RunAll loads pregen data for every indicator in turn.
//
// Soft failures (ambiguous definitions, unreadable part files, malformed
// rows) are counted in the Summary and logged; storage errors and ctx
// cancellation abort the run with the partial Summary.
func (imp *Importer) RunAll(ctx context.Context, inds []*indicator.Indicator) (Summary, error) {
	var sum Summary
	for _, ind := range inds {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := imp.loadOne(ctx, ind, &sum); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// loadOne loads a single indicator's pregen parts and replaces its stored
// data when any records were produced. Indicators with no pregen parts and
// indicators whose parts yielded nothing are left untouched, so a partial
// config cannot wipe previously loaded data.
func (imp *Importer) loadOne(ctx context.Context, ind *indicator.Indicator, sum *Summary) error {
	m := imp.metrics()
	b := imp.builder()

	if len(ind.PregenParts) == 0 {
		return nil
	}

	if def := b.ResolveDefinition(ind); def == nil {
		m.IncCounter(metrics.CounterIndicators, 1, metrics.Labels{"status": "ambiguous"})
		sum.IndicatorsSkipped++
		return nil
	}

	start := imp.timeNow()

	var rows []indicator.Data
	for _, part := range ind.PregenParts {
		if err := imp.loadPart(ctx, b, ind, part, &rows, sum); err != nil {
			return err
		}
	}

	if len(rows) == 0 {
		imp.logf("indicator %q: pregen parts produced no records, data unchanged", ind.Name)
		return nil
	}

	n, err := imp.Repo.ReplaceIndicatorData(ctx, ind.Slug, rows)
	if err != nil {
		m.IncCounter(metrics.CounterIndicators, 1, metrics.Labels{"status": "error"})
		return fmt.Errorf("replace data for %s: %w", ind.Slug, err)
	}

	imp.logf("indicator %q: cleared and loaded %d records", ind.Name, n)
	sum.IndicatorsLoaded++
	sum.RecordsLoaded += n
	m.IncCounter(metrics.CounterIndicators, 1, metrics.Labels{"status": "ok"})
	m.IncCounter(metrics.CounterRecords, float64(n), metrics.Labels{"kind": "loaded"})
	m.ObserveHistogram(metrics.HistogramLoadSeconds, imp.timeNow().Sub(start).Seconds(), metrics.Labels{"indicator": ind.Slug})
	return nil
}

// loadPart streams one CSV part into rows. File and parse problems skip
// the part; only ctx cancellation propagates.
func (imp *Importer) loadPart(ctx context.Context, b *normalize.Builder, ind *indicator.Indicator, part indicator.PregenPart, rows *[]indicator.Data, sum *Summary) error {
	path := part.FileName
	if imp.DataDir != "" {
		path = filepath.Join(imp.DataDir, part.FileName)
	}

	src, err := imp.openFile(path)
	if err != nil {
		imp.logf("indicator %q: unable to open pregen file %s: %v; part skipped, data unchanged", ind.Name, path, err)
		return nil
	}

	opt := csvparser.Options{Encoding: part.Encoding}
	if part.Delimiter != "" {
		opt.Comma = []rune(part.Delimiter)[0]
	}

	err = csvparser.StreamCells(ctx, src, part.ColumnName, part.KeyColumn, opt,
		func(c csvparser.Cell) {
			*rows = append(*rows, b.Generate(ind, part.KeyType, c.Key, part.TimeType, part.TimeValue, c.Value, ""))
		},
		func(line int, err error) {
			sum.RowsSkipped++
			imp.metrics().IncCounter(metrics.CounterRecords, 1, metrics.Labels{"kind": "skipped"})
			imp.logf("indicator %q: %s line %d: %v", ind.Name, path, line, err)
		},
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		imp.logf("indicator %q: pregen file %s: %v; part skipped", ind.Name, path, err)
	}
	return nil
}

// LoadObservations appends records built from scraped observations.
//
// Unlike pregen parts, scraped batches are incremental: they never clear
// existing data. The indicator still goes through definition resolution,
// with the same soft-failure semantics as RunAll.
func (imp *Importer) LoadObservations(ctx context.Context, ind *indicator.Indicator, keyType, timeType, timeKey string, obs []scrape.Observation) (int64, error) {
	m := imp.metrics()
	b := imp.builder()

	if def := b.ResolveDefinition(ind); def == nil {
		m.IncCounter(metrics.CounterIndicators, 1, metrics.Labels{"status": "ambiguous"})
		return 0, nil
	}

	rows := make([]indicator.Data, 0, len(obs))
	for _, o := range obs {
		rows = append(rows, b.Generate(ind, keyType, o.Key, timeType, timeKey, o.Value, ""))
	}

	n, err := imp.Repo.InsertIndicatorData(ctx, rows)
	if err != nil {
		m.IncCounter(metrics.CounterIndicators, 1, metrics.Labels{"status": "error"})
		return n, fmt.Errorf("insert observations for %s: %w", ind.Slug, err)
	}
	m.IncCounter(metrics.CounterRecords, float64(n), metrics.Labels{"kind": "loaded"})
	return n, nil
}
