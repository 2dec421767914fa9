package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"datahub/internal/indicator"
	"datahub/internal/scrape"
)

// fakeRepo captures repository calls in memory.
type fakeRepo struct {
	ensureCalls  int
	upserted     []indicator.Indicator
	replaced     map[string][]indicator.Data
	inserted     []indicator.Data
	replaceErr   error
	insertErr    error
	closedCalls  int
	publishCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{replaced: map[string][]indicator.Data{}}
}

func (f *fakeRepo) Close()                                 { f.closedCalls++ }
func (f *fakeRepo) EnsureSchema(context.Context) error     { f.ensureCalls++; return nil }
func (f *fakeRepo) UpsertIndicators(_ context.Context, inds []indicator.Indicator) error {
	f.upserted = append(f.upserted, inds...)
	return nil
}
func (f *fakeRepo) SetPublished(context.Context, []string, bool) (int64, error) {
	f.publishCalls++
	return 0, nil
}
func (f *fakeRepo) ReplaceIndicatorData(_ context.Context, slug string, rows []indicator.Data) (int64, error) {
	if f.replaceErr != nil {
		return 0, f.replaceErr
	}
	f.replaced[slug] = rows
	return int64(len(rows)), nil
}
func (f *fakeRepo) InsertIndicatorData(_ context.Context, rows []indicator.Data) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, rows...)
	return int64(len(rows)), nil
}
func (f *fakeRepo) CountIndicatorData(_ context.Context, slug string) (int64, error) {
	return int64(len(f.replaced[slug])), nil
}

func testIndicator() *indicator.Indicator {
	return &indicator.Indicator{
		Name:        "Graduation Rate",
		Slug:        "graduation-rate",
		Unit:        "rate",
		Definitions: []indicator.Definition{{Name: "graduation_rate", Version: 1}},
		PregenParts: []indicator.PregenPart{
			{
				FileName:   "grad.csv",
				ColumnName: "rate",
				KeyColumn:  "school_code",
				KeyType:    "school",
				TimeType:   "School Year",
				TimeValue:  "2010-2011",
			},
		},
	}
}

// newTestImporter wires a fake repo and an in-memory file table.
func newTestImporter(repo *fakeRepo, files map[string]string) *Importer {
	imp := New(repo, nil)
	imp.Logf = func(string, ...any) {}
	imp.open = func(name string) (io.ReadCloser, error) {
		content, ok := files[name]
		if !ok {
			return nil, fmt.Errorf("open %s: no such file", name)
		}
		return io.NopCloser(strings.NewReader(content)), nil
	}
	return imp
}

func TestRunAll_LoadsAndReplaces(t *testing.T) {
	repo := newFakeRepo()
	imp := newTestImporter(repo, map[string]string{
		"grad.csv": "school_code,rate\n42,87.5%\n43,suppressed\n7,#NULL!\n",
	})

	sum, err := imp.RunAll(context.Background(), []*indicator.Indicator{testIndicator()})
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if sum.IndicatorsLoaded != 1 || sum.RecordsLoaded != 3 {
		t.Fatalf("summary = %+v", sum)
	}

	rows := repo.replaced["graduation-rate"]
	if len(rows) != 3 {
		t.Fatalf("replaced rows = %d, want 3", len(rows))
	}

	// 87.5% cleans to numeric 87.5, school key pads to 5 digits.
	if rows[0].DataType != indicator.TypeNumeric || rows[0].Numeric.Decimal.String() != "87.5" {
		t.Fatalf("row 0 = %+v", rows[0])
	}
	if rows[0].KeyValue != "00042" {
		t.Fatalf("row 0 key = %q, want 00042", rows[0].KeyValue)
	}

	// Non-numeric text classifies as string.
	if rows[1].DataType != indicator.TypeString || rows[1].String != "suppressed" {
		t.Fatalf("row 1 = %+v", rows[1])
	}

	// #NULL! cleans to empty, which auto-detects as an empty string record.
	if rows[2].DataType != indicator.TypeString || rows[2].String != "" {
		t.Fatalf("row 2 = %+v", rows[2])
	}

	if rows[0].TimeType != "School Year" || rows[0].TimeKey != "2010-2011" {
		t.Fatalf("time fields wrong: %+v", rows[0])
	}
}

func TestRunAll_AmbiguousIndicatorSkipped(t *testing.T) {
	repo := newFakeRepo()
	imp := newTestImporter(repo, map[string]string{"grad.csv": "school_code,rate\n1,2\n"})

	ind := testIndicator()
	ind.Definitions = append(ind.Definitions, indicator.Definition{Name: "graduation_rate", Version: 2})

	sum, err := imp.RunAll(context.Background(), []*indicator.Indicator{ind})
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if sum.IndicatorsSkipped != 1 || sum.IndicatorsLoaded != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(repo.replaced) != 0 {
		t.Fatalf("ambiguous indicator must not touch storage: %+v", repo.replaced)
	}
}

func TestRunAll_MissingFileLeavesDataUntouched(t *testing.T) {
	repo := newFakeRepo()
	imp := newTestImporter(repo, map[string]string{})

	sum, err := imp.RunAll(context.Background(), []*indicator.Indicator{testIndicator()})
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if sum.IndicatorsLoaded != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(repo.replaced) != 0 {
		t.Fatalf("missing file must not clear stored data")
	}
}

func TestRunAll_MalformedRowsCounted(t *testing.T) {
	repo := newFakeRepo()
	imp := newTestImporter(repo, map[string]string{
		"grad.csv": "school_code,rate\n1,10\n\"oops\n2,20\n",
	})

	sum, err := imp.RunAll(context.Background(), []*indicator.Indicator{testIndicator()})
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if sum.RowsSkipped == 0 {
		t.Fatalf("expected skipped rows in summary: %+v", sum)
	}
	if sum.RecordsLoaded == 0 {
		t.Fatalf("good rows must still load: %+v", sum)
	}
}

func TestRunAll_StorageErrorAborts(t *testing.T) {
	repo := newFakeRepo()
	repo.replaceErr = errors.New("disk on fire")
	imp := newTestImporter(repo, map[string]string{"grad.csv": "school_code,rate\n1,2\n"})

	_, err := imp.RunAll(context.Background(), []*indicator.Indicator{testIndicator()})
	if err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestRunAll_NoPartsIsNoop(t *testing.T) {
	repo := newFakeRepo()
	imp := newTestImporter(repo, nil)

	ind := testIndicator()
	ind.PregenParts = nil

	sum, err := imp.RunAll(context.Background(), []*indicator.Indicator{ind})
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if sum != (Summary{}) {
		t.Fatalf("summary = %+v, want zero", sum)
	}
}

func TestRunAll_Cancellation(t *testing.T) {
	repo := newFakeRepo()
	imp := newTestImporter(repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := imp.RunAll(ctx, []*indicator.Indicator{testIndicator()}); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestLoadMetadata(t *testing.T) {
	repo := newFakeRepo()
	imp := newTestImporter(repo, nil)

	err := imp.LoadMetadata(context.Background(), []indicator.Indicator{*testIndicator()})
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	if repo.ensureCalls != 1 || len(repo.upserted) != 1 {
		t.Fatalf("ensure=%d upserted=%d", repo.ensureCalls, len(repo.upserted))
	}
}

func TestLoadObservations_AppendsWithoutClearing(t *testing.T) {
	repo := newFakeRepo()
	imp := newTestImporter(repo, nil)

	n, err := imp.LoadObservations(context.Background(), testIndicator(),
		"district", "Year", "2011", []scrape.Observation{
			{Key: "7", Value: "12.5%"},
			{Key: "8", Value: "n/a"},
		})
	if err != nil {
		t.Fatalf("LoadObservations: %v", err)
	}
	if n != 2 || len(repo.inserted) != 2 {
		t.Fatalf("inserted = %d/%d, want 2", n, len(repo.inserted))
	}
	if len(repo.replaced) != 0 {
		t.Fatalf("observations must append, never replace")
	}

	if repo.inserted[0].KeyValue != "07" {
		t.Fatalf("district key = %q, want 07", repo.inserted[0].KeyValue)
	}
	if repo.inserted[0].Numeric.Decimal.String() != "12.5" {
		t.Fatalf("numeric = %s, want 12.5", repo.inserted[0].Numeric.Decimal)
	}
	if repo.inserted[1].DataType != indicator.TypeString || repo.inserted[1].String != "n/a" {
		t.Fatalf("row 1 = %+v", repo.inserted[1])
	}
}
