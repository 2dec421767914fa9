package config

import (
	"strings"
	"testing"
)

func validJob() Job {
	return Job{
		Job:     "nightly",
		Storage: Storage{Kind: "sqlite", DSN: "data.db"},
		Indicators: []Indicator{
			{
				Name: "Graduation Rate",
				Slug: "graduation-rate",
				Unit: "rate",
				PregenParts: []PregenPart{
					{
						FileName:   "grad.csv",
						ColumnName: "rate",
						KeyColumn:  "school_code",
						KeyType:    "school",
						TimeType:   "School Year",
						TimeValue:  "2010-2011",
					},
				},
			},
		},
	}
}

func TestValidateJob_Valid(t *testing.T) {
	issues := ValidateJob(validJob())
	if HasErrors(issues) {
		t.Fatalf("unexpected errors: %+v", issues)
	}
}

func TestValidateJob_MissingStorage(t *testing.T) {
	j := validJob()
	j.Storage = Storage{}

	issues := ValidateJob(j)
	if !HasErrors(issues) {
		t.Fatalf("expected errors for empty storage")
	}
	assertIssue(t, issues, SeverityError, "storage.kind")
	assertIssue(t, issues, SeverityError, "storage.dsn")
}

func TestValidateJob_DuplicateSlug(t *testing.T) {
	j := validJob()
	j.Indicators = append(j.Indicators, j.Indicators[0])

	issues := ValidateJob(j)
	assertIssue(t, issues, SeverityError, "indicators[1].slug")
}

func TestValidateJob_PartFields(t *testing.T) {
	j := validJob()
	j.Indicators[0].PregenParts[0] = PregenPart{Delimiter: ";;"}

	issues := ValidateJob(j)
	for _, field := range []string{"file_name", "column_name", "key_column", "key_type", "delimiter"} {
		assertIssue(t, issues, SeverityError, "indicators[0].pregen_parts[0]."+field)
	}
}

func TestValidateJob_Warnings(t *testing.T) {
	j := validJob()
	j.Indicators[0].Definitions = []Definition{{Name: "a"}, {Name: "b"}}

	issues := ValidateJob(j)
	if HasErrors(issues) {
		t.Fatalf("warnings must not be errors: %+v", issues)
	}
	assertIssue(t, issues, SeverityWarning, "indicators[0].definitions")

	j.Indicators = nil
	assertIssue(t, ValidateJob(j), SeverityWarning, "indicators")
}

func TestToIndicator(t *testing.T) {
	ind := validJob().Indicators[0].ToIndicator()

	if ind.Slug != "graduation-rate" || ind.Unit != "rate" {
		t.Fatalf("conversion lost fields: %+v", ind)
	}
	if len(ind.PregenParts) != 1 || ind.PregenParts[0].KeyColumn != "school_code" {
		t.Fatalf("pregen part lost: %+v", ind.PregenParts)
	}
}

func assertIssue(t *testing.T, issues []Issue, sev Severity, pathPrefix string) {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && strings.HasPrefix(iss.Path, pathPrefix) {
			return
		}
	}
	t.Fatalf("no %s issue at %s in %+v", sev, pathPrefix, issues)
}
