// Package config defines the JSON job configuration for the load CLI and
// its validation.
package config

import (
	"strconv"
	"strings"

	"datahub/internal/indicator"
)

// Job is the top-level load job configuration.
type Job struct {
	// Job is the logical job name used for metrics tagging.
	Job string `json:"job"`

	Storage Storage `json:"storage"`

	// DataDir is the directory pregen CSV file names are resolved against.
	// Empty means the current working directory.
	DataDir string `json:"data_dir,omitempty"`

	Indicators []Indicator `json:"indicators"`
}

// Storage selects and configures the repository backend.
type Storage struct {
	// Kind is a registered backend kind: "postgres", "sqlite", "mssql".
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

// Indicator configures one indicator and its data sources.
type Indicator struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Unit      string `json:"unit,omitempty"`
	Published bool   `json:"published,omitempty"`

	Definitions []Definition `json:"definitions,omitempty"`
	PregenParts []PregenPart `json:"pregen_parts,omitempty"`
}

// Definition is one candidate indicator definition.
type Definition struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// PregenPart points at one column of a pregenerated CSV file.
type PregenPart struct {
	FileName   string `json:"file_name"`
	ColumnName string `json:"column_name"`
	KeyColumn  string `json:"key_column"`
	KeyType    string `json:"key_type"`
	TimeType   string `json:"time_type"`
	TimeValue  string `json:"time_value"`

	// Encoding of the CSV bytes; "" means UTF-8. See parser/csv.Options.
	Encoding string `json:"encoding,omitempty"`
	// Delimiter is a single-character field separator; "" means ",".
	Delimiter string `json:"delimiter,omitempty"`
}

// ToIndicator converts the config entry to the domain type.
func (c Indicator) ToIndicator() indicator.Indicator {
	ind := indicator.Indicator{
		Name:      c.Name,
		Slug:      c.Slug,
		Unit:      c.Unit,
		Published: c.Published,
	}
	for _, d := range c.Definitions {
		ind.Definitions = append(ind.Definitions, indicator.Definition{Name: d.Name, Version: d.Version})
	}
	for _, p := range c.PregenParts {
		ind.PregenParts = append(ind.PregenParts, indicator.PregenPart{
			FileName:   p.FileName,
			ColumnName: p.ColumnName,
			KeyColumn:  p.KeyColumn,
			KeyType:    p.KeyType,
			TimeType:   p.TimeType,
			TimeValue:  p.TimeValue,
			Encoding:   p.Encoding,
			Delimiter:  p.Delimiter,
		})
	}
	return ind
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding, addressed by a JSON-ish path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// ValidateJob checks j for problems a run would hit. It returns all
// findings rather than stopping at the first, so a config can be fixed in
// one pass. Warnings do not block a run.
func ValidateJob(j Job) []Issue {
	var issues []Issue
	errf := func(path, msg string) {
		issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: msg})
	}
	warnf := func(path, msg string) {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: path, Message: msg})
	}

	if strings.TrimSpace(j.Storage.Kind) == "" {
		errf("storage.kind", "missing backend kind")
	}
	if strings.TrimSpace(j.Storage.DSN) == "" {
		errf("storage.dsn", "missing DSN")
	}
	if len(j.Indicators) == 0 {
		warnf("indicators", "no indicators configured; nothing to load")
	}

	seen := map[string]bool{}
	for i, ind := range j.Indicators {
		path := indexPath("indicators", i)

		if strings.TrimSpace(ind.Slug) == "" {
			errf(path+".slug", "missing slug")
		} else if seen[ind.Slug] {
			errf(path+".slug", "duplicate slug "+ind.Slug)
		} else {
			seen[ind.Slug] = true
		}
		if strings.TrimSpace(ind.Name) == "" {
			errf(path+".name", "missing name")
		}
		if len(ind.Definitions) > 1 {
			warnf(path+".definitions", "multiple definitions; indicator will be skipped as ambiguous")
		}

		for p, part := range ind.PregenParts {
			ppath := indexPath(path+".pregen_parts", p)
			if strings.TrimSpace(part.FileName) == "" {
				errf(ppath+".file_name", "missing file name")
			}
			if strings.TrimSpace(part.ColumnName) == "" {
				errf(ppath+".column_name", "missing value column")
			}
			if strings.TrimSpace(part.KeyColumn) == "" {
				errf(ppath+".key_column", "missing key column")
			}
			if strings.TrimSpace(part.KeyType) == "" {
				errf(ppath+".key_type", "missing key type")
			}
			if n := len([]rune(part.Delimiter)); n > 1 {
				errf(ppath+".delimiter", "delimiter must be a single character")
			}
		}
	}

	return issues
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

func indexPath(base string, i int) string {
	return base + "[" + strconv.Itoa(i) + "]"
}
