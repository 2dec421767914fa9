// Package scrape extracts raw indicator observations from HTML tables.
//
// Values come out exactly as they appear on the page (percent signs,
// spreadsheet error markers and all); cleaning and classification belong
// to the normalizer downstream.
package scrape

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Observation is one raw (key, value) pair scraped from a page.
type Observation struct {
	Key   string
	Value string
}

// TableMapping describes how to pull observations out of a document.
type TableMapping struct {
	// RowSelector matches one element per observation. Defaults to
	// "table tbody tr".
	RowSelector string `json:"row_selector,omitempty"`
	// KeySelector and ValueSelector are evaluated relative to each row.
	// Defaults: first and second td.
	KeySelector   string `json:"key_selector,omitempty"`
	ValueSelector string `json:"value_selector,omitempty"`
	// Match is an optional regex filter applied to the extracted value.
	// With capture groups, group 1 is used; without, the full match.
	// A non-matching value drops the row.
	Match string `json:"match,omitempty"`
}

// ExtractObservations parses html and applies the mapping.
//
// Rows whose key or value selector matches nothing (header rows, spacer
// rows) are skipped rather than treated as errors; DOM order is preserved.
func ExtractObservations(html string, m TableMapping) ([]Observation, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	rowSel := m.RowSelector
	if rowSel == "" {
		rowSel = "table tbody tr"
	}
	keySel := m.KeySelector
	if keySel == "" {
		keySel = "td:nth-child(1)"
	}
	valSel := m.ValueSelector
	if valSel == "" {
		valSel = "td:nth-child(2)"
	}

	re, err := compileOptionalRegex(m.Match)
	if err != nil {
		return nil, err
	}

	var out []Observation
	doc.Find(rowSel).Each(func(_ int, row *goquery.Selection) {
		key := firstText(row, keySel)
		if key == "" {
			return
		}
		val := applyRegexFilter(firstText(row, valSel), re)
		if val == "" {
			return
		}
		out = append(out, Observation{Key: key, Value: val})
	})
	return out, nil
}

// firstText returns the trimmed text of the first selector match under
// root, or "" when nothing matches.
func firstText(root *goquery.Selection, selector string) string {
	sel := root.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(sel.Text())
}

// compileOptionalRegex compiles pattern, treating empty as "no filter".
func compileOptionalRegex(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid match regex: %w", err)
	}
	return re, nil
}

// applyRegexFilter applies an optional regex post-processing step to value.
//
// Behavior:
//   - If re is nil, it returns value unchanged.
//   - If re does not match, it returns "" (caller drops the row).
//   - If re matches and contains capture groups, group 1 is returned.
//   - If re matches with no capture groups, the full match is returned.
func applyRegexFilter(value string, re *regexp.Regexp) string {
	if value == "" || re == nil {
		return value
	}

	sm := re.FindStringSubmatch(value)
	if len(sm) == 0 {
		return ""
	}
	if len(sm) > 1 {
		return sm[1]
	}
	return sm[0]
}
