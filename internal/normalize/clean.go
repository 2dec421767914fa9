// Package normalize cleans raw scraped or imported values, classifies them
// as textual or numeric, rounds numerics per the indicator's unit, and
// builds persistence-ready indicator data records.
package normalize

import "strings"

// scrubTokens are removed from every string value, in this order, after
// whitespace trimming. "%" covers values pasted with their display suffix;
// the other two are spreadsheet error markers that leak into exports.
var scrubTokens = []string{"%", "#DIV/0!", "#NULL!"}

// CleanValue trims and scrubs a raw value.
//
// Only string values are processed; everything else (numbers, nil, ...)
// is returned unchanged. Idempotent: a second pass is a no-op.
func CleanValue(raw any) any {
	s, ok := raw.(string)
	if !ok {
		return raw
	}
	s = strings.TrimSpace(s)
	for _, tok := range scrubTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	return s
}
