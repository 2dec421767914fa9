package normalize

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"datahub/internal/indicator"
)

// Builder constructs indicator data records from raw values.
//
// The zero value is ready to use. Logf is the sink for soft-failure
// diagnostics (ambiguous definitions); it defaults to log.Printf so tests
// can capture or silence it.
type Builder struct {
	Logf func(format string, args ...any)
}

func (b *Builder) logf(format string, args ...any) {
	if b.Logf != nil {
		b.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// ResolveDefinition resolves ind to its single definition.
//
// Ambiguity (or no definitions at all) is a soft failure: a diagnostic is
// logged naming the indicator and nil is returned. Callers must treat nil
// as "skip this indicator", never as fatal.
func (b *Builder) ResolveDefinition(ind *indicator.Indicator) *indicator.Definition {
	res := ind.Resolve()
	if res.Found() {
		return res.Definition
	}
	if res.Ambiguous {
		b.logf("indicator %q: multiple definitions found, skipping", ind.Name)
	} else {
		b.logf("indicator %q: no definition found, skipping", ind.Name)
	}
	return nil
}

// Generate builds one unsaved data record for ind.
//
// value is cleaned first (CleanValue). dataType, when it case-insensitively
// equals "string" or "numeric", forces the classification; any other value
// (including "") auto-detects by float-parsing the cleaned value. A forced
// "string" wins even for a purely numeric value.
//
// On the numeric branch an empty cleaned value becomes a null Numeric, and
// non-null values are rounded per ind.Unit. Parse failures route to the
// string branch during auto-detection and are never surfaced as errors.
//
// keyValue is padded per the key-type policy (PadKey); the stored
// KeyUnitType keeps the caller's original spelling. timeType and timeKey
// are opaque pass-through. The record is not persisted.
func (b *Builder) Generate(ind *indicator.Indicator, keyType, keyValue, timeType, timeKey string, value any, dataType string) indicator.Data {
	cleaned := CleanValue(value)

	dt := effectiveType(cleaned, dataType)

	d := indicator.Data{
		Indicator:   ind,
		DataType:    dt,
		KeyUnitType: keyType,
		KeyValue:    PadKey(keyType, keyValue),
		TimeType:    timeType,
		TimeKey:     timeKey,
	}

	switch dt {
	case indicator.TypeString:
		d.String = asString(cleaned)
	case indicator.TypeNumeric:
		if f, ok := toFloat(cleaned); ok {
			d.Numeric = RoundForUnit(&f, ind.Unit)
		}
		// Empty (or unparseable under a forced override) stays null.
	}
	return d
}

// effectiveType applies the explicit override when recognized, otherwise
// probes the cleaned value.
func effectiveType(cleaned any, dataType string) indicator.DataType {
	switch strings.ToLower(dataType) {
	case "string":
		return indicator.TypeString
	case "numeric":
		return indicator.TypeNumeric
	}
	if _, ok := toFloat(cleaned); ok {
		return indicator.TypeNumeric
	}
	return indicator.TypeString
}

// toFloat reports whether v carries a numeric value, converting it.
//
// Mirrors the classification probe used on import: a string parses via
// strconv, native numbers convert directly, everything else (including the
// empty string and nil) does not count as numeric.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// asString renders a cleaned value for the string field.
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(v)
	}
}
