// Package indicator defines the domain model for the statistics portal:
// indicators, their candidate definitions, and the IndicatorData record
// that the normalization pipeline produces for persistence.
package indicator

import (
	"github.com/shopspring/decimal"
)

// DataType classifies a stored indicator value as textual or numeric.
type DataType string

const (
	TypeString  DataType = "string"
	TypeNumeric DataType = "numeric"
)

// Indicator is a named statistical measure.
//
// Unit is a free-text category ("rate", "other", "count", ...) that drives
// the rounding precision applied to numeric values. Definitions holds the
// candidate definitions this indicator resolves against; in the portal an
// indicator normally has exactly one, but imports can leave it with several.
type Indicator struct {
	Name string
	Slug string
	Unit string

	// Published controls visibility in the portal. Flipped in bulk via
	// Repository.SetPublished; never consulted by the normalizer itself.
	Published bool

	Definitions []Definition

	// PregenParts describe CSV files whose columns feed this indicator's
	// data wholesale (clear-and-reload on import).
	PregenParts []PregenPart
}

// Definition is one versioned specification of how an indicator is
// computed or interpreted.
type Definition struct {
	Name    string
	Version int
}

// PregenPart points at one column of a pregenerated CSV file.
//
// ColumnName is the value column; KeyColumn names the column holding the
// school/district identifier each value is attributed to.
type PregenPart struct {
	FileName   string
	ColumnName string
	KeyColumn  string
	KeyType    string
	TimeType   string
	TimeValue  string

	// Encoding and Delimiter describe the CSV bytes; empty means UTF-8
	// and ','.
	Encoding  string
	Delimiter string
}

// Data is one persistence-ready data point for an indicator.
//
// Exactly one of String/Numeric is populated, selected by DataType. A
// numeric point whose raw value was empty carries a null Numeric (Valid
// is false) rather than zero.
//
// KeyValue arrives already padded by the normalizer; KeyUnitType is the
// caller's original key type string, case preserved.
type Data struct {
	Indicator *Indicator

	DataType    DataType
	String      string
	Numeric     decimal.NullDecimal
	KeyUnitType string
	KeyValue    string
	TimeType    string
	TimeKey     string
}
