// Column layout shared by every backend. The names are part of the
// persistence contract ("string" and "numeric" really are column names, so
// backends must quote them in DDL and DML).
package storage

import "datahub/internal/indicator"

// DataColumns is the indicator_data column order used by all backends.
var DataColumns = []string{
	"indicator",
	"data_type",
	"string",
	"numeric",
	"key_unit_type",
	"key_value",
	"time_type",
	"time_key",
}

// DataRow converts a record into positional args aligned with DataColumns.
//
// Exactly one of string/numeric is non-null, per the record invariant:
// the string column is null on the numeric branch and vice versa. A null
// Numeric on the numeric branch stays null (empty raw value).
func DataRow(d indicator.Data) []any {
	var str any
	if d.DataType == indicator.TypeString {
		str = d.String
	}

	var num any
	if d.DataType == indicator.TypeNumeric && d.Numeric.Valid {
		// Exact fixed-point text form; every backend stores it losslessly.
		num = d.Numeric.Decimal.String()
	}

	slug := ""
	if d.Indicator != nil {
		slug = d.Indicator.Slug
	}

	return []any{
		slug,
		string(d.DataType),
		str,
		num,
		d.KeyUnitType,
		d.KeyValue,
		d.TimeType,
		d.TimeKey,
	}
}
