package normalize

import "github.com/shopspring/decimal"

// unitPrecision maps an indicator unit to the number of decimal places its
// values keep. Units not listed here round to whole numbers.
var unitPrecision = map[string]int32{
	"rate":  2,
	"other": 2,
}

// RoundForUnit rounds v to the precision configured for unit and returns
// it as an exact fixed-point decimal.
//
// nil passes through as a null decimal. The result is constructed from the
// rounded value, not stored as a float64, so "3.14" stays 3.14 rather than
// the nearest binary approximation.
func RoundForUnit(v *float64, unit string) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	places := unitPrecision[unit]
	return decimal.NullDecimal{
		Decimal: decimal.NewFromFloat(*v).Round(places),
		Valid:   true,
	}
}
