package normalize

import "strings"

// keyWidths is the padding policy for recognized key types. Lookup is
// case-insensitive; key types not listed here pass through unpadded.
//
// The two entries mirror the portal's identifier schemes: state school
// codes are 5 digits, district codes 2.
var keyWidths = map[string]int{
	"SCHOOL":   5,
	"DISTRICT": 2,
}

// PadKey left-pads keyValue with zeros to the width configured for
// keyType.
//
// Values already at or beyond the nominal width are returned unchanged;
// padding never truncates. Unrecognized key types are pass-through.
func PadKey(keyType, keyValue string) string {
	width, ok := keyWidths[strings.ToUpper(keyType)]
	if !ok || len(keyValue) >= width {
		return keyValue
	}
	return strings.Repeat("0", width-len(keyValue)) + keyValue
}
