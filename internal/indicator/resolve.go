package indicator

// Resolution is the outcome of resolving an indicator to its definition.
//
// It has two meaningful variants rather than a nil sentinel:
//   - Found:     exactly one definition matched; Definition is set.
//   - Ambiguous: more than one candidate matched; callers should skip the
//     indicator (soft failure) rather than abort the run.
//
// Zero candidates yields neither variant (both fields false/nil); callers
// that require a definition treat that the same as Ambiguous.
type Resolution struct {
	Definition *Definition
	Ambiguous  bool
}

// Found reports whether resolution produced exactly one definition.
func (r Resolution) Found() bool { return r.Definition != nil && !r.Ambiguous }

// Resolve picks the single definition for the indicator.
//
// Edge cases:
//   - No definitions: returns the zero Resolution (not found, not ambiguous).
//   - Multiple definitions: returns Resolution{Ambiguous: true}. This is an
//     expected condition after partial metadata loads, so it is reported as
//     a variant instead of an error.
func (ind *Indicator) Resolve() Resolution {
	switch len(ind.Definitions) {
	case 0:
		return Resolution{}
	case 1:
		return Resolution{Definition: &ind.Definitions[0]}
	default:
		return Resolution{Ambiguous: true}
	}
}
