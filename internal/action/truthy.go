package action

import "github.com/zclconf/go-cty/cty"

// Truthy coerces a condition body's raw result to a branch decision: any
// non-nil result that is not boolean false counts as positive. Notably the
// zero number and the empty string are positive — existing workflows depend
// on the literal non-nil rule, so it is preserved exactly and pinned by a
// regression test rather than "fixed".
//
// Script-defined conditions produce cty values; those unwrap first, with
// cty null treated as nil and cty bools as their Go value.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case cty.Value:
		if val.IsNull() {
			return false
		}
		if val.Type() == cty.Bool {
			return val.True()
		}
		return true
	default:
		return true
	}
}
