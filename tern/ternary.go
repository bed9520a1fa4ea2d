// Package tern provides the conditional expression Go lacks.
package tern

// OP returns t when cond is true and f otherwise.
// Both values are evaluated before the call.
//
//nolint:revive // flag-parameter is ok here.
func OP[T any](cond bool, t, f T) T {
	if cond {
		return t
	}

	return f
}
