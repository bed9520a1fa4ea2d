package tern

import (
	"testing"

	"github.com/maxatome/go-testdeep/td"
)

func TestOP(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		td.Cmp(t, OP(true, "sandbox", "live"), "sandbox")
		td.Cmp(t, OP(false, "sandbox", "live"), "live")
	})

	t.Run("int", func(t *testing.T) {
		f := func(limit, want int) {
			t.Helper()
			td.Cmp(t, OP(limit <= 0, 3, limit), want)
		}

		f(0, 3)
		f(-1, 3)
		f(5, 5)
	})
}
