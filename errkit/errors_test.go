package errkit

import (
	"fmt"
	"testing"

	"github.com/maxatome/go-testdeep/td"
)

func TestError_Error(t *testing.T) {
	f := func(name string, err error, want string) {
		t.Helper()

		t.Run(name, func(t *testing.T) {
			td.Cmp(t, err.Error(), want)
		})
	}

	f("ErrInvalidArgument", ErrInvalidArgument, "invalid argument")
	f("ErrValidation", ErrValidation, "validation failed")
	f("ErrConfiguration", ErrConfiguration, "invalid configuration")
	f("ErrUnsupported", ErrUnsupported, "operation not supported")
	f("ErrUnavailable", ErrUnavailable, "temporarily unavailable")
	f("Custom", Error("test error"), "test error")
}

func TestIsPermanent(t *testing.T) {
	f := func(err error, want bool) {
		t.Helper()

		td.Cmp(t, IsPermanent(err), want, "%v", err)
	}

	f(nil, false)
	f(ErrUnavailable, false)
	f(fmt.Errorf("dial tcp: %w", ErrUnavailable), false)
	f(Error("connection reset"), false)
	f(ErrValidation, true)
	f(fmt.Errorf("campaign too long: %w", ErrValidation), true)
	f(fmt.Errorf("template: %w", ErrUnsupported), true)
}
