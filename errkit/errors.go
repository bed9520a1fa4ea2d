package errkit

import "errors"

// This is compiling time check for interface implementation.
var _ error = Error("") //nolint: errcheck // OK here.

const (
	// ErrInvalidArgument indicates that client has specified an invalid argument.
	ErrInvalidArgument Error = "invalid argument"

	// ErrValidation indicates that the data is not valid.
	ErrValidation Error = "validation failed"

	// ErrConfiguration indicates that a component was configured
	// with missing or malformed values and can't be initialized.
	ErrConfiguration Error = "invalid configuration"

	// ErrUnsupported indicates that the requested operation
	// is not supported by the implementation.
	ErrUnsupported Error = "operation not supported"

	// ErrUnavailable indicates that the service is currently unavailable.
	// This kind of error is retryable. Caller should retry with a backoff.
	ErrUnavailable Error = "temporarily unavailable"
)

// Error type represents package level errors.
type Error string

func (e Error) Error() string { return string(e) }

// IsPermanent reports whether err is one of the errors which can't be
// fixed by repeating the same call.
func IsPermanent(err error) bool {
	for _, target := range []error{ErrInvalidArgument, ErrValidation, ErrConfiguration, ErrUnsupported} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
