package sparkmail

const (
	// ErrAPIKeyRequired indicates that the mailer is configured without an API key.
	ErrAPIKeyRequired Error = "api key is required"

	// ErrAPIKeyMalformed indicates that the API key contains whitespace,
	// usually a result of a broken environment variable or secret.
	ErrAPIKeyMalformed Error = "api key is malformed"

	// ErrDefaultEmailUnresolved indicates that the default sender is enabled
	// but neither the default email nor the admin email is configured.
	ErrDefaultEmailUnresolved Error = "default email can't be resolved"

	// ErrDefaultEmailInvalid indicates that the default email can't be parsed.
	ErrDefaultEmailInvalid Error = "default email is invalid"
)

// Error represents a package level error. Implements builtin error interface.
type Error string

// Error returns the error message as a string.
// Implements the error interface.
func (e Error) Error() string { return string(e) }
