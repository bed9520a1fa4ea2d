package mailkit

const (
	// ErrCharsetUnsupported is returned by Message.SetCharset, character set
	// of the message is always defined by the provider.
	ErrCharsetUnsupported Error = "charset is not supported by the provider"

	// ErrMultipleAddresses indicates that a list of addresses was given
	// where only a single mailbox is accepted, e.g. the sender.
	ErrMultipleAddresses Error = "only a single address is allowed"

	// ErrInvalidAddress indicates that an email address can't be parsed.
	ErrInvalidAddress Error = "invalid email address"

	// ErrNotImage indicates an attempt to embed content which is not an image.
	ErrNotImage Error = "only images can be embedded"

	// ErrFieldTooLong indicates that a field value exceeds the provider limit.
	ErrFieldTooLong Error = "field exceeds the provider limit"

	// ErrNoDeliverer indicates that Message.Send was called on a message
	// which was not created by a mailer.
	ErrNoDeliverer Error = "message is not bound to a mailer"
)

// Error represents package level errors.
type Error string

func (e Error) Error() string { return string(e) }
