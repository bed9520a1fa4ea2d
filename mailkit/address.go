package mailkit

import (
	"fmt"
	"strings"

	"github.com/plainq/sparkmail/errkit"
	"github.com/zostay/go-addr/pkg/addr"
)

// Address represents a single mailbox.
type Address struct {
	Email string
	Name  string
}

// String returns the address in `"Name" <email>` form,
// or just the email when the name is empty.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}

	return `"` + strings.ReplaceAll(a.Name, `"`, `\"`) + `" <` + a.Email + `>`
}

// ParseAddress parses a single mailbox like `jane@example.com`,
// `Jane <jane@example.com>` or `"Jane Doe" <jane@example.com>`.
// A list of mailboxes is rejected with ErrMultipleAddresses.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty string: %w", ErrInvalidAddress, errkit.ErrValidation)
	}

	if list, err := addr.ParseEmailAddressList(s); err == nil && len(list) > 1 {
		return Address{}, fmt.Errorf("%w: %q has %d addresses: %w", ErrMultipleAddresses, s, len(list), errkit.ErrValidation)
	}

	mailbox, err := addr.ParseEmailMailbox(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w %q: %w", ErrInvalidAddress, s, errkit.ErrValidation)
	}

	return Address{
		Email: mailbox.Address(),
		Name:  unquote(mailbox.DisplayName()),
	}, nil
}

// ParseAddressList parses a comma separated list of mailboxes,
// e.g. the value of a Cc header. Groups are flattened.
func ParseAddressList(s string) ([]Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	list, err := addr.ParseEmailAddressList(s)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidAddress, s, errkit.ErrValidation)
	}

	addresses := make([]Address, 0, len(list))

	for _, a := range list {
		group, ok := a.(*addr.Group)
		if !ok {
			addresses = append(addresses, Address{Email: a.Address(), Name: unquote(a.DisplayName())})
			continue
		}

		for _, mailbox := range group.MailboxList() {
			addresses = append(addresses, Address{Email: mailbox.Address(), Name: unquote(mailbox.DisplayName())})
		}
	}

	return addresses, nil
}

// unquote strips surrounding spaces and quotes of a display name.
func unquote(name string) string {
	name = strings.TrimSpace(name)
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		name = strings.ReplaceAll(name[1:len(name)-1], `\"`, `"`)
	}

	return name
}

// validateEmail checks that email is a bare addr-spec.
func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: empty email: %w", ErrInvalidAddress, errkit.ErrValidation)
	}

	if _, err := addr.ParseEmailAddrSpec(email); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidAddress, email, errkit.ErrValidation)
	}

	return nil
}

// joinAddresses renders addresses as a single string.
func joinAddresses(addresses []Address, sep string) string {
	parts := make([]string, 0, len(addresses))
	for _, a := range addresses {
		parts = append(parts, a.String())
	}

	return strings.Join(parts, sep)
}

// Attributes holds recipient specific data which is passed to the
// provider along with the recipient address.
type Attributes struct {
	Metadata         map[string]any
	SubstitutionData map[string]any
	Tags             []string
}

// Recipient is an input for Message.SetTo, Message.SetCc and Message.SetBcc.
// It is either a plain address (Attributes is nil) or an address with
// recipient specific attributes.
type Recipient struct {
	Address
	Attributes *Attributes
}

// With returns a copy of r with given attributes.
func (r Recipient) With(attrs Attributes) Recipient {
	r.Attributes = &attrs
	return r
}

// Named returns a recipient with the given name.
func Named(email, name string) Recipient {
	return Recipient{Address: Address{Email: email, Name: name}}
}

// Emails returns recipients for bare email addresses.
func Emails(emails ...string) []Recipient {
	recipients := make([]Recipient, 0, len(emails))
	for _, email := range emails {
		recipients = append(recipients, Recipient{Address: Address{Email: email}})
	}

	return recipients
}
