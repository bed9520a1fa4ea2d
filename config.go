package sparkmail

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/plainq/sparkmail/errkit"
	"github.com/plainq/sparkmail/mailkit"
	"github.com/plainq/sparkmail/tern"
)

// defaultRetryLimit is the number of send attempts
// when Config.RetryLimit is not set.
const defaultRetryLimit = 3

// Config holds the mailer configuration.
type Config struct {
	// APIKey authenticates requests to the provider. Required.
	APIKey string

	// Sandbox enables the sandbox option on every composed message.
	Sandbox bool

	// UseDefaultEmail makes composed messages use the default email
	// as sender and reply-to address unless they are set explicitly.
	UseDefaultEmail bool

	// DefaultEmail is a single mailbox, e.g. `Shop <shop@example.com>`.
	// When empty, the default email is AppName <AdminEmail>.
	DefaultEmail string

	// AdminEmail and AppName form the default email
	// when DefaultEmail is empty.
	AdminEmail string
	AppName    string

	// RetryLimit is the number of send attempts, the first one included.
	// Zero or negative value means 3.
	RetryLimit int

	// DevelopmentMode makes Send return delivery errors
	// instead of recording them in LastError.
	DevelopmentMode bool
}

// validate checks the configuration and resolves the default email.
func (c *Config) validate() (mailkit.Address, error) {
	if c.APIKey == "" {
		return mailkit.Address{}, fmt.Errorf("%w: %w", ErrAPIKeyRequired, errkit.ErrConfiguration)
	}

	if strings.ContainsFunc(c.APIKey, unicode.IsSpace) {
		return mailkit.Address{}, fmt.Errorf("%w: contains whitespace: %w", ErrAPIKeyMalformed, errkit.ErrConfiguration)
	}

	if !c.UseDefaultEmail {
		return mailkit.Address{}, nil
	}

	if c.DefaultEmail != "" {
		address, err := mailkit.ParseAddress(c.DefaultEmail)
		if err != nil {
			return mailkit.Address{}, fmt.Errorf("%w: %w: %w", ErrDefaultEmailInvalid, err, errkit.ErrConfiguration)
		}

		return address, nil
	}

	if strings.TrimSpace(c.AdminEmail) == "" {
		return mailkit.Address{}, fmt.Errorf("%w: set DefaultEmail or AdminEmail: %w",
			ErrDefaultEmailUnresolved, errkit.ErrConfiguration,
		)
	}

	address, err := mailkit.ParseAddress(c.AdminEmail)
	if err != nil {
		return mailkit.Address{}, fmt.Errorf("%w: admin email: %w: %w", ErrDefaultEmailInvalid, err, errkit.ErrConfiguration)
	}

	if name := strings.TrimSpace(c.AppName); name != "" {
		address.Name = name
	}

	return address, nil
}

func (c *Config) retryLimit() uint {
	return uint(tern.OP(c.RetryLimit <= 0, defaultRetryLimit, c.RetryLimit))
}
