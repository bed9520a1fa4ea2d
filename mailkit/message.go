package mailkit

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/plainq/sparkmail/errkit"
)

// Deliverer sends composed messages. It is implemented by the mailer
// which composed the message.
type Deliverer interface {
	Send(ctx context.Context, message *Message) (bool, error)
}

// Message holds the state of a single transmission and produces its
// wire representation with Payload.
//
// Setters return the message itself to allow chaining. Setters which
// receive malformed input record the first error, it is reported
// by Err, Payload and Send.
//
// Message is not safe for concurrent use.
type Message struct {
	deliverer Deliverer
	err       error

	from    Address
	replyTo Address

	// Either explicit recipients or a stored recipient list.
	to       []Address
	cc       []Address
	bcc      []Address
	listID   string
	userData map[string]Attributes

	headers map[string]string

	subject          string
	text             string
	html             string
	rfc822           string
	templateID       string
	useDraftTemplate *bool

	attachments []Attachment
	images      []Attachment

	options          Options
	campaign         string
	description      string
	metadata         map[string]any
	substitutionData map[string]any
	returnPath       string
}

// NewMessage returns a new empty message.
// Messages are normally created by the mailer Compose method.
func NewMessage() *Message {
	m := Message{
		userData: make(map[string]Attributes),
		headers:  make(map[string]string),
	}

	return &m
}

// Bind sets the deliverer used by Send.
func (m *Message) Bind(d Deliverer) *Message {
	m.deliverer = d
	return m
}

// Send delivers the message with the mailer which composed it.
func (m *Message) Send(ctx context.Context) (bool, error) {
	if m.deliverer == nil {
		return false, ErrNoDeliverer
	}

	return m.deliverer.Send(ctx, m)
}

// Err returns the first error recorded by setters.
func (m *Message) Err() error { return m.err }

func (m *Message) setErr(err error) {
	if m.err == nil {
		m.err = err
	}
}

// Charset always returns an empty string, the character set is chosen by the provider.
func (*Message) Charset() string { return "" }

// SetCharset always fails, the character set is chosen by the provider.
func (*Message) SetCharset(string) error {
	return fmt.Errorf("%w: %w", ErrCharsetUnsupported, errkit.ErrUnsupported)
}

// From returns the sender.
func (m *Message) From() string { return m.from.String() }

// SetFrom sets the sender from a single mailbox string.
// Empty string resets the sender.
func (m *Message) SetFrom(from string) *Message {
	a, err := parseOptionalAddress(from)
	if err != nil {
		m.setErr(fmt.Errorf("from: %w", err))
		return m
	}

	m.from = a

	return m
}

// SetFromAddress sets the sender.
func (m *Message) SetFromAddress(from Address) *Message {
	if err := validateEmail(from.Email); err != nil {
		m.setErr(fmt.Errorf("from: %w", err))
		return m
	}

	m.from = from

	return m
}

// ReplyTo returns the reply-to address.
func (m *Message) ReplyTo() string { return m.replyTo.String() }

// SetReplyTo sets the reply-to address from a single mailbox string.
// Empty string resets the address.
func (m *Message) SetReplyTo(replyTo string) *Message {
	a, err := parseOptionalAddress(replyTo)
	if err != nil {
		m.setErr(fmt.Errorf("reply-to: %w", err))
		return m
	}

	m.replyTo = a

	return m
}

// SetReplyToAddress sets the reply-to address.
func (m *Message) SetReplyToAddress(replyTo Address) *Message {
	if err := validateEmail(replyTo.Email); err != nil {
		m.setErr(fmt.Errorf("reply-to: %w", err))
		return m
	}

	m.replyTo = replyTo

	return m
}

func parseOptionalAddress(s string) (Address, error) {
	if strings.TrimSpace(s) == "" {
		return Address{}, nil
	}

	return ParseAddress(s)
}

// To returns the primary recipients. When a stored recipient list is used,
// the only returned entry holds the list id as its Email.
func (m *Message) To() []Address {
	if m.listID != "" {
		return []Address{{Email: m.listID}}
	}

	return slices.Clone(m.to)
}

// SetTo replaces the primary recipients and switches the message
// off a stored recipient list.
func (m *Message) SetTo(recipients ...Recipient) *Message {
	m.listID = ""
	m.to = m.extractUserData("to", recipients)

	return m
}

// Cc returns the copy recipients.
func (m *Message) Cc() []Address {
	if m.listID != "" {
		return nil
	}

	return slices.Clone(m.cc)
}

// SetCc replaces the copy recipients.
func (m *Message) SetCc(recipients ...Recipient) *Message {
	m.listID = ""
	m.cc = m.extractUserData("cc", recipients)

	return m
}

// Bcc returns the hidden copy recipients.
func (m *Message) Bcc() []Address {
	if m.listID != "" {
		return nil
	}

	return slices.Clone(m.bcc)
}

// SetBcc replaces the hidden copy recipients.
func (m *Message) SetBcc(recipients ...Recipient) *Message {
	m.listID = ""
	m.bcc = m.extractUserData("bcc", recipients)

	return m
}

// RecipientListID returns the stored recipient list id.
func (m *Message) RecipientListID() string { return m.listID }

// SetRecipientListID makes the provider deliver the message to a stored
// recipient list. Explicit To, Cc and Bcc recipients are dropped.
func (m *Message) SetRecipientListID(id string) *Message {
	m.listID = id
	m.to, m.cc, m.bcc = nil, nil, nil

	return m
}

// UserData returns recipient attributes keyed by email.
func (m *Message) UserData() map[string]Attributes { return maps.Clone(m.userData) }

// extractUserData validates recipients, removes duplicates and stores their
// attributes. Attributes of the same email given for another role are overwritten.
func (m *Message) extractUserData(role string, recipients []Recipient) []Address {
	addresses := make([]Address, 0, len(recipients))
	index := make(map[string]int, len(recipients))

	for _, r := range recipients {
		r.Email = strings.TrimSpace(r.Email)
		r.Name = strings.TrimSpace(r.Name)

		if err := validateEmail(r.Email); err != nil {
			m.setErr(fmt.Errorf("%s: %w", role, err))
			continue
		}

		if r.Attributes != nil {
			m.userData[r.Email] = Attributes{
				Metadata:         maps.Clone(r.Attributes.Metadata),
				SubstitutionData: maps.Clone(r.Attributes.SubstitutionData),
				Tags:             slices.Clone(r.Attributes.Tags),
			}
		}

		if i, ok := index[r.Email]; ok {
			addresses[i] = r.Address
			continue
		}

		index[r.Email] = len(addresses)
		addresses = append(addresses, r.Address)
	}

	return addresses
}

// Headers returns custom headers.
func (m *Message) Headers() map[string]string { return maps.Clone(m.headers) }

// SetHeader sets a custom header. The Cc header is managed by the message.
func (m *Message) SetHeader(name, value string) *Message {
	if strings.EqualFold(name, headerCc) {
		m.setErr(fmt.Errorf("header %q is set from Cc recipients: %w", name, errkit.ErrInvalidArgument))
		return m
	}

	m.headers[name] = value

	return m
}

// Subject returns the message subject.
func (m *Message) Subject() string { return m.subject }

// SetSubject sets the message subject.
func (m *Message) SetSubject(subject string) *Message {
	m.subject = subject
	return m
}

// TextBody returns plain text content.
func (m *Message) TextBody() string { return m.text }

// SetTextBody sets plain text content.
func (m *Message) SetTextBody(text string) *Message {
	m.text = text
	return m
}

// HTMLBody returns HTML content.
func (m *Message) HTMLBody() string { return m.html }

// SetHTMLBody sets HTML content.
func (m *Message) SetHTMLBody(html string) *Message {
	m.html = html
	return m
}

// RFC822 returns the raw MIME content.
func (m *Message) RFC822() string { return m.rfc822 }

// SetRFC822 sets the raw MIME content which is sent instead of text and HTML bodies.
func (m *Message) SetRFC822(rfc822 string) *Message {
	m.rfc822 = rfc822
	return m
}

// TemplateID returns the stored template id.
func (m *Message) TemplateID() string { return m.templateID }

// SetTemplateID sets the stored template. Template fields override
// subject, bodies, sender and attachments of the message.
func (m *Message) SetTemplateID(id string) *Message {
	m.templateID = id
	return m
}

// UseDraftTemplate reports whether the draft version of the template is used.
func (m *Message) UseDraftTemplate() bool { return m.useDraftTemplate != nil && *m.useDraftTemplate }

// SetUseDraftTemplate selects the draft version of the template.
func (m *Message) SetUseDraftTemplate(use bool) *Message {
	m.useDraftTemplate = Bool(use)
	return m
}

// Options returns transmission options.
func (m *Message) Options() Options { return m.options }

// SetOptions replaces transmission options.
func (m *Message) SetOptions(options Options) *Message {
	m.options = options
	return m
}

// Sandbox reports whether the sandbox option is on.
func (m *Message) Sandbox() bool { return m.options.Sandbox != nil && *m.options.Sandbox }

// SetSandbox sets the sandbox option.
func (m *Message) SetSandbox(sandbox bool) *Message {
	m.options.Sandbox = Bool(sandbox)
	return m
}

// Campaign returns the campaign id.
func (m *Message) Campaign() string { return m.campaign }

// SetCampaign sets the campaign id, 64 bytes max.
func (m *Message) SetCampaign(campaign string) *Message {
	m.campaign = campaign
	return m
}

// Description returns the transmission description.
func (m *Message) Description() string { return m.description }

// SetDescription sets the transmission description, 1024 bytes max.
func (m *Message) SetDescription(description string) *Message {
	m.description = description
	return m
}

// Metadata returns the transmission metadata.
func (m *Message) Metadata() map[string]any { return maps.Clone(m.metadata) }

// SetMetadata sets the transmission metadata, 1000 bytes max when encoded.
func (m *Message) SetMetadata(metadata map[string]any) *Message {
	m.metadata = maps.Clone(metadata)
	return m
}

// SubstitutionData returns the template substitution data.
func (m *Message) SubstitutionData() map[string]any { return maps.Clone(m.substitutionData) }

// SetSubstitutionData sets the template substitution data.
func (m *Message) SetSubstitutionData(data map[string]any) *Message {
	m.substitutionData = maps.Clone(data)
	return m
}

// ReturnPath returns the bounce address.
func (m *Message) ReturnPath() string { return m.returnPath }

// SetReturnPath sets the bounce address.
func (m *Message) SetReturnPath(returnPath string) *Message {
	m.returnPath = returnPath
	return m
}

// String returns a short human-readable representation of the message.
func (m *Message) String() string {
	return m.subject + " - Recipients:" +
		" [TO] " + joinAddresses(m.To(), "; ") +
		" [CC] " + joinAddresses(m.Cc(), "; ") +
		" [BCC] " + joinAddresses(m.Bcc(), "; ")
}
