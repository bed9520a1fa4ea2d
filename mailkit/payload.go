package mailkit

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/plainq/sparkmail/errkit"
)

// Payload keys. Payload is flat, the transport turns it into
// the structure of the provider API.
const (
	KeyCampaign         = "campaign"
	KeyMetadata         = "metadata"
	KeySubstitutionData = "substitutionData"
	KeyDescription      = "description"
	KeyReturnPath       = "returnPath"
	KeyReplyTo          = "replyTo"
	KeySubject          = "subject"
	KeyFrom             = "from"
	KeyHTML             = "html"
	KeyText             = "text"
	KeyRFC822           = "rfc822"
	KeyCustomHeaders    = "customHeaders"
	KeyRecipients       = "recipients"
	KeyRecipientList    = "recipientList"
	KeyTemplate         = "template"
	KeyUseDraftTemplate = "useDraftTemplate"
	KeyTrackOpens       = "trackOpens"
	KeyTrackClicks      = "trackClicks"
	KeyTransactional    = "transactional"
	KeySandbox          = "sandbox"
	KeySkipSuppression  = "skipSuppression"
	KeyStartTime        = "startTime"
	KeyInlineCSS        = "inlineCss"
	KeyInlineImages     = "inline_images"
	KeyAttachments      = "attachments"
)

const (
	headerCc = "Cc"

	maxCampaign    = 64
	maxDescription = 1024
	maxMetadata    = 1000
)

// payloadFields maps payload keys to message fields. A dotted source
// dereferences one level into a nested mapping.
var payloadFields = []struct{ key, source string }{
	{KeyCampaign, "campaign"},
	{KeyMetadata, "metadata"},
	{KeySubstitutionData, "substitutionData"},
	{KeyDescription, "description"},
	{KeyReturnPath, "returnPath"},
	{KeyReplyTo, "replyTo"},
	{KeySubject, "subject"},
	{KeyFrom, "from"},
	{KeyHTML, "html"},
	{KeyText, "text"},
	{KeyRFC822, "rfc822"},
	{KeyCustomHeaders, "headers"},
	{KeyRecipients, "recipients"},
	{KeyRecipientList, "to.list_id"},
	{KeyTemplate, "templateId"},
	{KeyUseDraftTemplate, "useDraftTemplate"},
	{KeyTrackOpens, "options.open_tracking"},
	{KeyTrackClicks, "options.click_tracking"},
	{KeyTransactional, "options.transactional"},
	{KeySandbox, "options.sandbox"},
	{KeySkipSuppression, "options.skip_suppression"},
	{KeyStartTime, "options.start_time"},
	{KeyInlineCSS, "options.inline_css"},
	{KeyInlineImages, "images"},
	{KeyAttachments, "attachments"},
}

// WireAddress is the address of a recipient in the payload.
// HeaderTo is set for Cc and Bcc recipients and holds the primary
// recipients, it is present even when there are none.
type WireAddress struct {
	Email    string  `json:"email"`
	Name     string  `json:"name,omitempty"`
	HeaderTo *string `json:"header_to,omitempty"`
}

// IsCopy reports whether the address belongs to a Cc or Bcc recipient.
func (a WireAddress) IsCopy() bool { return a.HeaderTo != nil }

// WireRecipient is a recipient in the payload.
type WireRecipient struct {
	Address          WireAddress    `json:"address"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	SubstitutionData map[string]any `json:"substitution_data,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
}

// Payload is the wire representation of a message.
// Only the fields which were set are present, boolean
// fields are present once set, even when false.
type Payload map[string]any

// String returns the string value of key.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Bool returns the boolean value of key and whether it is present.
func (p Payload) Bool(key string) (value, ok bool) {
	value, ok = p[key].(bool)
	return value, ok
}

// Map returns the mapping value of key.
func (p Payload) Map(key string) map[string]any {
	m, _ := p[key].(map[string]any)
	return m
}

// Headers returns custom headers.
func (p Payload) Headers() map[string]string {
	h, _ := p[KeyCustomHeaders].(map[string]string)
	return h
}

// Recipients returns compiled recipients.
func (p Payload) Recipients() []WireRecipient {
	r, _ := p[KeyRecipients].([]WireRecipient)
	return r
}

// Attachments returns attachments stored under key,
// which is KeyAttachments or KeyInlineImages.
func (p Payload) Attachments(key string) []Attachment {
	a, _ := p[key].([]Attachment)
	return a
}

// Payload validates the message and returns its wire representation.
// No network call is made.
func (m *Message) Payload() (Payload, error) {
	if m.err != nil {
		return nil, m.err
	}

	if err := m.validateLimits(); err != nil {
		return nil, err
	}

	recipients, ccHeader := m.compileRecipients()

	headers := maps.Clone(m.headers)
	if ccHeader != "" {
		headers[headerCc] = ccHeader
	}

	fields := map[string]any{
		"campaign":         m.campaign,
		"metadata":         maps.Clone(m.metadata),
		"substitutionData": maps.Clone(m.substitutionData),
		"description":      m.description,
		"returnPath":       m.returnPath,
		"replyTo":          m.replyTo.String(),
		"subject":          m.subject,
		"from":             m.from.String(),
		"html":             m.html,
		"text":             m.text,
		"rfc822":           m.rfc822,
		"headers":          headers,
		"recipients":       recipients,
		"to":               map[string]any{"list_id": m.listID},
		"templateId":       m.templateID,
		"useDraftTemplate": optional(m.useDraftTemplate),
		"options":          m.options.values(),
		"images":           m.Images(),
		"attachments":      m.Attachments(),
	}

	payload := make(Payload, len(payloadFields))

	for _, field := range payloadFields {
		value := lookup(fields, field.source)
		if present(value) {
			payload[field.key] = value
		}
	}

	return payload, nil
}

// compileRecipients turns To, Cc and Bcc into provider recipients.
//
// Both Cc and Bcc recipients carry header_to with the primary recipients.
// Cc recipients are also listed in the Cc header, that is how the
// provider tells them apart from Bcc ones.
func (m *Message) compileRecipients() ([]WireRecipient, string) {
	recipients := make([]WireRecipient, 0, len(m.to)+len(m.cc)+len(m.bcc))
	headerTo := joinAddresses(m.to, ",")

	add := func(addresses []Address, headerTo *string) {
		for _, a := range addresses {
			r := WireRecipient{
				Address: WireAddress{Email: a.Email, Name: a.Name, HeaderTo: headerTo},
			}

			if attrs, ok := m.userData[a.Email]; ok {
				r.Metadata = maps.Clone(attrs.Metadata)
				r.SubstitutionData = maps.Clone(attrs.SubstitutionData)
				r.Tags = slices.Clone(attrs.Tags)
			}

			recipients = append(recipients, r)
		}
	}

	add(m.to, nil)
	add(m.cc, &headerTo)
	add(m.bcc, &headerTo)

	return recipients, joinAddresses(m.cc, ",")
}

func (m *Message) validateLimits() error {
	if len(m.campaign) > maxCampaign {
		return fmt.Errorf("%w: campaign is %d bytes, limit is %d: %w",
			ErrFieldTooLong, len(m.campaign), maxCampaign, errkit.ErrValidation,
		)
	}

	if len(m.description) > maxDescription {
		return fmt.Errorf("%w: description is %d bytes, limit is %d: %w",
			ErrFieldTooLong, len(m.description), maxDescription, errkit.ErrValidation,
		)
	}

	if len(m.metadata) > 0 {
		encoded, err := json.Marshal(m.metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w: %w", err, errkit.ErrValidation)
		}

		if len(encoded) > maxMetadata {
			return fmt.Errorf("%w: metadata is %d bytes, limit is %d: %w",
				ErrFieldTooLong, len(encoded), maxMetadata, errkit.ErrValidation,
			)
		}
	}

	return nil
}

// lookup resolves source in fields, "a.b" is fields["a"]["b"].
func lookup(fields map[string]any, source string) any {
	name, key, nested := strings.Cut(source, ".")
	if !nested {
		return fields[name]
	}

	sub, ok := fields[name].(map[string]any)
	if !ok {
		return nil
	}

	return sub[key]
}

// optional returns the value of b, or nil when b is not set.
func optional(b *bool) any {
	if b == nil {
		return nil
	}

	return *b
}

// present reports whether the value goes to the payload:
// booleans always do, other values when they are not empty.
func present(value any) bool {
	v := reflect.ValueOf(value)

	switch v.Kind() {
	case reflect.Invalid:
		return false

	case reflect.Bool:
		return true

	case reflect.String, reflect.Map, reflect.Slice:
		return v.Len() > 0

	default:
		return !v.IsZero()
	}
}
