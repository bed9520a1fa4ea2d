// Package resendkit implements mailkit.Transport on top of the Resend API.
// Resend has no stored recipient lists, stored templates, raw MIME
// messages or inline images, payloads which use them are rejected.
package resendkit

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/plainq/sparkmail/errkit"
	"github.com/plainq/sparkmail/logkit"
	"github.com/plainq/sparkmail/mailkit"
	"github.com/resend/resend-go/v2"
)

// unsupported lists payload keys which Resend can't serve.
var unsupported = []string{
	mailkit.KeyRecipientList,
	mailkit.KeyTemplate,
	mailkit.KeyRFC822,
	mailkit.KeyInlineImages,
}

// Transport sends payloads with Resend.
type Transport struct {
	client *resend.Client
	logger *slog.Logger
}

// Option configures the Transport.
type Option func(*Transport)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithBaseURL points the client to another API host, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(t *Transport) {
		if u, err := t.client.BaseURL.Parse(baseURL); err == nil {
			t.client.BaseURL = u
		}
	}
}

// New returns a new Transport authenticated with apiKey.
func New(apiKey string, options ...Option) *Transport {
	t := Transport{
		client: resend.NewClient(apiKey),
		logger: logkit.Nop(),
	}

	for _, option := range options {
		option(&t)
	}

	return &t
}

// Send implements mailkit.Transport. Resend accepts or rejects the
// message as a whole, so the result counts all recipients as accepted.
func (t *Transport) Send(ctx context.Context, payload mailkit.Payload) (*mailkit.Result, error) {
	req, err := Request(payload)
	if err != nil {
		return nil, err
	}

	res, err := t.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("resend: sending email: %w", err)
	}

	t.logger.Debug("Resend accepted email", slog.String("id", res.Id))

	result := mailkit.Result{
		TotalAccepted: len(req.To) + len(req.Cc) + len(req.Bcc),
		ID:            res.Id,
	}

	return &result, nil
}

// Request converts the payload to the Resend request.
func Request(payload mailkit.Payload) (*resend.SendEmailRequest, error) {
	for _, key := range unsupported {
		if _, ok := payload[key]; ok {
			return nil, fmt.Errorf("resend: %s: %w", key, errkit.ErrUnsupported)
		}
	}

	headers := maps.Clone(payload.Headers())
	ccHeader := headers["Cc"]
	delete(headers, "Cc")

	cc, err := ccSet(ccHeader)
	if err != nil {
		return nil, fmt.Errorf("resend: Cc header: %w", err)
	}

	req := resend.SendEmailRequest{
		From:    payload.String(mailkit.KeyFrom),
		Subject: payload.String(mailkit.KeySubject),
		ReplyTo: payload.String(mailkit.KeyReplyTo),
		Html:    payload.String(mailkit.KeyHTML),
		Text:    payload.String(mailkit.KeyText),
		Headers: headers,
	}

	for _, r := range payload.Recipients() {
		address := mailkit.Address{Email: r.Address.Email, Name: r.Address.Name}.String()

		switch {
		case !r.Address.IsCopy():
			req.To = append(req.To, address)

		case cc[strings.ToLower(r.Address.Email)]:
			req.Cc = append(req.Cc, address)

		default:
			req.Bcc = append(req.Bcc, address)
		}
	}

	if campaign := payload.String(mailkit.KeyCampaign); campaign != "" {
		req.Tags = append(req.Tags, resend.Tag{Name: "campaign", Value: campaign})
	}

	for _, a := range payload.Attachments(mailkit.KeyAttachments) {
		content, err := a.Content()
		if err != nil {
			return nil, fmt.Errorf("resend: %w: %w", err, errkit.ErrValidation)
		}

		req.Attachments = append(req.Attachments, &resend.Attachment{
			Content:     content,
			Filename:    a.Name,
			ContentType: a.Type,
		})
	}

	return &req, nil
}

// ccSet returns the emails listed in the Cc header, lowercased.
func ccSet(header string) (map[string]bool, error) {
	addresses, err := mailkit.ParseAddressList(header)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		set[strings.ToLower(a.Email)] = true
	}

	return set, nil
}
