// Package memkit implements mailkit.Transport which keeps payloads
// in memory instead of delivering them. It is meant for development
// and tests.
package memkit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/plainq/sparkmail/idkit"
	"github.com/plainq/sparkmail/logkit"
	"github.com/plainq/sparkmail/mailkit"
)

// ResponderFunc decides the outcome of a send. The attempt is 1-based
// and counts all calls of Send on the transport.
type ResponderFunc func(attempt int, payload mailkit.Payload) (*mailkit.Result, error)

// Option configures the Transport.
type Option func(t *Transport)

// WithResponder sets the function which decides the outcome of sends.
// By default every recipient is accepted.
func WithResponder(fn ResponderFunc) Option {
	return func(t *Transport) {
		if fn != nil {
			t.responder = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Transport records payloads. It is safe for concurrent use.
type Transport struct {
	logger    *slog.Logger
	responder ResponderFunc

	mu       sync.Mutex
	attempts int
	sent     []mailkit.Payload
}

// New returns a new Transport.
func New(options ...Option) *Transport {
	t := Transport{
		logger:    logkit.Nop(),
		responder: AcceptAll,
	}

	for _, option := range options {
		option(&t)
	}

	return &t
}

// Send implements mailkit.Transport. Payloads are recorded
// only when the responder doesn't fail.
func (t *Transport) Send(ctx context.Context, payload mailkit.Payload) (*mailkit.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.attempts++

	result, err := t.responder(t.attempts, payload)
	if err != nil {
		t.logger.Debug("Memory transport failed send",
			slog.Int("attempt", t.attempts),
			slog.String("error", err.Error()),
		)

		return nil, err
	}

	if result == nil {
		result = &mailkit.Result{}
	}

	if result.ID == "" {
		result.ID = idkit.TransmissionID()
	}

	t.sent = append(t.sent, payload)

	t.logger.Debug("Memory transport recorded payload",
		slog.String("id", result.ID),
		slog.String("subject", payload.String(mailkit.KeySubject)),
	)

	return result, nil
}

// Sent returns recorded payloads in the order they were sent.
func (t *Transport) Sent() []mailkit.Payload {
	t.mu.Lock()
	defer t.mu.Unlock()

	sent := make([]mailkit.Payload, len(t.sent))
	copy(sent, t.sent)

	return sent
}

// Attempts returns the number of Send calls.
func (t *Transport) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.attempts
}

// Reset forgets recorded payloads and attempts.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.attempts = 0
	t.sent = nil
}

// AcceptAll accepts every recipient of the payload. A payload
// which targets a stored recipient list counts as one recipient.
func AcceptAll(_ int, payload mailkit.Payload) (*mailkit.Result, error) {
	accepted := len(payload.Recipients())
	if _, ok := payload[mailkit.KeyRecipientList]; ok {
		accepted = 1
	}

	return &mailkit.Result{TotalAccepted: accepted}, nil
}

// Respond returns a ResponderFunc which always returns a copy of result.
func Respond(result mailkit.Result) ResponderFunc {
	return func(int, mailkit.Payload) (*mailkit.Result, error) {
		r := result
		return &r, nil
	}
}

// Fail returns a ResponderFunc which always fails with err.
func Fail(err error) ResponderFunc {
	return func(int, mailkit.Payload) (*mailkit.Result, error) { return nil, err }
}
