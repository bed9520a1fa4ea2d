// Package sparkmail delivers email through SparkPost.
//
// Mailer composes messages, sends them through a mailkit.Transport with
// retries and keeps the counters of delivery outcomes.
package sparkmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/plainq/sparkmail/errkit"
	"github.com/plainq/sparkmail/idkit"
	"github.com/plainq/sparkmail/logkit"
	"github.com/plainq/sparkmail/mailkit"
	"github.com/plainq/sparkmail/mailkit/sparkkit"
	"github.com/plainq/sparkmail/retry"
)

const (
	outcomeSent     = "sent"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
	outcomeInvalid  = "invalid"
)

// Mailer sends messages and accumulates delivery outcomes.
// It is safe for concurrent use.
type Mailer struct {
	logger       *slog.Logger
	transport    mailkit.Transport
	backoff      retry.Backoff
	sandbox      bool
	defaultEmail mailkit.Address
	retryLimit   uint
	development  bool

	mu    sync.RWMutex
	stats Stats
}

// New validates the configuration and returns a new Mailer.
// Configuration errors wrap errkit.ErrConfiguration.
func New(cfg Config, options ...Option) (*Mailer, error) {
	defaultEmail, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	o := Options{
		logger:  logkit.Nop(),
		backoff: retry.StaticBackoff(0),
	}

	for _, option := range options {
		option(&o)
	}

	if o.logger == nil {
		o.logger = logkit.Nop()
	}

	if o.transport == nil {
		sparkOptions := append([]sparkkit.Option{sparkkit.WithLogger(o.logger)}, o.sparkPostOptions...)
		o.transport = sparkkit.New(cfg.APIKey, sparkOptions...)
	}

	m := Mailer{
		logger:       o.logger,
		transport:    o.transport,
		backoff:      o.backoff,
		sandbox:      cfg.Sandbox,
		defaultEmail: defaultEmail,
		retryLimit:   cfg.retryLimit(),
		development:  cfg.DevelopmentMode,
	}

	return &m, nil
}

// Compose returns a new message bound to the mailer, so it can be sent
// with its Send method. Setup functions are applied first, then the
// sandbox option and the default sender fill what is not set.
func (m *Mailer) Compose(setup ...func(msg *mailkit.Message)) *mailkit.Message {
	msg := mailkit.NewMessage().Bind(m)

	for _, fn := range setup {
		fn(msg)
	}

	if m.sandbox && msg.Options().Sandbox == nil {
		msg.SetSandbox(true)
	}

	if m.defaultEmail.Email != "" {
		if msg.From() == "" {
			msg.SetFromAddress(m.defaultEmail)
		}

		if msg.ReplyTo() == "" {
			msg.SetReplyToAddress(m.defaultEmail)
		}
	}

	return msg
}

// Send delivers the message. It returns true when the provider accepted
// at least one recipient and false when all of them were rejected.
//
// Invalid messages, canceled contexts and permanent transport errors,
// see errkit.IsPermanent, are always returned. Provider errors which are
// not temporary, see mailkit.APIError.Temporary, are not retried. Other
// transport failures are retried up to the retry limit. A failed send
// returns false and records the error in LastError, in development mode
// the error is returned as well.
func (m *Mailer) Send(ctx context.Context, msg *mailkit.Message) (bool, error) {
	start := time.Now()
	sendID := idkit.SendID()
	logger := m.logger.With(slog.String("send_id", sendID))

	payload, err := msg.Payload()
	if err != nil {
		observe(outcomeInvalid, start)
		return false, fmt.Errorf("compose payload: %w", err)
	}

	logger.Debug("Sending message", slog.String("message", msg.String()))

	var result *mailkit.Result

	send := func(ctx context.Context) error {
		r, err := m.transport.Send(ctx, payload)
		if err != nil {
			if isPermanent(err) || !isTemporary(err) {
				return err
			}

			return retry.MarkRetryable(err)
		}

		result = r

		return nil
	}

	notify := func(attempt uint, err error, next time.Duration) {
		metrics.GetOrCreateCounter(`sparkmail_send_attempts_failed_total`).Inc()

		logger.Warn("Send attempt failed",
			slog.String("attempt", strconv.FormatUint(uint64(attempt), 10)),
			slog.String("next", next.String()),
			slog.String("error", err.Error()),
		)
	}

	err = retry.Do(ctx, send,
		retry.WithMaxAttempts(m.retryLimit),
		retry.WithBackoff(m.backoff),
		retry.WithNotify(notify),
	)
	if err != nil {
		return m.fail(ctx, logger, start, err)
	}

	if result == nil {
		result = &mailkit.Result{}
	}

	return m.complete(logger, start, result), nil
}

// complete records the provider result.
func (m *Mailer) complete(logger *slog.Logger, start time.Time, result *mailkit.Result) bool {
	m.mu.Lock()
	m.stats.RejectedCount += result.TotalRejected
	m.stats.LastTransmissionID = result.ID
	m.stats.LastError = nil

	if result.TotalAccepted > 0 {
		m.stats.SentCount += result.TotalAccepted
	}
	m.mu.Unlock()

	metrics.GetOrCreateCounter(`sparkmail_recipients_total{status="accepted"}`).Add(result.TotalAccepted)
	metrics.GetOrCreateCounter(`sparkmail_recipients_total{status="rejected"}`).Add(result.TotalRejected)

	if result.TotalAccepted == 0 {
		observe(outcomeRejected, start)

		logger.Warn("Transmission rejected",
			slog.String("transmission_id", result.ID),
			slog.Int("rejected", result.TotalRejected),
		)

		return false
	}

	observe(outcomeSent, start)

	logger.Info("Transmission accepted",
		slog.String("transmission_id", result.ID),
		slog.Int("accepted", result.TotalAccepted),
		slog.Int("rejected", result.TotalRejected),
	)

	return true
}

// fail handles the error returned by the retry loop.
func (m *Mailer) fail(ctx context.Context, logger *slog.Logger, start time.Time, err error) (bool, error) {
	observe(outcomeFailed, start)

	// Cancellation belongs to the caller and never becomes a delivery outcome.
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return false, err
	}

	m.mu.Lock()
	m.stats.LastError = err
	m.stats.LastTransmissionID = ""
	m.mu.Unlock()

	logger.Error("Failed to send message", slog.String("error", err.Error()))

	if m.development || errkit.IsPermanent(err) {
		return false, err
	}

	return false, nil
}

// isPermanent reports whether repeating the send can't help.
func isPermanent(err error) bool {
	return errkit.IsPermanent(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// isTemporary reports whether the provider may accept the request when
// it is repeated. Errors without a status, e.g. network ones, are temporary.
func isTemporary(err error) bool {
	var apiErr *mailkit.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}

	return true
}

func observe(outcome string, start time.Time) {
	metrics.GetOrCreateCounter(`sparkmail_sends_total{outcome="` + outcome + `"}`).Inc()

	metrics.GetOrCreateSummaryExt(`sparkmail_send_duration{outcome="`+outcome+`"}`, 5*time.Minute, []float64{0.95, 0.99}).
		UpdateDuration(start)
}
