package sparkmail

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/maxatome/go-testdeep/td"
	"github.com/plainq/sparkmail/errkit"
	"github.com/plainq/sparkmail/mailkit"
	"github.com/plainq/sparkmail/mailkit/memkit"
	"github.com/plainq/sparkmail/mailkit/sparkkit"
	"github.com/plainq/sparkmail/retry"
)

func newMailer(t *testing.T, cfg Config, transport mailkit.Transport) *Mailer {
	t.Helper()

	if cfg.APIKey == "" {
		cfg.APIKey = "key"
	}

	m, err := New(cfg, WithTransport(transport))
	td.Require(t).CmpNoError(err)

	return m
}

func newMessage(m *Mailer) *mailkit.Message {
	return m.Compose(func(msg *mailkit.Message) {
		msg.SetFrom("shop@example.com").
			SetSubject("Hello").
			SetTextBody("Hi").
			SetTo(mailkit.Emails("a@example.com")...)
	})
}

func TestNew(t *testing.T) {
	type tcase struct {
		cfg     Config
		wantErr error
	}

	tests := map[string]tcase{
		"missing api key": {
			cfg:     Config{},
			wantErr: ErrAPIKeyRequired,
		},
		"api key with whitespace": {
			cfg:     Config{APIKey: "key \n"},
			wantErr: ErrAPIKeyMalformed,
		},
		"default email unresolved": {
			cfg:     Config{APIKey: "key", UseDefaultEmail: true},
			wantErr: ErrDefaultEmailUnresolved,
		},
		"default email invalid": {
			cfg:     Config{APIKey: "key", UseDefaultEmail: true, DefaultEmail: "a@example.com, b@example.com"},
			wantErr: ErrDefaultEmailInvalid,
		},
		"admin email invalid": {
			cfg:     Config{APIKey: "key", UseDefaultEmail: true, AdminEmail: "admin"},
			wantErr: ErrDefaultEmailInvalid,
		},
		"valid": {
			cfg: Config{APIKey: "key", UseDefaultEmail: true, AdminEmail: "admin@example.com"},
		},
		"default email not used": {
			cfg: Config{APIKey: "key", DefaultEmail: "broken"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m, err := New(tc.cfg)
			if tc.wantErr != nil {
				td.CmpErrorIs(t, err, tc.wantErr)
				td.CmpErrorIs(t, err, errkit.ErrConfiguration)
				td.CmpNil(t, m)
				return
			}

			td.CmpNoError(t, err)
			td.Cmp(t, m.transport, td.Isa(&sparkkit.Transport{}))
			td.Cmp(t, m.retryLimit, uint(defaultRetryLimit))
		})
	}
}

func TestMailer_Compose(t *testing.T) {
	t.Run("default email from admin", func(t *testing.T) {
		m := newMailer(t, Config{UseDefaultEmail: true, AdminEmail: "admin@example.com", AppName: "App"}, memkit.New())

		msg := m.Compose()

		td.CmpNoError(t, msg.Err())
		td.Cmp(t, msg.From(), `"App" <admin@example.com>`)
		td.Cmp(t, msg.ReplyTo(), `"App" <admin@example.com>`)
	})

	t.Run("configured default email", func(t *testing.T) {
		m := newMailer(t, Config{UseDefaultEmail: true, DefaultEmail: "Shop <shop@example.com>"}, memkit.New())

		td.Cmp(t, m.Compose().From(), `"Shop" <shop@example.com>`)
	})

	t.Run("explicit sender", func(t *testing.T) {
		m := newMailer(t, Config{UseDefaultEmail: true, AdminEmail: "admin@example.com", AppName: "App"}, memkit.New())

		msg := m.Compose(func(msg *mailkit.Message) { msg.SetFrom("jane@example.com") })

		td.Cmp(t, msg.From(), "jane@example.com")
		td.Cmp(t, msg.ReplyTo(), `"App" <admin@example.com>`)
	})

	t.Run("no default email", func(t *testing.T) {
		m := newMailer(t, Config{AdminEmail: "admin@example.com"}, memkit.New())

		td.Cmp(t, m.Compose().From(), "")
	})

	t.Run("sandbox", func(t *testing.T) {
		m := newMailer(t, Config{Sandbox: true}, memkit.New())

		td.CmpTrue(t, m.Compose().Sandbox())

		msg := m.Compose(func(msg *mailkit.Message) { msg.SetSandbox(false) })
		td.CmpFalse(t, msg.Sandbox())

		td.CmpFalse(t, newMailer(t, Config{}, memkit.New()).Compose().Sandbox())
	})
}

func TestMailer_Send(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		transport := memkit.New(memkit.WithResponder(memkit.Respond(mailkit.Result{TotalAccepted: 1, ID: "t1"})))
		m := newMailer(t, Config{}, transport)

		ok, err := m.Send(context.Background(), newMessage(m))
		td.CmpNoError(t, err)
		td.CmpTrue(t, ok)

		td.Cmp(t, m.Stats(), Stats{SentCount: 1, LastTransmissionID: "t1"})
		td.Cmp(t, transport.Sent(), td.Len(1))
	})

	t.Run("rejected", func(t *testing.T) {
		transport := memkit.New(memkit.WithResponder(memkit.Respond(mailkit.Result{TotalRejected: 1, ID: "t2"})))
		m := newMailer(t, Config{}, transport)

		ok, err := m.Send(context.Background(), newMessage(m))
		td.CmpNoError(t, err)
		td.CmpFalse(t, ok)

		td.Cmp(t, m.SentCount(), 0)
		td.Cmp(t, m.RejectedCount(), 1)
		td.Cmp(t, m.LastTransmissionID(), "t2")
	})

	t.Run("partially rejected", func(t *testing.T) {
		transport := memkit.New(memkit.WithResponder(memkit.Respond(mailkit.Result{TotalAccepted: 2, TotalRejected: 1, ID: "t3"})))
		m := newMailer(t, Config{}, transport)

		ok, err := m.Send(context.Background(), newMessage(m))
		td.CmpNoError(t, err)
		td.CmpTrue(t, ok)

		td.Cmp(t, m.Stats(), Stats{SentCount: 2, RejectedCount: 1, LastTransmissionID: "t3"})
	})

	t.Run("counters accumulate", func(t *testing.T) {
		m := newMailer(t, Config{}, memkit.New())

		for range 3 {
			ok, err := m.Send(context.Background(), newMessage(m))
			td.CmpNoError(t, err)
			td.CmpTrue(t, ok)
		}

		td.Cmp(t, m.SentCount(), 3)
		td.Cmp(t, m.LastTransmissionID(), td.Len(26))
	})

	t.Run("message send", func(t *testing.T) {
		transport := memkit.New()
		m := newMailer(t, Config{}, transport)

		ok, err := newMessage(m).Send(context.Background())
		td.CmpNoError(t, err)
		td.CmpTrue(t, ok)
		td.Cmp(t, transport.Attempts(), 1)
	})

	t.Run("invalid message", func(t *testing.T) {
		transport := memkit.New()
		m := newMailer(t, Config{}, transport)

		msg := m.Compose(func(msg *mailkit.Message) { msg.SetFrom("a@example.com, b@example.com") })

		ok, err := m.Send(context.Background(), msg)
		td.CmpFalse(t, ok)
		td.CmpErrorIs(t, err, mailkit.ErrMultipleAddresses)
		td.CmpErrorIs(t, err, errkit.ErrValidation)
		td.Cmp(t, transport.Attempts(), 0)
		td.CmpNoError(t, m.LastError())
	})
}

func TestMailer_SendRetries(t *testing.T) {
	errProvider := &mailkit.APIError{StatusCode: http.StatusServiceUnavailable}

	t.Run("production", func(t *testing.T) {
		transport := memkit.New(memkit.WithResponder(memkit.Fail(errProvider)))
		m := newMailer(t, Config{RetryLimit: 3}, transport)

		ok, err := m.Send(context.Background(), newMessage(m))
		td.CmpNoError(t, err)
		td.CmpFalse(t, ok)

		td.Cmp(t, transport.Attempts(), 3)
		td.CmpErrorIs(t, m.LastError(), retry.ErrRetryLimitReached)

		var apiErr *mailkit.APIError
		td.CmpTrue(t, errors.As(m.LastError(), &apiErr))
		td.Cmp(t, m.Stats(), td.SStruct(Stats{}, td.StructFields{"LastError": td.NotNil()}))
	})

	t.Run("development", func(t *testing.T) {
		transport := memkit.New(memkit.WithResponder(memkit.Fail(errProvider)))
		m := newMailer(t, Config{RetryLimit: 3, DevelopmentMode: true}, transport)

		ok, err := m.Send(context.Background(), newMessage(m))
		td.CmpFalse(t, ok)
		td.CmpErrorIs(t, err, errProvider)
		td.Cmp(t, transport.Attempts(), 3)
		td.CmpErrorIs(t, m.LastError(), errProvider)
	})

	t.Run("success after failures", func(t *testing.T) {
		responder := func(attempt int, _ mailkit.Payload) (*mailkit.Result, error) {
			if attempt < 3 {
				return nil, errProvider
			}

			return &mailkit.Result{TotalAccepted: 1, ID: "t4"}, nil
		}

		transport := memkit.New(memkit.WithResponder(responder))
		m := newMailer(t, Config{}, transport)

		ok, err := m.Send(context.Background(), newMessage(m))
		td.CmpNoError(t, err)
		td.CmpTrue(t, ok)
		td.Cmp(t, transport.Attempts(), 3)
		td.Cmp(t, m.LastTransmissionID(), "t4")
		td.CmpNoError(t, m.LastError())
	})

	t.Run("custom limit", func(t *testing.T) {
		transport := memkit.New(memkit.WithResponder(memkit.Fail(errProvider)))
		m := newMailer(t, Config{RetryLimit: 5}, transport)

		ok, err := m.Send(context.Background(), newMessage(m))
		td.CmpNoError(t, err)
		td.CmpFalse(t, ok)
		td.Cmp(t, transport.Attempts(), 5)
	})

	t.Run("client error is not retried", func(t *testing.T) {
		errBadRequest := &mailkit.APIError{
			StatusCode: http.StatusBadRequest,
			Errors:     []mailkit.APIErrorDetail{{Message: "invalid data format/type", Code: "1300"}},
		}

		transport := memkit.New(memkit.WithResponder(memkit.Fail(errBadRequest)))
		m := newMailer(t, Config{RetryLimit: 3}, transport)

		ok, err := m.Send(context.Background(), newMessage(m))
		td.CmpNoError(t, err)
		td.CmpFalse(t, ok)
		td.Cmp(t, transport.Attempts(), 1)
		td.CmpErrorIs(t, m.LastError(), errBadRequest)
		td.Cmp(t, errors.Is(m.LastError(), retry.ErrRetryLimitReached), false)
	})

	t.Run("too many requests is retried", func(t *testing.T) {
		errThrottled := &mailkit.APIError{StatusCode: http.StatusTooManyRequests}

		transport := memkit.New(memkit.WithResponder(memkit.Fail(errThrottled)))
		m := newMailer(t, Config{RetryLimit: 2, DevelopmentMode: true}, transport)

		ok, err := m.Send(context.Background(), newMessage(m))
		td.CmpFalse(t, ok)
		td.CmpErrorIs(t, err, errThrottled)
		td.CmpErrorIs(t, err, retry.ErrRetryLimitReached)
		td.Cmp(t, transport.Attempts(), 2)
	})

	t.Run("permanent error", func(t *testing.T) {
		errTemplate := errors.Join(errors.New("templates are not supported"), errkit.ErrUnsupported)
		transport := memkit.New(memkit.WithResponder(memkit.Fail(errTemplate)))
		m := newMailer(t, Config{}, transport)

		ok, err := m.Send(context.Background(), newMessage(m))
		td.CmpFalse(t, ok)
		td.CmpErrorIs(t, err, errkit.ErrUnsupported)
		td.Cmp(t, transport.Attempts(), 1)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		transport := memkit.New()
		m := newMailer(t, Config{}, transport)

		ok, err := m.Send(ctx, newMessage(m))
		td.CmpFalse(t, ok)
		td.CmpErrorIs(t, err, context.Canceled)
		td.Cmp(t, transport.Attempts(), 0)
		td.CmpNoError(t, m.LastError())
	})
}

func TestMailer_SendAll(t *testing.T) {
	t.Run("outcomes", func(t *testing.T) {
		var calls atomic.Int32

		responder := func(_ int, payload mailkit.Payload) (*mailkit.Result, error) {
			calls.Add(1)

			if payload.String(mailkit.KeySubject) == "reject" {
				return &mailkit.Result{TotalRejected: 1}, nil
			}

			return &mailkit.Result{TotalAccepted: 1}, nil
		}

		m := newMailer(t, Config{}, memkit.New(memkit.WithResponder(responder)))

		messages := []*mailkit.Message{
			newMessage(m),
			newMessage(m).SetSubject("reject"),
			newMessage(m),
		}

		outcomes, err := m.SendAll(context.Background(), 2, messages...)
		td.CmpNoError(t, err)
		td.Cmp(t, outcomes, []bool{true, false, true})
		td.Cmp(t, calls.Load(), int32(3))
		td.Cmp(t, m.SentCount(), 2)
		td.Cmp(t, m.RejectedCount(), 1)
	})

	t.Run("invalid message", func(t *testing.T) {
		m := newMailer(t, Config{}, memkit.New())

		_, err := m.SendAll(context.Background(), 1,
			newMessage(m),
			newMessage(m).SetCampaign(string(make([]byte, 65))),
		)
		td.CmpErrorIs(t, err, mailkit.ErrFieldTooLong)
	})
}
