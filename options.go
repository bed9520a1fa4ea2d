package sparkmail

import (
	"log/slog"

	"github.com/plainq/sparkmail/mailkit"
	"github.com/plainq/sparkmail/mailkit/sparkkit"
	"github.com/plainq/sparkmail/retry"
)

// Option configures the Mailer.
type Option func(o *Options)

// Options holds optional dependencies of the Mailer.
type Options struct {
	logger           *slog.Logger
	transport        mailkit.Transport
	sparkPostOptions []sparkkit.Option
	backoff          retry.Backoff
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option { return func(o *Options) { o.logger = logger } }

// WithTransport replaces the SparkPost transport, e.g. with
// resendkit.Transport or memkit.Transport.
func WithTransport(transport mailkit.Transport) Option {
	return func(o *Options) { o.transport = transport }
}

// WithSparkPostOptions passes options to the SparkPost transport.
// They have no effect together with WithTransport.
func WithSparkPostOptions(options ...sparkkit.Option) Option {
	return func(o *Options) { o.sparkPostOptions = append(o.sparkPostOptions, options...) }
}

// WithBackoff sets the delay between send attempts. There is no delay by default.
func WithBackoff(backoff retry.Backoff) Option { return func(o *Options) { o.backoff = backoff } }
