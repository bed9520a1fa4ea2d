package sparkmail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/plainq/sparkmail/mailkit"
	"github.com/plainq/sparkmail/tern"
	"golang.org/x/sync/errgroup"
)

// defaultBatchConcurrency limits concurrent sends of SendAll.
const defaultBatchConcurrency = 4

// SendAll sends messages concurrently, at most concurrency at a time,
// zero or negative value means 4. The outcome of each message is at the
// same index of the returned slice.
//
// The first error returned by Send stops the batch: messages
// which were not started yet are skipped.
func (m *Mailer) SendAll(ctx context.Context, concurrency int, messages ...*mailkit.Message) ([]bool, error) {
	concurrency = tern.OP(concurrency <= 0, defaultBatchConcurrency, concurrency)

	outcomes := make([]bool, len(messages))

	g, batchCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, msg := range messages {
		g.Go(func() error {
			if err := batchCtx.Err(); err != nil {
				return err
			}

			ok, err := m.Send(batchCtx, msg)
			if err != nil {
				return fmt.Errorf("message %d: %w", i, err)
			}

			outcomes[i] = ok

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		m.logger.Error("Batch send failed",
			slog.Int("messages", len(messages)),
			slog.String("error", err.Error()),
		)

		return outcomes, err
	}

	return outcomes, nil
}
