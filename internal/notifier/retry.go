package notifier

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"

	sentinelerrors "github.com/mplswatch/sentinel/internal/errors"
)

// dispatchWithRetry sends msg through the sink with exponential backoff
// (base 2s, cap 60s, max 5 attempts). A NotifierPermanentError aborts the
// retry loop immediately via backoff.Permanent; any other error is
// retried until the attempt budget is exhausted.
func (n *Notifier) dispatchWithRetry(ctx context.Context, msg Message) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = n.cfg.BaseDelay
	eb.MaxInterval = n.cfg.MaxDelay
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(n.cfg.MaxAttempts-1)), ctx)

	return backoff.Retry(func() error {
		dispatchCtx, cancel := context.WithTimeout(ctx, n.cfg.DispatchTimeout)
		defer cancel()

		err := n.sink.Send(dispatchCtx, msg)
		if err == nil {
			return nil
		}

		var permanent sentinelerrors.NotifierPermanentError
		if errors.As(err, &permanent) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
