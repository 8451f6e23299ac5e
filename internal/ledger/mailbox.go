package ledger

import (
	"context"
	"errors"

	"github.com/corebank/corebank/internal/domain"
)

// ErrStopped is returned when a message is addressed to an account that has
// been passivated. The router reacts by materializing a fresh instance and
// retrying.
var ErrStopped = errors.New("account passivated")

type envelope struct {
	msg   any
	reply chan result
}

type result struct {
	value any
	err   error
}

// Tell enqueues a message without waiting for a reply. It reports false if
// the account no longer accepts messages. Delivery is best effort: saga
// messages are covered by redelivery and the reconciliation sweep.
func (a *Account) Tell(msg any) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.stopped {
		return false
	}
	select {
	case a.inbox <- envelope{msg: msg}:
		return true
	default:
		a.log.Warn().Str("account_id", a.id.String()).Msg("inbox full, dropping message")
		return true
	}
}

// Ask enqueues a command and waits for the reply or the context deadline.
// On deadline the outcome is indeterminate: the command may still be applied.
func (a *Account) Ask(ctx context.Context, msg any) (any, error) {
	reply := make(chan result, 1)

	a.mu.RLock()
	if a.stopped {
		a.mu.RUnlock()
		return nil, ErrStopped
	}
	select {
	case a.inbox <- envelope{msg: msg, reply: reply}:
		a.mu.RUnlock()
	case <-ctx.Done():
		a.mu.RUnlock()
		return nil, domain.ErrTimeout
	}

	select {
	case res := <-reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, domain.ErrTimeout
	}
}

// Stop rejects further messages, drains the inbox and waits for the loop to
// exit. State is not lost: it is reconstructed from the journal on the next
// message.
func (a *Account) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	close(a.inbox)
	a.mu.Unlock()
	<-a.done
}
