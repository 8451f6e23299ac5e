// Package ledger implements the per-account state machine. Every account is
// a single sequential loop over its own state: commands are processed one at
// a time in arrival order, which keeps balance mutation and journal append
// race free without locks. Cross-account consistency for transfers comes
// from the saga (optimistic debit, reliable delivery, acknowledgement,
// compensation) rather than from transactions.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corebank/corebank/internal/delivery"
	"github.com/corebank/corebank/internal/domain"
	"github.com/corebank/corebank/internal/infrastructure/metrics"
	"github.com/corebank/corebank/internal/journal"
)

// Peers routes account-addressed messages, materializing the target on
// demand. Implemented by the account router.
type Peers interface {
	Tell(accountID uuid.UUID, msg any)
}

// Watcher registers outgoing transfers for reconciliation. Watch blocks
// until the transfer is durably tracked and returns the command re-marked
// watched; Cancel is best effort, the periodic ping is the backstop.
type Watcher interface {
	Watch(ctx context.Context, source uuid.UUID, cmd domain.Transfer) (domain.Transfer, error)
	Cancel(transferID uuid.UUID)
}

// Config carries the timing knobs of one account loop.
type Config struct {
	AskTimeout        time.Duration
	RedeliverInterval time.Duration
	WarnAfter         time.Duration
	MailboxSize       int
}

// Account is one live ledger instance. All fields below the mutex are owned
// by the run loop.
type Account struct {
	id      uuid.UUID
	store   journal.Store
	peers   Peers
	watcher Watcher
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Metrics

	state   domain.AccountState
	channel *delivery.Channel

	mu      sync.RWMutex
	stopped bool
	inbox   chan envelope
	done    chan struct{}
}

// New creates an account instance. It holds no state until Start replays the
// journal.
func New(id uuid.UUID, store journal.Store, peers Peers, watcher Watcher, cfg Config, log zerolog.Logger, m *metrics.Metrics) *Account {
	if cfg.MailboxSize == 0 {
		cfg.MailboxSize = 256
	}
	return &Account{
		id:      id,
		store:   store,
		peers:   peers,
		watcher: watcher,
		cfg:     cfg,
		log:     log.With().Str("component", "ledger").Str("account_id", id.String()).Logger(),
		metrics: m,
		channel: delivery.NewChannel(),
		inbox:   make(chan envelope, cfg.MailboxSize),
		done:    make(chan struct{}),
	}
}

// ID returns the account id.
func (a *Account) ID() uuid.UUID {
	return a.id
}

func (a *Account) streamID() string {
	return "account-" + a.id.String()
}

// Start replays the persisted journal, re-arms outstanding delivery tickets
// and starts the processing loop. The first caller blocks until replay is
// done.
func (a *Account) Start(ctx context.Context) error {
	events, err := a.store.Load(ctx, a.streamID())
	if err != nil {
		return fmt.Errorf("failed to replay account %s: %w", a.id, err)
	}

	for _, evt := range events {
		a.state.Apply(evt)
		switch e := evt.(type) {
		case domain.TransferSent:
			// Re-issuing ids in event order reproduces the original
			// assignment, so acked ids line up on replay.
			a.arm(e)
		case domain.TransferAcked:
			a.channel.Confirm(e.DeliveryID)
		}
	}

	if len(events) > 0 {
		a.log.Debug().Int("events", len(events)).Int("pending_deliveries", a.channel.Len()).Msg("account replayed")
		a.metrics.Replays.Inc()
	}

	go a.run()
	return nil
}

func (a *Account) run() {
	defer close(a.done)

	ticker := time.NewTicker(a.cfg.RedeliverInterval)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-a.inbox:
			if !ok {
				return
			}
			res := a.process(env.msg)
			if env.reply != nil {
				env.reply <- res
			}
		case <-ticker.C:
			a.redeliver()
		}
	}
}

func (a *Account) process(msg any) result {
	switch m := msg.(type) {
	case domain.CreateAccount:
		return a.onCreate()
	case domain.Deposit:
		return a.onDeposit(m)
	case domain.Withdraw:
		return a.onWithdraw(m)
	case domain.Get:
		return a.onGet()
	case domain.Transfer:
		return a.onTransfer(m)
	case domain.TransferReceived:
		a.onTransferReceived(m)
		return result{}
	case domain.TransferAcked:
		a.onTransferAcked(m)
		return result{}
	case domain.TransferPing:
		a.onPing(m)
		return result{}
	default:
		return result{err: fmt.Errorf("unknown message %T", msg)}
	}
}

func (a *Account) onCreate() result {
	if a.state.Created {
		return result{err: domain.ErrAlreadyExists}
	}
	if err := a.persist(domain.AccountCreated{AccountID: a.id}); err != nil {
		return result{err: err}
	}
	a.metrics.AccountsCreated.Inc()
	return result{value: domain.OK{Timestamp: time.Now()}}
}

func (a *Account) onDeposit(cmd domain.Deposit) result {
	if !a.state.Created {
		return result{err: domain.ErrNotFound}
	}
	if cmd.Amount.Sign() <= 0 {
		return result{err: domain.ErrInvalidAmount}
	}
	if err := a.persist(domain.Deposited{Amount: cmd.Amount, Timestamp: cmd.Timestamp}); err != nil {
		return result{err: err}
	}
	return result{value: domain.OK{Timestamp: cmd.Timestamp}}
}

func (a *Account) onWithdraw(cmd domain.Withdraw) result {
	if !a.state.Created {
		return result{err: domain.ErrNotFound}
	}
	if cmd.Amount.Sign() <= 0 {
		return result{err: domain.ErrInvalidAmount}
	}
	if cmd.Amount.Cmp(a.state.Balance) > 0 {
		return result{err: domain.ErrInsufficientBalance}
	}
	if err := a.persist(domain.Withdrawn{Amount: cmd.Amount, Timestamp: cmd.Timestamp}); err != nil {
		return result{err: err}
	}
	return result{value: domain.OK{Timestamp: cmd.Timestamp}}
}

func (a *Account) onGet() result {
	if !a.state.Created {
		return result{err: domain.ErrNotFound}
	}
	snapshot := domain.Snapshot{
		Balance: a.state.Balance,
		Journal: append([]domain.Event(nil), a.state.Journal...),
	}
	return result{value: snapshot}
}

// onTransfer handles both arrivals of the transfer command. The first
// arrival validates like a withdrawal, then round-trips through the watchdog
// so the transfer is durably registered before any balance mutation. The
// second arrival carries the watched mark and performs the optimistic debit.
func (a *Account) onTransfer(cmd domain.Transfer) result {
	if cmd.Watched {
		return a.sendTransfer(cmd)
	}

	if !a.state.Created {
		return result{err: domain.ErrNotFound}
	}
	if cmd.Amount.Sign() <= 0 {
		return result{err: domain.ErrInvalidAmount}
	}
	if cmd.Amount.Cmp(a.state.Balance) > 0 {
		return result{err: domain.ErrInsufficientBalance}
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.AskTimeout)
	defer cancel()

	watched, err := a.watcher.Watch(ctx, a.id, cmd)
	if err != nil {
		return result{err: err}
	}
	return a.sendTransfer(watched)
}

func (a *Account) sendTransfer(cmd domain.Transfer) result {
	evt := domain.TransferSent{
		TransferID:    cmd.TransferID,
		Amount:        cmd.Amount,
		TargetAccount: cmd.TargetAccount,
		Timestamp:     cmd.Timestamp,
	}
	if err := a.persist(evt); err != nil {
		return result{err: err}
	}

	ticket := a.arm(evt)
	a.peers.Tell(ticket.Destination, ticket.Message)

	a.metrics.TransfersStarted.Inc()
	return result{value: domain.OK{Timestamp: cmd.Timestamp}}
}

// arm registers a delivery ticket for a sent transfer.
func (a *Account) arm(evt domain.TransferSent) delivery.Ticket {
	return a.channel.Deliver(evt.TargetAccount, time.Now(), func(deliveryID uint64) domain.Event {
		return domain.TransferReceived{
			DeliveryID:    deliveryID,
			TransferID:    evt.TransferID,
			Amount:        evt.Amount,
			SourceAccount: a.id,
			Timestamp:     time.Now(),
		}
	})
}

// onTransferReceived credits an incoming transfer exactly once. An account
// that was never created refuses the credit; the source compensates on the
// rejected ack. Redeliveries are detected by transfer id and re-acknowledged
// without re-crediting.
func (a *Account) onTransferReceived(msg domain.TransferReceived) {
	ack := func(accepted bool) domain.TransferAcked {
		return domain.TransferAcked{
			DeliveryID: msg.DeliveryID,
			TransferID: msg.TransferID,
			Amount:     msg.Amount,
			Accepted:   accepted,
			Timestamp:  time.Now(),
		}
	}

	if !a.state.Created {
		a.peers.Tell(msg.SourceAccount, ack(false))
		return
	}
	if a.state.HasReceived(msg.TransferID) {
		a.peers.Tell(msg.SourceAccount, ack(true))
		return
	}
	if err := a.persist(msg); err != nil {
		// Not acked; the source will redeliver.
		return
	}
	a.peers.Tell(msg.SourceAccount, ack(true))
}

// onTransferAcked resolves the saga on the source side: it confirms the
// delivery ticket, compensates a rejected transfer and notifies the watchdog.
// A duplicate ack confirms and cancels again but is never applied twice.
func (a *Account) onTransferAcked(msg domain.TransferAcked) {
	if !a.state.HasAck(msg.TransferID) {
		if err := a.persist(msg); err != nil {
			return
		}
		if msg.Accepted {
			a.metrics.TransfersAccepted.Inc()
		} else {
			a.metrics.TransfersRejected.Inc()
			a.log.Info().Str("transfer_id", msg.TransferID.String()).Msg("transfer rejected, debit compensated")
		}
	}
	a.channel.Confirm(msg.DeliveryID)
	a.watcher.Cancel(msg.TransferID)
}

// onPing re-sends the watch cancellation for transfers that are already
// acknowledged. This covers a cancellation notice lost in transit.
func (a *Account) onPing(msg domain.TransferPing) {
	if a.state.HasAck(msg.TransferID) {
		a.watcher.Cancel(msg.TransferID)
	}
}

func (a *Account) redeliver() {
	for _, ticket := range a.channel.Pending() {
		a.peers.Tell(ticket.Destination, ticket.Message)
		a.metrics.Redeliveries.Inc()
	}
	for _, ticket := range a.channel.Unconfirmed(time.Now(), a.cfg.WarnAfter) {
		a.metrics.UnconfirmedDeliveries.Inc()
		a.log.Error().
			Uint64("delivery_id", ticket.ID).
			Str("target_account", ticket.Destination.String()).
			Msg("delivery unconfirmed past threshold, requires human attention")
	}
}

// persist appends the event and applies it to the in-memory state. Rejected
// commands never reach persist, so they leave no journal trace.
func (a *Account) persist(evt domain.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.AskTimeout)
	defer cancel()

	if err := a.store.Append(ctx, a.streamID(), evt); err != nil {
		a.log.Error().Err(err).Str("kind", evt.Kind()).Msg("failed to persist event")
		return err
	}
	a.state.Apply(evt)
	return nil
}
