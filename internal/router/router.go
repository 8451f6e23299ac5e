// Package router maps every account id to exactly one live ledger instance.
// Accounts are materialized lazily by journal replay on first contact and
// unloaded again by the idle sweeper; both are transparent to callers. The
// partition function is stable for the lifetime of a deployment so the same
// id always resolves to the same logical owner.
package router

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/domain"
	"github.com/corebank/corebank/internal/infrastructure/metrics"
	"github.com/corebank/corebank/internal/journal"
	"github.com/corebank/corebank/internal/ledger"
)

// Config carries the router knobs.
type Config struct {
	AskTimeout    time.Duration
	IdleAfter     time.Duration
	SweepInterval time.Duration
	Partitions    int
	Ledger        ledger.Config
}

// Router owns the registry of live accounts.
type Router struct {
	store   journal.Store
	watcher ledger.Watcher
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	entries map[uuid.UUID]*entry

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	account    *ledger.Account
	once       sync.Once
	startErr   error
	lastActive atomic.Int64
}

// New creates the router.
func New(store journal.Store, watcher ledger.Watcher, cfg Config, log zerolog.Logger, m *metrics.Metrics) *Router {
	if cfg.Partitions <= 0 {
		cfg.Partitions = 1000
	}
	if cfg.AskTimeout <= 0 {
		cfg.AskTimeout = 5 * time.Second
	}
	return &Router{
		store:   store,
		watcher: watcher,
		cfg:     cfg,
		log:     log.With().Str("component", "router").Logger(),
		metrics: m,
		entries: make(map[uuid.UUID]*entry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the idle sweeper.
func (r *Router) Start() {
	go r.sweeper()
}

// Stop terminates the sweeper and unloads every account.
func (r *Router) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.done

		r.mu.Lock()
		entries := make([]*entry, 0, len(r.entries))
		for id, e := range r.entries {
			entries = append(entries, e)
			delete(r.entries, id)
		}
		r.mu.Unlock()

		for _, e := range entries {
			e.account.Stop()
		}
	})
}

// Partition returns the stable shard a given account id belongs to.
func (r *Router) Partition(accountID uuid.UUID) int {
	h := fnv.New32a()
	h.Write(accountID[:])
	return int(h.Sum32()) % r.cfg.Partitions
}

// CreateNew generates a fresh account id and routes a CreateAccount command
// at it.
func (r *Router) CreateNew(ctx context.Context) (uuid.UUID, error) {
	id := uuid.New()
	if _, err := r.Ask(ctx, id, domain.CreateAccount{}); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Deposit credits the account and returns the accepted timestamp.
func (r *Router) Deposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (time.Time, error) {
	return r.askOK(ctx, accountID, domain.Deposit{Amount: amount, Timestamp: time.Now()})
}

// Withdraw debits the account and returns the accepted timestamp.
func (r *Router) Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (time.Time, error) {
	return r.askOK(ctx, accountID, domain.Withdraw{Amount: amount, Timestamp: time.Now()})
}

// Transfer starts the transfer saga on the source account. The generated
// transfer id stays internal; the reply only reflects acceptance at
// submission time.
func (r *Router) Transfer(ctx context.Context, sourceID, targetID uuid.UUID, amount decimal.Decimal) (time.Time, error) {
	cmd := domain.Transfer{
		TransferID:    uuid.New(),
		Amount:        amount,
		TargetAccount: targetID,
		Timestamp:     time.Now(),
	}
	return r.askOK(ctx, sourceID, cmd)
}

// Get returns the balance and journal snapshot of the account.
func (r *Router) Get(ctx context.Context, accountID uuid.UUID) (domain.Snapshot, error) {
	value, err := r.Ask(ctx, accountID, domain.Get{})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return value.(domain.Snapshot), nil
}

func (r *Router) askOK(ctx context.Context, accountID uuid.UUID, cmd any) (time.Time, error) {
	value, err := r.Ask(ctx, accountID, cmd)
	if err != nil {
		return time.Time{}, err
	}
	return value.(domain.OK).Timestamp, nil
}

// Ask routes a command to the owning account and waits for the reply,
// bounded by the configured ask timeout. A passivation race is resolved by
// materializing a fresh instance and retrying once.
func (r *Router) Ask(ctx context.Context, accountID uuid.UUID, msg any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.AskTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		e, err := r.resolve(ctx, accountID)
		if err != nil {
			return nil, err
		}
		value, err := e.account.Ask(ctx, msg)
		if err == ledger.ErrStopped && attempt == 0 {
			r.evict(accountID, e)
			continue
		}
		return value, err
	}
}

// Tell routes a fire-and-forget message, materializing the target on demand.
// Implements ledger.Peers and watchdog.AccountSender.
func (r *Router) Tell(accountID uuid.UUID, msg any) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.AskTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		e, err := r.resolve(ctx, accountID)
		if err != nil {
			r.log.Error().Err(err).Str("account_id", accountID.String()).Msg("failed to route message")
			return
		}
		if e.account.Tell(msg) || attempt > 0 {
			return
		}
		r.evict(accountID, e)
	}
}

// Passivate unloads the account if it is live. The next message reloads it
// by replay.
func (r *Router) Passivate(accountID uuid.UUID) {
	r.mu.Lock()
	e, ok := r.entries[accountID]
	if ok {
		delete(r.entries, accountID)
	}
	r.mu.Unlock()

	if ok {
		e.account.Stop()
		r.metrics.Passivations.Inc()
		r.metrics.ActiveAccounts.Dec()
	}
}

// resolve returns the live entry for the id, creating and replaying it on
// first contact. Concurrent first callers all block until replay completes.
func (r *Router) resolve(ctx context.Context, accountID uuid.UUID) (*entry, error) {
	r.mu.Lock()
	e, ok := r.entries[accountID]
	if !ok {
		e = &entry{account: ledger.New(accountID, r.store, r, r.watcher, r.cfg.Ledger, r.log, r.metrics)}
		r.entries[accountID] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.startErr = e.account.Start(ctx)
		if e.startErr == nil {
			r.metrics.ActiveAccounts.Inc()
		}
	})
	if e.startErr != nil {
		r.evict(accountID, e)
		return nil, e.startErr
	}

	e.lastActive.Store(time.Now().UnixNano())
	return e, nil
}

func (r *Router) evict(accountID uuid.UUID, stale *entry) {
	r.mu.Lock()
	if r.entries[accountID] == stale {
		delete(r.entries, accountID)
	}
	r.mu.Unlock()
}

// sweeper passivates accounts that have been idle past the configured
// deadline.
func (r *Router) sweeper() {
	defer close(r.done)

	if r.cfg.SweepInterval <= 0 {
		r.cfg.SweepInterval = r.cfg.IdleAfter
	}
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stop:
			return
		}
	}
}

func (r *Router) sweep() {
	deadline := time.Now().Add(-r.cfg.IdleAfter).UnixNano()

	r.mu.Lock()
	var idle []*entry
	for id, e := range r.entries {
		if e.lastActive.Load() < deadline {
			idle = append(idle, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range idle {
		e.account.Stop()
		r.metrics.Passivations.Inc()
		r.metrics.ActiveAccounts.Dec()
	}
}
