// Package watchdog tracks in-flight outgoing transfers and reconciles lost
// acknowledgements. Watches are partitioned by transfer id into a fixed
// number of independent buckets; each bucket is its own sequential loop over
// its own watch list, with no cross-bucket coordination.
package watchdog

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corebank/corebank/internal/domain"
	"github.com/corebank/corebank/internal/infrastructure/metrics"
	"github.com/corebank/corebank/internal/journal"
)

// AccountSender routes reconciliation pings to the owning source account.
// Implemented by the account router; bound after construction because the
// router and the watchdog reference each other.
type AccountSender interface {
	Tell(accountID uuid.UUID, msg any)
}

// Config carries the watchdog knobs.
type Config struct {
	Buckets      int
	PingInterval time.Duration
}

// Service is the partitioned transfer watchdog.
type Service struct {
	buckets  []*bucket
	accounts AccountSender
	cfg      Config
	log      zerolog.Logger
	metrics  *metrics.Metrics
	stopOnce sync.Once
}

// New creates the watchdog. SetAccounts must be called before Start.
func New(store journal.Store, cfg Config, log zerolog.Logger, m *metrics.Metrics) *Service {
	if cfg.Buckets <= 0 {
		cfg.Buckets = 32
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 5 * time.Minute
	}

	svc := &Service{
		cfg:     cfg,
		log:     log.With().Str("component", "watchdog").Logger(),
		metrics: m,
	}
	for n := 0; n < cfg.Buckets; n++ {
		svc.buckets = append(svc.buckets, &bucket{
			n:         n,
			svc:       svc,
			store:     store,
			inbox:     make(chan any, 256),
			watchList: make(map[uuid.UUID]uuid.UUID),
			done:      make(chan struct{}),
		})
	}
	return svc
}

// SetAccounts binds the router. The router is constructed after the watchdog
// because each depends on the other.
func (s *Service) SetAccounts(accounts AccountSender) {
	s.accounts = accounts
}

// Start replays every bucket's watch list from the journal and starts the
// bucket loops.
func (s *Service) Start(ctx context.Context) error {
	if s.accounts == nil {
		return fmt.Errorf("watchdog started without an account sender")
	}
	for _, b := range s.buckets {
		if err := b.replay(ctx); err != nil {
			return err
		}
		go b.run()
	}
	return nil
}

// Stop terminates all bucket loops.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		for _, b := range s.buckets {
			close(b.stop)
		}
		for _, b := range s.buckets {
			<-b.done
		}
	})
}

// Watch registers the transfer for reconciliation and returns the command
// re-marked watched. Registration is idempotent: a transfer already under
// watch is re-acknowledged without persisting again.
func (s *Service) Watch(ctx context.Context, source uuid.UUID, cmd domain.Transfer) (domain.Transfer, error) {
	reply := make(chan watchReply, 1)
	b := s.bucketFor(cmd.TransferID)

	select {
	case b.inbox <- watchMsg{source: source, cmd: cmd, reply: reply}:
	case <-ctx.Done():
		return domain.Transfer{}, domain.ErrTimeout
	}

	select {
	case res := <-reply:
		return res.cmd, res.err
	case <-ctx.Done():
		return domain.Transfer{}, domain.ErrTimeout
	}
}

// Cancel removes the watch for a resolved transfer. Best effort by design:
// a lost cancellation is healed by the next ping cycle.
func (s *Service) Cancel(transferID uuid.UUID) {
	b := s.bucketFor(transferID)
	select {
	case b.inbox <- cancelMsg{transferID: transferID}:
	default:
	}
}

// PingNow runs one reconciliation cycle across all buckets and waits for it
// to finish. Exposed for operational tooling and tests; the periodic timer
// is the normal driver.
func (s *Service) PingNow() {
	acks := make([]chan struct{}, 0, len(s.buckets))
	for _, b := range s.buckets {
		ack := make(chan struct{})
		acks = append(acks, ack)
		b.inbox <- pingMsg{ack: ack}
	}
	for _, ack := range acks {
		<-ack
	}
}

// Watched reports whether the transfer is currently under watch.
func (s *Service) Watched(transferID uuid.UUID) bool {
	reply := make(chan bool, 1)
	s.bucketFor(transferID).inbox <- probeMsg{transferID: transferID, reply: reply}
	return <-reply
}

// bucketFor spreads transfer ids over all buckets with an fnv-1a hash. The
// system this derives from masked the id with a single bit, collapsing the
// spread to two buckets; a real hash is used here instead.
func (s *Service) bucketFor(transferID uuid.UUID) *bucket {
	h := fnv.New32a()
	h.Write(transferID[:])
	return s.buckets[int(h.Sum32())%len(s.buckets)]
}

type watchMsg struct {
	source uuid.UUID
	cmd    domain.Transfer
	reply  chan watchReply
}

type watchReply struct {
	cmd domain.Transfer
	err error
}

type cancelMsg struct {
	transferID uuid.UUID
}

type pingMsg struct {
	ack chan struct{}
}

type probeMsg struct {
	transferID uuid.UUID
	reply      chan bool
}

type bucket struct {
	n         int
	svc       *Service
	store     journal.Store
	inbox     chan any
	watchList map[uuid.UUID]uuid.UUID // transfer id -> source account
	stop      chan struct{}
	done      chan struct{}
}

func (b *bucket) streamID() string {
	return fmt.Sprintf("transfer-watchdog-%d", b.n)
}

func (b *bucket) replay(ctx context.Context) error {
	b.stop = make(chan struct{})

	events, err := b.store.Load(ctx, b.streamID())
	if err != nil {
		return fmt.Errorf("failed to replay watchdog bucket %d: %w", b.n, err)
	}
	for _, evt := range events {
		switch e := evt.(type) {
		case domain.WatchStarted:
			b.watchList[e.TransferID] = e.SourceAccount
		case domain.WatchCancelled:
			delete(b.watchList, e.TransferID)
		}
	}
	b.svc.metrics.ActiveWatches.Add(float64(len(b.watchList)))
	return nil
}

func (b *bucket) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.svc.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-b.inbox:
			b.handle(msg)
		case <-ticker.C:
			b.ping()
		case <-b.stop:
			return
		}
	}
}

func (b *bucket) handle(msg any) {
	switch m := msg.(type) {
	case watchMsg:
		b.onWatch(m)
	case cancelMsg:
		b.onCancel(m.transferID)
	case pingMsg:
		b.ping()
		close(m.ack)
	case probeMsg:
		_, ok := b.watchList[m.transferID]
		m.reply <- ok
	}
}

func (b *bucket) onWatch(m watchMsg) {
	watched := m.cmd
	watched.Watched = true

	if _, ok := b.watchList[m.cmd.TransferID]; ok {
		m.reply <- watchReply{cmd: watched}
		return
	}

	evt := domain.WatchStarted{TransferID: m.cmd.TransferID, SourceAccount: m.source}
	if err := b.persist(evt); err != nil {
		m.reply <- watchReply{err: err}
		return
	}
	b.watchList[m.cmd.TransferID] = m.source
	b.svc.metrics.ActiveWatches.Inc()
	m.reply <- watchReply{cmd: watched}
}

func (b *bucket) onCancel(transferID uuid.UUID) {
	if _, ok := b.watchList[transferID]; !ok {
		return
	}
	if err := b.persist(domain.WatchCancelled{TransferID: transferID}); err != nil {
		return
	}
	delete(b.watchList, transferID)
	b.svc.metrics.ActiveWatches.Dec()
}

// ping probes the source account of every watched transfer. This is the
// safety net for cancellations lost in transit, not the primary resolution
// path.
func (b *bucket) ping() {
	for transferID, source := range b.watchList {
		b.svc.accounts.Tell(source, domain.TransferPing{TransferID: transferID})
		b.svc.metrics.ReconciliationPings.Inc()
	}
}

func (b *bucket) persist(evt domain.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.store.Append(ctx, b.streamID(), evt); err != nil {
		b.svc.log.Error().Err(err).Int("bucket", b.n).Str("kind", evt.Kind()).Msg("failed to persist watchdog event")
		return err
	}
	return nil
}
