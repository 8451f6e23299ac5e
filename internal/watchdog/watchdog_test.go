package watchdog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/corebank/corebank/internal/adapter/repository/memory"
	"github.com/corebank/corebank/internal/domain"
	"github.com/corebank/corebank/internal/infrastructure/metrics"
	"github.com/corebank/corebank/internal/journal"
	"github.com/corebank/corebank/internal/watchdog"
)

type fakeSender struct {
	mu    sync.Mutex
	pings []domain.TransferPing
}

func (s *fakeSender) Tell(accountID uuid.UUID, msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ping, ok := msg.(domain.TransferPing); ok {
		s.pings = append(s.pings, ping)
	}
}

func (s *fakeSender) pinged(transferID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pings {
		if p.TransferID == transferID {
			return true
		}
	}
	return false
}

func startWatchdog(t *testing.T, store journal.Store, sender watchdog.AccountSender) *watchdog.Service {
	t.Helper()
	svc := watchdog.New(store, watchdog.Config{
		Buckets:      8,
		PingInterval: time.Hour,
	}, zerolog.Nop(), metrics.New(prometheus.NewRegistry()))
	svc.SetAccounts(sender)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start watchdog: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func transferCmd() domain.Transfer {
	return domain.Transfer{
		TransferID:    uuid.New(),
		Amount:        decimal.NewFromInt(10),
		TargetAccount: uuid.New(),
		Timestamp:     time.Now(),
	}
}

func TestWatchdog_WatchAndCancel(t *testing.T) {
	svc := startWatchdog(t, memory.NewEventStore(), &fakeSender{})
	source := uuid.New()
	cmd := transferCmd()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	watched, err := svc.Watch(ctx, source, cmd)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !watched.Watched {
		t.Error("expected the returned command to carry the watched mark")
	}
	if watched.TransferID != cmd.TransferID {
		t.Errorf("transfer id = %s, want %s", watched.TransferID, cmd.TransferID)
	}
	if !svc.Watched(cmd.TransferID) {
		t.Error("expected the transfer to be under watch")
	}

	svc.Cancel(cmd.TransferID)
	deadline := time.Now().Add(2 * time.Second)
	for svc.Watched(cmd.TransferID) {
		if time.Now().After(deadline) {
			t.Fatal("watch was never cancelled")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatchdog_WatchIsIdempotent(t *testing.T) {
	store := memory.NewEventStore()
	svc := startWatchdog(t, store, &fakeSender{})
	source := uuid.New()
	cmd := transferCmd()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := svc.Watch(ctx, source, cmd); err != nil {
		t.Fatalf("first watch: %v", err)
	}
	watched, err := svc.Watch(ctx, source, cmd)
	if err != nil {
		t.Fatalf("second watch: %v", err)
	}
	if !watched.Watched {
		t.Error("expected the duplicate registration to be re-acknowledged")
	}

	// Only one registration event is persisted.
	var total int
	for n := 0; n < 8; n++ {
		events, err := store.Load(ctx, bucketStream(n))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		total += len(events)
	}
	if total != 1 {
		t.Errorf("persisted %d watchdog events, want 1", total)
	}
}

func bucketStream(n int) string {
	return "transfer-watchdog-" + string(rune('0'+n))
}

func TestWatchdog_RecoversWatchListFromJournal(t *testing.T) {
	store := memory.NewEventStore()
	source := uuid.New()
	cmd := transferCmd()

	first := startWatchdog(t, store, &fakeSender{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := first.Watch(ctx, source, cmd); err != nil {
		t.Fatalf("watch: %v", err)
	}
	first.Stop()

	second := startWatchdog(t, store, &fakeSender{})
	if !second.Watched(cmd.TransferID) {
		t.Error("expected the watch to survive a restart")
	}
}

func TestWatchdog_CancelledWatchStaysCancelledAfterRestart(t *testing.T) {
	store := memory.NewEventStore()
	source := uuid.New()
	cmd := transferCmd()

	first := startWatchdog(t, store, &fakeSender{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := first.Watch(ctx, source, cmd); err != nil {
		t.Fatalf("watch: %v", err)
	}
	first.Cancel(cmd.TransferID)
	deadline := time.Now().Add(2 * time.Second)
	for first.Watched(cmd.TransferID) {
		if time.Now().After(deadline) {
			t.Fatal("watch was never cancelled")
		}
		time.Sleep(5 * time.Millisecond)
	}
	first.Stop()

	second := startWatchdog(t, store, &fakeSender{})
	if second.Watched(cmd.TransferID) {
		t.Error("cancelled watch reappeared after restart")
	}
}

func TestWatchdog_PingProbesSourceAccounts(t *testing.T) {
	sender := &fakeSender{}
	svc := startWatchdog(t, memory.NewEventStore(), sender)
	source := uuid.New()
	cmd := transferCmd()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := svc.Watch(ctx, source, cmd); err != nil {
		t.Fatalf("watch: %v", err)
	}

	svc.PingNow()
	if !sender.pinged(cmd.TransferID) {
		t.Error("expected a reconciliation ping for the watched transfer")
	}

	svc.Cancel(cmd.TransferID)
	deadline := time.Now().Add(2 * time.Second)
	for svc.Watched(cmd.TransferID) {
		if time.Now().After(deadline) {
			t.Fatal("watch was never cancelled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sender.mu.Lock()
	sender.pings = nil
	sender.mu.Unlock()

	svc.PingNow()
	if sender.pinged(cmd.TransferID) {
		t.Error("cancelled transfer was still pinged")
	}
}

func TestWatchdog_SpreadsTransfersAcrossBuckets(t *testing.T) {
	store := memory.NewEventStore()
	svc := startWatchdog(t, store, &fakeSender{})
	source := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 64; i++ {
		if _, err := svc.Watch(ctx, source, transferCmd()); err != nil {
			t.Fatalf("watch %d: %v", i, err)
		}
	}

	var used int
	for n := 0; n < 8; n++ {
		events, err := store.Load(ctx, bucketStream(n))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(events) > 0 {
			used++
		}
	}
	// 64 random ids over 8 buckets leave a bucket empty with
	// negligible probability.
	if used < 4 {
		t.Errorf("watches landed in %d of 8 buckets, expected a wider spread", used)
	}
}

func TestWatchdog_StartRequiresAccounts(t *testing.T) {
	svc := watchdog.New(memory.NewEventStore(), watchdog.Config{Buckets: 2, PingInterval: time.Hour}, zerolog.Nop(), metrics.New(prometheus.NewRegistry()))
	if err := svc.Start(context.Background()); err == nil {
		t.Fatal("expected start to fail without an account sender")
	}
}
