package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/corebank/corebank/internal/adapter/http/middleware"
)

type memoryIdempotencyStore struct {
	mu     sync.Mutex
	cached map[string][]byte
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{cached: make(map[string][]byte)}
}

func (s *memoryIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cached[key]; ok {
		return true, cached, nil
	}
	s.cached[key] = []byte("processing")
	return false, nil, nil
}

func (s *memoryIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached[key] = response
	return nil
}

func TestIdempotencyMiddleware_ReplaysCachedResponse(t *testing.T) {
	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"timestamp":"now"}`))
	})

	m := middleware.NewIdempotencyMiddleware(newMemoryIdempotencyStore(), time.Minute)
	wrapped := m.Wrap(next)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/accounts", nil)
		req.Header.Set(middleware.IdempotencyKeyHeader, "key-1")
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
		if rec.Body.String() != `{"timestamp":"now"}` {
			t.Fatalf("request %d: body = %q", i, rec.Body.String())
		}
	}

	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestIdempotencyMiddleware_SkipsWithoutKey(t *testing.T) {
	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	m := middleware.NewIdempotencyMiddleware(newMemoryIdempotencyStore(), time.Minute)
	wrapped := m.Wrap(next)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/accounts", nil)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
	}

	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}

func TestIdempotencyMiddleware_SkipsReads(t *testing.T) {
	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	m := middleware.NewIdempotencyMiddleware(newMemoryIdempotencyStore(), time.Minute)
	wrapped := m.Wrap(next)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/accounts/abc", nil)
		req.Header.Set(middleware.IdempotencyKeyHeader, "key-1")
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
	}

	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}

func TestIdempotencyMiddleware_DoesNotCacheFailures(t *testing.T) {
	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`ok`))
	})

	store := newMemoryIdempotencyStore()
	m := middleware.NewIdempotencyMiddleware(store, time.Minute)
	wrapped := m.Wrap(next)

	first := httptest.NewRequest(http.MethodPost, "/accounts", nil)
	first.Header.Set(middleware.IdempotencyKeyHeader, "key-1")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, first)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	// The failed attempt left the key in the processing state, so a retry
	// reaches the handler again.
	second := httptest.NewRequest(http.MethodPost, "/accounts", nil)
	second.Header.Set(middleware.IdempotencyKeyHeader, "key-1")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, second)

	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}
