package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/certexam/certexam-backend/internal/config"
	"github.com/certexam/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeEventStore struct {
	mu        sync.Mutex
	rows      []model.SessionEvent
	failBatch bool
	// rejectKind makes single inserts of this kind fail.
	rejectKind model.EventKind
	// onBatch runs before every batch insert.
	onBatch func()
}

func (s *fakeEventStore) InsertBatch(ctx context.Context, events []model.SessionEvent) error {
	if s.onBatch != nil {
		s.onBatch()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failBatch {
		return errors.New("batch rejected")
	}
	s.rows = append(s.rows, events...)
	return nil
}

func (s *fakeEventStore) Insert(ctx context.Context, ev model.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.Kind == s.rejectKind {
		return errors.New("row rejected")
	}
	s.rows = append(s.rows, ev)
	return nil
}

func (s *fakeEventStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func event(kind model.EventKind) model.SessionEvent {
	return model.SessionEvent{
		SessionID: uuid.New(),
		Kind:      kind,
		Detail:    map[string]interface{}{"block_id": float64(7)},
		CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestPublisherPushesJSON(t *testing.T) {
	mr, rdb := newRedis(t)
	pub := NewEventPublisher(rdb)

	if err := pub.Publish(context.Background(), event(model.EventStarted)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	items, err := mr.List(config.WorkerKey.SessionEventsQueue)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 queued event, got %d", len(items))
	}
}

func TestWorkerFlushesOnShutdown(t *testing.T) {
	_, rdb := newRedis(t)
	store := &fakeEventStore{}
	pub := NewEventPublisher(rdb)
	w := NewSessionEventWorker(store, rdb, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		if err := pub.Publish(context.Background(), event(model.EventAnswered)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := rdb.LLen(context.Background(), config.WorkerKey.SessionEventsQueue).Result(); n == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	if got := store.count(); got != 3 {
		t.Fatalf("expected 3 persisted events, got %d", got)
	}
}

func TestWorkerFinishesFlushWhenStopped(t *testing.T) {
	_, rdb := newRedis(t)
	pub := NewEventPublisher(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	store := &fakeEventStore{onBatch: func() { once.Do(cancel) }}

	w := NewSessionEventWorker(store, rdb, zerolog.Nop())
	w.batchTimeout = 0

	if err := pub.Publish(context.Background(), event(model.EventFinished)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	if got := store.count(); got != 1 {
		t.Fatalf("expected the buffered event persisted, got %d", got)
	}
}

func TestFlushSafeFallsBackToRows(t *testing.T) {
	_, rdb := newRedis(t)
	store := &fakeEventStore{failBatch: true}
	w := NewSessionEventWorker(store, rdb, zerolog.Nop())

	w.flushSafe(context.Background(), []model.SessionEvent{event(model.EventStarted), event(model.EventFinished)})

	if got := store.count(); got != 2 {
		t.Fatalf("expected both rows inserted individually, got %d", got)
	}
}

func TestFlushSafeRequeuesRejectedRows(t *testing.T) {
	mr, rdb := newRedis(t)
	store := &fakeEventStore{failBatch: true, rejectKind: model.EventFinished}
	w := NewSessionEventWorker(store, rdb, zerolog.Nop())
	w.retryPause = 0

	w.flushSafe(context.Background(), []model.SessionEvent{event(model.EventStarted), event(model.EventFinished)})

	if got := store.count(); got != 1 {
		t.Fatalf("expected 1 persisted row, got %d", got)
	}
	items, err := mr.List(config.WorkerKey.SessionEventsQueue)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected the rejected event requeued, got %d", len(items))
	}
}

func TestDecodeDropsMalformedPayload(t *testing.T) {
	_, rdb := newRedis(t)
	w := NewSessionEventWorker(&fakeEventStore{}, rdb, zerolog.Nop())

	if _, ok := w.decode("{not json"); ok {
		t.Fatal("malformed payload accepted")
	}
	ev, ok := w.decode(`{"session_id":"6f1c1c58-3c1e-4a4e-9d6e-0b8a3c2f7e11","kind":"redeemed","created_at":"2026-03-02T09:00:00Z"}`)
	if !ok || ev.Kind != model.EventRedeemed {
		t.Fatalf("valid payload rejected: %+v", ev)
	}
}

func TestShutdownDrainsQueue(t *testing.T) {
	_, rdb := newRedis(t)
	store := &fakeEventStore{}
	pub := NewEventPublisher(rdb)
	w := NewSessionEventWorker(store, rdb, zerolog.Nop())

	for i := 0; i < BatchSize+5; i++ {
		if err := pub.Publish(context.Background(), event(model.EventAnswered)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	w.shutdown([]model.SessionEvent{event(model.EventFinished)})

	if got := store.count(); got != BatchSize+6 {
		t.Fatalf("expected %d persisted events, got %d", BatchSize+6, got)
	}
}
