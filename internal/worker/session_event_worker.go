package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/certexam/certexam-backend/internal/config"
	"github.com/certexam/certexam-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// EventWriter persists audit events.
type EventWriter interface {
	InsertBatch(ctx context.Context, events []model.SessionEvent) error
	Insert(ctx context.Context, ev model.SessionEvent) error
}

// ─── Publisher ─────────────────────────────────────────────────────

// EventPublisher pushes session events onto the Redis queue drained by
// SessionEventWorker.
type EventPublisher struct {
	rdb   *redis.Client
	queue string
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(rdb *redis.Client) *EventPublisher {
	return &EventPublisher{rdb: rdb, queue: config.WorkerKey.SessionEventsQueue}
}

// Publish enqueues ev.
func (p *EventPublisher) Publish(ctx context.Context, ev model.SessionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.rdb.RPush(ctx, p.queue, data).Err()
}

// ─── Worker ────────────────────────────────────────────────────────

// SessionEventWorker moves queued session events into PostgreSQL in batches.
type SessionEventWorker struct {
	store EventWriter
	rdb   *redis.Client
	queue string
	log   zerolog.Logger

	// retryPause throttles the loop after a requeue or a Redis error.
	retryPause   time.Duration
	batchTimeout time.Duration
}

// NewSessionEventWorker creates a new SessionEventWorker.
func NewSessionEventWorker(store EventWriter, rdb *redis.Client, log zerolog.Logger) *SessionEventWorker {
	return &SessionEventWorker{
		store:        store,
		rdb:          rdb,
		queue:        config.WorkerKey.SessionEventsQueue,
		log:          log.With().Str("component", "session_event_worker").Logger(),
		retryPause:   2 * time.Second,
		batchTimeout: BatchTimeout,
	}
}

// Start runs the worker loop until ctx is cancelled. Call in a goroutine.
func (w *SessionEventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]model.SessionEvent, 0, BatchSize)
	lastFlush := time.Now()

	for {
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= w.batchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, w.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue // picked up by the select above
			}
			w.log.Error().Err(err).Msg("Redis connection error, pausing")
			w.pause(ctx)
			continue
		}
		if len(result) < 2 {
			continue
		}

		ev, ok := w.decode(result[1])
		if !ok {
			continue
		}
		buffer = append(buffer, ev)
	}
}

func (w *SessionEventWorker) decode(raw string) (model.SessionEvent, bool) {
	var ev model.SessionEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		// Malformed payloads can never succeed; drop them.
		w.log.Error().Err(err).Str("data", raw).Msg("Discarding malformed event")
		return ev, false
	}
	return ev, true
}

// flushSafe tries one bulk insert, then row-by-row, then requeues what is left.
// A batch that has started flushing finishes even if the worker is stopped.
func (w *SessionEventWorker) flushSafe(parent context.Context, batch []model.SessionEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
	defer cancel()

	err := w.store.InsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Events flushed")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

	var failed []model.SessionEvent
	for _, ev := range batch {
		if err := w.store.Insert(ctx, ev); err != nil {
			w.log.Error().Err(err).
				Str("session_id", ev.SessionID.String()).
				Str("kind", string(ev.Kind)).
				Msg("Insert failed, requeueing")
			failed = append(failed, ev)
		}
	}
	if len(failed) > 0 {
		w.requeue(ctx, failed)
	}
}

func (w *SessionEventWorker) requeue(ctx context.Context, events []model.SessionEvent) {
	pipe := w.rdb.Pipeline()
	for _, ev := range events {
		data, _ := json.Marshal(ev)
		pipe.RPush(ctx, w.queue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(events)).Msg("Failed to requeue events, dropping them")
		return
	}
	w.log.Info().Int("count", len(events)).Msg("Requeued failed events")
	w.pause(ctx)
}

func (w *SessionEventWorker) pause(ctx context.Context) {
	t := time.NewTimer(w.retryPause)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// shutdown flushes the buffer and drains whatever is still queued.
func (w *SessionEventWorker) shutdown(buffer []model.SessionEvent) {
	w.log.Info().Msg("Worker stopping, flushing remaining events...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		if err := w.store.InsertBatch(ctx, buffer); err != nil {
			w.log.Error().Err(err).Int("count", len(buffer)).Msg("Final flush failed, requeueing")
			w.requeue(ctx, buffer)
			return
		}
	}

	drained := w.drain(ctx)
	w.log.Info().Int("drained", drained).Msg("Worker stopped")
}

func (w *SessionEventWorker) drain(ctx context.Context) int {
	drained := 0
	for {
		raws, err := w.rdb.LPopCount(ctx, w.queue, BatchSize).Result()
		if err != nil || len(raws) == 0 {
			return drained
		}

		batch := make([]model.SessionEvent, 0, len(raws))
		for _, raw := range raws {
			if ev, ok := w.decode(raw); ok {
				batch = append(batch, ev)
			}
		}
		if err := w.store.InsertBatch(ctx, batch); err != nil {
			w.log.Error().Err(err).Msg("Drain insert failed, requeueing")
			w.requeue(ctx, batch)
			return drained
		}
		drained += len(batch)
	}
}
