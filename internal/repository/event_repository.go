package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository persists session audit events.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func eventDetail(ev model.SessionEvent) (string, error) {
	if len(ev.Detail) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(ev.Detail)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// InsertBatch bulk-inserts events with a single UNNEST statement.
func (r *EventRepository) InsertBatch(ctx context.Context, events []model.SessionEvent) error {
	if len(events) == 0 {
		return nil
	}

	sessionIDs := make([]string, 0, len(events))
	kinds := make([]string, 0, len(events))
	details := make([]string, 0, len(events))
	createdAt := make([]time.Time, 0, len(events))
	for _, ev := range events {
		detail, err := eventDetail(ev)
		if err != nil {
			return err
		}
		sessionIDs = append(sessionIDs, ev.SessionID.String())
		kinds = append(kinds, string(ev.Kind))
		details = append(details, detail)
		createdAt = append(createdAt, ev.CreatedAt)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_events (session_id, kind, detail, created_at)
		 SELECT u.session_id, u.kind, u.detail, u.created_at
		 FROM UNNEST(
		     $1::uuid[],
		     $2::text[],
		     $3::jsonb[],
		     $4::timestamptz[]
		 ) AS u (session_id, kind, detail, created_at)`,
		sessionIDs, kinds, details, createdAt,
	)
	return err
}

// Insert stores a single event.
func (r *EventRepository) Insert(ctx context.Context, ev model.SessionEvent) error {
	detail, err := eventDetail(ev)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO session_events (session_id, kind, detail, created_at)
		 VALUES ($1, $2, $3::jsonb, $4)`,
		ev.SessionID, string(ev.Kind), detail, ev.CreatedAt,
	)
	return err
}

// ListBySession retrieves a session's events in order.
func (r *EventRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.SessionEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, kind, detail, created_at
		 FROM session_events
		 WHERE session_id = $1
		 ORDER BY created_at, id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.SessionEvent{}
	for rows.Next() {
		var (
			ev     model.SessionEvent
			kind   string
			detail []byte
		)
		if err := rows.Scan(&ev.SessionID, &kind, &detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Kind = model.EventKind(kind)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &ev.Detail); err != nil {
				return nil, err
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
