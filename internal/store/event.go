package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/predtext/internal/event"
)

// sequenceCounter hands out the global sequence shared by every stored
// event. It orders events across participants and devices, and snapshots
// record the sequence they were taken at.
//
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// StoredEvent is an event with its storage metadata.
type StoredEvent struct {
	Sequence      int64
	ID            string
	ParticipantID string
	CreatedAt     time.Time
	Event         event.Event
}

// ParticipantSummary describes one participant's stored log.
type ParticipantSummary struct {
	ParticipantID  string
	Events         int
	FirstTimestamp int64
	LastTimestamp  int64
	LastSequence   int64
}

// EventLog is the append-only event table.
type EventLog struct {
	db  *sql.DB
	seq *sequenceCounter
	now func() time.Time
}

// Append stores ev for participant and returns its global sequence.
func (l *EventLog) Append(ctx context.Context, participant string, ev event.Event) (int64, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	seq, err := l.seq.Next(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO events (sequence, id, participant_id, type, kind, client_seq, js_timestamp, created_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seq, uuid.NewString(), participant, ev.Type, ev.Kind, ev.Seq, ev.JSTimestamp,
		now().UnixMilli(), string(payload),
	)
	if err != nil {
		return 0, fmt.Errorf("save %s event: %w", ev.Type, err)
	}
	return seq, nil
}

// Events returns participant's events in sequence order.
func (l *EventLog) Events(ctx context.Context, participant string, opts QueryOpts) ([]StoredEvent, error) {
	where := []string{"participant_id = ?"}
	args := []any{participant}
	if opts.After > 0 {
		where = append(where, "sequence > ?")
		args = append(args, opts.After)
	}
	if opts.Before > 0 {
		where = append(where, "sequence < ?")
		args = append(args, opts.Before)
	}
	if !opts.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, opts.From.UnixMilli())
	}
	if !opts.To.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, opts.To.UnixMilli())
	}
	q := `SELECT sequence, id, participant_id, created_at, payload FROM events WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY sequence`
	if opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			se      StoredEvent
			created int64
			payload string
		)
		if err := rows.Scan(&se.Sequence, &se.ID, &se.ParticipantID, &created, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &se.Event); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", se.Sequence, err)
		}
		se.CreatedAt = time.UnixMilli(created)
		out = append(out, se)
	}
	return out, rows.Err()
}

// Participants lists every participant with stored events, ordered by id.
func (l *EventLog) Participants(ctx context.Context) ([]ParticipantSummary, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT participant_id, COUNT(*), MIN(js_timestamp), MAX(js_timestamp), MAX(sequence)
		 FROM events GROUP BY participant_id ORDER BY participant_id`)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var out []ParticipantSummary
	for rows.Next() {
		var p ParticipantSummary
		if err := rows.Scan(&p.ParticipantID, &p.Events, &p.FirstTimestamp, &p.LastTimestamp, &p.LastSequence); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// For returns a writer appending to participant's log. It satisfies the
// dispatcher's EventLog.
func (l *EventLog) For(participant string) *ParticipantLog {
	return &ParticipantLog{log: l, participant: participant}
}

// ParticipantLog appends events for one participant.
type ParticipantLog struct {
	log         *EventLog
	participant string
}

// Append stores ev.
func (p *ParticipantLog) Append(ctx context.Context, ev event.Event) error {
	_, err := p.log.Append(ctx, p.participant, ev)
	return err
}
