package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// snapshotRepo implements SnapshotRepo with raw SQL.
type snapshotRepo struct {
	db *sql.DB
}

func (r *snapshotRepo) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("marshal snapshot data: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO snapshots (participant_id, sequence, timestamp, data) VALUES (?, ?, ?, ?)`,
		snap.ParticipantID, snap.Sequence, snap.Timestamp.UnixMilli(), string(data))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepo) Latest(ctx context.Context, participant string) (*Snapshot, error) {
	var (
		s    Snapshot
		ts   int64
		data string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, participant_id, sequence, timestamp, data FROM snapshots
		 WHERE participant_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`, participant,
	).Scan(&s.ID, &s.ParticipantID, &s.Sequence, &ts, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &s.Data); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot data: %w", err)
	}
	s.Timestamp = time.UnixMilli(ts)
	return &s, nil
}

func (r *snapshotRepo) Prune(ctx context.Context, participant string, keep int) error {
	// Everything at or below the timestamp of the (keep+1)th newest goes.
	var threshold int64
	err := r.db.QueryRowContext(ctx,
		`SELECT timestamp FROM snapshots WHERE participant_id = ?
		 ORDER BY timestamp DESC, id DESC LIMIT 1 OFFSET ?`, participant, keep,
	).Scan(&threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // fewer than keep snapshots exist
	}
	if err != nil {
		return fmt.Errorf("query snapshots for prune: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE participant_id = ? AND timestamp <= ?`, participant, threshold)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

// analysisRepo implements AnalysisRepo with raw SQL.
type analysisRepo struct {
	db *sql.DB
}

func (r *analysisRepo) Save(ctx context.Context, participant, clientVersion string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO analyses (participant_id, client_version, created_at, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT (participant_id) DO UPDATE SET
		   client_version = excluded.client_version,
		   created_at = excluded.created_at,
		   data = excluded.data`,
		participant, clientVersion, time.Now().UnixMilli(), string(b))
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

func (r *analysisRepo) Get(ctx context.Context, participant string) (*StoredAnalysis, error) {
	var (
		a       StoredAnalysis
		created int64
		data    string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT participant_id, client_version, created_at, data FROM analyses WHERE participant_id = ?`,
		participant,
	).Scan(&a.ParticipantID, &a.ClientVersion, &created, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query analysis: %w", err)
	}
	a.CreatedAt = time.UnixMilli(created)
	a.Data = json.RawMessage(data)
	return &a, nil
}
