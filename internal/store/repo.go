package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/abhisek/predtext/internal/master"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // stored at >= From
	To     time.Time // stored at <= To
}

// SnapshotVersion is bumped when master.Snapshot changes shape.
const SnapshotVersion = 1

// SnapshotData is the persisted session summary.
type SnapshotData struct {
	Version int             `json:"version"`
	Session master.Snapshot `json:"session"`
}

// Snapshot represents a point-in-time capture of a participant session.
type Snapshot struct {
	ID            int
	ParticipantID string
	Sequence      int64
	Timestamp     time.Time
	Data          SnapshotData
}

// SnapshotRepo manages session snapshots.
type SnapshotRepo interface {
	// Save stores a new snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// Latest returns the participant's most recent snapshot, or nil if none
	// exist.
	Latest(ctx context.Context, participant string) (*Snapshot, error)

	// Prune deletes all but the participant's N most recent snapshots.
	Prune(ctx context.Context, participant string, keep int) error
}

// StoredAnalysis is a persisted analysis result.
type StoredAnalysis struct {
	ParticipantID string
	ClientVersion string
	CreatedAt     time.Time
	Data          json.RawMessage
}

// AnalysisRepo keeps the latest analysis per participant.
type AnalysisRepo interface {
	// Save replaces the participant's analysis with data, which must
	// marshal to JSON.
	Save(ctx context.Context, participant, clientVersion string, data any) error

	// Get returns the participant's analysis, or nil if none exists.
	Get(ctx context.Context, participant string) (*StoredAnalysis, error)
}
