package panopticon

import (
	"context"
	"sync"

	"github.com/abhisek/predtext/internal/store"
)

// EventSource is the stored log a Follower reads.
type EventSource interface {
	Participants(ctx context.Context) ([]store.ParticipantSummary, error)
	Events(ctx context.Context, participant string, opts store.QueryOpts) ([]store.StoredEvent, error)
}

// Follower feeds newly stored events into a Panopticon. Each Poll reads only
// what was stored since the previous one.
type Follower struct {
	*Panopticon
	src EventSource

	mu    sync.Mutex
	after map[string]int64
}

// Follow returns a Follower reading from src.
func (p *Panopticon) Follow(src EventSource) *Follower {
	return &Follower{Panopticon: p, src: src, after: make(map[string]int64)}
}

// Poll ingests new events and returns how many were read. A replica that
// fails is reported in the overview and does not stop the poll.
func (f *Follower) Poll(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	participants, err := f.src.Participants(ctx)
	if err != nil {
		return 0, err
	}
	read := 0
	for _, p := range participants {
		after := f.after[p.ParticipantID]
		if p.LastSequence <= after {
			continue
		}
		events, err := f.src.Events(ctx, p.ParticipantID, store.QueryOpts{After: after})
		if err != nil {
			return read, err
		}
		for _, se := range events {
			_ = f.Ingest(p.ParticipantID, se.Event)
			f.after[p.ParticipantID] = se.Sequence
			read++
		}
	}
	return read, nil
}
