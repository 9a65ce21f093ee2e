// Package panopticon keeps a live replica of every participant's session,
// fed from the stored logs, for the experimenter's overview.
package panopticon

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/master"
	"github.com/abhisek/predtext/internal/metrics"
	"github.com/abhisek/predtext/internal/trial"
)

// Options configures the replicas.
type Options struct {
	Screens  master.ScreenFunc
	NewTrial trial.Factory
	Kind     string
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Row is one participant in the overview.
type Row struct {
	Participant        string `json:"participant"`
	ScreenNum          int    `json:"screenNum"`
	ScreenName         string `json:"screenName,omitempty"`
	TotalScreens       int    `json:"totalScreens"`
	CurExperiment      string `json:"curExperiment,omitempty"`
	CurText            string `json:"curText,omitempty"`
	LastEventTimestamp int64  `json:"lastEventTimestamp"`
	Events             int    `json:"events"`
	Err                string `json:"error,omitempty"`
}

type replica struct {
	state *master.State
	err   error
}

// Panopticon is safe for concurrent use.
type Panopticon struct {
	opts Options

	mu       sync.Mutex
	replicas map[string]*replica
}

// New creates an empty registry.
func New(opts Options) *Panopticon {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Panopticon{opts: opts, replicas: make(map[string]*replica)}
}

// Ingest applies ev to the participant's replica. Once a replica fails it
// stops accepting events and reports the failure in the overview.
func (p *Panopticon) Ingest(participant string, ev event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.replicas[participant]
	if !ok {
		st := master.New(master.Config{
			Screens:  p.opts.Screens,
			NewTrial: p.opts.NewTrial,
			Kind:     p.opts.Kind,
			Logger:   p.opts.Logger,
		})
		st.Replaying = true
		r = &replica{state: st}
		p.replicas[participant] = r
		p.opts.Metrics.SetParticipants(len(p.replicas))
	}
	if r.err != nil {
		return r.err
	}
	if _, err := r.state.HandleEvent(ev); err != nil {
		r.err = fmt.Errorf("participant %s: %w", participant, err)
		p.opts.Logger.Warn("replica stopped", "participant_id", participant, "error", err)
		return r.err
	}
	return nil
}

// Forget drops a participant.
func (p *Panopticon) Forget(participant string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.replicas, participant)
	p.opts.Metrics.SetParticipants(len(p.replicas))
}

// Snapshot returns the participant's session.
func (p *Panopticon) Snapshot(participant string) (master.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.replicas[participant]
	if !ok {
		return master.Snapshot{}, false
	}
	return r.state.Snapshot(), true
}

// Overview lists every participant, sorted by id.
func (p *Panopticon) Overview() []Row {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows := make([]Row, 0, len(p.replicas))
	for id, r := range p.replicas {
		st := r.state
		row := Row{
			Participant:        id,
			ScreenNum:          st.Screens.ScreenNum,
			TotalScreens:       len(st.Screens.Screens),
			CurExperiment:      st.Trials.Current,
			LastEventTimestamp: st.LastEventTimestamp,
			Events:             st.EventsHandled(),
		}
		if scr := st.Screens.Current(); scr != nil {
			row.ScreenName = scr.Name
		}
		if t := st.CurrentTrial(); t != nil {
			row.CurText = t.CurText
		}
		if r.err != nil {
			row.Err = r.err.Error()
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b Row) int { return strings.Compare(a.Participant, b.Participant) })
	return rows
}
