// Package analyze reconstructs a participant session from its event log.
// Analysis is a pure function of the log: it replays the events through the
// same reducers used live and derives per-trial provenance, displayed
// suggestions, chunks and words.
package analyze

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/abhisek/predtext/internal/catalog"
	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/master"
	"github.com/abhisek/predtext/internal/trial"
)

var (
	// ErrEmptyLog is returned for a log with no events.
	ErrEmptyLog = errors.New("empty event log")

	// ErrNoLogin is returned when the first event is not a login.
	ErrNoLogin = errors.New("log does not start with a login event")
)

// Options configures an analysis.
type Options struct {
	// Screens builds the screen list from the login event. It must be the
	// function used live. Default: catalog.Default().Screens.
	Screens master.ScreenFunc

	// NewTrial creates trials. Default: trial.NewFactory().
	NewTrial trial.Factory

	// Kind is the device role whose diagnostics are recorded.
	Kind string

	// MinClientVersion rejects logs from older clients when set.
	MinClientVersion string

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Screens == nil {
		o.Screens = catalog.Default().Screens
	}
	if o.NewTrial == nil {
		o.NewTrial = trial.NewFactory(trial.WithLogger(o.Logger))
	}
	return o
}

// Page is the analysis of one trial.
type Page struct {
	Name  string         `json:"name"`
	Flags map[string]any `json:"flags,omitempty"`

	FinalText          string               `json:"finalText"`
	AnnotatedFinalText []Char               `json:"annotatedFinalText"`
	Displayed          []SuggestionSnapshot `json:"displayedSuggestions"`
	Chunks             []Chunk              `json:"chunks"`
	Words              []Word               `json:"words"`
	FinalData          trial.FinalData      `json:"finalData"`

	// FinalDataChecked is set when the log carried a client summary that
	// matched the recomputed one.
	FinalDataChecked bool `json:"finalDataChecked"`

	FirstTimestamp int64 `json:"firstTimestamp"`
	LastTimestamp  int64 `json:"lastTimestamp"`
}

// Analysis is the result of analyzing one log.
type Analysis struct {
	ParticipantID string `json:"participantId"`
	Config        string `json:"config,omitempty"`
	ClientVersion string `json:"clientVersion,omitempty"`
	Assignment    *int   `json:"assignment,omitempty"`

	Pages            []*Page                    `json:"pages"`
	ScreenTimes      []master.ScreenTime        `json:"screenTimes"`
	ControlledInputs map[string]json.RawMessage `json:"controlledInputs,omitempty"`
	Events           int                        `json:"events"`
	Final            master.Snapshot            `json:"final"`
}

// Page returns the page for the named trial.
func (a *Analysis) Page(name string) (*Page, bool) {
	for _, p := range a.Pages {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// pageTracker accumulates one page while the log is folded.
type pageTracker struct {
	page      *Page
	trace     []Char
	snapshots *snapshots
}

// Analyze replays events and derives the analysis. Replay errors propagate;
// the caller decides whether to skip the log.
func Analyze(events []event.Event, opts Options) (*Analysis, error) {
	opts = opts.withDefaults()
	if len(events) == 0 {
		return nil, ErrEmptyLog
	}
	login := events[0]
	if login.Type != event.TypeLogin {
		return nil, fmt.Errorf("%w: got %q", ErrNoLogin, login.Type)
	}
	if err := CheckClientVersion(login.ClientVersion, opts.MinClientVersion); err != nil {
		return nil, err
	}

	st := master.New(master.Config{
		Screens:  opts.Screens,
		NewTrial: opts.NewTrial,
		Kind:     opts.Kind,
		Logger:   opts.Logger,
	})
	st.Replaying = true

	a := &Analysis{
		ParticipantID: login.ParticipantID,
		Config:        login.Config,
		ClientVersion: login.ClientVersion,
		Assignment:    login.Assignment,
	}
	pages := make(map[string]*pageTracker)
	track := func(t *trial.State, ts int64) *pageTracker {
		pt, ok := pages[t.Name]
		if !ok {
			pt = &pageTracker{
				page:      &Page{Name: t.Name, Flags: t.Flags.Raw(), FirstTimestamp: ts},
				snapshots: newSnapshots(),
			}
			pages[t.Name] = pt
			a.Pages = append(a.Pages, pt.page)
		}
		return pt
	}

	for i, ev := range events {
		if ev.Type == event.TypeFinalData {
			if err := checkFinalData(st, i, ev); err != nil {
				return nil, err
			}
			if name := finalDataTrial(ev); name != "" {
				if pt, ok := pages[name]; ok {
					pt.page.FinalDataChecked = true
				}
			}
		}

		target := replayTarget(st, ev)
		var (
			before    string
			beforeCtx int
			beforeVis trial.Visible
		)
		if target != nil {
			before = target.CurText
			beforeCtx = target.ContextSequenceNum
			beforeVis = target.Visible()
		}

		pending := outstanding(st)
		effects, err := st.HandleEvent(ev)
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", login.ParticipantID, err)
		}

		if target != nil {
			pt := track(target, ev.JSTimestamp)
			pt.page.LastTimestamp = ev.JSTimestamp
			if target.CurText != before {
				pt.trace = applyDiff(pt.trace, before, target.CurText, Char{
					Action:             ev.Type,
					Seq:                ev.Seq,
					ContextSequenceNum: target.ContextSequenceNum,
					Timestamp:          ev.JSTimestamp,
				})
			}
			pt.snapshots.observe(target, ev, before, beforeCtx, beforeVis)
		}

		for _, e := range effects {
			if !e.IsRPC() {
				continue
			}
			if owner := requester(st, pending, e.RPC.RequestID); owner != nil {
				track(owner, ev.JSTimestamp).snapshots.request(e, ev.JSTimestamp)
			}
		}
	}

	for _, name := range st.TrialNames() {
		t, _ := st.Trial(name)
		pt := track(t, st.LastEventTimestamp)
		p := pt.page
		p.FinalText = t.CurText
		p.AnnotatedFinalText = pt.trace
		p.Chunks = Chunks(pt.trace)
		p.Words = Words(pt.trace, p.Chunks)
		p.Displayed = pt.snapshots.list()
		p.FinalData = t.FinalData()
		if Text(pt.trace) != t.CurText {
			return nil, &DivergenceError{
				Index: len(events) - 1,
				Trial: name,
				Diff:  fmt.Sprintf("provenance trace %q does not match text %q", Text(pt.trace), t.CurText),
			}
		}
	}

	a.ScreenTimes = st.Screens.ScreenTimes
	a.ControlledInputs = st.Inputs.Map()
	a.Events = len(events)
	a.Final = st.Snapshot()
	return a, nil
}

func isTrialInput(typ string) bool {
	switch typ {
	case event.TypeTapKey, event.TypeTapBackspace, event.TypeTapSuggestion,
		event.TypeUndo, event.TypeBackendReply:
		return true
	}
	return false
}

// outstanding copies each trial's in-flight request ids.
func outstanding(st *master.State) map[string][]int {
	out := make(map[string][]int)
	for _, name := range st.TrialNames() {
		t, _ := st.Trial(name)
		out[name] = slices.Clone(t.OutstandingRequests)
	}
	return out
}

// requester returns the trial whose in-flight requests gained id while the
// last event was applied. Trials created by that event start with none.
// When no trial gained the id, the current trial is credited.
func requester(st *master.State, before map[string][]int, id int) *trial.State {
	for _, name := range st.TrialNames() {
		t, _ := st.Trial(name)
		if slices.Contains(t.OutstandingRequests, id) && !slices.Contains(before[name], id) {
			return t
		}
	}
	return st.CurrentTrial()
}

// replayTarget returns the trial ev will be applied to, or nil.
func replayTarget(st *master.State, ev event.Event) *trial.State {
	if isTrialInput(ev.Type) && ev.Name != "" {
		t, _ := st.Trial(ev.Name)
		return t
	}
	return st.CurrentTrial()
}
