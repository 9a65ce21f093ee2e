// Package trial implements the per-task reducer: it consumes events, edits
// the draft text, and emits suggestion requests as side effects.
//
// The reducer keeps three invariants:
//   - TapLocations, SeqNums and the runes of CurText are co-indexed.
//   - ContextSequenceNum never decreases and advances exactly once per event
//     that changes CurText.
//   - A suggestion reply is adopted only when its request_id equals the
//     current ContextSequenceNum.
package trial

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/abhisek/predtext/internal/event"
)

// MaxOutstandingRequests caps in-flight suggestion requests per trial.
const MaxOutstandingRequests = 2

// TapLocation is where a key was tapped, in keyboard coordinates.
type TapLocation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ActiveSuggestion is a multi-word suggestion that has been partially
// inserted. Words holds the words not yet inserted.
type ActiveSuggestion struct {
	Which string   `json:"which"`
	Slot  int      `json:"slot"`
	Words []string `json:"words"`
}

// checkpoint is the undo target captured before a text edit.
type checkpoint struct {
	text             string
	taps             []*TapLocation
	seqs             []int
	active           *ActiveSuggestion
	lastSpaceWasAuto bool
}

// State is the state of one trial.
type State struct {
	Name  string
	Flags Flags

	CurText      string
	TapLocations []*TapLocation
	SeqNums      []int

	ContextSequenceNum        int
	LastSuggestionsFromServer *event.Reply
	ActiveSuggestion          *ActiveSuggestion
	LastSpaceWasAuto          bool
	OutstandingRequests       []int
	EventCounts               map[string]int

	undo     []checkpoint
	filter   Filter
	logger   *slog.Logger
	observer Observer
}

// Observer is told about sequencer decisions that leave no trace in the
// state. Implementations must not touch the trial.
type Observer interface {
	ReplyDiscarded(trial string, requestID, contextSequenceNum int)
	RequestCapped(trial string, contextSequenceNum int)
}

type nopObserver struct{}

func (nopObserver) ReplyDiscarded(string, int, int) {}
func (nopObserver) RequestCapped(string, int)       {}

// Option configures a State.
type Option func(*State)

// WithLogger sets the logger used for non-fatal warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *State) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFilter sets the transform applied to visible suggestions.
func WithFilter(f Filter) Option {
	return func(s *State) {
		if f != nil {
			s.filter = f
		}
	}
}

// WithObserver reports discarded replies and capped requests to o.
func WithObserver(o Observer) Option {
	return func(s *State) {
		if o != nil {
			s.observer = o
		}
	}
}

// New creates a trial with empty text.
func New(name string, flags map[string]any, opts ...Option) *State {
	s := &State{
		Name:         name,
		Flags:        ParseFlags(flags),
		TapLocations: []*TapLocation{},
		SeqNums:      []int{},
		EventCounts:  make(map[string]int),
		filter:       NoFilter,
		logger:       slog.Default(),
		observer:     nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Flags.ConfidenceThreshold > 0 {
		s.filter = Chain(ConfidenceFilter(s.Flags.ConfidenceThreshold), s.filter)
	}
	return s
}

// Factory builds trials with a fixed set of options. Experiment variants
// hand one to the session state.
type Factory func(name string, flags map[string]any) *State

// NewFactory returns a Factory applying opts to every trial it creates.
func NewFactory(opts ...Option) Factory {
	return func(name string, flags map[string]any) *State {
		return New(name, flags, opts...)
	}
}

// Init returns the side effects a freshly created trial starts with:
// normally the request for suggestions on the empty context.
func (s *State) Init() []event.Event {
	return s.requestIfStale()
}

// InvariantError reports a broken reducer invariant. It is a programming
// error, never an input error.
type InvariantError struct {
	Trial     string
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("trial %q: invariant %s violated: %s", e.Trial, e.Invariant, e.Detail)
}

// CheckInvariants verifies the co-indexing invariant and the outstanding
// request cap.
func (s *State) CheckInvariants() error {
	n := utf8.RuneCountInString(s.CurText)
	if len(s.TapLocations) != n || len(s.SeqNums) != n {
		return &InvariantError{
			Trial:     s.Name,
			Invariant: "co-indexed text arrays",
			Detail: fmt.Sprintf("runes=%d tapLocations=%d seqNums=%d",
				n, len(s.TapLocations), len(s.SeqNums)),
		}
	}
	if len(s.OutstandingRequests) > MaxOutstandingRequests {
		return &InvariantError{
			Trial:     s.Name,
			Invariant: "outstanding request cap",
			Detail:    fmt.Sprintf("%d outstanding", len(s.OutstandingRequests)),
		}
	}
	return nil
}

// UndoDepth returns the number of checkpoints available to undo.
func (s *State) UndoDepth() int {
	return len(s.undo)
}

func (s *State) checkpoint() checkpoint {
	return checkpoint{
		text:             s.CurText,
		taps:             append([]*TapLocation(nil), s.TapLocations...),
		seqs:             append([]int(nil), s.SeqNums...),
		active:           s.ActiveSuggestion,
		lastSpaceWasAuto: s.LastSpaceWasAuto,
	}
}

func (s *State) restore(cp checkpoint) {
	s.CurText = cp.text
	s.TapLocations = append([]*TapLocation{}, cp.taps...)
	s.SeqNums = append([]int{}, cp.seqs...)
	s.ActiveSuggestion = cp.active
	s.LastSpaceWasAuto = cp.lastSpaceWasAuto
}
