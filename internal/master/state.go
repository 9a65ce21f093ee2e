// Package master implements the session reducer. One State exists per
// participant session; it owns the screen position, the controlled inputs
// and every trial created during the session.
package master

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/trial"
)

var (
	// ErrUnknownTrial is returned for an event addressed to a trial name
	// that was never set up.
	ErrUnknownTrial = errors.New("unknown trial")

	// ErrNoActiveTrial is returned for trial input arriving before any trial
	// was set up.
	ErrNoActiveTrial = errors.New("no active trial")

	// ErrNoScreens is returned when the catalog yields an empty screen list.
	ErrNoScreens = errors.New("catalog returned no screens")
)

// EventError attaches the event position and trial to a reducer failure.
type EventError struct {
	Index int
	Trial string
	Type  string
	Err   error
}

func (e *EventError) Error() string {
	if e.Trial != "" {
		return fmt.Sprintf("event %d (%s) in trial %q: %v", e.Index, e.Type, e.Trial, e.Err)
	}
	return fmt.Sprintf("event %d (%s): %v", e.Index, e.Type, e.Err)
}

func (e *EventError) Unwrap() error { return e.Err }

// ScreenFunc maps a login event to the participant's screen list. It must be
// a pure function of the event so replay builds the same session.
type ScreenFunc func(login event.Event) ([]Screen, error)

// Config wires a State to its experiment variant.
type Config struct {
	// Screens builds the screen list at login. Required.
	Screens ScreenFunc

	// NewTrial creates trial states. Default: trial.NewFactory().
	NewTrial trial.Factory

	// Kind is the device role whose resize and ping reports are recorded.
	// Empty accepts every kind.
	Kind string

	// Logger for non-fatal warnings. Default: slog.Default().
	Logger *slog.Logger
}

// State is the session state of one participant.
type State struct {
	cfg Config

	ParticipantID string
	ClientConfig  string
	ClientVersion string

	LastEventTimestamp int64

	// Replaying is set while stored events are re-applied. Warnings about
	// the input drop to debug level, since they were raised when the events
	// first arrived.
	Replaying bool

	Screens ScreenTracker
	Inputs  ControlledInputs
	Diag    Diagnostics
	Trials  Trials

	eventIndex int
}

// New creates a session waiting for login.
func New(cfg Config) *State {
	if cfg.NewTrial == nil {
		cfg.NewTrial = trial.NewFactory()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &State{
		cfg:     cfg,
		Screens: ScreenTracker{ScreenNum: -1},
	}
}

// LoggedIn reports whether a login event has been applied.
func (s *State) LoggedIn() bool {
	return s.Screens.ScreenNum >= 0
}

// CurrentTrial returns the active trial, or nil.
func (s *State) CurrentTrial() *trial.State {
	if s.Trials.Current == "" {
		return nil
	}
	t, _ := s.Trials.Get(s.Trials.Current)
	return t
}

// Trial returns the trial registered under name.
func (s *State) Trial(name string) (*trial.State, bool) {
	return s.Trials.Get(name)
}

// EventsHandled returns the number of events applied so far.
func (s *State) EventsHandled() int {
	return s.eventIndex
}

// HandleEvent applies ev and returns the side effects, trial effects first.
func (s *State) HandleEvent(ev event.Event) ([]event.Event, error) {
	idx := s.eventIndex
	s.eventIndex++
	s.LastEventTimestamp = ev.JSTimestamp

	var effects []event.Event

	target, err := s.routeTarget(ev)
	if err != nil {
		return nil, &EventError{Index: idx, Trial: ev.Name, Type: ev.Type, Err: err}
	}
	if target != nil {
		trialEffects, err := target.HandleEvent(ev)
		if err != nil {
			return nil, &EventError{Index: idx, Trial: target.Name, Type: ev.Type, Err: err}
		}
		effects = append(effects, trialEffects...)
	}

	prevScreen := s.Screens.ScreenNum
	top, err := s.handleTopLevel(ev)
	if err != nil {
		return nil, &EventError{Index: idx, Type: ev.Type, Err: err}
	}
	effects = append(effects, top...)

	if s.Screens.ScreenNum != prevScreen {
		effects = append(effects, s.enterScreen(ev.JSTimestamp)...)
	}
	return effects, nil
}

// isTrialInput reports whether ev only makes sense with a trial to receive it.
func isTrialInput(typ string) bool {
	switch typ {
	case event.TypeTapKey, event.TypeTapBackspace, event.TypeTapSuggestion,
		event.TypeUndo, event.TypeBackendReply:
		return true
	}
	return false
}

// routeTarget picks the trial that receives ev. Trial input naming a trial
// goes to that trial; everything else goes to the current one.
func (s *State) routeTarget(ev event.Event) (*trial.State, error) {
	if isTrialInput(ev.Type) {
		if ev.Name != "" {
			t, ok := s.Trials.Get(ev.Name)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownTrial, ev.Name)
			}
			return t, nil
		}
		if s.CurrentTrial() == nil {
			return nil, ErrNoActiveTrial
		}
	}
	return s.CurrentTrial(), nil
}

func (s *State) handleTopLevel(ev event.Event) ([]event.Event, error) {
	switch ev.Type {
	case event.TypeLogin:
		return nil, s.login(ev)

	case event.TypeNext:
		if s.LoggedIn() {
			s.Screens.ScreenNum = s.Screens.clamp(s.Screens.ScreenNum + event.IntOr(ev.Delta, 1))
		}

	case event.TypeSetScreen:
		if s.LoggedIn() && ev.Screen != nil {
			s.Screens.ScreenNum = s.Screens.clamp(*ev.Screen)
		}

	case event.TypeControlledInputChanged:
		s.Inputs.Set(ev.Name, ev.Value)

	case event.TypeResized:
		if s.actionable(ev) {
			s.Diag.Width, s.Diag.Height = ev.Width, ev.Height
		}

	case event.TypePingResults:
		if s.actionable(ev) {
			s.Diag.Pings = append([]int64(nil), ev.Pings...)
		}

	case event.TypeSetupTrial, event.TypeSetupExperiment:
		return s.setupTrial(ev), nil
	}
	return nil, nil
}

func (s *State) warn(msg string, args ...any) {
	if s.Replaying {
		s.cfg.Logger.Debug(msg, args...)
		return
	}
	s.cfg.Logger.Warn(msg, args...)
}

func (s *State) actionable(ev event.Event) bool {
	return s.cfg.Kind == "" || ev.Kind == s.cfg.Kind
}

func (s *State) login(ev event.Event) error {
	if s.LoggedIn() {
		s.warn("ignoring repeated login", "participant_id", ev.ParticipantID)
		return nil
	}
	screens, err := s.cfg.Screens(ev)
	if err != nil {
		return fmt.Errorf("build screens: %w", err)
	}
	if len(screens) == 0 {
		return ErrNoScreens
	}
	s.ParticipantID = ev.ParticipantID
	s.ClientConfig = ev.Config
	s.ClientVersion = ev.ClientVersion
	s.Screens.Screens = screens
	s.Screens.ScreenNum = 0
	return nil
}

// enterScreen records the transition and runs the screen's pre-event and
// timer.
func (s *State) enterScreen(ts int64) []event.Event {
	num := s.Screens.ScreenNum
	s.Screens.ScreenTimes = append(s.Screens.ScreenTimes, ScreenTime{Num: num, Timestamp: ts})
	s.Screens.Timer = nil

	scr := s.Screens.Current()
	if scr == nil {
		return nil
	}

	var effects []event.Event
	if pre := scr.PreEvent; pre != nil {
		switch pre.Type {
		case event.TypeSetupTrial, event.TypeSetupExperiment:
			effects = s.setupTrial(*pre)
		default:
			// Dispatched as an ordinary event on the next tick.
			effects = append(effects, *pre)
		}
	}
	if scr.Timer > 0 {
		s.Screens.Timer = &TimerState{Screen: num, Start: ts, Duration: scr.Timer}
	}
	return effects
}

// setupTrial creates the named trial and makes it current. A name that
// already exists is reactivated with its text intact.
func (s *State) setupTrial(ev event.Event) []event.Event {
	name := ev.Name
	if name == "" {
		name = fmt.Sprintf("trial-%d", len(s.Trials.order))
	}
	if _, ok := s.Trials.Get(name); ok {
		s.Trials.Current = name
		return nil
	}
	t := s.cfg.NewTrial(name, ev.Flags)
	s.Trials.add(t)
	s.Trials.Current = name
	return t.Init()
}

// TrialNames returns the trial names in creation order.
func (s *State) TrialNames() []string {
	return s.Trials.Names()
}

// ScreenTimerRemaining returns the time left on the current screen's timer at
// nowMs, and false when no timer runs.
func (s *State) ScreenTimerRemaining(nowMs int64) (time.Duration, bool) {
	tm := s.Screens.Timer
	if tm == nil {
		return 0, false
	}
	elapsed := time.Duration(nowMs-tm.Start) * time.Millisecond
	left := tm.Duration - elapsed
	if left < 0 {
		left = 0
	}
	return left, true
}
