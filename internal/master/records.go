package master

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/trial"
)

// Screen is one step of the experiment. The session only interprets the
// PreEvent and Timer; everything else about a screen belongs to the UI.
type Screen struct {
	Name     string        `json:"name"`
	PreEvent *event.Event  `json:"preEvent,omitempty"`
	Timer    time.Duration `json:"timer,omitempty"`
}

// ScreenTime records entry into a screen.
type ScreenTime struct {
	Num       int   `json:"num"`
	Timestamp int64 `json:"timestamp"`
}

// TimerState is the countdown for the current screen.
type TimerState struct {
	Screen   int           `json:"screen"`
	Start    int64         `json:"start"`
	Duration time.Duration `json:"duration"`
}

// ScreenTracker holds the screen list and the participant's position in it.
// ScreenNum is -1 until login.
type ScreenTracker struct {
	ScreenNum   int
	Screens     []Screen
	ScreenTimes []ScreenTime
	Timer       *TimerState
}

func (t *ScreenTracker) clamp(n int) int {
	if n < 0 {
		return 0
	}
	if last := len(t.Screens) - 1; n > last {
		return last
	}
	return n
}

// Current returns the current screen, or nil before login.
func (t *ScreenTracker) Current() *Screen {
	if t.ScreenNum < 0 || t.ScreenNum >= len(t.Screens) {
		return nil
	}
	return &t.Screens[t.ScreenNum]
}

// ControlledInputs is an insertion-ordered, last-write-wins map of named
// input values.
type ControlledInputs struct {
	names  []string
	values map[string]json.RawMessage
}

// Set upserts a value.
func (c *ControlledInputs) Set(name string, value json.RawMessage) {
	if c.values == nil {
		c.values = make(map[string]json.RawMessage)
	}
	if _, ok := c.values[name]; !ok {
		c.names = append(c.names, name)
	}
	c.values[name] = slices.Clone(value)
}

// Get returns the value for name.
func (c *ControlledInputs) Get(name string) (json.RawMessage, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Names returns input names in first-set order.
func (c *ControlledInputs) Names() []string {
	return slices.Clone(c.names)
}

// Map returns a copy of all values.
func (c *ControlledInputs) Map() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(c.values))
	for k, v := range c.values {
		out[k] = slices.Clone(v)
	}
	return out
}

// Diagnostics tracks device metrics reported by the actionable device kind.
type Diagnostics struct {
	Width  int
	Height int
	Pings  []int64
}

// Trials is the append-only registry of trial states.
type Trials struct {
	order   []string
	byName  map[string]*trial.State
	Current string
}

func (t *Trials) add(s *trial.State) {
	if t.byName == nil {
		t.byName = make(map[string]*trial.State)
	}
	t.order = append(t.order, s.Name)
	t.byName[s.Name] = s
}

// Get returns the trial registered under name.
func (t *Trials) Get(name string) (*trial.State, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// Names returns trial names in creation order.
func (t *Trials) Names() []string {
	return slices.Clone(t.order)
}
