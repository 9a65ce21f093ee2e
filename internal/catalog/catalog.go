// Package catalog builds each participant's screen list from an experiment
// definition. The list is a pure function of the login event: the variant
// comes from the event's config field and the condition order from its
// assignment, or from a hash of the participant id when no assignment is
// given.
package catalog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"os"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/master"
)

// DefaultVariant is used when the login event names no config.
const DefaultVariant = "default"

// ErrUnknownVariant is returned when the login names a variant the catalog
// does not define.
var ErrUnknownVariant = errors.New("unknown experiment variant")

// Condition is one experimental condition.
type Condition struct {
	Name  string         `yaml:"name"`
	Flags map[string]any `yaml:"flags"`
}

// Variant describes one experiment layout.
type Variant struct {
	// Before are plain screens shown ahead of the tasks (consent, surveys).
	Before []string `yaml:"before"`

	// Practice, when set, adds an untimed practice trial before the tasks.
	Practice *Condition `yaml:"practice"`

	// Conditions are run once each, in the order chosen by assignment.
	Conditions []Condition `yaml:"conditions"`

	// Prompts are handed to tasks in order, cycling if there are fewer
	// prompts than conditions.
	Prompts []string `yaml:"prompts"`

	// TaskTimer limits each task screen. Zero means untimed.
	TaskTimer time.Duration `yaml:"taskTimer"`

	// After are plain screens shown once the tasks are done.
	After []string `yaml:"after"`
}

// Catalog is a set of named variants.
type Catalog struct {
	Variants map[string]Variant `yaml:"variants"`
}

// Default returns the built-in catalog: a no-suggestion baseline against
// phrase suggestions, with a synonym condition in its own variant.
func Default() *Catalog {
	return &Catalog{Variants: map[string]Variant{
		DefaultVariant: {
			Before:   []string{"consent", "intro-survey", "instructions"},
			Practice: &Condition{Name: "practice", Flags: map[string]any{"useSuggestions": true}},
			Conditions: []Condition{
				{Name: "norecs", Flags: map[string]any{"useSuggestions": false}},
				{Name: "phrases", Flags: map[string]any{"useSuggestions": true}},
				{Name: "gated", Flags: map[string]any{"useSuggestions": true, "confidenceThreshold": 0.3}},
			},
			Prompts:   []string{"restaurant", "movie", "travel"},
			TaskTimer: 5 * time.Minute,
			After:     []string{"closing-survey", "done"},
		},
		"synonyms": {
			Before: []string{"consent", "instructions"},
			Conditions: []Condition{
				{Name: "predictions", Flags: map[string]any{"useSuggestions": true}},
				{Name: "synonyms", Flags: map[string]any{"useSuggestions": true, "showSynonyms": true}},
			},
			Prompts: []string{"restaurant", "movie"},
			After:   []string{"closing-survey", "done"},
		},
	}}
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a YAML catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Validate checks that every variant has conditions with unique names.
func (c *Catalog) Validate() error {
	if len(c.Variants) == 0 {
		return errors.New("catalog defines no variants")
	}
	for name, v := range c.Variants {
		if len(v.Conditions) == 0 {
			return fmt.Errorf("variant %q: no conditions", name)
		}
		seen := make(map[string]bool)
		for _, cond := range v.Conditions {
			if cond.Name == "" {
				return fmt.Errorf("variant %q: condition without a name", name)
			}
			if seen[cond.Name] {
				return fmt.Errorf("variant %q: duplicate condition %q", name, cond.Name)
			}
			seen[cond.Name] = true
		}
		if v.TaskTimer < 0 {
			return fmt.Errorf("variant %q: negative task timer", name)
		}
	}
	return nil
}

// Variant returns the variant named by the login event.
func (c *Catalog) Variant(login event.Event) (string, Variant, error) {
	name := login.Config
	if name == "" {
		name = DefaultVariant
	}
	v, ok := c.Variants[name]
	if !ok {
		return name, Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return name, v, nil
}

// Assignment returns the ordering index for the login, in [0, n).
func Assignment(login event.Event, n int) int {
	if n <= 0 {
		return 0
	}
	if login.Assignment != nil {
		a := *login.Assignment % n
		if a < 0 {
			a += n
		}
		return a
	}
	sum := blake3.Sum256([]byte(login.ParticipantID))
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(n))
}

// ConditionOrder rotates the conditions by the assignment, giving a Latin
// square over participants: every condition appears in every position
// equally often.
func ConditionOrder(conds []Condition, assignment int) []Condition {
	n := len(conds)
	out := make([]Condition, n)
	for i := range conds {
		out[i] = conds[(i+assignment)%n]
	}
	return out
}

// Screens builds the participant's screen list. It satisfies
// master.ScreenFunc.
func (c *Catalog) Screens(login event.Event) ([]master.Screen, error) {
	_, v, err := c.Variant(login)
	if err != nil {
		return nil, err
	}

	var screens []master.Screen
	for _, name := range v.Before {
		screens = append(screens, master.Screen{Name: name})
	}

	if v.Practice != nil {
		pre := event.SetupTrial("practice", copyFlags(v.Practice.Flags, ""))
		screens = append(screens, master.Screen{Name: "practice", PreEvent: &pre})
	}

	order := ConditionOrder(v.Conditions, Assignment(login, len(v.Conditions)))
	for i, cond := range order {
		prompt := ""
		if len(v.Prompts) > 0 {
			prompt = v.Prompts[i%len(v.Prompts)]
		}
		name := fmt.Sprintf("final-%d-%s", i, cond.Name)
		pre := event.SetupTrial(name, copyFlags(cond.Flags, prompt))
		screens = append(screens,
			master.Screen{Name: fmt.Sprintf("task-instructions-%d", i)},
			master.Screen{Name: fmt.Sprintf("task-%d", i), PreEvent: &pre, Timer: v.TaskTimer},
			master.Screen{Name: fmt.Sprintf("post-task-%d", i)},
		)
	}

	for _, name := range v.After {
		screens = append(screens, master.Screen{Name: name})
	}
	return screens, nil
}

func copyFlags(flags map[string]any, prompt string) map[string]any {
	out := maps.Clone(flags)
	if out == nil {
		out = make(map[string]any)
	}
	if prompt != "" {
		out["promptID"] = prompt
	}
	return out
}
