package trial

import "github.com/abhisek/predtext/internal/event"

// Minimum slot counts in the visible view. Rendering code indexes these
// directly, so the view is always padded.
const (
	MinPredictionSlots = 3
	MinSynonymSlots    = 10
)

// Slot is one visible suggestion. An empty slot has no words.
type Slot struct {
	Words       []string `json:"words"`
	Probability float64  `json:"probability,omitempty"`
	Promised    bool     `json:"promised,omitempty"`
}

// Empty reports whether the slot shows nothing.
func (s Slot) Empty() bool {
	return len(s.Words) == 0
}

// Visible is what the participant sees for one context.
type Visible struct {
	ContextSequenceNum int    `json:"contextSequenceNum"`
	Fresh              bool   `json:"fresh"`
	Predictions        []Slot `json:"predictions"`
	Synonyms           []Slot `json:"synonyms"`
}

// Filter transforms the visible view. Filters must be pure.
type Filter func(Visible) Visible

// NoFilter returns the view unchanged.
func NoFilter(v Visible) Visible { return v }

// ConfidenceFilter blanks server predictions whose probability is below
// threshold. Promised slots are kept.
func ConfidenceFilter(threshold float64) Filter {
	return func(v Visible) Visible {
		out := v
		out.Predictions = make([]Slot, len(v.Predictions))
		for i, s := range v.Predictions {
			if !s.Promised && !s.Empty() && s.Probability < threshold {
				s = Slot{}
			}
			out.Predictions[i] = s
		}
		return out
	}
}

// Chain applies filters left to right.
func Chain(filters ...Filter) Filter {
	return func(v Visible) Visible {
		for _, f := range filters {
			if f != nil {
				v = f(v)
			}
		}
		return v
	}
}

// ComputeVisible derives the visible suggestions. Server slots are shown only
// when the last reply belongs to the current context; until then an active
// multi-word suggestion keeps its slot with the remaining words.
func ComputeVisible(last *event.Reply, contextSeq int, active *ActiveSuggestion, showSynonyms bool, filter Filter) Visible {
	v := Visible{ContextSequenceNum: contextSeq}

	if last != nil && last.RequestID == contextSeq {
		v.Fresh = true
		v.Predictions = toSlots(last.Predictions)
		if showSynonyms {
			v.Synonyms = toSlots(last.Synonyms)
		}
	}

	v.Predictions = pad(v.Predictions, MinPredictionSlots)
	v.Synonyms = pad(v.Synonyms, MinSynonymSlots)

	if !v.Fresh && active != nil && active.Slot >= 0 {
		promised := Slot{Words: append([]string(nil), active.Words...), Promised: true}
		switch active.Which {
		case event.WhichSynonyms:
			v.Synonyms = pad(v.Synonyms, active.Slot+1)
			v.Synonyms[active.Slot] = promised
		default:
			v.Predictions = pad(v.Predictions, active.Slot+1)
			v.Predictions[active.Slot] = promised
		}
	}

	if filter != nil {
		v = filter(v)
	}
	return v
}

// Visible returns the trial's current visible suggestions.
func (s *State) Visible() Visible {
	return ComputeVisible(s.LastSuggestionsFromServer, s.ContextSequenceNum, s.ActiveSuggestion, s.Flags.ShowSynonyms, s.filter)
}

func toSlots(sugs []event.Suggestion) []Slot {
	out := make([]Slot, 0, len(sugs))
	for _, sg := range sugs {
		out = append(out, Slot{
			Words:       append([]string(nil), sg.Words...),
			Probability: sg.Probability,
		})
	}
	return out
}

func pad(slots []Slot, n int) []Slot {
	for len(slots) < n {
		slots = append(slots, Slot{})
	}
	return slots
}
