package analyze

import (
	"slices"

	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/trial"
)

// SuggestionSnapshot is what happened while one context was current: the
// request made for it, what the participant saw and what they did.
type SuggestionSnapshot struct {
	ContextSequenceNum int `json:"contextSequenceNum"`

	Requested        bool           `json:"requested"`
	RequestTimestamp int64          `json:"requestTimestamp,omitempty"`
	Sofar            string         `json:"sofar,omitempty"`
	CurWord          string         `json:"curWord,omitempty"`
	Flags            map[string]any `json:"flags,omitempty"`

	ReplyTimestamp int64  `json:"replyTimestamp,omitempty"`
	LatencyMs      *int64 `json:"latencyMs,omitempty"`

	Predictions []trial.Slot `json:"predictions,omitempty"`
	Synonyms    []trial.Slot `json:"synonyms,omitempty"`

	// Action is the type of the event that moved the text on from this
	// context, with the slot for an accepted suggestion.
	Action     string `json:"action,omitempty"`
	ActionSlot *int   `json:"actionSlot,omitempty"`
	ActionTime int64  `json:"actionTimestamp,omitempty"`
}

// snapshots holds the page's snapshots keyed by context sequence number.
type snapshots struct {
	byCtx map[int]*SuggestionSnapshot
}

func newSnapshots() *snapshots {
	return &snapshots{byCtx: make(map[int]*SuggestionSnapshot)}
}

func (s *snapshots) get(ctx int) *SuggestionSnapshot {
	snap, ok := s.byCtx[ctx]
	if !ok {
		snap = &SuggestionSnapshot{ContextSequenceNum: ctx}
		s.byCtx[ctx] = snap
	}
	return snap
}

// request records an rpc effect.
func (s *snapshots) request(rpc event.Event, ts int64) {
	snap := s.get(rpc.RPC.RequestID)
	snap.Requested = true
	snap.RequestTimestamp = ts
	snap.Sofar = rpc.RPC.Sofar
	snap.CurWord = rpc.RPC.CurWord
	snap.Flags = rpc.RPC.Flags
}

// observe updates the snapshots after t handled ev. before, beforeCtx and
// beforeVis describe t just ahead of the event.
func (s *snapshots) observe(t *trial.State, ev event.Event, before string, beforeCtx int, beforeVis trial.Visible) {
	switch ev.Type {
	case event.TypeBackendReply:
		if ev.Msg == nil {
			return
		}
		snap, ok := s.byCtx[ev.Msg.RequestID]
		if ok && snap.Requested && snap.ReplyTimestamp == 0 {
			snap.ReplyTimestamp = ev.JSTimestamp
			lat := ev.JSTimestamp - snap.RequestTimestamp
			snap.LatencyMs = &lat
		}
		if last := t.LastSuggestionsFromServer; last != nil && last.RequestID == ev.Msg.RequestID && last.RequestID == t.ContextSequenceNum {
			s.show(s.get(t.ContextSequenceNum), t.Visible())
		}

	case event.TypeTapKey, event.TypeTapBackspace, event.TypeTapSuggestion, event.TypeUndo:
		if t.CurText == before {
			return
		}
		snap := s.get(beforeCtx)
		if snap.Predictions == nil {
			s.show(snap, beforeVis)
		}
		if snap.Action == "" {
			snap.Action = ev.Type
			snap.ActionTime = ev.JSTimestamp
			if ev.Type == event.TypeTapSuggestion {
				snap.ActionSlot = ev.Slot
			}
		}
	}
}

func (s *snapshots) show(snap *SuggestionSnapshot, v trial.Visible) {
	snap.Predictions = slices.Clone(v.Predictions)
	snap.Synonyms = slices.Clone(v.Synonyms)
}

// list returns the snapshots in context order.
func (s *snapshots) list() []SuggestionSnapshot {
	keys := make([]int, 0, len(s.byCtx))
	for k := range s.byCtx {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]SuggestionSnapshot, 0, len(keys))
	for _, k := range keys {
		out = append(out, *s.byCtx[k])
	}
	return out
}
