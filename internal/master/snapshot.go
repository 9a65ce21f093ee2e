package master

import (
	"encoding/json"
	"slices"
)

// TrialSnapshot is the serializable summary of one trial.
type TrialSnapshot struct {
	Name                string         `json:"name"`
	CurText             string         `json:"curText"`
	ContextSequenceNum  int            `json:"contextSequenceNum"`
	OutstandingRequests []int          `json:"outstandingRequests,omitempty"`
	LastReplyID         *int           `json:"lastReplyId,omitempty"`
	EventCounts         map[string]int `json:"eventCounts,omitempty"`
}

// Snapshot is a serializable view of the session.
type Snapshot struct {
	ParticipantID      string                     `json:"participantId"`
	ScreenNum          int                        `json:"screenNum"`
	ScreenName         string                     `json:"screenName,omitempty"`
	ScreenTimes        []ScreenTime               `json:"screenTimes,omitempty"`
	CurExperiment      string                     `json:"curExperiment,omitempty"`
	ControlledInputs   map[string]json.RawMessage `json:"controlledInputs,omitempty"`
	Trials             []TrialSnapshot            `json:"trials,omitempty"`
	LastEventTimestamp int64                      `json:"lastEventTimestamp"`
	EventsHandled      int                        `json:"eventsHandled"`
}

// Snapshot captures the session. The result shares nothing with s.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		ParticipantID:      s.ParticipantID,
		ScreenNum:          s.Screens.ScreenNum,
		ScreenTimes:        slices.Clone(s.Screens.ScreenTimes),
		CurExperiment:      s.Trials.Current,
		ControlledInputs:   s.Inputs.Map(),
		LastEventTimestamp: s.LastEventTimestamp,
		EventsHandled:      s.eventIndex,
	}
	if scr := s.Screens.Current(); scr != nil {
		snap.ScreenName = scr.Name
	}
	for _, name := range s.Trials.order {
		t := s.Trials.byName[name]
		ts := TrialSnapshot{
			Name:                t.Name,
			CurText:             t.CurText,
			ContextSequenceNum:  t.ContextSequenceNum,
			OutstandingRequests: slices.Clone(t.OutstandingRequests),
			EventCounts:         t.FinalData().EventCounts,
		}
		if r := t.LastSuggestionsFromServer; r != nil {
			id := r.RequestID
			ts.LastReplyID = &id
		}
		snap.Trials = append(snap.Trials, ts)
	}
	return snap
}
