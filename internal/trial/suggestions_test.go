package trial

import (
	"testing"

	"github.com/abhisek/predtext/internal/event"
)

func TestComputeVisiblePadsSlots(t *testing.T) {
	v := ComputeVisible(nil, 0, nil, false, NoFilter)
	if len(v.Predictions) != MinPredictionSlots {
		t.Errorf("predictions = %d, want %d", len(v.Predictions), MinPredictionSlots)
	}
	if len(v.Synonyms) != MinSynonymSlots {
		t.Errorf("synonyms = %d, want %d", len(v.Synonyms), MinSynonymSlots)
	}
	if v.Fresh {
		t.Error("no reply should not be fresh")
	}
}

func TestComputeVisibleStaleReplyHidden(t *testing.T) {
	last := &event.Reply{RequestID: 1, Predictions: []event.Suggestion{{Words: []string{"old"}}}}
	v := ComputeVisible(last, 2, nil, false, NoFilter)
	for i, s := range v.Predictions {
		if !s.Empty() {
			t.Errorf("slot %d = %+v, want empty for stale reply", i, s)
		}
	}
}

func TestComputeVisibleFreshReplyFulfillsPromise(t *testing.T) {
	last := &event.Reply{RequestID: 5, Predictions: []event.Suggestion{{Words: []string{"server"}}}}
	active := &ActiveSuggestion{Which: event.WhichPredictions, Slot: 0, Words: []string{"promised"}}

	v := ComputeVisible(last, 5, active, false, NoFilter)
	if v.Predictions[0].Words[0] != "server" || v.Predictions[0].Promised {
		t.Errorf("slot 0 = %+v, want server suggestion", v.Predictions[0])
	}

	v = ComputeVisible(last, 6, active, false, NoFilter)
	if v.Predictions[0].Words[0] != "promised" || !v.Predictions[0].Promised {
		t.Errorf("slot 0 = %+v, want promised suggestion", v.Predictions[0])
	}
}

func TestComputeVisibleSynonymsGated(t *testing.T) {
	last := &event.Reply{RequestID: 0, Synonyms: []event.Suggestion{{Words: []string{"alt"}}}}
	if v := ComputeVisible(last, 0, nil, false, NoFilter); !v.Synonyms[0].Empty() {
		t.Error("synonyms shown while disabled")
	}
	if v := ComputeVisible(last, 0, nil, true, NoFilter); v.Synonyms[0].Empty() {
		t.Error("synonyms hidden while enabled")
	}
}

func TestConfidenceFilter(t *testing.T) {
	last := &event.Reply{RequestID: 0, Predictions: []event.Suggestion{
		{Words: []string{"sure"}, Probability: 0.9},
		{Words: []string{"maybe"}, Probability: 0.1},
	}}
	v := ComputeVisible(last, 0, nil, false, ConfidenceFilter(0.5))
	if v.Predictions[0].Empty() {
		t.Error("confident prediction removed")
	}
	if !v.Predictions[1].Empty() {
		t.Error("low-confidence prediction kept")
	}
	if len(v.Predictions) != MinPredictionSlots {
		t.Errorf("filter changed slot count to %d", len(v.Predictions))
	}
}

func TestFlagThresholdInstallsFilter(t *testing.T) {
	s := New("t", map[string]any{"confidenceThreshold": 0.5}, WithLogger(quietLogger()))
	s.LastSuggestionsFromServer = &event.Reply{RequestID: 0, Predictions: []event.Suggestion{
		{Words: []string{"low"}, Probability: 0.2},
	}}
	if !s.Visible().Predictions[0].Empty() {
		t.Error("threshold flag did not gate predictions")
	}
}

func TestSplitContext(t *testing.T) {
	tests := []struct {
		in, sofar, cur string
	}{
		{"", "", ""},
		{"hello", "", "hello"},
		{"hello wo", "hello ", "wo"},
		{"hello ", "hello ", ""},
		{"it's", "", "it's"},
		{"end.", "end.", ""},
	}
	for _, tt := range tests {
		sofar, cur := SplitContext(tt.in)
		if sofar != tt.sofar || cur != tt.cur {
			t.Errorf("SplitContext(%q) = (%q, %q), want (%q, %q)", tt.in, sofar, cur, tt.sofar, tt.cur)
		}
	}
}
