package event

import "encoding/json"

// Login builds a login event. A negative assignment leaves the field unset so
// the catalog derives the assignment from the participant id.
func Login(participantID string, assignment int) Event {
	ev := Event{Type: TypeLogin, ParticipantID: participantID}
	if assignment >= 0 {
		ev.Assignment = Int(assignment)
	}
	return ev
}

// Next advances the screen by one.
func Next() Event {
	return Event{Type: TypeNext}
}

// NextBy advances the screen by delta.
func NextBy(delta int) Event {
	return Event{Type: TypeNext, Delta: Int(delta)}
}

// SetScreen jumps to screen n.
func SetScreen(n int) Event {
	return Event{Type: TypeSetScreen, Screen: Int(n)}
}

// SetupTrial creates a trial named name with the given condition flags.
func SetupTrial(name string, flags map[string]any) Event {
	return Event{Type: TypeSetupTrial, Name: name, Flags: flags}
}

// TapKey records a key tap at (x, y).
func TapKey(key string, x, y float64) Event {
	return Event{Type: TypeTapKey, Key: key, X: Float(x), Y: Float(y)}
}

// Backspace deletes |delta| characters; delta is conventionally negative.
func Backspace(delta int) Event {
	return Event{Type: TypeTapBackspace, Delta: Int(delta)}
}

// TapSuggestion accepts the suggestion in slot of the given group.
func TapSuggestion(which string, slot int) Event {
	return Event{Type: TypeTapSuggestion, Which: which, Slot: Int(slot)}
}

// Undo restores the last text checkpoint.
func Undo() Event {
	return Event{Type: TypeUndo}
}

// BackendReply wraps a suggestion reply.
func BackendReply(msg Reply) Event {
	return Event{Type: TypeBackendReply, Msg: &msg}
}

// ControlledInputChanged upserts a named input value.
func ControlledInputChanged(name string, value any) (Event, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: TypeControlledInputChanged, Name: name, Value: raw}, nil
}

// SuggestionRequest builds the rpc side effect asking for suggestions.
func SuggestionRequest(requestID int, sofar, curWord string, flags map[string]any) Event {
	return Event{
		Type: TypeRPC,
		RPC: &RPC{
			Method:    MethodGetSuggestions,
			RequestID: requestID,
			Sofar:     sofar,
			CurWord:   curWord,
			Flags:     flags,
		},
	}
}
