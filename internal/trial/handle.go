package trial

import (
	"slices"

	"github.com/abhisek/predtext/internal/event"
)

// HandleEvent applies ev and returns the side effects it causes. Events of
// types the trial does not know are counted and otherwise ignored.
func (s *State) HandleEvent(ev event.Event) ([]event.Event, error) {
	s.EventCounts[ev.Type]++

	switch ev.Type {
	case event.TypeTapKey, event.TypeTapBackspace, event.TypeTapSuggestion:
		cp := s.checkpoint()
		switch ev.Type {
		case event.TypeTapKey:
			s.tapKey(ev)
		case event.TypeTapBackspace:
			s.tapBackspace(ev)
		case event.TypeTapSuggestion:
			s.tapSuggestion(ev)
		}
		if s.CurText != cp.text {
			s.ContextSequenceNum++
			s.undo = append(s.undo, cp)
		}

	case event.TypeUndo:
		if n := len(s.undo); n > 0 {
			cp := s.undo[n-1]
			s.undo = s.undo[:n-1]
			before := s.CurText
			s.restore(cp)
			if s.CurText != before {
				s.ContextSequenceNum++
			}
		}

	case event.TypeBackendReply:
		if ev.Msg != nil {
			s.handleReply(*ev.Msg)
		}
	}

	if err := s.CheckInvariants(); err != nil {
		return nil, err
	}
	return s.requestIfStale(), nil
}

func (s *State) tapKey(ev event.Event) {
	var tap *TapLocation
	if ev.X != nil && ev.Y != nil {
		tap = &TapLocation{X: *ev.X, Y: *ev.Y}
	}
	key := ev.Key
	s.ActiveSuggestion = nil

	switch {
	case key == " " && s.LastSpaceWasAuto:
		// The space was already inserted for the participant.
		s.LastSpaceWasAuto = false
	case isAutoSpacePunctuation(key) && s.LastSpaceWasAuto:
		s.deleteRunes(1)
		s.insert(key, tap, ev.Seq)
		s.insert(" ", nil, ev.Seq)
		s.LastSpaceWasAuto = true
	default:
		s.insert(key, tap, ev.Seq)
		s.LastSpaceWasAuto = false
	}
}

func (s *State) tapBackspace(ev event.Event) {
	n := event.IntOr(ev.Delta, -1)
	if n < 0 {
		n = -n
	}
	s.deleteRunes(n)
	s.ActiveSuggestion = nil
	s.LastSpaceWasAuto = false
}

// tapSuggestion inserts the next word of the visible suggestion in the
// tapped slot, replacing the partial word.
func (s *State) tapSuggestion(ev event.Event) {
	which := ev.Which
	if which == "" {
		which = event.WhichPredictions
	}
	slot := event.IntOr(ev.Slot, -1)

	vis := s.Visible()
	var slots []Slot
	switch which {
	case event.WhichPredictions:
		slots = vis.Predictions
	case event.WhichSynonyms:
		slots = vis.Synonyms
	}
	if slot < 0 || slot >= len(slots) || len(slots[slot].Words) == 0 {
		return
	}
	words := slots[slot].Words

	_, curWord := SplitContext(s.CurText)
	if which == event.WhichSynonyms && curWord == "" {
		// A synonym replaces the word just finished.
		spaces, word := lastWordBounds(s.CurText)
		s.deleteRunes(spaces + word)
	} else {
		s.deleteRunes(len([]rune(curWord)))
	}

	s.insert(words[0], nil, ev.Seq)
	s.insert(" ", nil, ev.Seq)
	s.LastSpaceWasAuto = true

	if len(words) > 1 {
		s.ActiveSuggestion = &ActiveSuggestion{
			Which: which,
			Slot:  slot,
			Words: append([]string(nil), words[1:]...),
		}
	} else {
		s.ActiveSuggestion = nil
	}
}

// handleReply retires the request and adopts the reply if it is current.
func (s *State) handleReply(msg event.Reply) {
	idx := slices.Index(s.OutstandingRequests, msg.RequestID)
	switch {
	case idx < 0:
		s.logger.Warn("suggestion reply for unknown request",
			"trial", s.Name, "request_id", msg.RequestID)
	default:
		if idx != 0 {
			s.logger.Warn("suggestion reply arrived out of order",
				"trial", s.Name, "request_id", msg.RequestID,
				"outstanding", s.OutstandingRequests)
		}
		s.OutstandingRequests = slices.Delete(slices.Clone(s.OutstandingRequests), idx, idx+1)
	}

	if msg.RequestID != s.ContextSequenceNum {
		s.observer.ReplyDiscarded(s.Name, msg.RequestID, s.ContextSequenceNum)
		return
	}
	reply := msg
	s.LastSuggestionsFromServer = &reply
}

// requestIfStale emits a suggestion request for the current context unless
// one is pending, suggestions are current, or the cap is reached.
func (s *State) requestIfStale() []event.Event {
	if !s.Flags.UseSuggestions {
		return nil
	}
	if s.LastSuggestionsFromServer != nil && s.LastSuggestionsFromServer.RequestID == s.ContextSequenceNum {
		return nil
	}
	if slices.Contains(s.OutstandingRequests, s.ContextSequenceNum) {
		return nil
	}
	if len(s.OutstandingRequests) >= MaxOutstandingRequests {
		s.observer.RequestCapped(s.Name, s.ContextSequenceNum)
		return nil
	}
	s.OutstandingRequests = append(s.OutstandingRequests, s.ContextSequenceNum)
	return []event.Event{s.SuggestionRequest()}
}

// SuggestionRequest builds the rpc for the current context.
func (s *State) SuggestionRequest() event.Event {
	sofar, curWord := SplitContext(s.CurText)
	return event.SuggestionRequest(s.ContextSequenceNum, sofar, curWord, s.Flags.Raw())
}
