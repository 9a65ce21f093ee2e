package trial

import "maps"

// FinalData is the per-trial summary the client logs when a trial ends.
// The analyzer recomputes it from the log and compares.
type FinalData struct {
	Name               string         `json:"name"`
	FinalText          string         `json:"finalText"`
	WordCount          int            `json:"wordCount"`
	ContextSequenceNum int            `json:"contextSequenceNum"`
	EventCounts        map[string]int `json:"eventCounts"`
}

// FinalData summarizes the trial as it stands.
func (s *State) FinalData() FinalData {
	return FinalData{
		Name:               s.Name,
		FinalText:          s.CurText,
		WordCount:          WordCount(s.CurText),
		ContextSequenceNum: s.ContextSequenceNum,
		EventCounts:        maps.Clone(s.EventCounts),
	}
}
