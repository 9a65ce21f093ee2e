package trial

// Flags are the condition settings a trial is created with. The raw map is
// forwarded to the suggestion backend unchanged.
type Flags struct {
	// UseSuggestions enables suggestion requests. Default: true.
	UseSuggestions bool

	// ShowSynonyms exposes the synonym slots. Default: false.
	ShowSynonyms bool

	// ConfidenceThreshold hides predictions below this probability.
	// Zero disables confidence gating.
	ConfidenceThreshold float64

	// PromptID identifies the writing prompt shown with the trial.
	PromptID string

	raw map[string]any
}

// ParseFlags reads the known keys from a setupTrial flag map.
func ParseFlags(m map[string]any) Flags {
	f := Flags{UseSuggestions: true, raw: m}
	if v, ok := m["useSuggestions"].(bool); ok {
		f.UseSuggestions = v
	}
	if v, ok := m["showSynonyms"].(bool); ok {
		f.ShowSynonyms = v
	}
	switch v := m["confidenceThreshold"].(type) {
	case float64:
		f.ConfidenceThreshold = v
	case int:
		f.ConfidenceThreshold = float64(v)
	}
	if v, ok := m["promptID"].(string); ok {
		f.PromptID = v
	}
	return f
}

// Raw returns the flag map as received.
func (f Flags) Raw() map[string]any {
	return f.raw
}
