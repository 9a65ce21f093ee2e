// Package event defines the immutable records that drive a participant's
// session: user input, server replies and system ticks. Events are plain
// values; the reducers read them but never modify them.
package event

import (
	"encoding/json"
	"strings"
	"time"
)

// Event types understood by the reducers. Types not listed here are carried
// through the log untouched and ignored by the reducers.
const (
	TypeLogin                  = "login"
	TypeNext                   = "next"
	TypeSetScreen              = "setScreen"
	TypeControlledInputChanged = "controlledInputChanged"
	TypeResized                = "resized"
	TypePingResults            = "pingResults"
	TypeSetupTrial             = "setupTrial"
	TypeSetupExperiment        = "setupExperiment"
	TypeTapKey                 = "tapKey"
	TypeTapBackspace           = "tapBackspace"
	TypeTapSuggestion          = "tapSuggestion"
	TypeUndo                   = "undo"
	TypeBackendReply           = "backendReply"
	TypeRPC                    = "rpc"
	TypeFinalData              = "finalData"
	TypeBacklog                = "backlog"
	TypeConnected              = "connected"
)

// MethodGetSuggestions is the rpc method used to request suggestions.
const MethodGetSuggestions = "get_suggestions"

// Suggestion slot groups addressed by tapSuggestion.
const (
	WhichPredictions = "predictions"
	WhichSynonyms    = "synonyms"
)

// Event is one timestamped action. The system-assigned fields (JSTimestamp,
// Kind, Seq) are set by the dispatcher and never by the client.
type Event struct {
	Type        string `json:"type"`
	JSTimestamp int64  `json:"jsTimestamp,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Seq         int    `json:"seq,omitempty"`

	// login
	ParticipantID string `json:"participant_id,omitempty"`
	Assignment    *int   `json:"assignment,omitempty"`
	Config        string `json:"config,omitempty"`
	ClientVersion string `json:"clientVersion,omitempty"`

	// next / setScreen
	Delta  *int `json:"delta,omitempty"`
	Screen *int `json:"screen,omitempty"`

	// controlledInputChanged / setupTrial
	Name  string          `json:"name,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Flags map[string]any  `json:"flags,omitempty"`

	// tapKey / tapSuggestion
	Key   string   `json:"key,omitempty"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Slot  *int     `json:"slot,omitempty"`
	Which string   `json:"which,omitempty"`

	// backendReply
	Msg *Reply `json:"msg,omitempty"`

	// rpc side effects
	RPC *RPC `json:"rpc,omitempty"`

	// backlog delivery from the transport
	Backlog []Event `json:"backlog,omitempty"`

	// finalData as computed by the client
	FinalData json.RawMessage `json:"finalData,omitempty"`

	// resized / pingResults
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	Pings  []int64 `json:"pings,omitempty"`
}

// Reply is the suggestion payload returned by the backend.
type Reply struct {
	RequestID   int          `json:"request_id"`
	Predictions []Suggestion `json:"predictions,omitempty"`
	Synonyms    []Suggestion `json:"synonyms,omitempty"`
}

// Suggestion is one candidate phrase in a reply.
type Suggestion struct {
	Words       []string `json:"words"`
	Probability float64  `json:"probability,omitempty"`
}

// Phrase joins the suggestion's words with single spaces.
func (s Suggestion) Phrase() string {
	return strings.Join(s.Words, " ")
}

// RPC is the payload of a side effect forwarded to the transport.
type RPC struct {
	Method    string         `json:"method"`
	RequestID int            `json:"request_id"`
	Sofar     string         `json:"sofar"`
	CurWord   string         `json:"cur_word"`
	Flags     map[string]any `json:"flags,omitempty"`
}

// IsRPC reports whether the event is an immediate rpc side effect.
func (e Event) IsRPC() bool {
	return e.Type == TypeRPC && e.RPC != nil
}

// Time converts the client timestamp to a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.JSTimestamp)
}

// WithStamp returns a copy of e carrying the system-assigned fields.
func (e Event) WithStamp(jsTimestamp int64, kind string, seq int) Event {
	e.JSTimestamp = jsTimestamp
	e.Kind = kind
	e.Seq = seq
	return e
}

// IntOr dereferences p, returning def when p is nil.
func IntOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// Int returns a pointer to v. Used to fill optional payload fields.
func Int(v int) *int {
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
