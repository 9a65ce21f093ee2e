package event

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithStampCopies(t *testing.T) {
	orig := TapKey("a", 1, 2)
	stamped := orig.WithStamp(1000, "p", 7)

	assert.Equal(t, int64(0), orig.JSTimestamp)
	assert.Equal(t, "", orig.Kind)
	assert.Equal(t, int64(1000), stamped.JSTimestamp)
	assert.Equal(t, "p", stamped.Kind)
	assert.Equal(t, 7, stamped.Seq)
	assert.Equal(t, "a", stamped.Key)
}

func TestIsRPC(t *testing.T) {
	assert.True(t, SuggestionRequest(3, "ab", "ab", nil).IsRPC())
	assert.False(t, Event{Type: TypeRPC}.IsRPC())
	assert.False(t, Next().IsRPC())
}

func TestPhrase(t *testing.T) {
	s := Suggestion{Words: []string{"the", "quick", "fox"}}
	assert.Equal(t, "the quick fox", s.Phrase())
}

func TestCodecRoundTripPreservesOrder(t *testing.T) {
	events := []Event{
		Login("p1", 0).WithStamp(1, "p", 1),
		TapKey("a", 10, 20).WithStamp(2, "p", 2),
		BackendReply(Reply{RequestID: 0, Predictions: []Suggestion{{Words: []string{"hi"}}}}).WithStamp(3, "p", 3),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteAll(&buf, events))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	got, err := ReadAll(&buf, true)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, TypeLogin, got[0].Type)
	assert.Equal(t, 0, IntOr(got[0].Assignment, -1))
	assert.Equal(t, "a", got[1].Key)
	require.NotNil(t, got[2].Msg)
	assert.Equal(t, 0, got[2].Msg.RequestID)
}

func TestReaderSkipsBlankLines(t *testing.T) {
	in := "\n{\"type\":\"next\"}\n\n{\"type\":\"undo\"}\n"
	got, err := ReadAll(strings.NewReader(in), false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, TypeUndo, got[1].Type)
}

func TestReaderReportsLine(t *testing.T) {
	in := "{\"type\":\"next\"}\n{\"type\":\"tapKey\"}\n"
	_, err := ReadAll(strings.NewReader(in), true)
	require.Error(t, err)

	var le *LineError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 2, le.Line)

	var se *ShapeError
	assert.True(t, errors.As(err, &se))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"minimal", `{"type":"next"}`, false},
		{"unknown type is allowed", `{"type":"somethingElse"}`, false},
		{"missing type", `{"key":"a"}`, true},
		{"tapKey without key", `{"type":"tapKey"}`, true},
		{"login without participant", `{"type":"login"}`, true},
		{"reply without request id", `{"type":"backendReply","msg":{}}`, true},
		{"reply ok", `{"type":"backendReply","msg":{"request_id":2}}`, false},
		{"negative slot", `{"type":"tapSuggestion","slot":-1}`, true},
		{"not json", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestControlledInputChanged(t *testing.T) {
	ev, err := ControlledInputChanged("age", 31)
	require.NoError(t, err)
	assert.Equal(t, "31", string(ev.Value))
	assert.NoError(t, ValidateEvent(ev))
}
