package analyze

import (
	"strings"

	"github.com/abhisek/predtext/internal/trial"
)

// Char is one character of a trial's text with the action that produced it.
type Char struct {
	Char               string `json:"char"`
	Action             string `json:"action"`
	Seq                int    `json:"seq"`
	ContextSequenceNum int    `json:"contextSequenceNum"`
	Timestamp          int64  `json:"timestamp"`
}

// Chunk is a maximal run of characters produced by the same action.
// Start and End are rune offsets into the final text.
type Chunk struct {
	Action string `json:"action"`
	Text   string `json:"text"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// Word is a run of word characters with the chunks that produced it,
// clipped to the word.
type Word struct {
	Text   string  `json:"text"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
	Chunks []Chunk `json:"chunks"`
}

// commonPrefix returns the length in runes of the longest common prefix.
func commonPrefix(a, b []rune) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// applyDiff updates the annotated trace for a text change from prev to cur.
// The characters after the common prefix are dropped and the new suffix is
// attributed to proto.
func applyDiff(trace []Char, prev, cur string, proto Char) []Char {
	if prev == cur {
		return trace
	}
	p, c := []rune(prev), []rune(cur)
	keep := min(commonPrefix(p, c), len(trace))
	trace = trace[:keep]
	for _, r := range c[keep:] {
		ch := proto
		ch.Char = string(r)
		trace = append(trace, ch)
	}
	return trace
}

// Text joins the characters of the trace.
func Text(trace []Char) string {
	var b strings.Builder
	for _, c := range trace {
		b.WriteString(c.Char)
	}
	return b.String()
}

// Chunks collapses the trace into action-homogeneous runs.
func Chunks(trace []Char) []Chunk {
	var out []Chunk
	for i, c := range trace {
		if n := len(out); n > 0 && out[n-1].Action == c.Action {
			out[n-1].Text += c.Char
			out[n-1].End = i + 1
			continue
		}
		out = append(out, Chunk{Action: c.Action, Text: c.Char, Start: i, End: i + 1})
	}
	return out
}

// Words groups chunks into words split on whitespace and punctuation.
func Words(trace []Char, chunks []Chunk) []Word {
	var words []Word
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		words = append(words, Word{
			Text:   Text(trace[start:end]),
			Start:  start,
			End:    end,
			Chunks: clip(chunks, start, end),
		})
		start = -1
	}
	for i, c := range trace {
		r := []rune(c.Char)[0]
		if trial.IsWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(trace))
	return words
}

// clip returns the parts of chunks inside [start, end).
func clip(chunks []Chunk, start, end int) []Chunk {
	var out []Chunk
	for _, ch := range chunks {
		lo, hi := max(ch.Start, start), min(ch.End, end)
		if lo >= hi {
			continue
		}
		runes := []rune(ch.Text)
		out = append(out, Chunk{
			Action: ch.Action,
			Text:   string(runes[lo-ch.Start : hi-ch.Start]),
			Start:  lo,
			End:    hi,
		})
	}
	return out
}
