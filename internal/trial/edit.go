package trial

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// autoSpacePunctuation are the keys that pull a preceding auto space in
// front of them.
const autoSpacePunctuation = ".,?!;:"

// insert appends text, attributing every rune to tap and seq.
func (s *State) insert(text string, tap *TapLocation, seq int) {
	s.CurText += text
	for range text {
		s.TapLocations = append(s.TapLocations, tap)
		s.SeqNums = append(s.SeqNums, seq)
	}
}

// deleteRunes removes up to n runes from the end of the text.
func (s *State) deleteRunes(n int) {
	if n <= 0 {
		return
	}
	runes := []rune(s.CurText)
	if n > len(runes) {
		n = len(runes)
	}
	keep := len(runes) - n
	s.CurText = string(runes[:keep])
	s.TapLocations = s.TapLocations[:keep]
	s.SeqNums = s.SeqNums[:keep]
}

// IsWordRune reports whether r belongs to a word: letters, digits,
// apostrophes and hyphens.
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-'
}

// SplitContext splits text into the settled prefix and the word being typed.
func SplitContext(text string) (sofar, curWord string) {
	i := len(text)
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:i])
		if !IsWordRune(r) {
			break
		}
		i -= size
	}
	return text[:i], text[i:]
}

// lastWordBounds returns the rune count of the trailing run of spaces and of
// the word before it.
func lastWordBounds(text string) (spaces, word int) {
	runes := []rune(text)
	i := len(runes)
	for i > 0 && runes[i-1] == ' ' {
		i--
		spaces++
	}
	for i > 0 && IsWordRune(runes[i-1]) {
		i--
		word++
	}
	return spaces, word
}

func isAutoSpacePunctuation(key string) bool {
	return utf8.RuneCountInString(key) == 1 && strings.ContainsAny(key, autoSpacePunctuation)
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
