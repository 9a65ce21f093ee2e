package router

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"

	"github.com/abhisek/predtext/internal/ui/layout"
)

type tickMsg struct{}

// stubScreen counts what it receives.
type stubScreen struct {
	title   string
	initRan bool
	ticks   int
}

func (s *stubScreen) Init() tea.Cmd {
	s.initRan = true
	return nil
}

func (s *stubScreen) Update(msg tea.Msg) (Screen, tea.Cmd) {
	if _, ok := msg.(tickMsg); ok {
		s.ticks++
	}
	return s, nil
}
func (s *stubScreen) View(int, int) string       { return s.title }
func (s *stubScreen) Title() string              { return s.title }
func (s *stubScreen) KeyHints() []layout.KeyHint { return nil }

func TestPushAndPop(t *testing.T) {
	root := &stubScreen{title: "overview"}
	r := New(root)

	detail := &stubScreen{title: "detail"}
	r.Update(PushMsg{Screen: detail}, false)
	assert.Equal(t, 2, r.Depth())
	assert.Equal(t, "detail", r.Active().Title())
	assert.True(t, detail.initRan)

	r.Update(Pop(), false)
	assert.Equal(t, 1, r.Depth())
	assert.Equal(t, "overview", r.View(80, 20))
}

func TestPopKeepsRoot(t *testing.T) {
	r := New(&stubScreen{title: "overview"})
	r.Update(PopMsg{}, false)
	r.Update(PopMsg{}, false)
	assert.Equal(t, 1, r.Depth())
	assert.Equal(t, "overview", r.Active().Title())
}

func TestBroadcastReachesWholeStack(t *testing.T) {
	root := &stubScreen{title: "overview"}
	detail := &stubScreen{title: "detail"}
	r := New(root)
	r.Update(PushMsg{Screen: detail}, false)

	r.Update(tickMsg{}, true)
	r.Update(tickMsg{}, false)

	assert.Equal(t, 1, root.ticks)
	assert.Equal(t, 2, detail.ticks)
}

func TestPushCommand(t *testing.T) {
	s := &stubScreen{title: "detail"}
	msg := Push(s)()
	push, ok := msg.(PushMsg)
	assert.True(t, ok)
	assert.Same(t, s, push.Screen)
}
