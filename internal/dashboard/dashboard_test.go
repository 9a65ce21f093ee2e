package dashboard

import (
	"context"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/predtext/internal/master"
	"github.com/abhisek/predtext/internal/panopticon"
	"github.com/abhisek/predtext/internal/router"
)

type fakeSource struct {
	polls int
	rows  []panopticon.Row
	snaps map[string]master.Snapshot
}

func (f *fakeSource) Poll(context.Context) (int, error) {
	f.polls++
	return 0, nil
}

func (f *fakeSource) Overview() []panopticon.Row { return f.rows }

func (f *fakeSource) Snapshot(id string) (master.Snapshot, bool) {
	s, ok := f.snaps[id]
	return s, ok
}

func testSource() *fakeSource {
	return &fakeSource{
		rows: []panopticon.Row{
			{Participant: "amy", ScreenNum: 3, ScreenName: "practice", TotalScreens: 14, CurExperiment: "practice", CurText: "hello wor"},
			{Participant: "bob", ScreenNum: 0, ScreenName: "consent", TotalScreens: 14},
			{Participant: "cat", ScreenNum: 5, ScreenName: "task-0", TotalScreens: 14, Err: "no active trial"},
		},
		snaps: map[string]master.Snapshot{
			"amy": {
				ParticipantID: "amy", ScreenNum: 3, ScreenName: "practice", CurExperiment: "practice",
				Trials:      []master.TrialSnapshot{{Name: "practice", CurText: "hello wor", ContextSequenceNum: 9}},
				ScreenTimes: []master.ScreenTime{{Num: 0, Timestamp: 1000}, {Num: 1, Timestamp: 4000}},
			},
		},
	}
}

func key(s string) tea.KeyPressMsg {
	switch s {
	case "enter":
		return tea.KeyPressMsg{Code: tea.KeyEnter}
	case "esc":
		return tea.KeyPressMsg{Code: tea.KeyEscape}
	case "down":
		return tea.KeyPressMsg{Code: tea.KeyDown}
	}
	r := []rune(s)[0]
	return tea.KeyPressMsg{Code: r, Text: s}
}

func refresh(src *fakeSource) refreshMsg {
	return refreshMsg{rows: src.Overview(), at: time.Now()}
}

func TestOverviewNavigatesAndOpensDetails(t *testing.T) {
	src := testSource()
	s := newOverview(src)
	s.Update(refresh(src))

	view := s.View(120, 20)
	assert.Contains(t, view, "amy")
	assert.Contains(t, view, "hello wor")
	assert.Contains(t, view, "no active trial")

	s.Update(key("down"))
	s.Update(key("k"))
	s.Update(key("j"))
	assert.Equal(t, 1, s.cursor)

	_, cmd := s.Update(key("enter"))
	require.NotNil(t, cmd)
	push, ok := cmd().(router.PushMsg)
	require.True(t, ok)
	assert.Equal(t, "bob", push.Screen.Title())
}

func TestOverviewFilter(t *testing.T) {
	src := testSource()
	s := newOverview(src)
	s.Update(refresh(src))

	s.filter.Model.SetValue("task")
	s.applyFilter()
	require.Len(t, s.visible, 1)
	assert.Equal(t, "cat", s.visible[0].Participant)
	assert.Zero(t, s.cursor)

	s.Update(key("esc"))
	assert.Len(t, s.visible, 3)
}

func TestOverviewQuit(t *testing.T) {
	s := newOverview(testSource())
	_, cmd := s.Update(key("q"))
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestParticipantView(t *testing.T) {
	p := newParticipant(testSource(), "amy")
	view := p.View(100, 30)
	assert.Contains(t, view, "practice")
	assert.Contains(t, view, "hello wor")
	assert.Contains(t, view, "3s")

	_, cmd := p.Update(key("esc"))
	require.NotNil(t, cmd)
	_, ok := cmd().(router.PopMsg)
	assert.True(t, ok)

	missing := newParticipant(testSource(), "zed")
	assert.Contains(t, missing.View(100, 30), "No session")
}

func TestModelRefreshUpdatesStatusAndPollsAgain(t *testing.T) {
	src := testSource()
	m := New(context.Background(), src, time.Second)

	msg := m.Init()()
	updated, cmd := m.Update(msg)
	assert.NotNil(t, cmd)
	assert.Equal(t, 1, src.polls)

	model := updated.(Model)
	assert.Equal(t, 3, model.status.Participants)
	assert.Equal(t, 1, model.status.Failing)

	updated, cmd = model.Update(tickMsg{})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 2, src.polls)

	updated, _ = updated.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	model = updated.(Model)
	assert.Equal(t, 120, model.width)
	assert.NotPanics(t, func() { model.View() })
	assert.Equal(t, "Participants", model.router.Active().Title())
}
