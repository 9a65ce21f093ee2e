package dashboard

import (
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/predtext/internal/panopticon"
	"github.com/abhisek/predtext/internal/router"
	"github.com/abhisek/predtext/internal/ui/components"
	"github.com/abhisek/predtext/internal/ui/layout"
	"github.com/abhisek/predtext/internal/ui/theme"
)

// overview lists every participant with their screen and current text.
type overview struct {
	src     Source
	rows    []panopticon.Row
	visible []panopticon.Row
	cursor  int
	offset  int
	filter  components.Filter
	now     func() time.Time
}

var _ router.Screen = (*overview)(nil)

func newOverview(src Source) *overview {
	return &overview{
		src:    src,
		filter: components.NewFilter("participant, screen or trial"),
		now:    time.Now,
	}
}

func (s *overview) Init() tea.Cmd { return nil }

func (s *overview) Title() string { return "Participants" }

func (s *overview) KeyHints() []layout.KeyHint {
	if s.filter.Focused() {
		return []layout.KeyHint{
			{Key: "Enter", Description: "Apply"},
			{Key: "Esc", Description: "Clear"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Details"},
		{Key: "/", Description: "Filter"},
		{Key: "q", Description: "Quit"},
	}
}

func (s *overview) Update(msg tea.Msg) (router.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		s.rows = msg.rows
		s.applyFilter()
		return s, nil

	case tea.KeyMsg:
		if s.filter.Focused() {
			switch msg.String() {
			case "enter":
				s.filter.Blur()
			case "esc":
				s.filter.Clear()
				s.applyFilter()
			default:
				var cmd tea.Cmd
				s.filter, cmd = s.filter.Update(msg)
				s.applyFilter()
				return s, cmd
			}
			return s, nil
		}

		switch msg.String() {
		case "up", "k":
			s.cursor = max(s.cursor-1, 0)
		case "down", "j":
			s.cursor = min(s.cursor+1, max(len(s.visible)-1, 0))
		case "/":
			return s, s.filter.Focus()
		case "esc":
			s.filter.Clear()
			s.applyFilter()
		case "enter":
			if s.cursor < len(s.visible) {
				return s, router.Push(newParticipant(s.src, s.visible[s.cursor].Participant))
			}
		case "q":
			return s, tea.Quit
		}
	}
	return s, nil
}

func (s *overview) applyFilter() {
	s.visible = s.visible[:0]
	for _, r := range s.rows {
		if s.filter.Match(r.Participant + " " + r.ScreenName + " " + r.CurExperiment) {
			s.visible = append(s.visible, r)
		}
	}
	s.cursor = min(s.cursor, max(len(s.visible)-1, 0))
}

func (s *overview) View(width, height int) string {
	var lines []string
	if s.filter.Focused() || s.filter.Model.Value() != "" {
		lines = append(lines, "  "+s.filter.View(), "")
	}
	if len(s.rows) == 0 {
		return strings.Join(append(lines, theme.Hint.Render("  Waiting for events…")), "\n")
	}

	lines = append(lines, theme.Dim.Render(fmt.Sprintf("  %-18s %-22s %-16s %-9s %s",
		"PARTICIPANT", "PROGRESS", "SCREEN", "IDLE", "TEXT")))

	rowsHeight := max(height-len(lines), 1)
	if s.cursor < s.offset {
		s.offset = s.cursor
	}
	if s.cursor >= s.offset+rowsHeight {
		s.offset = s.cursor - rowsHeight + 1
	}

	for i := s.offset; i < len(s.visible) && i < s.offset+rowsHeight; i++ {
		lines = append(lines, s.renderRow(s.visible[i], i == s.cursor, width))
	}
	return strings.Join(lines, "\n")
}

func (s *overview) renderRow(r panopticon.Row, selected bool, width int) string {
	marker, name := "  ", theme.Unselected.Render(fmt.Sprintf("%-18s", clip(r.Participant, 18)))
	if selected {
		marker, name = theme.Selected.Render("▸ "), theme.Selected.Render(fmt.Sprintf("%-18s", clip(r.Participant, 18)))
	}

	progress := layout.ProgressBar(r.ScreenNum+1, r.TotalScreens, 22)
	screen := theme.Body.Render(fmt.Sprintf("%-16s", clip(r.ScreenName, 16)))
	idle := theme.Dim.Render(fmt.Sprintf("%-9s", s.idle(r.LastEventTimestamp)))

	textWidth := max(width-2-18-1-22-1-16-1-9-1, 8)
	text := theme.Typed.Render(clip(r.CurText, textWidth))
	if r.Err != "" {
		text = theme.Failed.Render(clip("✗ "+r.Err, textWidth))
	}
	return marker + name + " " + progress + " " + screen + " " + idle + " " + text
}

func (s *overview) idle(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return s.now().Sub(time.UnixMilli(ts)).Truncate(time.Second).String()
}

// clip shortens s to n runes, keeping the end of typed text visible.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}
