package dashboard

import (
	"fmt"
	"slices"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/predtext/internal/master"
	"github.com/abhisek/predtext/internal/router"
	"github.com/abhisek/predtext/internal/ui/layout"
	"github.com/abhisek/predtext/internal/ui/theme"
)

// participant shows one session in detail.
type participant struct {
	src   Source
	id    string
	snap  master.Snapshot
	found bool
}

var _ router.Screen = (*participant)(nil)

func newParticipant(src Source, id string) *participant {
	p := &participant{src: src, id: id}
	p.reload()
	return p
}

func (p *participant) reload() {
	p.snap, p.found = p.src.Snapshot(p.id)
}

func (p *participant) Init() tea.Cmd { return nil }

func (p *participant) Title() string { return p.id }

func (p *participant) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{{Key: "Esc", Description: "Back"}}
}

func (p *participant) Update(msg tea.Msg) (router.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		p.reload()
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q", "backspace":
			return p, router.Pop
		}
	}
	return p, nil
}

func (p *participant) View(width, height int) string {
	if !p.found {
		return theme.Hint.Render("  No session for " + p.id)
	}
	s := p.snap

	var b strings.Builder
	field := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", theme.Dim.Render(fmt.Sprintf("%-14s", label)), theme.Body.Render(value))
	}
	field("Screen", fmt.Sprintf("%d %s", s.ScreenNum, s.ScreenName))
	field("Trial", orDash(s.CurExperiment))
	field("Events", fmt.Sprint(s.EventsHandled))
	if s.LastEventTimestamp > 0 {
		field("Last event", time.UnixMilli(s.LastEventTimestamp).Format("15:04:05.000"))
	}

	if len(s.ControlledInputs) > 0 {
		b.WriteString("\n" + theme.Title.Render("  Inputs") + "\n")
		names := make([]string, 0, len(s.ControlledInputs))
		for name := range s.ControlledInputs {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			field(name, clip(string(s.ControlledInputs[name]), max(width-20, 10)))
		}
	}

	if len(s.Trials) > 0 {
		b.WriteString("\n" + theme.Title.Render("  Trials") + "\n")
		for _, t := range s.Trials {
			name := t.Name
			if name == s.CurExperiment {
				name = theme.Selected.Render(name)
			}
			fmt.Fprintf(&b, "  %s  ctx %d  pending %v\n", name, t.ContextSequenceNum, t.OutstandingRequests)
			fmt.Fprintf(&b, "    %s\n", theme.Typed.Render(clip(t.CurText, max(width-6, 10))))
		}
	}

	if len(s.ScreenTimes) > 1 {
		b.WriteString("\n" + theme.Title.Render("  Time on screen") + "\n")
		for i := 1; i < len(s.ScreenTimes); i++ {
			prev, cur := s.ScreenTimes[i-1], s.ScreenTimes[i]
			d := time.Duration(cur.Timestamp-prev.Timestamp) * time.Millisecond
			field(fmt.Sprintf("screen %d", prev.Num), d.Truncate(100*time.Millisecond).String())
		}
	}

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
