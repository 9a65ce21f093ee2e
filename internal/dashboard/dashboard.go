// Package dashboard is the experimenter's terminal view of live sessions.
package dashboard

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/predtext/internal/master"
	"github.com/abhisek/predtext/internal/panopticon"
	"github.com/abhisek/predtext/internal/router"
	"github.com/abhisek/predtext/internal/ui/layout"
)

// Source supplies the sessions shown. *panopticon.Follower implements it.
type Source interface {
	Poll(ctx context.Context) (int, error)
	Overview() []panopticon.Row
	Snapshot(participant string) (master.Snapshot, bool)
}

// refreshMsg carries the result of one poll to every screen.
type refreshMsg struct {
	rows []panopticon.Row
	at   time.Time
	err  error
}

type tickMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	ctx      context.Context
	src      Source
	interval time.Duration
	router   *router.Router

	width  int
	height int
	status layout.Status
	err    error
}

// New creates a dashboard polling src every interval.
func New(ctx context.Context, src Source, interval time.Duration) Model {
	return Model{
		ctx:      ctx,
		src:      src,
		interval: interval,
		router:   router.New(newOverview(src)),
	}
}

func (m Model) Init() tea.Cmd {
	return m.poll()
}

func (m Model) poll() tea.Cmd {
	return func() tea.Msg {
		_, err := m.src.Poll(m.ctx)
		return refreshMsg{rows: m.src.Overview(), at: time.Now(), err: err}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.poll()

	case refreshMsg:
		m.err = msg.err
		m.status = layout.Status{
			Participants: len(msg.rows),
			LastPoll:     msg.at.Format("15:04:05"),
		}
		for _, r := range msg.rows {
			if r.Err != "" {
				m.status.Failing++
			}
		}
		return m, tea.Batch(m.router.Update(msg, true), m.tick())
	}

	return m, m.router.Update(msg, false)
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}
	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	header := layout.RenderHeader(active.Title(), m.status, m.width)
	hints := append(active.KeyHints(), layout.KeyHint{Key: "Ctrl+C", Description: "Quit"})
	footer := layout.RenderFooter(hints, m.width)

	content := m.router.View(m.width, layout.ContentHeight(header, footer, m.height))
	if m.err != nil {
		content = fmt.Sprintf("poll failed: %v\n\n%s", m.err, content)
	}
	v.SetContent(layout.RenderFrame(header, content, footer, m.width, m.height))
	return v
}

// Run starts the dashboard and blocks until the user quits or ctx ends.
func Run(ctx context.Context, src Source, interval time.Duration) error {
	p := tea.NewProgram(New(ctx, src, interval), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintln(os.Stderr, "Error running dashboard:", err)
		return err
	}
	return nil
}
