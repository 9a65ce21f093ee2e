// Package router keeps the dashboard's stack of screens.
package router

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/predtext/internal/ui/layout"
)

// Screen is one dashboard view.
type Screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the content area, excluding header and footer.
	View(width, height int) string
	Title() string
	KeyHints() []layout.KeyHint
}

// PushMsg opens a screen on top of the current one.
type PushMsg struct {
	Screen Screen
}

// PopMsg returns to the previous screen.
type PopMsg struct{}

// Push returns a command that opens s.
func Push(s Screen) tea.Cmd {
	return func() tea.Msg { return PushMsg{Screen: s} }
}

// Pop returns a command that closes the active screen.
func Pop() tea.Msg { return PopMsg{} }

// Router manages a stack of screens. Broadcast messages reach every screen
// on the stack; everything else goes to the active one.
type Router struct {
	stack []Screen
}

// New creates a Router with root at the bottom of the stack.
func New(root Screen) *Router {
	return &Router{stack: []Screen{root}}
}

// Active returns the top screen on the stack.
func (r *Router) Active() Screen {
	return r.stack[len(r.stack)-1]
}

// Depth returns the number of screens on the stack.
func (r *Router) Depth() int {
	return len(r.stack)
}

// Update handles navigation messages and forwards the rest.
func (r *Router) Update(msg tea.Msg, broadcast bool) tea.Cmd {
	switch msg := msg.(type) {
	case PushMsg:
		r.stack = append(r.stack, msg.Screen)
		return msg.Screen.Init()
	case PopMsg:
		if len(r.stack) > 1 {
			r.stack = r.stack[:len(r.stack)-1]
		}
		return nil
	}

	if !broadcast {
		updated, cmd := r.Active().Update(msg)
		r.stack[len(r.stack)-1] = updated
		return cmd
	}
	cmds := make([]tea.Cmd, 0, len(r.stack))
	for i, s := range r.stack {
		updated, cmd := s.Update(msg)
		r.stack[i] = updated
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// View renders the active screen.
func (r *Router) View(width, height int) string {
	return r.Active().View(width, height)
}
