package components

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
)

// Filter is a one-line text box that narrows a list by substring.
type Filter struct {
	Model textinput.Model
}

// NewFilter creates an unfocused filter.
func NewFilter(placeholder string) Filter {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "/ "
	ti.CharLimit = 64
	return Filter{Model: ti}
}

// Focus starts capturing keys.
func (f *Filter) Focus() tea.Cmd {
	return f.Model.Focus()
}

// Blur stops capturing keys and keeps the text.
func (f *Filter) Blur() {
	f.Model.Blur()
}

// Clear empties and blurs the filter.
func (f *Filter) Clear() {
	f.Model.SetValue("")
	f.Model.Blur()
}

// Focused reports whether the filter is capturing keys.
func (f Filter) Focused() bool {
	return f.Model.Focused()
}

// Update handles messages.
func (f Filter) Update(msg tea.Msg) (Filter, tea.Cmd) {
	var cmd tea.Cmd
	f.Model, cmd = f.Model.Update(msg)
	return f, cmd
}

// View renders the text box.
func (f Filter) View() string {
	return f.Model.View()
}

// Match reports whether s contains the filter text, ignoring case. An empty
// filter matches everything.
func (f Filter) Match(s string) bool {
	q := strings.TrimSpace(f.Model.Value())
	return q == "" || strings.Contains(strings.ToLower(s), strings.ToLower(q))
}
