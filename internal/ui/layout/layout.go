package layout

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/predtext/internal/ui/theme"
)

const (
	MinWidth  = 80
	MinHeight = 20
)

// KeyHint represents a key binding hint shown in the footer.
type KeyHint struct {
	Key         string
	Description string
}

// IsTooSmall returns true if the terminal is below minimum size.
func IsTooSmall(width, height int) bool {
	return width < MinWidth || height < MinHeight
}

// RenderMinSizeMessage renders the "terminal too small" message.
func RenderMinSizeMessage(width, height int) string {
	return lipgloss.NewStyle().
		Align(lipgloss.Center).
		Foreground(theme.Text).
		Width(width).
		Height(height).
		Render(fmt.Sprintf(
			"Terminal too small\n\nResize to at least %d x %d\n\nCurrent: %d x %d",
			MinWidth, MinHeight, width, height,
		))
}

// Status is the header's right-hand summary.
type Status struct {
	Participants int
	Failing      int
	LastPoll     string
}

// RenderHeader renders the application header bar.
func RenderHeader(title string, st Status, width int) string {
	left := theme.Title.Render("  predtext")
	center := theme.Body.Render(title)

	right := theme.Dim.Render(fmt.Sprintf("%d participants", st.Participants))
	if st.Failing > 0 {
		right += theme.Dim.Render("  ") + theme.Failed.Render(fmt.Sprintf("%d failing", st.Failing))
	}
	if st.LastPoll != "" {
		right += theme.Dim.Render("  ⟳ " + st.LastPoll)
	}

	leftLen := lipgloss.Width(left)
	centerLen := lipgloss.Width(center)
	rightLen := lipgloss.Width(right)

	innerWidth := max(width-4, 0)
	leftGap := max((innerWidth-centerLen)/2-leftLen, 1)
	rightGap := max(innerWidth-leftLen-leftGap-centerLen-rightLen, 1)

	content := left + strings.Repeat(" ", leftGap) + center + strings.Repeat(" ", rightGap) + right
	return bar().Width(width).Render(content)
}

// RenderFooter renders the footer with key hints.
func RenderFooter(hints []KeyHint, width int) string {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, theme.Body.Bold(true).Render(h.Key)+" "+theme.Dim.Render(h.Description))
	}
	return bar().Width(width).Render("  " + strings.Join(parts, "   "))
}

func bar() lipgloss.Style {
	return lipgloss.NewStyle().
		Background(theme.BgCard).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border)
}

// RenderFrame composes the full frame: header + content + footer.
func RenderFrame(header, content, footer string, width, height int) string {
	contentHeight := max(height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	styled := lipgloss.NewStyle().
		Width(width).
		Height(contentHeight).
		Render(content)
	return header + "\n" + styled + "\n" + footer
}

// ContentHeight returns the rows left for content between header and footer.
func ContentHeight(header, footer string, height int) int {
	return max(height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
}

// ProgressBar renders done of total as a bar of the given width followed by
// the count.
func ProgressBar(done, total, width int) string {
	label := fmt.Sprintf(" %d/%d", done, total)
	barWidth := max(width-len(label), 4)
	filled := 0
	if total > 0 {
		filled = min(max(barWidth*done/total, 0), barWidth)
	}
	return theme.ProgressFilled.Render(strings.Repeat(" ", filled)) +
		theme.ProgressEmpty.Render(strings.Repeat(" ", barWidth-filled)) +
		theme.Dim.Render(label)
}
