package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"research-scheduler/internal/service"
)

var (
	colorGreen  = lipgloss.Color("#8ec07c")
	colorYellow = lipgloss.Color("#fabd2f")
	colorRed    = lipgloss.Color("#fb4934")
	colorOrange = lipgloss.Color("#fe8019")
	colorDim    = lipgloss.Color("#928374")
)

// palette renders text with or without colours.
type palette struct {
	color bool
}

func (p palette) style(c lipgloss.Color) lipgloss.Style {
	if !p.color {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(c)
}

func (p palette) urgency(u service.Urgency, text string) string {
	switch u {
	case service.UrgencyOverdue:
		return p.style(colorRed).Bold(p.color).Render(text)
	case service.UrgencyUrgent:
		return p.style(colorOrange).Render(text)
	case service.UrgencyUpcoming:
		return p.style(colorYellow).Render(text)
	default:
		return p.style(colorGreen).Render(text)
	}
}

func (p palette) dim(text string) string {
	return p.style(colorDim).Render(text)
}

// header renders an upper-case title with an underline.
func (p palette) header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len([]rune(upper)))
	return fmt.Sprintf("%s\n%s", p.style(colorOrange).Bold(p.color).Render(upper), p.dim(line))
}
