// Package style holds the brand colors and icons shared by the CLI output.
package style

import "github.com/charmbracelet/lipgloss"

// Brand Colors.
var (
	Iris   = lipgloss.Color("#8B5CF6")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Dot     = "●"
	Circle  = "○"
)

// Active renders a marker for the generation the active worker uses.
func Active(active bool) string {
	if active {
		return lipgloss.NewStyle().Foreground(Green).Render(Dot)
	}
	return lipgloss.NewStyle().Foreground(Slate).Render(Circle)
}
