package tui

import "github.com/charmbracelet/lipgloss"

const columnWidth = 26

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	columnStyle = lipgloss.NewStyle().
			Width(columnWidth).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4B5563")).
			Padding(0, 1)

	focusedColumnStyle = columnStyle.BorderForeground(lipgloss.Color("#E5E7EB"))

	ghostColumnStyle = columnStyle.
				BorderStyle(lipgloss.DoubleBorder()).
				BorderForeground(lipgloss.Color("#A78BFA"))

	cardStyle         = lipgloss.NewStyle().Padding(0, 1)
	selectedCardStyle = cardStyle.Reverse(true)
	draggedCardStyle  = cardStyle.Faint(true).Italic(true)

	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("#F59E0B")).
			Padding(1, 2)

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#111827")).
			Background(lipgloss.Color("#FBBF24")).
			Padding(0, 1)
)

// stageHeader colorea la cabecera con el color del registro.
func stageHeader(label, color string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color)).Render(label)
}
