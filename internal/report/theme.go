package report

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette shared by table output and the
// interactive view.
type Theme struct {
	TextPrimary lipgloss.Color // Main text
	TextDim     lipgloss.Color // Secondary/dim text
	Border      lipgloss.Color
	Accent      lipgloss.Color
	Success     lipgloss.Color
	Warning     lipgloss.Color
	Error       lipgloss.Color
}

// DefaultTheme is the Tokyo Night palette.
var DefaultTheme = Theme{
	TextPrimary: lipgloss.Color("#c0caf5"),
	TextDim:     lipgloss.Color("#565f89"),
	Border:      lipgloss.Color("#414868"),
	Accent:      lipgloss.Color("#7aa2f7"), // Blue
	Success:     lipgloss.Color("#9ece6a"), // Green
	Warning:     lipgloss.Color("#e0af68"), // Amber
	Error:       lipgloss.Color("#f7768e"), // Red/Pink
}

// Styles provides pre-configured lipgloss styles using the theme.
type Styles struct {
	Title   lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Dim     lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}

// NewStyles creates a new Styles instance from a Theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true),
		Key:     lipgloss.NewStyle().Foreground(t.TextDim),
		Value:   lipgloss.NewStyle().Foreground(t.TextPrimary),
		Dim:     lipgloss.NewStyle().Foreground(t.TextDim),
		Success: lipgloss.NewStyle().Foreground(t.Success),
		Warning: lipgloss.NewStyle().Foreground(t.Warning),
		Error:   lipgloss.NewStyle().Foreground(t.Error),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles using the default theme.
var DefaultStyles = NewStyles(DefaultTheme)
