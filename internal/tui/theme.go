package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Theme groups the dashboard's lipgloss styles. Colors adapt to light and
// dark terminals; OLLAMADASH_NO_COLOR=1 drops color entirely.
type Theme struct {
	TextPrimary lipgloss.AdaptiveColor
	TextMuted   lipgloss.AdaptiveColor
	Accent      lipgloss.AdaptiveColor
	Success     lipgloss.AdaptiveColor
	Warn        lipgloss.AdaptiveColor
	Error       lipgloss.AdaptiveColor
	Border      lipgloss.AdaptiveColor
	BorderHi    lipgloss.AdaptiveColor

	TopBar      lipgloss.Style
	TopBarTitle lipgloss.Style
	TopBarMeta  lipgloss.Style
	Footer      lipgloss.Style

	Pane        lipgloss.Style
	PaneFocused lipgloss.Style
	PaneTitle   lipgloss.Style

	TableHeader lipgloss.Style
	RowSelected lipgloss.Style
	RowNormal   lipgloss.Style

	BadgeRunning lipgloss.Style
	BadgeStopped lipgloss.Style
	Progress     lipgloss.Style

	RoleYou  lipgloss.Style
	RoleAI   lipgloss.Style
	RoleSys  lipgloss.Style
	ErrorBar lipgloss.Style
	Spinner  lipgloss.Style

	InputBox  lipgloss.Style
	InputBoxF lipgloss.Style
}

func NewTheme() Theme {
	if os.Getenv("OLLAMADASH_NO_COLOR") == "1" {
		return newNoColorTheme()
	}

	t := Theme{
		TextPrimary: lipgloss.AdaptiveColor{Light: "#1d2433", Dark: "#f2f2f2"},
		TextMuted:   lipgloss.AdaptiveColor{Light: "#4a5568", Dark: "#c7c7c7"},
		Accent:      lipgloss.AdaptiveColor{Light: "#3b5bdb", Dark: "#8ab4ff"},
		Success:     lipgloss.AdaptiveColor{Light: "#2b8a3e", Dark: "#69db7c"},
		Warn:        lipgloss.AdaptiveColor{Light: "#e67700", Dark: "#ffd43b"},
		Error:       lipgloss.AdaptiveColor{Light: "#c92a2a", Dark: "#ff8787"},
		Border:      lipgloss.AdaptiveColor{Light: "#ced4da", Dark: "#495057"},
		BorderHi:    lipgloss.AdaptiveColor{Light: "#3b5bdb", Dark: "#8ab4ff"},
	}
	return t.build()
}

func newNoColorTheme() Theme {
	t := Theme{
		TextPrimary: lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"},
		TextMuted:   lipgloss.AdaptiveColor{Light: "#333333", Dark: "#dddddd"},
		Border:      lipgloss.AdaptiveColor{Light: "#555555", Dark: "#777777"},
		BorderHi:    lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"},
	}
	t.Accent, t.Success, t.Warn, t.Error = t.TextPrimary, t.TextPrimary, t.TextPrimary, t.TextPrimary
	return t.build()
}

func (t Theme) build() Theme {
	t.TopBar = lipgloss.NewStyle().Foreground(t.TextPrimary)
	t.TopBarTitle = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.TopBarMeta = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.Footer = lipgloss.NewStyle().Foreground(t.TextMuted)

	t.Pane = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Border).Padding(0, 1)
	t.PaneFocused = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.BorderHi).Padding(0, 1)
	t.PaneTitle = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary)

	t.TableHeader = lipgloss.NewStyle().Bold(true).Foreground(t.TextMuted)
	t.RowSelected = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.RowNormal = lipgloss.NewStyle().Foreground(t.TextPrimary)

	t.BadgeRunning = lipgloss.NewStyle().Bold(true).Foreground(t.Success)
	t.BadgeStopped = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.Progress = lipgloss.NewStyle().Foreground(t.Warn)

	t.RoleYou = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.RoleAI = lipgloss.NewStyle().Bold(true).Foreground(t.Success)
	t.RoleSys = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.ErrorBar = lipgloss.NewStyle().Bold(true).Foreground(t.Error)
	t.Spinner = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)

	t.InputBox = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.Border).Padding(0, 1)
	t.InputBoxF = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.BorderHi).Padding(0, 1)
	return t
}
