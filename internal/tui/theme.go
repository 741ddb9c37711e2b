package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	TextPrimary lipgloss.AdaptiveColor
	TextMuted   lipgloss.AdaptiveColor
	Accent      lipgloss.AdaptiveColor
	Error       lipgloss.AdaptiveColor
	Border      lipgloss.AdaptiveColor

	TopBar     lipgloss.Style
	Footer     lipgloss.Style
	InputBox   lipgloss.Style
	InputBoxF  lipgloss.Style
	Spinner    lipgloss.Style
	RoleYou    lipgloss.Style
	RoleAI     lipgloss.Style
	RoleSys    lipgloss.Style
	CodeHint   lipgloss.Style
	StatusBusy lipgloss.Style
}

func NewTheme() Theme {
	if os.Getenv("CODECHAT_NO_COLOR") == "1" {
		return newNoColorTheme()
	}

	t := Theme{
		TextPrimary: lipgloss.AdaptiveColor{Light: "#2E2E2E", Dark: "#E8E8E8"},
		TextMuted:   lipgloss.AdaptiveColor{Light: "#7A7A7A", Dark: "#9A9A9A"},
		Accent:      lipgloss.AdaptiveColor{Light: "#0F6FFF", Dark: "#6CA0FF"},
		Error:       lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF6B5E"},
		Border:      lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#3A3A3A"},
	}

	t.TopBar = lipgloss.NewStyle().Bold(true).Foreground(t.Accent).Padding(0, 1)
	t.Footer = lipgloss.NewStyle().Foreground(t.TextMuted).Padding(0, 1)
	t.InputBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Border).Padding(0, 1)
	t.InputBoxF = t.InputBox.BorderForeground(t.Accent)
	t.Spinner = lipgloss.NewStyle().Foreground(t.Accent)
	t.RoleYou = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.RoleAI = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary)
	t.RoleSys = lipgloss.NewStyle().Foreground(t.TextMuted).Italic(true)
	t.CodeHint = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.StatusBusy = lipgloss.NewStyle().Foreground(t.Accent)
	return t
}

func newNoColorTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		TopBar:     plain.Bold(true),
		Footer:     plain,
		InputBox:   plain.Border(lipgloss.NormalBorder()),
		InputBoxF:  plain.Border(lipgloss.NormalBorder()),
		Spinner:    plain,
		RoleYou:    plain.Bold(true),
		RoleAI:     plain.Bold(true),
		RoleSys:    plain,
		CodeHint:   plain,
		StatusBusy: plain,
	}
}
