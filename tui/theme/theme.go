// Package theme holds the lipgloss styles shared by the homed CLI and the
// terminal dashboard.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/homed/config"
)

const defaultThemeName = "dusk"

// --- Dusk palette (adaptive light/dark) ---
const (
	duskDarkGreen   = "#98BB6C"
	duskDarkYellow  = "#FF9E3B"
	duskDarkRed     = "#FF5D62"
	duskDarkOrange  = "#FFA066"
	duskDarkCyan    = "#7E9CD8"
	duskDarkBlue    = "#7FB4CA"
	duskDarkViolet  = "#957FB8"
	duskDarkText    = "#DCD7BA"
	duskDarkMuted   = "#727169"
	duskDarkBorder  = "#363646"
	duskLightGreen  = "#4E7C5A"
	duskLightYellow = "#A68A64"
	duskLightRed    = "#C34043"
	duskLightOrange = "#CC6B4E"
	duskLightCyan   = "#5B8BBE"
	duskLightBlue   = "#4F7CAC"
	duskLightViolet = "#674D7A"
	duskLightText   = "#2B2F42"
	duskLightMuted  = "#6C7086"
	duskLightBorder = "#B5BDC5"
)

// Colors is the palette a theme is built from.
type Colors struct {
	Green  lipgloss.TerminalColor
	Yellow lipgloss.TerminalColor
	Red    lipgloss.TerminalColor
	Orange lipgloss.TerminalColor
	Cyan   lipgloss.TerminalColor
	Blue   lipgloss.TerminalColor
	Violet lipgloss.TerminalColor
	Text   lipgloss.TerminalColor
	Muted  lipgloss.TerminalColor
	Border lipgloss.TerminalColor
}

// Theme holds the pre-configured styles.
type Theme struct {
	Name   string
	Colors Colors

	Header lipgloss.Style
	Title  lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Bold   lipgloss.Style
	Normal lipgloss.Style
	Muted  lipgloss.Style
	Italic lipgloss.Style

	// Card frames one dashboard panel; Focused is the selected one.
	Card    lipgloss.Style
	Focused lipgloss.Style

	// On and Off render a device's power state.
	On  lipgloss.Style
	Off lipgloss.Style

	Highlight lipgloss.Style
	Accent    lipgloss.Style
}

var themeRegistry = map[string]func() Colors{
	"dusk":     newDuskColors,
	"terminal": newTerminalColors,
}

// DefaultTheme is the theme selected by HOMED_THEME or the "tui" config
// section.
var DefaultTheme = NewThemeWithName(getThemeName())

// NewThemeWithName builds the named theme. Unknown names fall back to the
// default palette.
func NewThemeWithName(name string) *Theme {
	key := normalizeThemeName(name)
	build, ok := themeRegistry[key]
	if !ok {
		key = defaultThemeName
		build = themeRegistry[key]
	}
	return newThemeFromColors(key, build())
}

// RenderStatus renders text with the appropriate status style.
func RenderStatus(status, text string) string {
	switch status {
	case "success":
		return DefaultTheme.Success.Render(text)
	case "error":
		return DefaultTheme.Error.Render(text)
	case "warning":
		return DefaultTheme.Warning.Render(text)
	case "info":
		return DefaultTheme.Info.Render(text)
	default:
		return text
	}
}

func newThemeFromColors(name string, c Colors) *Theme {
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c.Border).
		Padding(0, 1)

	return &Theme{
		Name:   name,
		Colors: c,

		Header: lipgloss.NewStyle().Bold(true).Foreground(c.Orange).MarginBottom(1),
		Title:  lipgloss.NewStyle().Bold(true).Underline(true),

		Success: lipgloss.NewStyle().Foreground(c.Green).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(c.Red).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(c.Yellow).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(c.Cyan).Bold(true),

		Bold:   lipgloss.NewStyle().Bold(true),
		Normal: lipgloss.NewStyle(),
		Muted:  lipgloss.NewStyle().Foreground(c.Muted),
		Italic: lipgloss.NewStyle().Italic(true),

		Card:    card,
		Focused: card.BorderForeground(c.Violet),

		On:  lipgloss.NewStyle().Foreground(c.Green),
		Off: lipgloss.NewStyle().Foreground(c.Muted),

		Highlight: lipgloss.NewStyle().Foreground(c.Orange).Bold(true),
		Accent:    lipgloss.NewStyle().Foreground(c.Violet).Bold(true),
	}
}

func normalizeThemeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, " ", "-")
	return strings.ReplaceAll(normalized, "_", "-")
}

func getThemeName() string {
	if theme := normalizeThemeName(os.Getenv("HOMED_THEME")); theme != "" {
		return theme
	}

	cfg, err := config.LoadDefault()
	if err != nil || cfg == nil {
		return defaultThemeName
	}

	var tuiCfg struct {
		Theme string `yaml:"theme"`
	}
	if err := cfg.UnmarshalExtension("tui", &tuiCfg); err == nil {
		if theme := normalizeThemeName(tuiCfg.Theme); theme != "" {
			return theme
		}
	}
	return defaultThemeName
}

func newDuskColors() Colors {
	return Colors{
		Green:  lipgloss.AdaptiveColor{Light: duskLightGreen, Dark: duskDarkGreen},
		Yellow: lipgloss.AdaptiveColor{Light: duskLightYellow, Dark: duskDarkYellow},
		Red:    lipgloss.AdaptiveColor{Light: duskLightRed, Dark: duskDarkRed},
		Orange: lipgloss.AdaptiveColor{Light: duskLightOrange, Dark: duskDarkOrange},
		Cyan:   lipgloss.AdaptiveColor{Light: duskLightCyan, Dark: duskDarkCyan},
		Blue:   lipgloss.AdaptiveColor{Light: duskLightBlue, Dark: duskDarkBlue},
		Violet: lipgloss.AdaptiveColor{Light: duskLightViolet, Dark: duskDarkViolet},
		Text:   lipgloss.AdaptiveColor{Light: duskLightText, Dark: duskDarkText},
		Muted:  lipgloss.AdaptiveColor{Light: duskLightMuted, Dark: duskDarkMuted},
		Border: lipgloss.AdaptiveColor{Light: duskLightBorder, Dark: duskDarkBorder},
	}
}

func newTerminalColors() Colors {
	return Colors{
		Green:  lipgloss.Color("2"),
		Yellow: lipgloss.Color("3"),
		Red:    lipgloss.Color("1"),
		Orange: lipgloss.Color("208"),
		Cyan:   lipgloss.Color("6"),
		Blue:   lipgloss.Color("4"),
		Violet: lipgloss.Color("5"),
		Text:   lipgloss.Color("7"),
		Muted:  lipgloss.Color("8"),
		Border: lipgloss.Color("8"),
	}
}
