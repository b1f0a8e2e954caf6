// Package ui renders styled terminal output for the cardsync CLI.
package ui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

var (
	renderer = lipgloss.NewRenderer(os.Stdout)

	passStyle   lipgloss.Style
	warnStyle   lipgloss.Style
	failStyle   lipgloss.Style
	accentStyle lipgloss.Style
	mutedStyle  lipgloss.Style
	boldStyle   lipgloss.Style
)

func init() {
	if !ShouldUseColor(os.Stdout) {
		renderer.SetColorProfile(termenv.Ascii)
	}
	buildStyles()
}

func buildStyles() {
	passStyle = renderer.NewStyle().Foreground(ColorPass)
	warnStyle = renderer.NewStyle().Foreground(ColorWarn)
	failStyle = renderer.NewStyle().Foreground(ColorFail).Bold(true)
	accentStyle = renderer.NewStyle().Foreground(ColorAccent)
	mutedStyle = renderer.NewStyle().Foreground(ColorMuted)
	boldStyle = renderer.NewStyle().Bold(true)
}

// SetOutput redirects styled output to w and re-detects its color support.
func SetOutput(w io.Writer) {
	renderer = lipgloss.NewRenderer(w)
	if f, ok := w.(*os.File); !ok || !ShouldUseColor(f) {
		renderer.SetColorProfile(termenv.Ascii)
	}
	buildStyles()
}

// ShouldUseColor reports whether f should receive ANSI colors. NO_COLOR
// disables color and CLICOLOR_FORCE enables it regardless of the terminal.
func ShouldUseColor(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" && v != "0" {
		return true
	}
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// RenderPass renders success markers such as "✓".
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders warnings.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail renders errors.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent renders highlighted values.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted renders secondary text.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderBold renders headings.
func RenderBold(s string) string { return boldStyle.Render(s) }

// Table renders rows as left-aligned columns separated by two spaces. The
// first row is the header and is rendered bold.
func Table(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, 0)
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			pad := cell
			if i < len(row)-1 {
				pad += strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			}
			cells[i] = pad
		}
		line := strings.Join(cells, "  ")
		if r == 0 {
			line = RenderBold(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
