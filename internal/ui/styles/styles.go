package styles

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Symbols - Unicode with ASCII fallbacks
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolArrow   = "→"
)

// Colors
var (
	Success = lipgloss.Color("42")
	Error   = lipgloss.Color("196")
	Warning = lipgloss.Color("214")
	Muted   = lipgloss.Color("245")

	ColorHash   = lipgloss.Color("178")
	ColorBranch = lipgloss.Color("39")
)

// Semantic styles - use these instead of raw colors
var (
	Bold         = lipgloss.NewStyle().Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(Success)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	HashStyle    = lipgloss.NewStyle().Foreground(ColorHash)
	BranchStyle  = lipgloss.NewStyle().Foreground(ColorBranch).Bold(true)
)

// NoColor checks if colors should be disabled: explicit opt-out or
// stdout is not a terminal.
func NoColor() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("SQLGIT_NO_COLOR") != "" {
		return true
	}
	return !term.IsTerminal(int(os.Stdout.Fd()))
}

func render(style lipgloss.Style, msg string) string {
	if NoColor() {
		return msg
	}
	return style.Render(msg)
}

// SuccessMsg formats a success message with symbol
func SuccessMsg(msg string) string {
	return render(SuccessStyle, SymbolSuccess+" "+msg)
}

// ErrorMsg formats an error message with symbol
func ErrorMsg(msg string) string {
	return render(ErrorStyle, SymbolError+" "+msg)
}

// WarningMsg formats a warning message with symbol
func WarningMsg(msg string) string {
	return render(WarningStyle, SymbolWarning+" "+msg)
}

// Hash renders an abbreviated object ID
func Hash(hex string) string {
	if len(hex) > 8 {
		hex = hex[:8]
	}
	return render(HashStyle, hex)
}

// Branch renders a ref name
func Branch(name string) string {
	return render(BranchStyle, name)
}

// Dim renders de-emphasized text
func Dim(msg string) string {
	return render(MutedStyle, msg)
}
