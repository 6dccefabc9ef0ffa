package ui

import (
	"os"

	"golang.org/x/term"
)

// ANSI color and style codes for CLI output. Disable blanks them.
var (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		Disable()
	}
}

// Disable turns every color code into the empty string.
func Disable() {
	for _, c := range []*string{&ColorReset, &ColorBold, &ColorDim, &ColorCyan, &ColorGreen, &ColorYellow, &ColorWhite, &ColorRed} {
		*c = ""
	}
}

func Bold(s string) string {
	return ColorBold + s + ColorReset
}

func Success(s string) string {
	return ColorGreen + s + ColorReset
}

func Info(s string) string {
	return ColorDim + ColorYellow + s + ColorReset
}

func Error(s string) string {
	return ColorRed + s + ColorReset
}
