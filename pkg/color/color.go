// Package color provides ANSI terminal colors for CLI output, including
// stable per-teammate colors so interleaved event streams stay readable.
package color

import (
	"fmt"
	"hash/fnv"
	"os"
	"strings"
)

// ANSI style codes
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Italic = "\033[3m"
	Under  = "\033[4m"
)

// Foreground colors
const (
	Black   = "\033[30m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
)

// Bright foreground colors
const (
	BrightBlack   = "\033[90m"
	BrightRed     = "\033[91m"
	BrightGreen   = "\033[92m"
	BrightYellow  = "\033[93m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"
	BrightWhite   = "\033[97m"
)

// Color256 returns the escape for an xterm 256-color code.
func Color256(code int) string {
	return fmt.Sprintf("\033[38;5;%dm", code)
}

// Palette used to assign each teammate a stable color. Bright variants
// first so the common small-team case gets the most distinct hues.
var teammateColors = []string{
	BrightRed,
	BrightGreen,
	BrightYellow,
	BrightBlue,
	BrightMagenta,
	BrightCyan,
	Red,
	Green,
	Yellow,
	Blue,
	Magenta,
	Cyan,
}

// isColorSupported checks if the terminal supports color output.
func isColorSupported() bool {
	// https://no-color.org/
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}

	term := os.Getenv("TERM")
	if term == "" || term == "dumb" {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}

	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		return true
	}

	if strings.Contains(term, "color") ||
		strings.Contains(term, "ansi") ||
		strings.Contains(term, "xterm") ||
		strings.Contains(term, "screen") {
		return true
	}

	return false
}

// Colorize wraps text in the given color when the terminal supports it.
func Colorize(text, color string) string {
	if !isColorSupported() {
		return text
	}
	return color + text + Reset
}

// GetTeammateColor returns a consistent color for the given teammate.
// The same name always hashes to the same palette entry.
func GetTeammateColor(name string) string {
	if !isColorSupported() {
		return ""
	}

	h := fnv.New32a()
	h.Write([]byte(name))
	return teammateColors[int(h.Sum32())%len(teammateColors)]
}

// FormatTeammatePrefix renders "[name]" in the teammate's color.
func FormatTeammatePrefix(name string) string {
	color := GetTeammateColor(name)
	prefix := fmt.Sprintf("[%s]", name)

	if color == "" {
		return prefix
	}
	return Colorize(prefix, color)
}

// ColoredPrintf prints formatted text behind a colored teammate prefix.
func ColoredPrintf(name, format string, args ...interface{}) {
	fmt.Printf("%s %s", FormatTeammatePrefix(name), fmt.Sprintf(format, args...))
}

// ColoredPrintln prints text behind a colored teammate prefix.
func ColoredPrintln(name, text string) {
	fmt.Printf("%s %s\n", FormatTeammatePrefix(name), text)
}
