// Package ui formats CLI output.
package ui

import (
	"os"
	"strings"
)

const (
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m" // Bright black, often appears as gray

	GreenInverse = "\033[7;32m"
	RedInverse   = "\033[7;31m"

	ResetColor = "\033[0m"
)

var statusColours = map[string]string{
	"active":     Green,
	"unverified": Yellow,
	"banned":     Red,
	"deleted":    Gray,
}

// Painter wraps text in ANSI colours when Enabled.
type Painter struct {
	Enabled bool
}

// NewPainter enables colour when f is a terminal and NO_COLOR is unset.
func NewPainter(f *os.File) Painter {
	if _, ok := os.LookupEnv("NO_COLOR"); ok || f == nil {
		return Painter{}
	}
	info, err := f.Stat()
	if err != nil {
		return Painter{}
	}
	return Painter{Enabled: info.Mode()&os.ModeCharDevice != 0}
}

func (p Painter) Paint(colour, s string) string {
	if !p.Enabled || colour == "" {
		return s
	}
	return colour + s + ResetColor
}

// Status colours a user status name.
func (p Painter) Status(name string) string {
	return p.Paint(statusColours[strings.ToLower(name)], name)
}

// Session renders a session state badge.
func (p Painter) Session(active bool) string {
	if active {
		return p.Paint(GreenInverse, " SIGNED IN ")
	}
	return p.Paint(RedInverse, " SIGNED OUT ")
}
