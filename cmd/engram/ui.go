package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// initColor disables colored output when the user passed --no-color, when
// NO_COLOR is set, or when stdout isn't a terminal (e.g. piped into a log
// file or another program), matching fatih/color's own convention for
// detecting a non-interactive sink.
func initColor(noColorFlag bool) {
	if noColorFlag || os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

var (
	goodColor = color.New(color.FgGreen)
	badColor  = color.New(color.FgRed, color.Bold)
	boldColor = color.New(color.Bold)
)

func colorGood(s string) string { return goodColor.Sprint(s) }
func colorBad(s string) string  { return badColor.Sprint(s) }
func colorBold(s string) string { return boldColor.Sprint(s) }
