package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ASCII logo for the application
const ASCIILogo = `
    ╔════════════════════════════════════════════════════════════════╗
    ║ ██╗    ██╗ █████╗ ██╗     ██╗      ██████╗ ██████╗  █████╗ ██████╗  ║
    ║ ██║    ██║██╔══██╗██║     ██║     ██╔════╝ ██╔══██╗██╔══██╗██╔══██╗ ║
    ║ ██║ █╗ ██║███████║██║     ██║     ██║  ███╗██████╔╝███████║██████╔╝ ║
    ║ ██║███╗██║██╔══██║██║     ██║     ██║   ██║██╔══██╗██╔══██║██╔══██╗ ║
    ║ ╚███╔███╔╝██║  ██║███████╗███████╗╚██████╔╝██║  ██║██║  ██║██████╔╝ ║
    ║  ╚══╝╚══╝ ╚═╝  ╚═╝╚══════╝╚══════╝ ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝  ║
    ║           WALLHAVEN • REDDIT • UNSPLASH • PIXABAY • PEXELS          ║
    ╚════════════════════════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

var (
	outMu sync.Mutex
	out   io.Writer = os.Stdout
)

// SetOutput redirects everything the Print helpers write
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out = w
}

// SetQuiet silences the Print helpers
func SetQuiet(quiet bool) {
	if quiet {
		SetOutput(io.Discard)
	} else {
		SetOutput(os.Stdout)
	}
}

// Output returns the writer the Print helpers use
func Output() io.Writer {
	outMu.Lock()
	defer outMu.Unlock()
	return out
}

func printf(format string, args ...interface{}) {
	fmt.Fprintf(Output(), format, args...)
}

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	printf("%s", Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf("%s\n", Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		printf("%s\n", Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printf("%s\n", Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf("%s\n", Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		printf("%s\n", Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printf("%s\n", Magenta(msg))
}

// PrintSearchHeader announces the start of a source
func PrintSearchHeader(source, query string) {
	rule := "============================================================"
	printf("\n%s\n%s\n%s\n\n", Dim(rule), Magenta(fmt.Sprintf("Searching %s for: %s", source, query)), Dim(rule))
}
