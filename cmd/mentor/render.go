package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/michaelbrown/mentor/internal/sandbox"
	"github.com/michaelbrown/mentor/internal/suggest"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func printResult(w io.Writer, res sandbox.Result) {
	for _, line := range res.Output {
		fmt.Fprintln(w, line)
	}
	for _, line := range res.Errors {
		fmt.Fprintf(w, "%s%s%s\n", colorRed, line, colorReset)
	}
	fmt.Fprintf(w, "%s(%dms)%s\n", colorGray, res.ExecutionTimeMs, colorReset)
}

func typeLabel(t suggest.Type) string {
	switch t {
	case suggest.TypeErrorFix:
		return colorRed + "fix" + colorReset
	case suggest.TypeImprovement:
		return colorYellow + "improve" + colorReset
	default:
		return colorCyan + "learn" + colorReset
	}
}

func printSuggestions(w io.Writer, list []suggest.Suggestion) {
	if len(list) == 0 {
		fmt.Fprintf(w, "%sNo suggestions.%s\n", colorGray, colorReset)
		return
	}
	for _, s := range list {
		fmt.Fprintf(w, "\n  [%s] %s%s%s\n", typeLabel(s.Type), colorGreen, s.Title, colorReset)
		fmt.Fprintf(w, "  %s\n", s.Description)
		if s.CodeExample != "" {
			for _, line := range strings.Split(s.CodeExample, "\n") {
				fmt.Fprintf(w, "  %s│ %s%s\n", colorGray, line, colorReset)
			}
		}
	}
	fmt.Fprintln(w)
}
