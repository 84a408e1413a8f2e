package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/michaelbrown/mentor/internal/sandbox"
)

// ExportMarkdown renders a script and, if present, its last run as a
// markdown document.
func ExportMarkdown(s *Script, run *sandbox.Result) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# %s\n\n", s.Title))
	b.WriteString(fmt.Sprintf("- **Script:** %s\n", s.ID))
	b.WriteString(fmt.Sprintf("- **Created:** %s\n", s.CreatedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("- **Updated:** %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05")))
	b.WriteString("\n---\n\n")

	b.WriteString(fmt.Sprintf("```%s\n%s\n```\n\n", s.Language, strings.TrimRight(s.Code, "\n")))

	if run == nil {
		return b.String()
	}

	b.WriteString(fmt.Sprintf("## Last run (%dms)\n\n", run.ExecutionTimeMs))
	if len(run.Output) > 0 {
		b.WriteString(fmt.Sprintf("### Output\n\n```\n%s\n```\n\n", strings.Join(run.Output, "\n")))
	}
	if len(run.Errors) > 0 {
		b.WriteString(fmt.Sprintf("### Errors\n\n```\n%s\n```\n\n", strings.Join(run.Errors, "\n")))
	}
	return b.String()
}

// ExportJSON renders a script and its last run as formatted JSON.
func ExportJSON(s *Script, run *sandbox.Result) ([]byte, error) {
	export := struct {
		Script  *Script         `json:"script"`
		LastRun *sandbox.Result `json:"last_run,omitempty"`
	}{
		Script:  s,
		LastRun: run,
	}
	return json.MarshalIndent(export, "", "  ")
}
