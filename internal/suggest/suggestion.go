// Package suggest produces short, hint-only guidance for a learner's script
// and its errors, either from a remote model or from a fixed rule table.
package suggest

import (
	"context"
	"fmt"
	"strings"
)

// MaxSuggestions caps every list this package returns.
const MaxSuggestions = 4

// Type classifies a suggestion.
type Type string

const (
	TypeErrorFix    Type = "error-fix"
	TypeImprovement Type = "improvement"
	TypeLearning    Type = "learning"
)

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case TypeErrorFix, TypeImprovement, TypeLearning:
		return true
	}
	return false
}

// Suggestion is one piece of guidance. CodeExample, when present, is a
// partial hint and never a full solution.
type Suggestion struct {
	Type        Type   `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CodeExample string `json:"codeExample,omitempty"`
}

// Source produces suggestions for one script and its error list.
type Source interface {
	Suggest(ctx context.Context, script string, errs []string) []Suggestion
}

// Policy chooses which source a cycle uses.
type Policy string

const (
	PolicyAuto      Policy = "auto"      // remote when configured, heuristic otherwise
	PolicyRemote    Policy = "remote"    // always remote; heuristic only if none is configured
	PolicyHeuristic Policy = "heuristic" // never touch the network
)

// ParsePolicy validates a policy name. The empty string means auto.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyAuto, nil
	case PolicyAuto, PolicyRemote, PolicyHeuristic:
		return p, nil
	default:
		return "", fmt.Errorf("unknown suggestion policy %q (want auto, remote or heuristic)", s)
	}
}

// Cap truncates list to MaxSuggestions, returning a copy.
func Cap(list []Suggestion) []Suggestion {
	if len(list) > MaxSuggestions {
		list = list[:MaxSuggestions]
	}
	return append([]Suggestion{}, list...)
}

// normalize cleans up suggestions from an untrusted source: unknown types
// become learning, entries with neither title nor description are dropped.
func normalize(list []Suggestion) []Suggestion {
	out := make([]Suggestion, 0, len(list))
	for _, s := range list {
		s.Title = strings.TrimSpace(s.Title)
		s.Description = strings.TrimSpace(s.Description)
		if s.Title == "" && s.Description == "" {
			continue
		}
		if !s.Type.Valid() {
			s.Type = TypeLearning
		}
		out = append(out, s)
	}
	return Cap(out)
}
