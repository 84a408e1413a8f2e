package suggest

import (
	"context"
	"strings"
)

// Rule pairs a predicate with the suggestion it emits. Matches returns how
// many copies of Template to append; produced is the number of suggestions
// earlier rules have already contributed this cycle.
type Rule struct {
	Name     string
	Matches  func(script string, errs []string, produced int) int
	Template Suggestion
}

// perError matches once for every error entry containing marker.
func perError(marker string) func(string, []string, int) int {
	return func(_ string, errs []string, _ int) int {
		n := 0
		for _, e := range errs {
			if strings.Contains(e, marker) {
				n++
			}
		}
		return n
	}
}

// once matches a single time when pred holds for the script.
func once(pred func(script string) bool) func(string, []string, int) int {
	return func(script string, _ []string, _ int) int {
		if pred(script) {
			return 1
		}
		return 0
	}
}

// DefaultRules is the fixed rule table, in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "undeclared-name",
			Matches: perError("is not defined"),
			Template: Suggestion{
				Type:        TypeErrorFix,
				Title:       "Check Variable Declarations",
				Description: "Something is being used before it exists. Look at the name in the error message: where do you create it? Try declaring it with let or const above the line that uses it, and double-check the spelling.",
				CodeExample: "// Declare first, then use:\nlet total = 0;\n// ...now total can be read",
			},
		},
		{
			Name:    "syntax",
			Matches: perError("SyntaxError"),
			Template: Suggestion{
				Type:        TypeErrorFix,
				Title:       "Review Syntax",
				Description: "The code could not be read as JavaScript. Check that every bracket and quote you open is closed, and remember that names are case-sensitive (console is not Console).",
				CodeExample: "// Count your pairs: ( ) { } [ ] \" \"",
			},
		},
		{
			Name:    "legacy-var",
			Matches: once(func(s string) bool { return strings.Contains(s, "var ") }),
			Template: Suggestion{
				Type:        TypeImprovement,
				Title:       "Modern Variable Declarations",
				Description: "You are using var. Consider exploring let and const: they are block-scoped, which avoids some surprising bugs. Which of your variables never change after they are set?",
				CodeExample: "const limit = 10; // never reassigned\nlet count = 0;   // changes over time",
			},
		},
		{
			Name: "arrow-functions",
			Matches: once(func(s string) bool {
				return strings.Contains(s, "function ") && !strings.Contains(s, "=>")
			}),
			Template: Suggestion{
				Type:        TypeLearning,
				Title:       "Explore Arrow Functions",
				Description: "Arrow functions are a shorter way to write small functions. What would one of your functions look like in that form?",
				CodeExample: "const double = (n) => /* your expression here */;",
			},
		},
		{
			Name: "structure",
			Matches: func(_ string, _ []string, produced int) int {
				if produced == 0 {
					return 1
				}
				return 0
			},
			Template: Suggestion{
				Type:        TypeLearning,
				Title:       "Code Structure",
				Description: "Nice work getting this to run! Try reading it back: do your names say what each value holds? Could any repeated steps become a small function?",
				CodeExample: "// Clear names help future you:\n// const d = 7;  vs  const daysPerWeek = 7;",
			},
		},
	}
}

// Heuristic is the local, deterministic suggestion source.
type Heuristic struct {
	Rules []Rule
}

// NewHeuristic returns a Heuristic over DefaultRules.
func NewHeuristic() *Heuristic {
	return &Heuristic{Rules: DefaultRules()}
}

// Analyze evaluates every rule in order and returns at most MaxSuggestions
// matches. It does no I/O and depends only on its arguments.
func (h *Heuristic) Analyze(script string, errs []string) []Suggestion {
	var out []Suggestion
	for _, rule := range h.Rules {
		for range rule.Matches(script, errs, len(out)) {
			out = append(out, rule.Template)
		}
	}
	return Cap(out)
}

// Suggest implements Source.
func (h *Heuristic) Suggest(_ context.Context, script string, errs []string) []Suggestion {
	return h.Analyze(script, errs)
}
