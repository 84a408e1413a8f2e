package suggest

import (
	"encoding/json"
	"testing"
)

func types(list []Suggestion) []Type {
	out := make([]Type, len(list))
	for i, s := range list {
		out[i] = s.Type
	}
	return out
}

func titles(list []Suggestion) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Title
	}
	return out
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name       string
		script     string
		errs       []string
		wantTitles []string
	}{
		{
			name:       "clean script gets the structure hint only",
			script:     "const x = 1;\nconsole.log(x);",
			wantTitles: []string{"Code Structure"},
		},
		{
			name:       "undeclared name",
			script:     "foo()",
			errs:       []string{"ReferenceError: foo is not defined"},
			wantTitles: []string{"Check Variable Declarations"},
		},
		{
			name:       "syntax error",
			script:     "let x = ;",
			errs:       []string{"SyntaxError: Unexpected token ;"},
			wantTitles: []string{"Review Syntax"},
		},
		{
			name:       "legacy var",
			script:     "var x = 1;",
			wantTitles: []string{"Modern Variable Declarations"},
		},
		{
			name:       "verbose function without arrows",
			script:     "function add(a, b) { return a + b }",
			wantTitles: []string{"Explore Arrow Functions"},
		},
		{
			name:       "verbose function alongside arrows",
			script:     "function add(a, b) { return a + b }\nconst inc = (n) => add(n, 1);",
			wantTitles: []string{"Code Structure"},
		},
		{
			name:       "one suggestion per matching error",
			script:     "a(); b()",
			errs:       []string{"ReferenceError: a is not defined", "ReferenceError: b is not defined"},
			wantTitles: []string{"Check Variable Declarations", "Check Variable Declarations"},
		},
		{
			name:   "rules fire in table order",
			script: "var total = 0;\nfunction add(n) { total += n }",
			errs: []string{
				"SyntaxError: Unexpected end of input",
				"ReferenceError: x is not defined",
			},
			wantTitles: []string{
				"Check Variable Declarations",
				"Review Syntax",
				"Modern Variable Declarations",
				"Explore Arrow Functions",
			},
		},
		{
			name:   "capped at four",
			script: "var a; function f() {}",
			errs: []string{
				"ReferenceError: a is not defined",
				"ReferenceError: b is not defined",
				"ReferenceError: c is not defined",
				"SyntaxError: bad",
			},
			wantTitles: []string{
				"Check Variable Declarations",
				"Check Variable Declarations",
				"Check Variable Declarations",
				"Review Syntax",
			},
		},
	}

	h := NewHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := titles(h.Analyze(tt.script, tt.errs))
			if len(got) != len(tt.wantTitles) {
				t.Fatalf("titles = %q, want %q", got, tt.wantTitles)
			}
			for i := range got {
				if got[i] != tt.wantTitles[i] {
					t.Errorf("titles[%d] = %q, want %q", i, got[i], tt.wantTitles[i])
				}
			}
		})
	}
}

func TestAnalyzeUndeclaredScenario(t *testing.T) {
	got := NewHeuristic().Analyze("foo()", []string{"ReferenceError: foo is not defined"})
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(got))
	}
	if got[0].Type != TypeErrorFix {
		t.Errorf("type = %q, want %q", got[0].Type, TypeErrorFix)
	}
}

func TestAnalyzeVarScenario(t *testing.T) {
	got := NewHeuristic().Analyze("var x = 1;", nil)
	improvements := 0
	for _, s := range got {
		if s.Type == TypeImprovement {
			improvements++
		}
	}
	if improvements != 1 {
		t.Errorf("improvement suggestions = %d, want 1 (types %v)", improvements, types(got))
	}
	if len(got) > MaxSuggestions {
		t.Errorf("len = %d, want <= %d", len(got), MaxSuggestions)
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	h := NewHeuristic()
	script := "var a = 1;\nfunction f() { return a }"
	errs := []string{"ReferenceError: q is not defined"}

	first, _ := json.Marshal(h.Analyze(script, errs))
	for range 20 {
		again, _ := json.Marshal(h.Analyze(script, errs))
		if string(again) != string(first) {
			t.Fatalf("non-deterministic output:\n%s\n%s", first, again)
		}
	}
}

func TestAnalyzeResultIsACopy(t *testing.T) {
	h := NewHeuristic()
	got := h.Analyze("", nil)
	got[0].Title = "mutated"
	if again := h.Analyze("", nil); again[0].Title == "mutated" {
		t.Error("mutating a result changed the rule table")
	}
}

func TestCustomRule(t *testing.T) {
	h := &Heuristic{Rules: []Rule{{
		Name:     "loops",
		Matches:  once(func(s string) bool { return len(s) > 0 }),
		Template: Suggestion{Type: TypeLearning, Title: "Loops"},
	}}}
	if got := h.Analyze("", nil); len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
	if got := h.Analyze("x", nil); len(got) != 1 || got[0].Title != "Loops" {
		t.Errorf("got %v, want Loops", got)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyAuto, false},
		{"auto", PolicyAuto, false},
		{"Remote", PolicyRemote, false},
		{" heuristic ", PolicyHeuristic, false},
		{"both", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
