package sandbox

import (
	"fmt"
	"time"
)

// Policy defines what a script can reach and how long it may run.
type Policy struct {
	Globals      []string      // Bindings passed to the script, in parameter order
	Intrinsics   []string      // Language builtins left on the global object (error types etc.)
	MaxDuration  time.Duration // Interrupt the run after this long; 0 disables
	MaxCallStack int           // Maximum JS call depth
}

// DefaultPolicy returns the allow-list learners' scripts run against.
func DefaultPolicy() Policy {
	return Policy{
		Globals: []string{
			"console",
			"setTimeout",
			"setInterval",
			"clearTimeout",
			"clearInterval",
			"Math",
			"Date",
			"JSON",
			"parseInt",
			"parseFloat",
			"isNaN",
			"isFinite",
			"Number",
			"String",
			"Boolean",
			"Array",
			"Object",
		},
		Intrinsics: []string{
			"undefined",
			"NaN",
			"Infinity",
			"Error",
			"TypeError",
			"RangeError",
			"ReferenceError",
			"SyntaxError",
			"EvalError",
			"URIError",
			"Symbol",
			"Map",
			"Set",
			"WeakMap",
			"WeakSet",
			"RegExp",
			"Promise",
		},
		MaxDuration:  5 * time.Second,
		MaxCallStack: 2048,
	}
}

// hostBindings are the names the engine implements itself rather than
// taking from the runtime's intrinsics.
var hostBindings = map[string]bool{
	"console":       true,
	"setTimeout":    true,
	"setInterval":   true,
	"clearTimeout":  true,
	"clearInterval": true,
}

// IsAllowed reports whether name is reachable from a script.
func (p Policy) IsAllowed(name string) bool {
	for _, allowed := range p.Globals {
		if allowed == name {
			return true
		}
	}
	for _, allowed := range p.Intrinsics {
		if allowed == name {
			return true
		}
	}
	return false
}

// Validate checks that every global names something the engine can bind.
func (p Policy) Validate() error {
	if len(p.Globals) == 0 {
		return fmt.Errorf("sandbox policy has no globals")
	}
	seen := make(map[string]bool, len(p.Globals))
	for _, name := range p.Globals {
		if seen[name] {
			return fmt.Errorf("duplicate global %q", name)
		}
		seen[name] = true
		if !hostBindings[name] && !runtimeBindings[name] {
			return fmt.Errorf("unknown global %q", name)
		}
	}
	if p.MaxDuration < 0 {
		return fmt.Errorf("negative max duration %s", p.MaxDuration)
	}
	return nil
}

// runtimeBindings are intrinsics that may be promoted to script parameters.
var runtimeBindings = map[string]bool{
	"Math":       true,
	"Date":       true,
	"JSON":       true,
	"parseInt":   true,
	"parseFloat": true,
	"isNaN":      true,
	"isFinite":   true,
	"Number":     true,
	"String":     true,
	"Boolean":    true,
	"Array":      true,
	"Object":     true,
	"RegExp":     true,
	"Map":        true,
	"Set":        true,
	"Symbol":     true,
	"Promise":    true,
	"Error":      true,
}
