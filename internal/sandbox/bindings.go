package sandbox

import (
	"errors"
	"strings"

	"github.com/dop251/goja"

	"github.com/michaelbrown/mentor/internal/capture"
)

// environment holds the host-side pieces of one run: the console bound
// into the script, the timer queue, and references to intrinsics taken
// before the global object was stripped.
type environment struct {
	vm         *goja.Runtime
	console    *capture.Console
	stringify  goja.Callable
	errorProto *goja.Object
	timers     *timerQueue
}

func newEnvironment(vm *goja.Runtime, console *capture.Console) *environment {
	env := &environment{
		vm:      vm,
		console: console,
		timers:  &timerQueue{vm: vm, pending: make(map[int64]goja.Callable)},
	}
	if json, ok := vm.Get("JSON").(*goja.Object); ok {
		if fn, ok := goja.AssertFunction(json.Get("stringify")); ok {
			env.stringify = fn
		}
	}
	if ctor, ok := vm.Get("Error").(*goja.Object); ok {
		if proto, ok := ctor.Get("prototype").(*goja.Object); ok {
			env.errorProto = proto
		}
	}
	return env
}

// bind returns the value for each allow-listed name, in order.
func (env *environment) bind(names []string) []goja.Value {
	values := make([]goja.Value, len(names))
	for i, name := range names {
		values[i] = env.lookup(name)
	}
	return values
}

func (env *environment) lookup(name string) goja.Value {
	switch name {
	case "console":
		return env.consoleObject()
	case "setTimeout", "setInterval":
		return env.vm.ToValue(env.timers.schedule)
	case "clearTimeout", "clearInterval":
		return env.vm.ToValue(env.timers.clear)
	}
	if v := env.vm.Get(name); v != nil {
		return v
	}
	return goja.Undefined()
}

func (env *environment) consoleObject() *goja.Object {
	obj := env.vm.NewObject()
	stdout := env.printer(capture.Stdout, env.formatPretty)
	stderr := env.printer(capture.Stderr, env.formatPlain)
	for _, method := range []string{"log", "info", "debug"} {
		_ = obj.Set(method, stdout)
	}
	for _, method := range []string{"error", "warn"} {
		_ = obj.Set(method, stderr)
	}
	return obj
}

// printer builds a console method: arguments are formatted one by one and
// joined with a single space into one line.
func (env *environment) printer(ch capture.Channel, format func(goja.Value) string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = format(arg)
		}
		env.console.Write(ch, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

// formatPretty renders objects as indented JSON and everything else with
// String coercion.
func (env *environment) formatPretty(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok || env.stringify == nil {
		return env.formatPlain(v)
	}
	if _, isFunc := goja.AssertFunction(obj); isFunc {
		return obj.String()
	}
	out, err := env.stringify(goja.Undefined(), obj, goja.Null(), env.vm.ToValue(2))
	if err != nil {
		// Circular structures throw inside the script, as they would natively.
		var exc *goja.Exception
		if errors.As(err, &exc) {
			panic(exc)
		}
		panic(err)
	}
	return out.String()
}

func (env *environment) formatPlain(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	return v.String()
}

func (env *environment) isError(obj *goja.Object) bool {
	if env.errorProto == nil {
		return false
	}
	for p := obj.Prototype(); p != nil; p = p.Prototype() {
		if p == env.errorProto {
			return true
		}
	}
	return false
}

// timerQueue hands out timer ids and remembers callbacks. Callbacks are
// never run: a result only reflects synchronous execution.
type timerQueue struct {
	vm      *goja.Runtime
	next    int64
	pending map[int64]goja.Callable
}

func (q *timerQueue) schedule(call goja.FunctionCall) goja.Value {
	q.next++
	if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
		q.pending[q.next] = fn
	}
	return q.vm.ToValue(q.next)
}

func (q *timerQueue) clear(call goja.FunctionCall) goja.Value {
	delete(q.pending, call.Argument(0).ToInteger())
	return goja.Undefined()
}
