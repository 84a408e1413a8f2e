package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"

	"github.com/michaelbrown/mentor/internal/capture"
)

// Engine runs JavaScript against an allow-listed set of bindings. Every run
// gets a fresh runtime and console, so nothing a script defines survives into
// the next and concurrent runs never wait on each other.
type Engine struct {
	policy Policy
	host   capture.Sink
}

// NewEngine creates an engine with the given policy. Console output that
// arrives outside a run goes to host (the standard logger when nil).
func NewEngine(policy Policy, host capture.Sink) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sandbox policy: %w", err)
	}
	return &Engine{
		policy: policy,
		host:   host,
	}, nil
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Exec implements Sandbox. Cancelling ctx interrupts a running script; the
// interruption is reported in the result, not as an error.
func (e *Engine) Exec(ctx context.Context, opts ExecOpts) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	res := e.execute(ctx, opts.Code)
	return &res, nil
}

// Execute runs script and reports what it printed and threw. It never fails:
// compile errors, thrown values and engine faults all end up in Errors.
func (e *Engine) Execute(script string) Result {
	return e.execute(context.Background(), script)
}

func (e *Engine) execute(ctx context.Context, script string) Result {
	var (
		faults  []string
		elapsed int64
	)
	console := capture.NewConsole(e.host)
	buf := capture.With(console, func() {
		start := time.Now()
		faults = e.run(ctx, console, script)
		elapsed = max(time.Since(start).Milliseconds(), 0)
	})

	return Result{
		Output:          buf.Stdout(),
		Errors:          append(buf.Stderr(), faults...),
		Timestamp:       time.Now(),
		ExecutionTimeMs: elapsed,
	}
}

// run wraps script in a strict-mode function whose parameters are the
// policy's globals, then calls it once.
func (e *Engine) run(ctx context.Context, console *capture.Console, script string) (faults []string) {
	defer func() {
		if r := recover(); r != nil {
			faults = append(faults, fmt.Sprintf("InternalError: %v", r))
		}
	}()

	prg, err := compileUnit(e.policy.Globals, script)
	if err != nil {
		return []string{describeCompile(err)}
	}

	vm := goja.New()
	if e.policy.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(e.policy.MaxCallStack)
	}

	env := newEnvironment(vm, console)
	values := env.bind(e.policy.Globals)
	if err := stripGlobals(vm, e.policy); err != nil {
		return []string{"InternalError: " + err.Error()}
	}

	stop := e.watch(ctx, vm)
	defer stop()

	unit, err := vm.RunProgram(prg)
	if err != nil {
		return []string{env.describe(err)}
	}
	fn, ok := goja.AssertFunction(unit)
	if !ok {
		return []string{"InternalError: compiled unit is not callable"}
	}
	if _, err := fn(goja.Undefined(), values...); err != nil {
		return []string{env.describe(err)}
	}
	return nil
}

// errUnitShape is returned when script text closes the wrapping function
// early and leaves more than one function expression at the top level.
var errUnitShape = errors.New("unexpected end of script body")

// compileUnit parses "(function(<globals>){"use strict"; <script>})" and
// checks that the whole program is that single function expression.
func compileUnit(globals []string, script string) (*goja.Program, error) {
	src := "(function(" + strings.Join(globals, ", ") + ") {\"use strict\";\n" + script + "\n})"
	prog, err := parser.ParseFile(nil, "script.js", src, 0)
	if err != nil {
		return nil, err
	}
	if len(prog.Body) != 1 {
		return nil, errUnitShape
	}
	stmt, ok := prog.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return nil, errUnitShape
	}
	if _, ok := stmt.Expression.(*ast.FunctionLiteral); !ok {
		return nil, errUnitShape
	}
	return goja.CompileAST(prog, true)
}

// describeCompile turns a parse or compile failure into "<Kind>: <message>".
func describeCompile(err error) string {
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return "SyntaxError: " + list[0].Message
	}
	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		return "SyntaxError: " + syntax.Message
	}
	var ref *goja.CompilerReferenceError
	if errors.As(err, &ref) {
		return "ReferenceError: " + ref.Message
	}
	if errors.Is(err, errUnitShape) {
		return "SyntaxError: " + err.Error()
	}
	return "InternalError: " + err.Error()
}

// interruption is the value handed to Runtime.Interrupt.
type interruption struct {
	kind    string
	message string
}

// watch interrupts vm when ctx is cancelled or the policy's time budget runs
// out. The returned func must be called once the run is over.
func (e *Engine) watch(ctx context.Context, vm *goja.Runtime) func() {
	done := make(chan struct{})

	var timeout <-chan time.Time
	var timer *time.Timer
	if e.policy.MaxDuration > 0 {
		timer = time.NewTimer(e.policy.MaxDuration)
		timeout = timer.C
	}

	go func() {
		select {
		case <-done:
		case <-ctx.Done():
			vm.Interrupt(interruption{kind: "InterruptedError", message: "execution cancelled"})
		case <-timeout:
			vm.Interrupt(interruption{
				kind:    "TimeoutError",
				message: fmt.Sprintf("script ran longer than %s", e.policy.MaxDuration),
			})
		}
	}()

	return func() {
		close(done)
		if timer != nil {
			timer.Stop()
		}
	}
}

// stripGlobals deletes every global the policy does not allow.
func stripGlobals(vm *goja.Runtime, p Policy) error {
	v, err := vm.RunString("Object.getOwnPropertyNames(this)")
	if err != nil {
		return fmt.Errorf("listing globals: %w", err)
	}
	var names []string
	if err := vm.ExportTo(v, &names); err != nil {
		return fmt.Errorf("listing globals: %w", err)
	}

	global := vm.GlobalObject()
	for _, name := range names {
		if p.IsAllowed(name) {
			continue
		}
		// Non-configurable properties stay; none of them reach the host.
		_ = global.Delete(name)
	}
	return nil
}

// describe turns a run error into "<Kind>: <message>".
func (env *environment) describe(err error) string {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if in, ok := interrupted.Value().(interruption); ok {
			return in.kind + ": " + in.message
		}
		return fmt.Sprintf("InterruptedError: %v", interrupted.Value())
	}

	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return env.describeValue(overflow.Value())
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		return env.describeValue(exc.Value())
	}

	return "InternalError: " + err.Error()
}

// describeValue formats a thrown value. Error instances use their name and
// message; anything else is coerced to a string under the Error kind.
func (env *environment) describeValue(v goja.Value) string {
	if v == nil {
		return "Error: undefined"
	}
	if obj, ok := v.(*goja.Object); ok && env.isError(obj) {
		return stringProp(obj, "name") + ": " + stringProp(obj, "message")
	}
	return "Error: " + v.String()
}

func stringProp(obj *goja.Object, name string) string {
	v := obj.Get(name)
	if v == nil {
		return "undefined"
	}
	return v.String()
}
