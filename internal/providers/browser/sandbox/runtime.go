package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Runtime wraps goja VM with security controls
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex
}

// New creates a new sandboxed runtime
func New(config Config) (*Runtime, error) {
	r := &Runtime{
		config:  config,
		console: []LogEntry{},
	}
	if err := r.reset(); err != nil {
		return nil, err
	}
	return r, nil
}

// Execute runs JavaScript with a timeout. doc and args are exposed as the
// globals document and args when non-nil.
func (r *Runtime) Execute(ctx context.Context, script string, doc Document, args map[string]interface{}) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, fmt.Errorf("sandbox closed")
	}

	start := time.Now()
	r.vm.ClearInterrupt()

	// Setup interrupt handler
	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-timer.C:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-stop:
		}
	}()

	// Clear console
	r.consoleMu.Lock()
	r.console = []LogEntry{}
	r.consoleMu.Unlock()

	if doc != nil {
		r.injectDocument(doc)
	} else {
		_ = r.vm.Set("document", goja.Undefined())
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := r.vm.Set("args", args); err != nil {
		return nil, fmt.Errorf("failed to inject args: %w", err)
	}

	val, err := r.vm.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("script failed: %w", err)
	}

	result := &Result{
		Value:    exportValue(val),
		Duration: time.Since(start),
	}

	r.consoleMu.Lock()
	result.Console = append([]LogEntry{}, r.console...)
	r.consoleMu.Unlock()

	return result, nil
}

// reset builds a fresh VM with dangerous globals removed
func (r *Runtime) reset() error {
	vm := goja.New()
	if r.config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(r.config.MaxCallStackSize)
	}

	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	if r.config.EnableConsole {
		console := vm.NewObject()
		for _, level := range []string{"log", "warn", "error", "info"} {
			_ = console.Set(level, r.makeConsoleFunc(level))
		}
		_ = vm.Set("console", console)
	}

	// Timers never fire inside the sandbox
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = vm.Set("setTimeout", noop)
	_ = vm.Set("setInterval", noop)

	r.vm = vm
	return nil
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		return goja.Undefined()
	}
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// Reset clears the runtime state
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.console = []LogEntry{}
	return r.reset()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	r.console = nil
	return nil
}
