package validator

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultMaxExpressionLength bounds check expressions unless overridden.
const DefaultMaxExpressionLength = 4096

// programKey separates programs compiled for any result from those compiled
// to require a boolean.
type programKey struct {
	expression string
	boolean    bool
}

// CheckEvaluator compiles check expressions against the summary built by
// Environment and runs them. Programs are compiled once per expression, so
// every environment passed to one evaluator must have the same shape.
type CheckEvaluator struct {
	mu       sync.RWMutex
	programs map[programKey]*vm.Program

	// MaxExpressionLength rejects longer expressions before compiling.
	MaxExpressionLength int
}

// NewCheckEvaluator returns an evaluator with an empty program cache.
func NewCheckEvaluator() *CheckEvaluator {
	return &CheckEvaluator{
		programs:            make(map[programKey]*vm.Program),
		MaxExpressionLength: DefaultMaxExpressionLength,
	}
}

// Evaluate runs expression against env and returns its value.
func (e *CheckEvaluator) Evaluate(expression string, env map[string]interface{}) (interface{}, error) {
	prog, err := e.program(programKey{expression: expression}, env)
	if err != nil {
		return nil, err
	}
	return e.run(prog, expression, env)
}

// EvaluateBool runs expression against env. The expression must produce a
// bool; numbers, strings and nil are errors rather than truthy values.
func (e *CheckEvaluator) EvaluateBool(expression string, env map[string]interface{}) (bool, error) {
	prog, err := e.program(programKey{expression: expression, boolean: true}, env)
	if err != nil {
		return false, err
	}
	out, err := e.run(prog, expression, env)
	if err != nil {
		return false, err
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("check %q returned %T, expected bool", expression, out)
	}
	return ok, nil
}

func (e *CheckEvaluator) program(key programKey, env map[string]interface{}) (*vm.Program, error) {
	if len(key.expression) > e.MaxExpressionLength {
		return nil, fmt.Errorf("check exceeds maximum length of %d characters", e.MaxExpressionLength)
	}

	e.mu.RLock()
	prog, ok := e.programs[key]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	opts := []expr.Option{expr.Env(env)}
	if key.boolean {
		opts = append(opts, expr.AsBool())
	}
	prog, err := expr.Compile(key.expression, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile check %q: %w", key.expression, err)
	}

	e.mu.Lock()
	e.programs[key] = prog
	e.mu.Unlock()
	return prog, nil
}

func (e *CheckEvaluator) run(prog *vm.Program, expression string, env map[string]interface{}) (interface{}, error) {
	out, err := expr.Run(prog, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate check %q: %w", expression, err)
	}
	return out, nil
}
