package domain

import (
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// scriptProgramCache compiles and caches expr-lang programs by source
// text, adapted from the teacher's ConditionEvaluator
// (internal/application/executor/conditions.go): condition text is
// compiled once and the *vm.Program reused across every evaluation,
// instead of re-parsing on each macro step.
type scriptProgramCache struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

var globalScriptCache = &scriptProgramCache{cache: make(map[string]*vm.Program)}

func (c *scriptProgramCache) get(source string) (*vm.Program, error) {
	c.mu.RLock()
	p, ok := c.cache[source]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}
	p, err := expr.Compile(source, expr.AsBool())
	if err != nil {
		return nil, PlanError(ErrCodeInvalidInput, "failed to compile script expression", err)
	}
	c.mu.Lock()
	c.cache[source] = p
	c.mu.Unlock()
	return p, nil
}

// ScriptExpression is a boolean guard condition written as an expr-lang
// expression over this node's currently-resolvable variables (§4.2
// "implementor discretion" on surface syntax for guard conditions). It
// is how `planbuild` lets a test or plan author write a condition as
// text, such as `"counter >= 3"`, instead of assembling a Function tree
// by hand.
type ScriptExpression struct {
	Notifier
	source string
	vars   map[string]Expression
	cached Value
}

// NewScriptExpression compiles source immediately so authoring errors
// surface at plan-build time, not at first activation. vars maps the
// identifiers the script may reference to the Expression supplying their
// value.
func NewScriptExpression(source string, vars map[string]Expression) (*ScriptExpression, error) {
	if _, err := globalScriptCache.get(source); err != nil {
		return nil, err
	}
	se := &ScriptExpression{source: source, vars: vars, cached: Unknown()}
	se.OnActivate(func() {
		for _, e := range vars {
			e.Activate()
			e.AddListener(se)
		}
		se.recompute()
	})
	se.OnDeactivate(func() {
		for _, e := range vars {
			e.RemoveListener(se)
			_ = e.Deactivate()
		}
		se.cached = Unknown()
	})
	return se, nil
}

func (se *ScriptExpression) ValueType() Kind   { return KindBool }
func (se *ScriptExpression) IsConstant() bool  { return false }

func (se *ScriptExpression) Value() Value {
	if !se.IsActive() {
		return Unknown()
	}
	return se.cached
}

func (se *ScriptExpression) NotifyChanged() {
	if !se.IsActive() {
		return
	}
	old := se.cached
	se.recompute()
	if eq, known := old.Equals(se.cached); !known || !eq {
		se.PublishChange()
	}
}

func (se *ScriptExpression) recompute() {
	for _, e := range se.vars {
		if !e.Value().IsKnown() {
			se.cached = Unknown()
			return
		}
	}
	program, err := globalScriptCache.get(se.source)
	if err != nil {
		se.cached = Unknown()
		return
	}
	env := make(map[string]any, len(se.vars))
	for name, e := range se.vars {
		env[name] = toGo(e.Value())
	}
	result, err := expr.Run(program, env)
	if err != nil {
		se.cached = Unknown()
		return
	}
	b, ok := result.(bool)
	if !ok {
		se.cached = Unknown()
		return
	}
	se.cached = BoolValue(b)
}

// toGo projects a known Value into the plain Go value expr-lang expects
// in its evaluation environment.
func toGo(v Value) any {
	switch v.Kind() {
	case KindBool:
		b, _ := v.AsBool()
		return b
	case KindInt:
		i, _ := v.AsInt()
		return int(i)
	case KindReal, KindDate, KindDuration:
		r, _ := v.AsReal()
		return r
	case KindString:
		s, _ := v.AsString()
		return s
	case KindArray:
		arr, _ := v.AsArray()
		out := make([]any, len(arr))
		for i, e := range arr {
			out[i] = toGo(e)
		}
		return out
	default:
		return nil
	}
}
