package domain

// Expression is the common interface over every node in the expression
// graph (§4.2): constants, variables, array references, and the
// operator-applying Function. Everything downstream — conditions, command
// arguments, array subscripts — is an Expression.
type Expression interface {
	Listener

	// ValueType reports the static Kind this expression produces. For
	// Function this is fixed by its Operator; for Variable/Constant it
	// is fixed at construction.
	ValueType() Kind

	// IsConstant reports whether the expression's value can never change
	// once activated — used by the scheduler to skip re-evaluation.
	IsConstant() bool

	// IsActive reports whether this expression currently has at least
	// one activation (see Notifier).
	IsActive() bool

	// Activate/Deactivate manage the reference count that determines
	// whether this expression (and transitively, its operands) is live.
	Activate()
	Deactivate() error

	// AddListener/RemoveListener register interest in value changes.
	AddListener(l Listener)
	RemoveListener(l Listener)

	// Value returns the current value. An inactive expression always
	// returns Unknown, per §4.2.
	Value() Value
}

// Constant is a literal, always-active-valued expression. It never
// notifies because its value never changes (§4.2).
type Constant struct {
	kind Kind
	val  Value
}

// NewConstant wraps a literal Value as an Expression.
func NewConstant(v Value) *Constant { return &Constant{kind: v.Kind(), val: v} }

func (c *Constant) ValueType() Kind                 { return c.kind }
func (c *Constant) IsConstant() bool                { return true }
func (c *Constant) IsActive() bool                  { return true }
func (c *Constant) Activate()                       {}
func (c *Constant) Deactivate() error                { return nil }
func (c *Constant) AddListener(l Listener)           {}
func (c *Constant) RemoveListener(l Listener)        {}
func (c *Constant) Value() Value                     { return c.val }
func (c *Constant) NotifyChanged()                   {}

// Variable is a named, mutable, assignable expression (§4.2): a node's
// local variable, parameter, or the target of an Assignment node. It
// embeds Notifier so assignment and reset both publish to listeners.
type Variable struct {
	Notifier
	name        string
	kind        Kind
	value       Value
	initial     Value
	setSince    bool
	readOnly    bool
}

// NewVariable constructs a Variable of kind k with the given initial
// value (may be Unknown).
func NewVariable(name string, k Kind, initial Value) *Variable {
	return &Variable{name: name, kind: k, value: initial, initial: initial}
}

// NewReadOnlyVariable constructs a Variable that rejects Set (used for
// node-interface "In" parameter aliases per §4.2).
func NewReadOnlyVariable(name string, k Kind, initial Value) *Variable {
	v := NewVariable(name, k, initial)
	v.readOnly = true
	return v
}

func (v *Variable) Name() string   { return v.name }
func (v *Variable) ValueType() Kind { return v.kind }
func (v *Variable) IsConstant() bool { return false }
func (v *Variable) Value() Value {
	if !v.IsActive() {
		return Unknown()
	}
	return v.value
}
func (v *Variable) NotifyChanged() {}

// WasSetSinceInitialization reports whether Set has been called at least
// once since the node entered its current iteration (§4.2, used by the
// `isKnown`/assignment-tracking introspection operators).
func (v *Variable) WasSetSinceInitialization() bool { return v.setSince }

// Set assigns a new value, publishing to listeners if the value actually
// differs (§4.2: "an assignment that does not change the value does not
// trigger notification"). Returns a PlanError if the variable is
// read-only.
func (v *Variable) Set(nv Value) error {
	if v.readOnly {
		return PlanError(ErrCodeInvalidState, "assignment to read-only variable "+v.name, nil)
	}
	v.setSince = true
	eq, known := v.value.Equals(nv)
	v.value = nv
	if known && eq {
		return nil
	}
	v.PublishChange()
	return nil
}

// Reset restores the initial value and clears the was-set-since flag, as
// done when a node starts a new iteration of a loop (§4.5).
func (v *Variable) Reset() {
	v.value = v.initial
	v.setSince = false
	v.PublishChange()
}

// Operator applies a pure function over a fixed arity of Value operands
// (§4.2). Implementations live in operators.go.
type Operator interface {
	Name() string
	ValueType() Kind
	// Arity returns (min, max) accepted operand counts; max < 0 means
	// unbounded (e.g. variadic concat/and/or).
	Arity() (int, int)
	Apply(args []Value) Value
}

// Function applies an Operator to a vector of Expression operands,
// caching the last computed value and re-publishing only when the
// recomputed value differs (§4.2). It embeds Notifier so it can itself be
// an operand to another Function.
type Function struct {
	Notifier
	op       Operator
	operands []Expression
	cached   Value
	dirty    bool
}

// NewFunction constructs a Function over op and operands, validating
// arity against the operator's declared bounds.
func NewFunction(op Operator, operands []Expression) (*Function, error) {
	min, max := op.Arity()
	n := len(operands)
	if n < min || (max >= 0 && n > max) {
		return nil, PlanError(ErrCodeInvalidInput, "wrong operand count for operator "+op.Name(), nil)
	}
	f := &Function{op: op, operands: operands, cached: Unknown()}
	f.OnActivate(f.activateOperands)
	f.OnDeactivate(f.deactivateOperands)
	return f, nil
}

func (f *Function) activateOperands() {
	for _, o := range f.operands {
		o.Activate()
		o.AddListener(f)
	}
	f.recompute()
}

func (f *Function) deactivateOperands() {
	for _, o := range f.operands {
		o.RemoveListener(f)
		_ = o.Deactivate()
	}
	f.cached = Unknown()
}

func (f *Function) ValueType() Kind   { return f.op.ValueType() }
func (f *Function) IsConstant() bool  { return false }

func (f *Function) Value() Value {
	if !f.IsActive() {
		return Unknown()
	}
	if f.dirty {
		f.recompute()
	}
	return f.cached
}

// NotifyChanged recomputes the cached value and propagates only on an
// actual change (§4.3 "propagation is value-change-gated, not
// edge-gated"). With no listeners of its own there is nobody to
// propagate to, so the cached value is merely marked stale and the next
// Value call recomputes it.
func (f *Function) NotifyChanged() {
	if !f.IsActive() {
		return
	}
	if f.ListenerCount() == 0 {
		f.dirty = true
		return
	}
	old := f.cached
	f.recompute()
	if eq, known := old.Equals(f.cached); !known || !eq {
		f.PublishChange()
	}
}

func (f *Function) recompute() {
	args := make([]Value, len(f.operands))
	for i, o := range f.operands {
		args[i] = o.Value()
	}
	f.cached = f.op.Apply(args)
	f.dirty = false
}

// ArrayReference reads a single element of an array-valued expression at
// an index given by another expression (§4.2).
type ArrayReference struct {
	Notifier
	array Expression
	index Expression
	kind  Kind
}

// NewArrayReference builds a read-only indexed view into array.
func NewArrayReference(array, index Expression) *ArrayReference {
	ar := &ArrayReference{array: array, index: index, kind: array.ValueType()}
	ar.OnActivate(func() {
		array.Activate()
		array.AddListener(ar)
		index.Activate()
		index.AddListener(ar)
	})
	ar.OnDeactivate(func() {
		array.RemoveListener(ar)
		_ = array.Deactivate()
		index.RemoveListener(ar)
		_ = index.Deactivate()
	})
	return ar
}

func (a *ArrayReference) ValueType() Kind  { return a.kind }
func (a *ArrayReference) IsConstant() bool { return false }
func (a *ArrayReference) NotifyChanged()   { a.PublishChange() }

func (a *ArrayReference) Value() Value {
	if !a.IsActive() {
		return Unknown()
	}
	idx, ok := a.index.Value().AsInt()
	if !ok {
		return Unknown()
	}
	return a.array.Value().ArrayAt(int(idx))
}

// MutableArrayReference is an ArrayReference that additionally supports
// assignment into the backing array Variable (§4.2, used as an
// Assignment-node target of the form `arr[i] := v`).
type MutableArrayReference struct {
	ArrayReference
	backing *Variable
}

// NewMutableArrayReference builds an assignable indexed view; backing
// must be the same Variable wrapped by array.
func NewMutableArrayReference(backing *Variable, index Expression) *MutableArrayReference {
	return &MutableArrayReference{ArrayReference: *NewArrayReference(backing, index), backing: backing}
}

// Set writes nv into the backing array at the current index value,
// publishing a whole-array change.
func (m *MutableArrayReference) Set(nv Value) error {
	idx, ok := m.index.Value().AsInt()
	if !ok {
		return PlanError(ErrCodeInvalidInput, "array index unknown on assignment", nil)
	}
	arr, ok := m.backing.Value().AsArray()
	if !ok {
		return PlanError(ErrCodeInvalidType, "assignment target is not an array", nil)
	}
	if int(idx) < 0 || int(idx) >= len(arr) {
		return PlanError(ErrCodeInvalidInput, "array index out of range on assignment", nil)
	}
	cp := make([]Value, len(arr))
	copy(cp, arr)
	cp[idx] = nv
	return m.backing.Set(ArrayValue(m.backing.Value().ElementKind(), cp))
}
