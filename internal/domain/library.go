package domain

import "sort"

// InterfaceVar declares one variable a library plan's top-level scope
// expects its caller to supply (§4.5: "library-call nodes expose
// aliases: named bindings from caller expressions to the called plan's
// top-level variable declarations"). InOut variables may be written
// back to by the library body; In variables are read-only from the
// library's perspective regardless of what the caller binds them to.
type InterfaceVar struct {
	Name  string
	InOut bool
}

// assignable is satisfied by the Expression implementations a caller
// may legally bind to an InOut alias (Variable, MutableArrayReference).
// A library alias proxies reads unconditionally but only proxies writes
// when the bound expression actually supports them.
type assignable interface {
	Set(Value) error
}

// aliasExpr is the "read-only or assignable proxy expression resolved
// at activation time" §4.5 describes: installed into a library body's
// own variable scope under the interface name, it forwards every read
// to the caller-supplied expression bound at the call site, and forwards
// writes only for a declared InOut alias whose bound expression is
// itself assignable.
type aliasExpr struct {
	bound Expression
	inOut bool
}

func (e *aliasExpr) ValueType() Kind            { return e.bound.ValueType() }
func (e *aliasExpr) IsConstant() bool           { return e.bound.IsConstant() }
func (e *aliasExpr) IsActive() bool             { return e.bound.IsActive() }
func (e *aliasExpr) Activate()                  { e.bound.Activate() }
func (e *aliasExpr) Deactivate() error          { return e.bound.Deactivate() }
func (e *aliasExpr) AddListener(l Listener)     { e.bound.AddListener(l) }
func (e *aliasExpr) RemoveListener(l Listener)  { e.bound.RemoveListener(l) }
func (e *aliasExpr) NotifyChanged()             {}
func (e *aliasExpr) Value() Value               { return e.bound.Value() }

// Set writes through to the bound expression. Rejected for an In alias,
// or for an InOut alias bound to an expression that does not itself
// support assignment (e.g. a literal Constant or a Function).
func (e *aliasExpr) Set(v Value) error {
	if !e.inOut {
		return PlanError(ErrCodeInvalidState, "assignment to In library alias", nil)
	}
	asg, ok := e.bound.(assignable)
	if !ok {
		return PlanError(ErrCodeInvalidState, "library alias bound to a non-assignable expression", nil)
	}
	return asg.Set(v)
}

// BindLibraryCall attaches library as n's callee body, binding each of
// library's declared Interface entries to the Expression the caller
// supplied for it in aliases, and appends library to n as its one
// child (§4.5's child-activation machinery then drives it like any
// other subtree).
//
// Per §6, every one of library's Interface entries must have a
// matching alias; an incomplete or mismatched alias set is a plan
// authoring defect caught here rather than silently resolving the
// uncovered name to nothing at runtime.
func (n *Node) BindLibraryCall(library *Node, aliases map[string]Expression) error {
	if err := validateAliasCoverage(library.Interface, aliases); err != nil {
		return err
	}
	for name, expr := range aliases {
		iv := findInterfaceVar(library.Interface, name)
		library.bindAlias(name, expr, iv.InOut)
	}
	n.Aliases = aliases
	n.AddChild(library)
	return nil
}

// bindAlias installs an aliasExpr under name in n's own expression
// scope, consulted by ResolveVariable ahead of any parent-scope lookup
// of the same name.
func (n *Node) bindAlias(name string, bound Expression, inOut bool) {
	if n.aliasScope == nil {
		n.aliasScope = make(map[string]Expression)
	}
	n.aliasScope[name] = &aliasExpr{bound: bound, inOut: inOut}
}

func findInterfaceVar(ifc []InterfaceVar, name string) InterfaceVar {
	for _, iv := range ifc {
		if iv.Name == name {
			return iv
		}
	}
	return InterfaceVar{Name: name}
}

// validateAliasCoverage reports a ValidationFailed error naming every
// interface variable left unbound, and every alias supplied with no
// matching interface declaration, keeping the failure message
// deterministic regardless of map iteration order.
func validateAliasCoverage(ifc []InterfaceVar, aliases map[string]Expression) error {
	want := make(map[string]bool, len(ifc))
	for _, iv := range ifc {
		want[iv.Name] = true
	}
	var missing, extra []string
	for name := range want {
		if _, ok := aliases[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range aliases {
		if !want[name] {
			extra = append(extra, name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	msg := "library call alias set does not cover the callee's interface"
	if len(missing) > 0 {
		msg += ": missing " + join(missing)
	}
	if len(extra) > 0 {
		msg += ": unexpected " + join(extra)
	}
	return PlanError(ErrCodeValidationFailed, msg, nil)
}

func join(names []string) string {
	out := ""
	for i, s := range names {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
