// Package planbuild is a fluent, Go-native way to construct a plan tree
// of domain.Node values, standing in for the out-of-scope XML plan
// parser (spec.md §1 Non-goals). It is adapted from the teacher's
// pkg/workflow builder — chained `With*` methods returning the same
// builder — generalized from a flat node/edge list to PLEXIL's nested
// node tree and condition set.
package planbuild

import "github.com/plexirun/plexir/internal/domain"

// NodeBuilder assembles one domain.Node and its children.
type NodeBuilder struct {
	name       string
	typ        domain.NodeType
	overrides  map[domain.ConditionKind]domain.Expression
	vars       []*domain.Variable
	children   []*NodeBuilder
	command    *domain.CommandSpec
	update     *domain.UpdateSpec
	assign     *domain.AssignmentSpec
	ret        *domain.Variable
	interfaces []domain.InterfaceVar
	library    *NodeBuilder
	aliases    map[string]domain.Expression
}

// NewNode starts building a node of the given name and type.
func NewNode(name string, typ domain.NodeType) *NodeBuilder {
	return &NodeBuilder{name: name, typ: typ, overrides: make(map[domain.ConditionKind]domain.Expression)}
}

// WithCondition overrides one of the eight user-declarable conditions
// (§4.5) with expr.
func (b *NodeBuilder) WithCondition(kind domain.ConditionKind, expr domain.Expression) *NodeBuilder {
	b.overrides[kind] = expr
	return b
}

// WithScriptCondition is sugar over WithCondition for the common case of
// an expr-lang boolean guard referencing already-declared variables by
// name (grounded on the teacher's ConditionEvaluator: SPEC_FULL's domain
// stack repurposes expr-lang from edge conditions to node guards).
func (b *NodeBuilder) WithScriptCondition(kind domain.ConditionKind, source string, refs map[string]domain.Expression) *NodeBuilder {
	se, err := domain.NewScriptExpression(source, refs)
	if err != nil {
		// A malformed script is an authoring defect caught at build
		// time: fail closed to a constant-false guard rather than
		// panicking the builder chain.
		b.overrides[kind] = domain.NewConstant(domain.BoolValue(false))
		return b
	}
	b.overrides[kind] = se
	return b
}

// WithVariable declares a local variable of kind k with an optional
// initial value (Unknown if omitted).
func (b *NodeBuilder) WithVariable(name string, k domain.Kind, initial domain.Value) *NodeBuilder {
	b.vars = append(b.vars, domain.NewVariable(name, k, initial))
	return b
}

// WithChild appends a fully-built child node.
func (b *NodeBuilder) WithChild(child *NodeBuilder) *NodeBuilder {
	b.children = append(b.children, child)
	return b
}

// WithCommand attaches a CommandSpec to a NodeTypeCommand builder.
func (b *NodeBuilder) WithCommand(name string, args []domain.Value, resources ...domain.ResourceDecl) *NodeBuilder {
	b.command = &domain.CommandSpec{Name: name, Args: args, Resources: resources}
	return b
}

// WithUpdate attaches an UpdateSpec to a NodeTypeUpdate builder.
func (b *NodeBuilder) WithUpdate(pairs map[string]domain.Value) *NodeBuilder {
	b.update = &domain.UpdateSpec{Pairs: pairs}
	return b
}

// WithAssignment attaches an Assignment body to a NodeTypeAssignment
// builder: target must be assignable (a *domain.Variable or
// *domain.MutableArrayReference); rhs is evaluated when the assignment
// flushes at the end of the macro step in which the node starts
// executing.
func (b *NodeBuilder) WithAssignment(target, rhs domain.Expression) *NodeBuilder {
	b.assign = &domain.AssignmentSpec{Target: target, RHS: rhs}
	return b
}

// WithInterfaceVar declares name as a variable this node's subtree
// expects to receive from a caller when built as a library body, rather
// than owning a local Variable for it (§4.5). inOut marks it assignable
// from within the library; an In entry is read-only to the body that
// declares it, regardless of what the caller eventually binds it to.
func (b *NodeBuilder) WithInterfaceVar(name string, inOut bool) *NodeBuilder {
	b.interfaces = append(b.interfaces, domain.InterfaceVar{Name: name, InOut: inOut})
	return b
}

// WithLibraryCall marks this NodeTypeLibraryNodeCall builder's callee:
// library's body is built and attached as this node's one child, with
// each of its declared Interface entries bound to the caller Expression
// named in aliases (§4.5, §6). Build reports a validation error (via
// the returned node's BindErr) if aliases does not exactly cover
// library's interface.
func (b *NodeBuilder) WithLibraryCall(library *NodeBuilder, aliases map[string]domain.Expression) *NodeBuilder {
	b.library = library
	b.aliases = aliases
	return b
}

// WithCommandReturn declares the variable a Command node's return value
// (§4.7) is written into once the interface reports one. ret is also
// registered as a node-local variable so it can be referenced by name
// from this node's own and its descendants' expressions.
func (b *NodeBuilder) WithCommandReturn(ret *domain.Variable) *NodeBuilder {
	b.ret = ret
	b.vars = append(b.vars, ret)
	return b
}

// Build recursively constructs the domain.Node tree rooted at b.
func (b *NodeBuilder) Build() *domain.Node {
	n := domain.NewNode(b.name, b.typ, b.overrides)
	for _, v := range b.vars {
		n.DeclareVariable(v)
	}
	n.Interface = b.interfaces
	n.Command = b.command
	n.Update = b.update
	n.Assign = b.assign
	n.Return = b.ret
	for _, c := range b.children {
		n.AddChild(c.Build())
	}
	if b.library != nil {
		if err := n.BindLibraryCall(b.library.Build(), b.aliases); err != nil {
			n.BindErr = err
		}
	}
	return n
}
