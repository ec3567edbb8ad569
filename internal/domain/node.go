package domain

import (
	"math"

	"github.com/google/uuid"
)

// ResourceDecl declares a named, numeric resource a Command node's body
// claims for the duration of its dispatch, with a priority used by the
// arbiter's displacement rule (§4.7).
type ResourceDecl struct {
	Name     string
	Priority int
	Lower    float64
	Upper    float64

	// ReleaseOnTermination reports whether the arbiter frees this claim
	// as soon as the owning command reaches a terminal handle (§3's
	// ResourceValue.release_on_termination). When false, the claim
	// survives the command's termination and continues to count as a
	// currently-granted holder (§4.7) against future arbitration until
	// something else explicitly releases it.
	ReleaseOnTermination bool
}

// CommandSpec is the frozen, fully-resolved body of a Command node once
// its arguments have all become known (§4.7): the name plus argument
// values, captured at dispatch time so a later change to an argument
// variable cannot retroactively alter an in-flight command.
type CommandSpec struct {
	Name      string
	Args      []Value
	Resources []ResourceDecl
}

// UpdateSpec is the frozen body of an Update node (§4.7): a flat set of
// named values sent to the planner/operator interface.
type UpdateSpec struct {
	Pairs map[string]Value
}

// AssignmentSpec is the body of an Assignment node: the target must be
// assignable (a Variable or MutableArrayReference); RHS is evaluated at
// flush time, after the macro step reaches quiescence (§4.6 step 5).
type AssignmentSpec struct {
	Target Expression
	RHS    Expression
}

// Timepoint names one of the two instants (start, end) recorded for each
// NodeState a node passes through (§4.5, used by node-introspection
// expressions like `Node.EXECUTING.START`).
type Timepoint struct {
	State NodeState
	Start bool
}

// Node is a single node of the plan tree (§3, §4.5). It is a plain
// mutable struct, not hidden behind an interface+impl split the way the
// teacher's aggregates are: a plan tree is walked and mutated uniformly
// by the scheduler, cache, and dispatcher, so there is no benefit to
// encapsulating its fields behind accessors the way an externally-facing
// aggregate root would need to.
type Node struct {
	ID       string
	Name     string
	Type     NodeType
	Parent   *Node
	Children []*Node

	Variables  map[string]*Variable
	Conditions *ConditionSet

	State   NodeState
	Outcome NodeOutcome
	Failure FailureType

	Command *CommandSpec
	Update  *UpdateSpec
	Assign  *AssignmentSpec

	// Handle is the live CommandHandle of this node's dispatched command
	// (§4.7), read by NodeRef expressions and by ActionComplete below.
	// It is HandleUnknown for any node that is not a Command.
	Handle CommandHandle

	// ActionComplete backs the default EndCondition for Command and
	// Update nodes (§4.5: "End (derived per node type)"): it starts
	// false at Executing entry and is flipped true by the dispatcher
	// once the command handle reaches a terminal value, or once the
	// update acknowledgement arrives. nil for other node types, which
	// use the plain constant-true default instead.
	ActionComplete *Variable

	// CommandID correlates this node with the Dispatcher's pending-
	// command bookkeeping once dispatched; empty until then. UpdateID is
	// its counterpart for a dispatched Update node's acknowledgement.
	CommandID string
	UpdateID  string

	// Return receives a Command node's optional return value (§4.7:
	// "the interface later reports... optionally a return value") once
	// the dispatcher delivers it. nil if the plan author declared no
	// return variable for this command.
	Return *Variable

	// Interface declares the variables a library plan's top-level scope
	// expects its caller to supply (§4.5), populated on a node that is
	// used as a library body. Empty for a node never called as a
	// library.
	Interface []InterfaceVar

	// Aliases records the caller-supplied binding for each of a
	// LibraryNodeCall node's callee Interface entries, set by
	// BindLibraryCall. nil for any node that is not a library call.
	Aliases map[string]Expression

	// aliasScope holds this node's own resolved alias proxies (one per
	// Interface entry, installed by BindLibraryCall on the callee),
	// consulted by ResolveVariable ahead of Variables.
	aliasScope map[string]Expression

	// BindErr records a BindLibraryCall failure discovered while this
	// node was being assembled (e.g. by planbuild), surfaced at
	// Executive.Init rather than panicking construction.
	BindErr error

	// AbortComplete backs CondAbortComplete for Command nodes: false as
	// soon as an abort is requested, flipped true by the dispatcher once
	// the adapter acknowledges the abort (§4.7). nil for every other
	// node type, which use a constant-true AbortComplete since there is
	// nothing in flight to abort (an Update is one-shot; the planner
	// either acknowledges it or doesn't, but it cannot be recalled).
	AbortComplete *Variable

	timepoints map[NodeState][2]float64 // [start, end]; end is NaN until reached
}

// NewNode constructs a Node with a generated ID, Inactive state, and a
// default ConditionSet.
func NewNode(name string, typ NodeType, overrides map[ConditionKind]Expression) *Node {
	n := &Node{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       typ,
		Variables:  make(map[string]*Variable),
		Conditions: NewConditionSet(overrides),
		State:      StateInactive,
		timepoints: make(map[NodeState][2]float64),
	}

	// Command/Update nodes' EndCondition defaults to "the action has
	// completed" rather than "immediately true" (§4.5's per-node-type
	// End derivation), unless the plan author supplied an explicit
	// EndCondition override.
	if (typ == NodeTypeCommand || typ == NodeTypeUpdate) && (overrides == nil || overrides[CondEnd] == nil) {
		n.ActionComplete = NewVariable("ActionComplete", KindBool, BoolValue(false))
		// Activated immediately: this variable is executive-owned, not
		// plan-author-facing, so there is no corresponding deactivation
		// point in the node lifecycle the way a declared plan variable
		// has. Its Value() must read as known(false) from construction
		// on, since EndCondition is consulted starting in Waiting.
		n.ActionComplete.Activate()
		n.Conditions.Set(CondEnd, n.ActionComplete)
	}

	// AbortComplete defaults to an unconditional true: most node types
	// have nothing in flight to abort, so Failing drains to Finished on
	// the very next pass. Command nodes override it with a Variable the
	// dispatcher flips once the adapter acknowledges an abort it
	// actually requested (§4.7).
	if typ == NodeTypeCommand {
		n.AbortComplete = NewVariable("AbortComplete", KindBool, BoolValue(true))
		n.AbortComplete.Activate()
		n.Conditions.Set(CondAbortComplete, n.AbortComplete)
	} else {
		n.Conditions.Set(CondAbortComplete, NewConstant(BoolValue(true)))
	}

	// List/LibraryNodeCall nodes' EndCondition defaults to "every child
	// has finished" (§4.5's per-node-type End derivation), read live off
	// the tree since children are attached after construction.
	if (typ == NodeTypeList || typ == NodeTypeLibraryNodeCall) && (overrides == nil || overrides[CondEnd] == nil) {
		n.Conditions.Set(CondEnd, &childrenFinishedExpr{node: n})
	}
	return n
}

// childrenFinishedExpr backs the default EndCondition of List and
// LibraryNodeCall nodes: known-true once every child is Finished. A
// childless node reads true, so an unbound library call still drains.
type childrenFinishedExpr struct {
	node *Node
}

func (e *childrenFinishedExpr) ValueType() Kind           { return KindBool }
func (e *childrenFinishedExpr) IsConstant() bool          { return false }
func (e *childrenFinishedExpr) IsActive() bool            { return true }
func (e *childrenFinishedExpr) Activate()                 {}
func (e *childrenFinishedExpr) Deactivate() error         { return nil }
func (e *childrenFinishedExpr) AddListener(l Listener)    {}
func (e *childrenFinishedExpr) RemoveListener(l Listener) {}
func (e *childrenFinishedExpr) NotifyChanged()            {}
func (e *childrenFinishedExpr) Value() Value {
	for _, c := range e.node.Children {
		if c.State != StateFinished {
			return BoolValue(false)
		}
	}
	return BoolValue(true)
}

// AddChild appends c as a child of n, setting c.Parent and wiring c's
// Parent-* and Ancestor-* aggregate conditions (§4.5) off the live tree
// structure: these are polled fresh on every scheduler pass rather than
// notification-driven, so there is nothing further to activate.
func (n *Node) AddChild(c *Node) {
	c.Parent = n
	n.Children = append(n.Children, c)
	c.Conditions.Set(CondParentExecuting, &parentStateExpr{parent: n, want: StateExecuting})
	c.Conditions.Set(CondAncestorExit, &ancestorExitedExpr{node: c})
	c.Conditions.Set(CondAncestorEnd, &ancestorEndedExpr{node: c})
	c.Conditions.Set(CondAncestorInvariant, &ancestorInvariantExpr{node: c})
}

// DeclareVariable adds a local variable to this node's scope.
func (n *Node) DeclareVariable(v *Variable) { n.Variables[v.Name()] = v }

// ResolveVariable looks up name in this node's own scope, then walks the
// parent chain (§4.5 supplement, grounded on original_source's
// NodeConnector.hh/NodeVariableMap.hh: unqualified variable references in
// a plan resolve through the static nesting structure, not just through
// explicit Ancestor-* condition inheritance). A node's own library-call
// alias proxies (§4.5, BindLibraryCall) shadow its plain Variables at
// every scope level, since an aliased interface name always means the
// caller's binding, never a same-named local. Returns nil if unresolved
// anywhere up the chain.
func (n *Node) ResolveVariable(name string) Expression {
	for cur := n; cur != nil; cur = cur.Parent {
		if e, ok := cur.aliasScope[name]; ok {
			return e
		}
		if v, ok := cur.Variables[name]; ok {
			return v
		}
	}
	return nil
}

// parentStateExpr is always active and reads a parent node's live State
// directly (§4.5's Parent-* aggregate conditions): unlike Variable/
// Function, nothing here needs a notification path, since the scheduler
// re-evaluates every condition fresh on each macro-step pass rather than
// waiting on a publish.
type parentStateExpr struct {
	parent *Node
	want   NodeState
}

func (e *parentStateExpr) ValueType() Kind          { return KindBool }
func (e *parentStateExpr) IsConstant() bool         { return false }
func (e *parentStateExpr) IsActive() bool           { return true }
func (e *parentStateExpr) Activate()                {}
func (e *parentStateExpr) Deactivate() error        { return nil }
func (e *parentStateExpr) AddListener(l Listener)   {}
func (e *parentStateExpr) RemoveListener(l Listener) {}
func (e *parentStateExpr) NotifyChanged()           {}
func (e *parentStateExpr) Value() Value             { return BoolValue(e.parent.State == e.want) }

// ancestorExitedExpr backs AncestorExitCondition: true once any strict
// ancestor of node is failing or has finished with an Interrupted
// outcome, propagating an exit down through arbitrarily deep nesting
// without each level needing to re-derive it from its own parent.
type ancestorExitedExpr struct {
	node *Node
}

func (e *ancestorExitedExpr) ValueType() Kind          { return KindBool }
func (e *ancestorExitedExpr) IsConstant() bool         { return false }
func (e *ancestorExitedExpr) IsActive() bool           { return true }
func (e *ancestorExitedExpr) Activate()                {}
func (e *ancestorExitedExpr) Deactivate() error        { return nil }
func (e *ancestorExitedExpr) AddListener(l Listener)   {}
func (e *ancestorExitedExpr) RemoveListener(l Listener) {}
func (e *ancestorExitedExpr) NotifyChanged()           {}
func (e *ancestorExitedExpr) Value() Value {
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Outcome == OutcomeInterrupted && (p.State == StateFailing || p.State == StateFinished) {
			return BoolValue(true)
		}
	}
	return BoolValue(false)
}

// ancestorEndedExpr backs AncestorEndCondition: true once any strict
// ancestor of node has itself left Executing on its own End path
// (Finishing or IterationEnded), distinct from ancestorExitedExpr's
// Interrupted-outcome case. A node still Waiting when an ancestor starts
// winding down should not begin at all (§4.5).
type ancestorEndedExpr struct {
	node *Node
}

func (e *ancestorEndedExpr) ValueType() Kind          { return KindBool }
func (e *ancestorEndedExpr) IsConstant() bool         { return false }
func (e *ancestorEndedExpr) IsActive() bool           { return true }
func (e *ancestorEndedExpr) Activate()                {}
func (e *ancestorEndedExpr) Deactivate() error        { return nil }
func (e *ancestorEndedExpr) AddListener(l Listener)   {}
func (e *ancestorEndedExpr) RemoveListener(l Listener) {}
func (e *ancestorEndedExpr) NotifyChanged()           {}
func (e *ancestorEndedExpr) Value() Value {
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.State == StateFinishing || p.State == StateIterationEnded {
			return BoolValue(true)
		}
	}
	return BoolValue(false)
}

// ancestorInvariantExpr backs AncestorInvariantCondition: true unless
// some strict ancestor's own InvariantCondition currently evaluates
// known-false, or an ancestor is already Failing for a reason other than
// an exit, at which point every descendant fails alongside it (§4.5,
// `Failing(Parent-Failed)` on ¬Ancestor-Invariant).
type ancestorInvariantExpr struct {
	node *Node
}

func (e *ancestorInvariantExpr) ValueType() Kind          { return KindBool }
func (e *ancestorInvariantExpr) IsConstant() bool         { return false }
func (e *ancestorInvariantExpr) IsActive() bool           { return true }
func (e *ancestorInvariantExpr) Activate()                {}
func (e *ancestorInvariantExpr) Deactivate() error        { return nil }
func (e *ancestorInvariantExpr) AddListener(l Listener)   {}
func (e *ancestorInvariantExpr) RemoveListener(l Listener) {}
func (e *ancestorInvariantExpr) NotifyChanged()           {}
func (e *ancestorInvariantExpr) Value() Value {
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.State == StateFailing && p.Outcome != OutcomeInterrupted {
			return BoolValue(false)
		}
		v, ok := p.Conditions.Eval(CondInvariant)
		if !ok || !v.IsKnown() {
			continue
		}
		if b, _ := v.AsBool(); !b {
			return BoolValue(false)
		}
	}
	return BoolValue(true)
}

// NodeStateIs is a plan-author-facing node-introspection expression
// (§4.2: "Node.EXECUTING", "Node.FINISHED", etc.): always active, reads
// the referenced node's live State directly. Grounded on the same
// live-polling shape as parentStateExpr, exported here since a plan
// author (via planbuild) may reference any node it holds a pointer to,
// not just a node's own parent.
type NodeStateIs struct {
	node *Node
	want NodeState
}

// NewNodeStateIs builds a condition that is true exactly while node is
// in state want.
func NewNodeStateIs(node *Node, want NodeState) *NodeStateIs {
	return &NodeStateIs{node: node, want: want}
}

func (e *NodeStateIs) ValueType() Kind          { return KindBool }
func (e *NodeStateIs) IsConstant() bool         { return false }
func (e *NodeStateIs) IsActive() bool           { return true }
func (e *NodeStateIs) Activate()                {}
func (e *NodeStateIs) Deactivate() error        { return nil }
func (e *NodeStateIs) AddListener(l Listener)   {}
func (e *NodeStateIs) RemoveListener(l Listener) {}
func (e *NodeStateIs) NotifyChanged()           {}
func (e *NodeStateIs) Value() Value             { return BoolValue(e.node.State == e.want) }

// NodeOutcomeIs mirrors NodeStateIs for a referenced node's Outcome
// (§4.2: "Node.outcome = SUCCESS"-style guards), most useful once the
// node has reached IterationEnded or later.
type NodeOutcomeIs struct {
	node *Node
	want NodeOutcome
}

// NewNodeOutcomeIs builds a condition that is true exactly while node's
// Outcome equals want.
func NewNodeOutcomeIs(node *Node, want NodeOutcome) *NodeOutcomeIs {
	return &NodeOutcomeIs{node: node, want: want}
}

func (e *NodeOutcomeIs) ValueType() Kind          { return KindBool }
func (e *NodeOutcomeIs) IsConstant() bool         { return false }
func (e *NodeOutcomeIs) IsActive() bool           { return true }
func (e *NodeOutcomeIs) Activate()                {}
func (e *NodeOutcomeIs) Deactivate() error        { return nil }
func (e *NodeOutcomeIs) AddListener(l Listener)   {}
func (e *NodeOutcomeIs) RemoveListener(l Listener) {}
func (e *NodeOutcomeIs) NotifyChanged()           {}
func (e *NodeOutcomeIs) Value() Value             { return BoolValue(e.node.Outcome == e.want) }

// NodeFailureIs mirrors NodeStateIs for a referenced node's FailureType,
// letting a plan branch on *why* a sibling or descendant failed.
type NodeFailureIs struct {
	node *Node
	want FailureType
}

// NewNodeFailureIs builds a condition that is true exactly while node's
// Failure equals want.
func NewNodeFailureIs(node *Node, want FailureType) *NodeFailureIs {
	return &NodeFailureIs{node: node, want: want}
}

func (e *NodeFailureIs) ValueType() Kind          { return KindBool }
func (e *NodeFailureIs) IsConstant() bool         { return false }
func (e *NodeFailureIs) IsActive() bool           { return true }
func (e *NodeFailureIs) Activate()                {}
func (e *NodeFailureIs) Deactivate() error        { return nil }
func (e *NodeFailureIs) AddListener(l Listener)   {}
func (e *NodeFailureIs) RemoveListener(l Listener) {}
func (e *NodeFailureIs) NotifyChanged()           {}
func (e *NodeFailureIs) Value() Value             { return BoolValue(e.node.Failure == e.want) }

// NodeHandleIs mirrors NodeStateIs for a referenced Command node's live
// CommandHandle (§4.7's "Node.COMMAND_HANDLE" introspection).
type NodeHandleIs struct {
	node *Node
	want CommandHandle
}

// NewNodeHandleIs builds a condition that is true exactly while node's
// Handle equals want.
func NewNodeHandleIs(node *Node, want CommandHandle) *NodeHandleIs {
	return &NodeHandleIs{node: node, want: want}
}

func (e *NodeHandleIs) ValueType() Kind          { return KindBool }
func (e *NodeHandleIs) IsConstant() bool         { return false }
func (e *NodeHandleIs) IsActive() bool           { return true }
func (e *NodeHandleIs) Activate()                {}
func (e *NodeHandleIs) Deactivate() error        { return nil }
func (e *NodeHandleIs) AddListener(l Listener)   {}
func (e *NodeHandleIs) RemoveListener(l Listener) {}
func (e *NodeHandleIs) NotifyChanged()           {}
func (e *NodeHandleIs) Value() Value             { return BoolValue(e.node.Handle == e.want) }

// NodeTimepoint reads one of a referenced node's recorded Timepoints as a
// Real value (§4.2: "Node.EXECUTING.START"), Unknown until that instant
// has actually been reached.
type NodeTimepoint struct {
	target *Node
	tp     Timepoint
}

// NewNodeTimepoint builds an expression reading node's start/end instant
// for tp.State.
func NewNodeTimepoint(target *Node, tp Timepoint) *NodeTimepoint {
	return &NodeTimepoint{target: target, tp: tp}
}

func (e *NodeTimepoint) ValueType() Kind          { return KindReal }
func (e *NodeTimepoint) IsConstant() bool         { return false }
func (e *NodeTimepoint) IsActive() bool           { return true }
func (e *NodeTimepoint) Activate()                {}
func (e *NodeTimepoint) Deactivate() error        { return nil }
func (e *NodeTimepoint) AddListener(l Listener)   {}
func (e *NodeTimepoint) RemoveListener(l Listener) {}
func (e *NodeTimepoint) NotifyChanged()           {}
func (e *NodeTimepoint) Value() Value {
	v, ok := e.target.Timepoint(e.tp.State, e.tp.Start)
	if !ok {
		return Unknown()
	}
	return RealValue(v)
}

// SetState records a state transition, stamping the timepoint for both
// the state being left and the state being entered. now is the
// executive's current time-cache value (§4.5, §4.8).
func (n *Node) SetState(next NodeState, now float64) {
	if tp, ok := n.timepoints[n.State]; ok {
		tp[1] = now
		n.timepoints[n.State] = tp
	}
	n.State = next
	n.timepoints[next] = [2]float64{now, math.NaN()}
}

// Timepoint returns the recorded start or end instant for state s, and
// whether that instant has been reached yet.
func (n *Node) Timepoint(s NodeState, start bool) (float64, bool) {
	tp, ok := n.timepoints[s]
	if !ok {
		return 0, false
	}
	if start {
		return tp[0], true
	}
	if math.IsNaN(tp[1]) {
		return 0, false
	}
	return tp[1], true
}

// IsLeaf reports whether n has no children: Empty/Assignment/Command/
// Update never do, but a LibraryNodeCall does once BindLibraryCall has
// attached its callee body, so it is only a leaf before binding.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// ActivateSubtree activates every condition expression, declared
// variable, and assignment body of n and its descendants. Plans are
// activated en masse when handed to the executive (§3's lifecycle);
// the activation counts unwind only when the plan is torn down.
func (n *Node) ActivateSubtree() {
	n.Conditions.ActivateAll()
	for _, v := range n.Variables {
		v.Activate()
	}
	if n.Assign != nil {
		n.Assign.Target.Activate()
		n.Assign.RHS.Activate()
	}
	for _, c := range n.Children {
		c.ActivateSubtree()
	}
}

// ResetForRepeat prepares n for another iteration after its Repeat
// condition sent it back to Waiting: its own outcome bookkeeping is
// cleared (a Waiting node carries no outcome or failure) and every
// descendant is returned to Inactive for re-execution (§4.5:
// "Finished -> Inactive only when the parent explicitly resets it").
func (n *Node) ResetForRepeat(now float64) {
	n.resetBookkeeping()
	for _, c := range n.Children {
		c.resetSubtree(now)
	}
}

func (n *Node) resetSubtree(now float64) {
	n.resetBookkeeping()
	n.SetState(StateInactive, now)
	for _, c := range n.Children {
		c.resetSubtree(now)
	}
}

// resetBookkeeping clears per-iteration state: outcome, failure, command
// correlation, and every locally declared variable back to its initial
// value (§4.2's was-set-since-initialization contract).
func (n *Node) resetBookkeeping() {
	n.Outcome = OutcomeUnknown
	n.Failure = FailureNone
	n.Handle = HandleUnknown
	n.CommandID = ""
	n.UpdateID = ""
	for _, v := range n.Variables {
		v.Reset()
	}
	if n.ActionComplete != nil {
		n.ActionComplete.Reset()
	}
	if n.AbortComplete != nil {
		n.AbortComplete.Reset()
	}
}
