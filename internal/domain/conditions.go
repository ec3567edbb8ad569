package domain

// ConditionKind names the sixteen condition slots a node may declare
// (§4.5). Each maps to an Expression; an absent slot uses the default
// listed in DefaultValue.
type ConditionKind uint8

const (
	CondSkip ConditionKind = iota
	CondStart
	CondEnd
	CondExit
	CondInvariant
	CondPre
	CondPost
	CondRepeat
	CondAncestorEnd
	CondAncestorExit
	CondAncestorInvariant
	CondParentExecuting
	CondParentFinished
	CondParentWaiting
	CondChildrenWaitingOrFinished
	CondAbortComplete
)

func (c ConditionKind) String() string {
	switch c {
	case CondSkip:
		return "SkipCondition"
	case CondStart:
		return "StartCondition"
	case CondEnd:
		return "EndCondition"
	case CondExit:
		return "ExitCondition"
	case CondInvariant:
		return "InvariantCondition"
	case CondPre:
		return "PreCondition"
	case CondPost:
		return "PostCondition"
	case CondRepeat:
		return "RepeatCondition"
	case CondAncestorEnd:
		return "AncestorEndCondition"
	case CondAncestorExit:
		return "AncestorExitCondition"
	case CondAncestorInvariant:
		return "AncestorInvariantCondition"
	case CondParentExecuting:
		return "ParentExecutingCondition"
	case CondParentFinished:
		return "ParentFinishedCondition"
	case CondParentWaiting:
		return "ParentWaitingCondition"
	case CondChildrenWaitingOrFinished:
		return "AllChildrenWaitingOrFinishedCondition"
	case CondAbortComplete:
		return "AbortCompleteCondition"
	default:
		return "UnknownCondition"
	}
}

// userDeclarable marks the eight conditions a plan author may override
// (§4.5); the remaining eight are aggregate conditions derived from tree
// structure and node state and are never user-settable.
var userDeclarable = map[ConditionKind]bool{
	CondSkip:      true,
	CondStart:     true,
	CondEnd:       true,
	CondExit:      true,
	CondInvariant: true,
	CondPre:       true,
	CondPost:      true,
	CondRepeat:    true,
}

// IsUserDeclarable reports whether a plan may override this condition's
// default expression.
func (c ConditionKind) IsUserDeclarable() bool { return userDeclarable[c] }

// DefaultValue returns the constant a condition evaluates to when the
// plan author has not overridden it (§4.5): Start/End/Invariant/Pre/Post
// default to known-true, Skip/Exit/Repeat to known-false. The inherited
// Ancestor-* slots carry the same defaults §4.5 lists for them
// (Ancestor-Exit false, Ancestor-Invariant true, Ancestor-End false) so
// a root node, which has no parent to derive them from, still evaluates
// every guard that consults them.
func (c ConditionKind) DefaultValue() Value {
	switch c {
	case CondStart, CondEnd, CondInvariant, CondPre, CondPost, CondAncestorInvariant:
		return BoolValue(true)
	case CondSkip, CondExit, CondRepeat, CondAncestorExit, CondAncestorEnd:
		return BoolValue(false)
	default:
		return Unknown()
	}
}

// ConditionSet holds the resolved Expression for every condition slot of
// a single node. Slots left nil at construction fall back to a Constant
// wrapping DefaultValue, matching original_source's
// ConcreteExpressionFactory default-condition wiring.
type ConditionSet struct {
	exprs map[ConditionKind]Expression
}

// defaultFilled lists the slots NewConditionSet seeds with their default
// constants: the eight user-declarable conditions plus the three
// Ancestor-* slots, which AddChild replaces with live tree-reading
// expressions for every non-root node. The remaining aggregate
// conditions are left nil here; NewNode installs AbortComplete, and
// AddChild (or Executive.Init for the root) installs ParentExecuting.
// ParentFinished, ParentWaiting and AllChildrenWaitingOrFinished are
// never installed.
var defaultFilled = []ConditionKind{
	CondSkip, CondStart, CondEnd, CondExit, CondInvariant, CondPre,
	CondPost, CondRepeat, CondAncestorExit, CondAncestorEnd,
	CondAncestorInvariant,
}

// NewConditionSet builds a ConditionSet, filling every unset defaulted
// slot with its default constant.
func NewConditionSet(overrides map[ConditionKind]Expression) *ConditionSet {
	cs := &ConditionSet{exprs: make(map[ConditionKind]Expression, len(overrides))}
	for k, v := range overrides {
		cs.exprs[k] = v
	}
	for _, k := range defaultFilled {
		if _, ok := cs.exprs[k]; !ok {
			cs.exprs[k] = NewConstant(k.DefaultValue())
		}
	}
	return cs
}

// Set installs a condition expression after construction (used by
// NewNode, Node.AddChild and Executive.Init to wire End, AbortComplete,
// ParentExecuting and the Ancestor-* slots).
func (cs *ConditionSet) Set(k ConditionKind, e Expression) { cs.exprs[k] = e }

// Get returns the expression for k, or nil if never set (true for an
// aggregate condition nothing wires, e.g. every node's
// AllChildrenWaitingOrFinishedCondition).
func (cs *ConditionSet) Get(k ConditionKind) Expression { return cs.exprs[k] }

// ActivateAll activates every installed condition expression, called
// once when the plan containing the node is handed to the executive.
func (cs *ConditionSet) ActivateAll() {
	for _, e := range cs.exprs {
		e.Activate()
	}
}

// Eval reads the condition's current value without activating it,
// returning (value, ok) where ok is false if the slot is unset.
func (cs *ConditionSet) Eval(k ConditionKind) (Value, bool) {
	e, ok := cs.exprs[k]
	if !ok {
		return Unknown(), false
	}
	return e.Value(), true
}
