package sched

import (
	"testing"

	"github.com/plexirun/plexir/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activateAllConditions(n *domain.Node) {
	for _, k := range []domain.ConditionKind{
		domain.CondSkip, domain.CondStart, domain.CondEnd, domain.CondExit,
		domain.CondInvariant, domain.CondPre, domain.CondPost, domain.CondRepeat,
	} {
		if e := n.Conditions.Get(k); e != nil {
			e.Activate()
		}
	}
}

func buildLeaf(name string) *domain.Node {
	n := domain.NewNode(name, domain.NodeTypeEmpty, nil)
	n.Conditions.Set(domain.CondParentExecuting, domain.NewConstant(domain.BoolValue(true)))
	n.Conditions.Get(domain.CondParentExecuting).Activate()
	activateAllConditions(n)
	return n
}

func TestSimpleNodeRunsToFinishedOnDefaults(t *testing.T) {
	n := buildLeaf("N")
	s := New(n)

	fired := s.MacroStep(0)
	require.NotEmpty(t, fired)
	assert.Equal(t, domain.StateFinished, n.State)
	assert.True(t, s.IsQuiescent())
}

func TestSkipConditionShortCircuitsToFinished(t *testing.T) {
	n := domain.NewNode("N", domain.NodeTypeEmpty, map[domain.ConditionKind]domain.Expression{
		domain.CondSkip: domain.NewConstant(domain.BoolValue(true)),
	})
	n.Conditions.Set(domain.CondParentExecuting, domain.NewConstant(domain.BoolValue(true)))
	n.Conditions.Get(domain.CondParentExecuting).Activate()
	activateAllConditions(n)

	s := New(n)
	s.MacroStep(0)
	assert.Equal(t, domain.StateFinished, n.State)
	assert.Equal(t, domain.OutcomeSkipped, n.Outcome)
}

func TestUnknownEndConditionBlocksInExecuting(t *testing.T) {
	endVar := domain.NewVariable("unset", domain.KindBool, domain.Unknown())
	n := domain.NewNode("N", domain.NodeTypeEmpty, map[domain.ConditionKind]domain.Expression{
		domain.CondEnd: endVar,
	})
	n.Conditions.Set(domain.CondParentExecuting, domain.NewConstant(domain.BoolValue(true)))
	n.Conditions.Get(domain.CondParentExecuting).Activate()
	activateAllConditions(n)
	endVar.Activate()

	s := New(n)
	s.MacroStep(0)
	assert.Equal(t, domain.StateExecuting, n.State, "an unknown End condition must block the transition, not default either way")
}

func TestAncestorExitSkipsWaitingChild(t *testing.T) {
	parent := domain.NewNode("P", domain.NodeTypeList, nil)
	child := buildLeaf("C")
	parent.AddChild(child)

	child.Conditions.Set(domain.CondStart, domain.NewConstant(domain.BoolValue(false)))
	child.Conditions.Get(domain.CondStart).Activate()
	child.SetState(domain.StateWaiting, 0)

	parent.Outcome = domain.OutcomeInterrupted
	parent.SetState(domain.StateFinished, 0)

	s := New(parent)
	s.MacroStep(0)

	assert.Equal(t, domain.StateFinished, child.State, "a Waiting child never entered Executing, so it resolves via Skipped, not Failing")
	assert.Equal(t, domain.OutcomeSkipped, child.Outcome)
	assert.Equal(t, domain.FailureNone, child.Failure)
}

func TestExitConditionInterruptsExecutingNode(t *testing.T) {
	exitVar := domain.NewVariable("exit", domain.KindBool, domain.BoolValue(false))
	n := domain.NewNode("N", domain.NodeTypeEmpty, map[domain.ConditionKind]domain.Expression{
		domain.CondExit: exitVar,
		domain.CondEnd:  domain.NewConstant(domain.BoolValue(false)),
	})
	n.Conditions.Set(domain.CondParentExecuting, domain.NewConstant(domain.BoolValue(true)))
	n.Conditions.Get(domain.CondParentExecuting).Activate()
	activateAllConditions(n)
	exitVar.Activate()

	s := New(n)
	s.MacroStep(0)
	require.Equal(t, domain.StateExecuting, n.State)

	require.NoError(t, exitVar.Set(domain.BoolValue(true)))
	s.MacroStep(0)

	assert.Equal(t, domain.StateFinished, n.State)
	assert.Equal(t, domain.OutcomeInterrupted, n.Outcome)
	assert.Equal(t, domain.FailureExited, n.Failure)
}

func TestAncestorInvariantFailureFailsExecutingChild(t *testing.T) {
	invariantVar := domain.NewVariable("parentInvariant", domain.KindBool, domain.BoolValue(true))
	parent := domain.NewNode("P", domain.NodeTypeList, map[domain.ConditionKind]domain.Expression{
		domain.CondInvariant: invariantVar,
	})
	child := buildLeaf("C")
	child.Conditions.Set(domain.CondEnd, domain.NewConstant(domain.BoolValue(false)))
	child.Conditions.Get(domain.CondEnd).Activate()
	parent.AddChild(child)
	parent.Conditions.Set(domain.CondParentExecuting, domain.NewConstant(domain.BoolValue(true)))
	parent.Conditions.Get(domain.CondParentExecuting).Activate()
	activateAllConditions(parent)
	invariantVar.Activate()

	s := New(parent)
	s.MacroStep(0)
	require.Equal(t, domain.StateExecuting, child.State)

	require.NoError(t, invariantVar.Set(domain.BoolValue(false)))
	s.MacroStep(0)

	assert.Equal(t, domain.StateFinished, child.State)
	assert.Equal(t, domain.OutcomeFailure, child.Outcome)
	assert.Equal(t, domain.FailureParentFailed, child.Failure)
}

func TestLibraryNodeCallRunsBoundBodyToFinished(t *testing.T) {
	caller := domain.NewVariable("result", domain.KindInt, domain.Unknown())
	caller.Activate()

	call := domain.NewNode("Call", domain.NodeTypeLibraryNodeCall, nil)
	call.Conditions.Set(domain.CondParentExecuting, domain.NewConstant(domain.BoolValue(true)))
	call.Conditions.Get(domain.CondParentExecuting).Activate()
	activateAllConditions(call)

	library := buildLeaf("LibBody")
	library.Interface = []domain.InterfaceVar{{Name: "out", InOut: true}}

	require.NoError(t, call.BindLibraryCall(library, map[string]domain.Expression{"out": caller}))

	s := New(call)
	s.MacroStep(0)

	assert.Equal(t, domain.StateFinished, call.State)
	assert.Equal(t, domain.StateFinished, library.State, "the bound callee body runs to completion as the call node's child")
}

func TestEmptyNodeLifecycleSkipsFinishing(t *testing.T) {
	n := buildLeaf("N")
	s := New(n)

	fired := s.MacroStep(0)

	var states []domain.NodeState
	for _, tr := range fired {
		states = append(states, tr.To)
	}
	assert.Equal(t, []domain.NodeState{
		domain.StateWaiting,
		domain.StateExecuting,
		domain.StateIterationEnded,
		domain.StateFinished,
	}, states, "Empty nodes go straight from Executing to IterationEnded; Finishing exists only for Command/List/LibraryNodeCall")
	assert.Equal(t, domain.OutcomeSuccess, n.Outcome)
}

func TestPreConditionFailureFinishesFromWaiting(t *testing.T) {
	n := domain.NewNode("N", domain.NodeTypeEmpty, map[domain.ConditionKind]domain.Expression{
		domain.CondPre: domain.NewConstant(domain.BoolValue(false)),
	})
	n.Conditions.Set(domain.CondParentExecuting, domain.NewConstant(domain.BoolValue(true)))
	activateAllConditions(n)

	s := New(n)
	s.MacroStep(0)

	assert.Equal(t, domain.StateFinished, n.State)
	assert.Equal(t, domain.OutcomeFailure, n.Outcome)
	assert.Equal(t, domain.FailurePreConditionFailed, n.Failure)
}

func TestFailedChildFailsListAndSkipsWaitingSibling(t *testing.T) {
	parent := domain.NewNode("L", domain.NodeTypeList, nil)
	good := buildLeaf("C1")
	bad := domain.NewNode("C2", domain.NodeTypeEmpty, map[domain.ConditionKind]domain.Expression{
		domain.CondInvariant: domain.NewConstant(domain.BoolValue(false)),
	})
	activateAllConditions(bad)
	blocked := domain.NewNode("C3", domain.NodeTypeEmpty, map[domain.ConditionKind]domain.Expression{
		domain.CondStart: domain.NewConstant(domain.BoolValue(false)),
	})
	activateAllConditions(blocked)
	parent.AddChild(good)
	parent.AddChild(bad)
	parent.AddChild(blocked)
	parent.Conditions.Set(domain.CondParentExecuting, domain.NewConstant(domain.BoolValue(true)))
	activateAllConditions(parent)

	s := New(parent)
	s.MacroStep(0)

	assert.Equal(t, domain.StateFinished, bad.State)
	assert.Equal(t, domain.FailureInvariantConditionFailed, bad.Failure)

	assert.Equal(t, domain.StateFinished, parent.State, "the failing list drains its children and finishes")
	assert.Equal(t, domain.OutcomeFailure, parent.Outcome)

	assert.Equal(t, domain.StateFinished, blocked.State, "a sibling still Waiting when the list fails resolves via Skipped")
	assert.Equal(t, domain.OutcomeSkipped, blocked.Outcome)
}

func TestRepeatConditionResetsSubtreeForAnotherIteration(t *testing.T) {
	again := domain.NewVariable("again", domain.KindBool, domain.BoolValue(true))
	again.Activate()

	parent := domain.NewNode("L", domain.NodeTypeList, map[domain.ConditionKind]domain.Expression{
		domain.CondRepeat: again,
	})
	child := buildLeaf("C")
	parent.AddChild(child)
	parent.Conditions.Set(domain.CondParentExecuting, domain.NewConstant(domain.BoolValue(true)))
	activateAllConditions(parent)

	child.Outcome = domain.OutcomeSuccess
	child.SetState(domain.StateFinished, 0)
	parent.Outcome = domain.OutcomeSuccess
	parent.SetState(domain.StateIterationEnded, 0)

	r, ok := Evaluate(parent)
	require.True(t, ok)
	require.Equal(t, domain.StateWaiting, r.To)
	Apply(parent, r, 1)

	assert.Equal(t, domain.StateWaiting, parent.State)
	assert.Equal(t, domain.OutcomeUnknown, parent.Outcome, "a Waiting node carries no outcome")
	assert.Equal(t, domain.StateInactive, child.State, "the repeat returns every descendant to Inactive")
	assert.Equal(t, domain.OutcomeUnknown, child.Outcome)

	// With the repeat stopped, the next macro step replays the whole
	// iteration from the freshly reset tree.
	require.NoError(t, again.Set(domain.BoolValue(false)))
	s := New(parent)
	s.MacroStep(2)
	assert.Equal(t, domain.StateFinished, parent.State)
	assert.Equal(t, domain.OutcomeSuccess, parent.Outcome)
	assert.Equal(t, domain.StateFinished, child.State)
}

func TestCommandNodeWaitsInFinishingForTerminalHandle(t *testing.T) {
	n := domain.NewNode("Cmd", domain.NodeTypeCommand, nil)
	n.Conditions.Set(domain.CondParentExecuting, domain.NewConstant(domain.BoolValue(true)))
	activateAllConditions(n)
	n.ActionComplete.Activate()

	s := New(n)
	s.MacroStep(0)
	require.Equal(t, domain.StateExecuting, n.State, "default EndCondition holds the node until the action completes")

	// A terminal handle arrives; End fires, but the outcome depends on
	// which terminal value it was.
	n.Handle = domain.HandleSuccess
	require.NoError(t, n.ActionComplete.Set(domain.BoolValue(true)))
	s.MacroStep(1)

	assert.Equal(t, domain.StateFinished, n.State)
	assert.Equal(t, domain.OutcomeSuccess, n.Outcome)
}

func TestCommandNodeDeniedHandleFailsTheNode(t *testing.T) {
	n := domain.NewNode("Cmd", domain.NodeTypeCommand, nil)
	n.Conditions.Set(domain.CondParentExecuting, domain.NewConstant(domain.BoolValue(true)))
	activateAllConditions(n)
	n.ActionComplete.Activate()

	s := New(n)
	s.MacroStep(0)
	require.Equal(t, domain.StateExecuting, n.State)

	n.Handle = domain.HandleDenied
	require.NoError(t, n.ActionComplete.Set(domain.BoolValue(true)))
	s.MacroStep(1)

	assert.Equal(t, domain.StateFinished, n.State)
	assert.Equal(t, domain.OutcomeFailure, n.Outcome)
}

func TestListNodeWaitsForAllChildrenBeforeEnding(t *testing.T) {
	parent := domain.NewNode("P", domain.NodeTypeList, nil)
	child := buildLeaf("C")
	parent.AddChild(child)
	parent.Conditions.Set(domain.CondParentExecuting, domain.NewConstant(domain.BoolValue(true)))
	parent.Conditions.Get(domain.CondParentExecuting).Activate()
	activateAllConditions(parent)

	s := New(parent)
	s.MacroStep(0)

	assert.Equal(t, domain.StateFinished, parent.State)
	assert.Equal(t, domain.StateFinished, child.State)
}
