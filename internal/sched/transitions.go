// Package sched implements the node state machine transition tables and
// the macro-step scheduler (§4.5, §4.6).
package sched

import "github.com/plexirun/plexir/internal/domain"

// Rule is one guarded edge of the per-NodeType transition table (§4.5):
// "first known-true guard wins, unknown blocks". Rules are evaluated in
// declaration order within the set whose From state matches the node's
// current state.
type Rule struct {
	From    domain.NodeState
	Guard   func(n *domain.Node) (bool, bool) // (value, known)
	To      domain.NodeState
	Outcome domain.NodeOutcome
	Failure domain.FailureType
	// SetOutcome/SetFailure distinguish "leave Outcome/Failure unchanged"
	// from "explicitly set to the zero value", since OutcomeUnknown and
	// FailureNone are themselves meaningful.
	SetOutcome bool
	SetFailure bool
}

func known(v domain.Value, ok bool) (bool, bool) {
	if !ok || !v.IsKnown() {
		return false, false
	}
	b, _ := v.AsBool()
	return b, true
}

func cond(n *domain.Node, k domain.ConditionKind) (bool, bool) {
	v, ok := n.Conditions.Eval(k)
	return known(v, ok)
}

func not(f func(n *domain.Node) (bool, bool)) func(n *domain.Node) (bool, bool) {
	return func(n *domain.Node) (bool, bool) {
		v, ok := f(n)
		if !ok {
			return false, false
		}
		return !v, true
	}
}

func condOf(k domain.ConditionKind) func(n *domain.Node) (bool, bool) {
	return func(n *domain.Node) (bool, bool) { return cond(n, k) }
}

func and(fs ...func(n *domain.Node) (bool, bool)) func(n *domain.Node) (bool, bool) {
	return func(n *domain.Node) (bool, bool) {
		for _, f := range fs {
			v, ok := f(n)
			if !ok {
				return false, false
			}
			if !v {
				return false, true
			}
		}
		return true, true
	}
}

// or three-valued-ORs its operands: known-true if any operand is
// known-true, known-false if every operand is known-false, unknown
// otherwise (matching the Waiting state's combined
// Ancestor-Exit/Ancestor-End guard, §4.5).
func or(fs ...func(n *domain.Node) (bool, bool)) func(n *domain.Node) (bool, bool) {
	return func(n *domain.Node) (bool, bool) {
		sawUnknown := false
		for _, f := range fs {
			v, ok := f(n)
			if !ok {
				sawUnknown = true
				continue
			}
			if v {
				return true, true
			}
		}
		if sawUnknown {
			return false, false
		}
		return false, true
	}
}

// allChildrenTerminal reports whether every child of n is Finished
// (§4.5's "All-Children-Waiting-Or-Finished" meta-condition, specialized
// here to the finished half since it is only consulted once children can
// no longer regress).
func allChildrenTerminal(n *domain.Node) (bool, bool) {
	for _, c := range n.Children {
		if c.State != domain.StateFinished {
			return false, true
		}
	}
	return true, true
}

// anyChildFailed reports whether some child of n has already concluded
// with a Failure outcome, regardless of whether its siblings are still
// running — the trigger for a List/LibraryNodeCall to start winding the
// rest of its children down.
func anyChildFailed(n *domain.Node) (bool, bool) {
	for _, c := range n.Children {
		if c.State == domain.StateFinished && c.Outcome == domain.OutcomeFailure {
			return true, true
		}
	}
	return false, true
}

// handleIn builds a guard that is known-true while the node's live
// CommandHandle is any of hs (§4.5: "Finishing (Command) waits for the
// command handle to reach a terminal value").
func handleIn(hs ...domain.CommandHandle) func(n *domain.Node) (bool, bool) {
	return func(n *domain.Node) (bool, bool) {
		for _, h := range hs {
			if n.Handle == h {
				return true, true
			}
		}
		return false, true
	}
}

// ancestorDraining is the combined "an ancestor is taking this node down
// with it" guard consulted by Inactive and Waiting (§4.5): Ancestor-Exit,
// Ancestor-End, or a failed Ancestor-Invariant all resolve a node that
// never started to Finished(Skipped).
func ancestorDraining(n *domain.Node) (bool, bool) {
	return or(
		condOf(domain.CondAncestorExit),
		condOf(domain.CondAncestorEnd),
		not(condOf(domain.CondAncestorInvariant)),
	)(n)
}

// executingFailureRules are the four interrupt edges every node type
// consults continuously while in from (Executing, and again in Finishing
// for the types that have one), in §4.5's declared order: Exit,
// Ancestor-Exit, ¬Invariant, ¬Ancestor-Invariant.
func executingFailureRules(from domain.NodeState) []Rule {
	return []Rule{
		{From: from, Guard: condOf(domain.CondExit), To: domain.StateFailing, Outcome: domain.OutcomeInterrupted, Failure: domain.FailureExited, SetOutcome: true, SetFailure: true},
		{From: from, Guard: condOf(domain.CondAncestorExit), To: domain.StateFailing, Outcome: domain.OutcomeInterrupted, Failure: domain.FailureParentExited, SetOutcome: true, SetFailure: true},
		{From: from, Guard: not(condOf(domain.CondInvariant)), To: domain.StateFailing, Outcome: domain.OutcomeFailure, Failure: domain.FailureInvariantConditionFailed, SetOutcome: true, SetFailure: true},
		{From: from, Guard: not(condOf(domain.CondAncestorInvariant)), To: domain.StateFailing, Outcome: domain.OutcomeFailure, Failure: domain.FailureParentFailed, SetOutcome: true, SetFailure: true},
	}
}

// entryRules are the Inactive and Waiting edges shared by every NodeType
// (§4.5). Skip wins over activation; a node whose ancestors are already
// winding down resolves straight to Finished(Skipped) without ever
// starting.
func entryRules() []Rule {
	return []Rule{
		{From: domain.StateInactive, Guard: or(condOf(domain.CondSkip), ancestorDraining), To: domain.StateFinished, Outcome: domain.OutcomeSkipped, SetOutcome: true},
		{From: domain.StateInactive, Guard: condOf(domain.CondParentExecuting), To: domain.StateWaiting},

		{From: domain.StateWaiting, Guard: condOf(domain.CondSkip), To: domain.StateFinished, Outcome: domain.OutcomeSkipped, SetOutcome: true},
		{From: domain.StateWaiting, Guard: ancestorDraining, To: domain.StateFinished, Outcome: domain.OutcomeSkipped, SetOutcome: true},
		// PreCondition is checked once, at the Start edge: a node whose
		// precondition is false never enters Executing at all (§4.5).
		// Waiting never consults the node's own ExitCondition; that
		// condition first applies once the node is actually Executing.
		{From: domain.StateWaiting, Guard: and(condOf(domain.CondStart), not(condOf(domain.CondPre))), To: domain.StateFinished, Outcome: domain.OutcomeFailure, Failure: domain.FailurePreConditionFailed, SetOutcome: true, SetFailure: true},
		{From: domain.StateWaiting, Guard: and(condOf(domain.CondStart), condOf(domain.CondPre)), To: domain.StateExecuting},
	}
}

// repeatRules close the iteration loop (§4.5): Repeat is gated by
// Ancestor-End/Ancestor-Exit, so a node whose ancestor is itself ending
// or exiting does not loop back to Waiting even if its own
// RepeatCondition holds. The scheduler resets the node's subtree to
// Inactive when the Waiting edge fires.
func repeatRules() []Rule {
	repeat := and(condOf(domain.CondRepeat), not(condOf(domain.CondAncestorEnd)), not(condOf(domain.CondAncestorExit)))
	return []Rule{
		{From: domain.StateIterationEnded, Guard: repeat, To: domain.StateWaiting},
		{From: domain.StateIterationEnded, Guard: not(repeat), To: domain.StateFinished},
	}
}

// Table returns the ordered rule set for a NodeType, per §4.5's
// transition table. Empty/Assignment/Update leave Executing straight to
// IterationEnded with the outcome chosen by Post; Command, List, and
// LibraryNodeCall pass through Finishing first — a Command waiting for
// its handle to reach a terminal value, a List/LibraryNodeCall for all
// of its children to finish.
func Table(t domain.NodeType) []Rule {
	rules := entryRules()
	rules = append(rules, executingFailureRules(domain.StateExecuting)...)

	switch t {
	case domain.NodeTypeCommand:
		rules = append(rules,
			Rule{From: domain.StateExecuting, Guard: condOf(domain.CondEnd), To: domain.StateFinishing},
		)
		rules = append(rules, executingFailureRules(domain.StateFinishing)...)
		rules = append(rules,
			// A command the interface denied or failed cannot satisfy its
			// implicit postcondition of having run, whatever the authored
			// Post says.
			Rule{From: domain.StateFinishing, Guard: handleIn(domain.HandleDenied, domain.HandleFailed), To: domain.StateFailing, Outcome: domain.OutcomeFailure, Failure: domain.FailurePostConditionFailed, SetOutcome: true, SetFailure: true},
			Rule{From: domain.StateFinishing, Guard: and(handleIn(domain.HandleSuccess), condOf(domain.CondPost)), To: domain.StateIterationEnded, Outcome: domain.OutcomeSuccess, SetOutcome: true},
			Rule{From: domain.StateFinishing, Guard: and(handleIn(domain.HandleSuccess), not(condOf(domain.CondPost))), To: domain.StateIterationEnded, Outcome: domain.OutcomeFailure, Failure: domain.FailurePostConditionFailed, SetOutcome: true, SetFailure: true},
			Rule{From: domain.StateFailing, Guard: condOf(domain.CondAbortComplete), To: domain.StateFinished},
		)

	case domain.NodeTypeList, domain.NodeTypeLibraryNodeCall:
		rules = append(rules,
			// A failed child fails the whole list: the list's implicit
			// invariant that its children are succeeding no longer holds,
			// and any still-running siblings are taken down through their
			// Ancestor-Invariant.
			Rule{From: domain.StateExecuting, Guard: anyChildFailed, To: domain.StateFailing, Outcome: domain.OutcomeFailure, Failure: domain.FailureInvariantConditionFailed, SetOutcome: true, SetFailure: true},
			Rule{From: domain.StateExecuting, Guard: condOf(domain.CondEnd), To: domain.StateFinishing},
		)
		rules = append(rules, executingFailureRules(domain.StateFinishing)...)
		rules = append(rules,
			Rule{From: domain.StateFinishing, Guard: anyChildFailed, To: domain.StateFailing, Outcome: domain.OutcomeFailure, Failure: domain.FailureInvariantConditionFailed, SetOutcome: true, SetFailure: true},
			Rule{From: domain.StateFinishing, Guard: and(allChildrenTerminal, condOf(domain.CondPost)), To: domain.StateIterationEnded, Outcome: domain.OutcomeSuccess, SetOutcome: true},
			Rule{From: domain.StateFinishing, Guard: and(allChildrenTerminal, not(condOf(domain.CondPost))), To: domain.StateIterationEnded, Outcome: domain.OutcomeFailure, Failure: domain.FailurePostConditionFailed, SetOutcome: true, SetFailure: true},
			// A failing list waits for every descendant to drain before
			// concluding (§4.5: "Failing -> Finished when ...
			// All-Children-Finished (for List/LibraryNodeCall)").
			Rule{From: domain.StateFailing, Guard: allChildrenTerminal, To: domain.StateFinished},
		)

	default: // Empty, Assignment, Update
		rules = append(rules,
			Rule{From: domain.StateExecuting, Guard: and(condOf(domain.CondEnd), condOf(domain.CondPost)), To: domain.StateIterationEnded, Outcome: domain.OutcomeSuccess, SetOutcome: true},
			Rule{From: domain.StateExecuting, Guard: and(condOf(domain.CondEnd), not(condOf(domain.CondPost))), To: domain.StateIterationEnded, Outcome: domain.OutcomeFailure, Failure: domain.FailurePostConditionFailed, SetOutcome: true, SetFailure: true},
			Rule{From: domain.StateFailing, Guard: condOf(domain.CondAbortComplete), To: domain.StateFinished},
		)
	}

	return append(rules, repeatRules()...)
}
