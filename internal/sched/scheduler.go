package sched

import "github.com/plexirun/plexir/internal/domain"

// isExitingTransition reports the states a node transitions *into* that count as
// "exiting" for macro-step ordering purposes (§4.6): a node is leaving
// active execution. entering is everything else a rule can produce.
func isExitingTransition(to domain.NodeState) bool {
	switch to {
	case domain.StateFinished, domain.StateFailing, domain.StateFinishing, domain.StateIterationEnded:
		return true
	default:
		return false
	}
}

// Transition describes one fired rule, returned for logging/tracing.
type Transition struct {
	Node *domain.Node
	From domain.NodeState
	To   domain.NodeState
}

// Evaluate finds the first known-true guard for n's current state in its
// NodeType's table and reports the resulting transition without applying
// it (§4.5: "first known-true guard wins, unknown blocks").
func Evaluate(n *domain.Node) (Rule, bool) {
	for _, r := range Table(n.Type) {
		if r.From != n.State {
			continue
		}
		v, known := r.Guard(n)
		if !known {
			continue
		}
		if v {
			return r, true
		}
	}
	return Rule{}, false
}

// Apply fires rule on n at time now, updating State, Outcome, and
// Failure as the rule specifies. A Repeat edge back to Waiting resets
// the node's per-iteration bookkeeping and returns its whole subtree to
// Inactive for re-execution (§4.5).
func Apply(n *domain.Node, r Rule, now float64) {
	if r.SetOutcome {
		n.Outcome = r.Outcome
	}
	if r.SetFailure {
		n.Failure = r.Failure
	}
	n.SetState(r.To, now)
	if r.From == domain.StateIterationEnded && r.To == domain.StateWaiting {
		n.ResetForRepeat(now)
	}
	// A Command with an action still in flight must wait in Failing for
	// the abort acknowledgement (§4.7); arming AbortComplete here, at
	// the transition itself, keeps the Failing -> Finished rule from
	// firing within the same macro step, before the executive has even
	// issued the outbound abort.
	if r.To == domain.StateFailing && n.AbortComplete != nil &&
		n.CommandID != "" && !n.Handle.IsTerminal() {
		_ = n.AbortComplete.Set(domain.BoolValue(false))
	}
}

// Scheduler drives the macro-step fixpoint of §4.6: within a single macro
// step, repeatedly drain an "exiting" queue (nodes leaving active
// execution) before an "entering" queue (nodes becoming Waiting/
// Executing again), in each node's plan-order insertion order, until a
// full pass produces no further candidates (quiescence).
type Scheduler struct {
	nodes []*domain.Node // flattened plan tree in depth-first, insertion order
}

// New builds a Scheduler over the flattened node list root and its
// descendants, in depth-first pre-order (matching plan declaration
// order, which is what §4.6's "insertion order" means in a tree with no
// separate insertion step).
func New(root *domain.Node) *Scheduler {
	s := &Scheduler{}
	s.collect(root)
	return s
}

func (s *Scheduler) collect(n *domain.Node) {
	s.nodes = append(s.nodes, n)
	for _, c := range n.Children {
		s.collect(c)
	}
}

// MacroStep runs one full macro step to quiescence and returns every
// transition fired, in fired order, for tracing (§4.6, §4.8 one span per
// macro step).
func (s *Scheduler) MacroStep(now float64) []Transition {
	var fired []Transition
	for {
		exiting := s.collectCandidates(isExitingTransition)
		if len(exiting) == 0 {
			entering := s.collectCandidates(func(to domain.NodeState) bool { return !isExitingTransition(to) })
			if len(entering) == 0 {
				return fired
			}
			fired = append(fired, s.fireAll(entering, now)...)
			continue
		}
		fired = append(fired, s.fireAll(exiting, now)...)
	}
}

type candidate struct {
	node *domain.Node
	rule Rule
}

func (s *Scheduler) collectCandidates(accept func(to domain.NodeState) bool) []candidate {
	var out []candidate
	for _, n := range s.nodes {
		r, ok := Evaluate(n)
		if !ok || !accept(r.To) {
			continue
		}
		out = append(out, candidate{node: n, rule: r})
	}
	return out
}

func (s *Scheduler) fireAll(cands []candidate, now float64) []Transition {
	out := make([]Transition, 0, len(cands))
	for _, c := range cands {
		from := c.node.State
		Apply(c.node, c.rule, now)
		out = append(out, Transition{Node: c.node, From: from, To: c.node.State})
	}
	return out
}

// IsQuiescent reports whether no node in the tree currently has an
// applicable rule — the fixpoint condition a caller can poll after an
// external event before deciding whether another macro step is needed.
func (s *Scheduler) IsQuiescent() bool {
	for _, n := range s.nodes {
		if _, ok := Evaluate(n); ok {
			return false
		}
	}
	return true
}

// Nodes exposes the flattened node list in depth-first pre-order.
func (s *Scheduler) Nodes() []*domain.Node { return s.nodes }
