package domain

// NodeType is the closed set of node bodies a plan tree can contain (§3,
// §4.5). Unlike the teacher's open string-typed node kinds, this is a
// small fixed enum: the executive's transition tables are indexed by it.
type NodeType uint8

const (
	NodeTypeEmpty NodeType = iota
	NodeTypeAssignment
	NodeTypeCommand
	NodeTypeUpdate
	NodeTypeList
	NodeTypeLibraryNodeCall
)

func (nt NodeType) String() string {
	switch nt {
	case NodeTypeEmpty:
		return "Empty"
	case NodeTypeAssignment:
		return "Assignment"
	case NodeTypeCommand:
		return "Command"
	case NodeTypeUpdate:
		return "Update"
	case NodeTypeList:
		return "List"
	case NodeTypeLibraryNodeCall:
		return "LibraryNodeCall"
	default:
		return "Unknown"
	}
}

// NodeState is the seven-state machine of §4.5. Every node in a plan tree
// occupies exactly one of these at any time.
type NodeState uint8

const (
	StateInactive NodeState = iota
	StateWaiting
	StateExecuting
	StateIterationEnded
	StateFinished
	StateFailing
	StateFinishing
)

func (s NodeState) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateWaiting:
		return "WAITING"
	case StateExecuting:
		return "EXECUTING"
	case StateIterationEnded:
		return "ITERATION_ENDED"
	case StateFinished:
		return "FINISHED"
	case StateFailing:
		return "FAILING"
	case StateFinishing:
		return "FINISHING"
	default:
		return "UNKNOWN"
	}
}

// IsQuiescent reports whether a node in this state has nothing left to
// schedule on its own (it only moves on external notification); used by
// the macro-step scheduler's fixpoint check (§4.6).
func (s NodeState) IsQuiescent() bool {
	return s == StateFinished
}

// NodeOutcome records how a node's execution concluded (§4.5). It is
// Unknown (the zero value) until the node reaches IterationEnded.
type NodeOutcome uint8

const (
	OutcomeUnknown NodeOutcome = iota
	OutcomeSuccess
	OutcomeFailure
	OutcomeSkipped
	OutcomeInterrupted
)

func (o NodeOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeFailure:
		return "FAILURE"
	case OutcomeSkipped:
		return "SKIPPED"
	case OutcomeInterrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// FailureType refines an OutcomeFailure/OutcomeInterrupted with the
// specific condition or event that produced it (§4.5's transition table
// names these explicitly so a plan can branch on "why" a child failed).
type FailureType uint8

const (
	FailureNone FailureType = iota
	FailurePreConditionFailed
	FailureInvariantConditionFailed
	FailurePostConditionFailed
	FailureParentFailed
	FailureParentExited
	FailureExited
)

func (f FailureType) String() string {
	switch f {
	case FailurePreConditionFailed:
		return "PRE_CONDITION_FAILED"
	case FailureInvariantConditionFailed:
		return "INVARIANT_CONDITION_FAILED"
	case FailurePostConditionFailed:
		return "POST_CONDITION_FAILED"
	case FailureParentFailed:
		return "PARENT_FAILED"
	case FailureParentExited:
		return "PARENT_EXITED"
	case FailureExited:
		return "EXITED"
	default:
		return "NO_FAILURE"
	}
}

// ApplicationState is the executive's own lifecycle (§4.8, §9), distinct
// from any one node's NodeState.
type ApplicationState uint8

const (
	AppUninited ApplicationState = iota
	AppInited
	AppReady
	AppRunning
	AppStopped
	AppShutdown
)

func (a ApplicationState) String() string {
	switch a {
	case AppUninited:
		return "UNINITED"
	case AppInited:
		return "INITED"
	case AppReady:
		return "READY"
	case AppRunning:
		return "RUNNING"
	case AppStopped:
		return "STOPPED"
	case AppShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// legalAppTransitions enumerates the allowed ApplicationState edges (§4.8):
// an out-of-order call (e.g. Run before Ready) is an InvariantViolated
// error, not a silent no-op.
var legalAppTransitions = map[ApplicationState][]ApplicationState{
	AppUninited: {AppInited},
	AppInited:   {AppReady},
	AppReady:    {AppRunning, AppStopped},
	AppRunning:  {AppStopped},
	AppStopped:  {AppRunning, AppShutdown},
	AppShutdown: {},
}

// CanTransition reports whether moving from a to b is a legal application
// lifecycle edge.
func (a ApplicationState) CanTransition(b ApplicationState) bool {
	for _, next := range legalAppTransitions[a] {
		if next == b {
			return true
		}
	}
	return false
}

// CommandHandle is the lifecycle of a dispatched command as observed by
// the plan (§4.7). It starts Unknown and only ever advances forward.
type CommandHandle uint8

const (
	HandleUnknown CommandHandle = iota
	HandleSentToSystem
	HandleAccepted
	HandleReceivedBySystem
	HandleSuccess
	HandleDenied
	HandleFailed
)

func (h CommandHandle) String() string {
	switch h {
	case HandleSentToSystem:
		return "COMMAND_SENT_TO_SYSTEM"
	case HandleAccepted:
		return "COMMAND_ACCEPTED"
	case HandleReceivedBySystem:
		return "COMMAND_RCVD_BY_SYSTEM"
	case HandleSuccess:
		return "COMMAND_SUCCESS"
	case HandleDenied:
		return "COMMAND_DENIED"
	case HandleFailed:
		return "COMMAND_FAILED"
	default:
		return "COMMAND_HANDLE_UNKNOWN"
	}
}

// IsTerminal reports whether this handle value is a fixed point — the
// command will never be re-dispatched or change handle again.
func (h CommandHandle) IsTerminal() bool {
	return h == HandleSuccess || h == HandleDenied || h == HandleFailed
}
