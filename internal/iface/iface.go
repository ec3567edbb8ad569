// Package iface defines the executive's two boundary contracts (§6):
// Inbound, through which the outside world pushes state changes and
// command/update acknowledgements into the executive, and Outbound,
// through which the executive drives commands, aborts, and planner
// updates out to the world. Concrete adapters implementing either
// interface are out of scope (spec.md §1); this package only fixes the
// shape they must have.
package iface

import "github.com/plexirun/plexir/internal/domain"

// Inbound is implemented by the executive itself and called by whatever
// drives external events into it (a test harness, a CLI's stdin reader
// in --block mode, or — out of scope here — a real adapter goroutine).
type Inbound interface {
	// UpdateState pushes a new value for a named external state into
	// the cache (§4.4).
	UpdateState(name string, args []domain.Value, value domain.Value)

	// SetThresholds installs or replaces the tolerance window for a
	// LookupOnChange subscription (§4.4).
	SetThresholds(name string, args []domain.Value, low, high float64)

	// DeliverCommandHandle relays an asynchronous CommandHandle update
	// for a previously dispatched command (§4.7).
	DeliverCommandHandle(commandID string, handle domain.CommandHandle)

	// DeliverCommandReturn relays a command's return value, if any.
	DeliverCommandReturn(commandID string, value domain.Value)

	// DeliverCommandAbortAck relays the result of an abort request.
	DeliverCommandAbortAck(commandID string, aborted bool)

	// DeliverUpdateAck relays the planner's acknowledgement of an
	// Update node's payload.
	DeliverUpdateAck(updateID string, ack bool)

	// NotifyExec wakes the executive to run another macro step, the
	// inbound-side counterpart of the wakeup semaphore (§4.8).
	NotifyExec()
}

// Outbound is implemented by an adapter and called by the executive's
// Dispatcher to drive effects into the world (§4.7).
type Outbound interface {
	// ExecuteCommand dispatches a named command with frozen argument
	// values and its declared resource list, identified by commandID for
	// later handle/return correlation.
	ExecuteCommand(commandID, name string, args []domain.Value, resources []domain.ResourceDecl) error

	// InvokeAbort requests cancellation of a previously dispatched
	// command, re-presenting its name and frozen arguments so an adapter
	// that routes by command identity rather than by id can find it.
	InvokeAbort(commandID, name string, args []domain.Value) error

	// SendPlannerUpdate delivers an Update node's frozen payload,
	// identified by updateID for the later DeliverUpdateAck and by the
	// originating node's id for the planner's own bookkeeping.
	SendPlannerUpdate(updateID, sourceNodeID string, pairs map[string]domain.Value) error

	// SubscribeState registers interest in a named external state,
	// requesting that the adapter call back into Inbound.UpdateState
	// whenever it changes.
	SubscribeState(name string, args []domain.Value) error

	// UnsubscribeState cancels a prior SubscribeState.
	UnsubscribeState(name string, args []domain.Value) error
}
