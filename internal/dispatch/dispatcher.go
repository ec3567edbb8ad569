package dispatch

import (
	"sync"

	"github.com/google/uuid"
	"github.com/plexirun/plexir/internal/domain"
	"github.com/plexirun/plexir/internal/iface"
)

// pendingCommand tracks one in-flight command's handle and resource
// claims so Dispatcher can release resources and relay handle changes
// back to the owning node's CommandHandle variable.
type pendingCommand struct {
	id       string
	node     *domain.Node
	spec     domain.CommandSpec
	handle   domain.CommandHandle
}

// Dispatcher is the executive's outbound command/update path (§4.7). It
// owns one CircuitBreaker per command name and the shared
// ResourceArbiter, and translates InterfaceError into the Failed handle
// per §7's recovery policy.
type Dispatcher struct {
	mu         sync.Mutex
	out        iface.Outbound
	arbiter    *ResourceArbiter
	breakers   map[string]*CircuitBreaker
	pending    map[string]*pendingCommand
	byCommand  map[string]*domain.Node // outlives pending's terminal-handle cleanup, for a late return value
	byUpdate   map[string]*domain.Node
	breakerCfg CircuitBreakerConfig
}

// New constructs a Dispatcher over an Outbound adapter and resource
// capacities.
func New(out iface.Outbound, capacity map[string]float64) *Dispatcher {
	return &Dispatcher{
		out:        out,
		arbiter:    NewResourceArbiter(capacity),
		breakers:   make(map[string]*CircuitBreaker),
		pending:    make(map[string]*pendingCommand),
		byCommand:  make(map[string]*domain.Node),
		byUpdate:   make(map[string]*domain.Node),
		breakerCfg: DefaultCircuitBreakerConfig(),
	}
}

func (d *Dispatcher) breakerFor(name string) *CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.breakers[name]
	if !ok {
		b = NewCircuitBreaker(d.breakerCfg)
		d.breakers[name] = b
	}
	return b
}

// Dispatch sends a Command node's frozen spec to the Outbound adapter
// (§4.7). Resource arbitration happens first; a denial yields
// HandleDenied without ever reaching the adapter. An open circuit
// breaker for this command name yields HandleFailed immediately,
// resolving §7's InterfaceError recovery policy into a concrete
// mechanism (SPEC_FULL C7).
func (d *Dispatcher) Dispatch(n *domain.Node, spec domain.CommandSpec) domain.CommandHandle {
	id := uuid.NewString()
	n.CommandID = id
	pc := &pendingCommand{id: id, node: n, spec: spec, handle: domain.HandleSentToSystem}
	d.mu.Lock()
	d.byCommand[id] = n
	d.mu.Unlock()

	if len(spec.Resources) > 0 {
		outcomes, granted := d.arbiter.Acquire(id, spec.Resources)
		if !granted {
			pc.handle = domain.HandleDenied
			return pc.handle
		}
		// A higher-priority command can bump already-executing,
		// lower-priority siblings out of a contended resource (§4.7,
		// scenario S4): every displaced command's handle becomes Denied.
		for _, out := range outcomes {
			for _, displacedID := range out.Displaced {
				d.DeliverHandle(displacedID, domain.HandleDenied)
			}
		}
	}

	breaker := d.breakerFor(spec.Name)
	if !breaker.Allow() {
		d.arbiter.ReleaseAll(id)
		pc.handle = domain.HandleFailed
		return pc.handle
	}

	d.mu.Lock()
	d.pending[id] = pc
	d.mu.Unlock()

	if err := d.out.ExecuteCommand(id, spec.Name, spec.Args, spec.Resources); err != nil {
		breaker.RecordFailure()
		d.arbiter.ReleaseAll(id)
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
		pc.handle = domain.HandleFailed
		return pc.handle
	}

	breaker.RecordSuccess()
	return pc.handle
}

// DeliverHandle applies an asynchronous handle update for a previously
// dispatched command (the Inbound side calling back into the
// dispatcher), releasing this command's ReleaseOnTermination resources
// once the handle reaches a terminal value (§4.7); claims declared with
// the flag false remain held past termination. It also updates the
// owning node's Handle field and, for Command nodes, flips ActionComplete
// once the handle is terminal so the node's default EndCondition can
// fire.
func (d *Dispatcher) DeliverHandle(commandID string, h domain.CommandHandle) {
	d.mu.Lock()
	pc, ok := d.pending[commandID]
	if ok {
		pc.handle = h
	}
	d.mu.Unlock()
	if !ok {
		return
	}

	pc.node.Handle = h
	if h.IsTerminal() {
		d.arbiter.ReleaseTerminated(commandID)
		d.mu.Lock()
		delete(d.pending, commandID)
		d.mu.Unlock()
		if pc.node.ActionComplete != nil {
			_ = pc.node.ActionComplete.Set(domain.BoolValue(true))
		}
	}
}

// DeliverReturn records a Command node's optional return value (§4.7) on
// its declared return variable, if the plan author bound one.
func (d *Dispatcher) DeliverReturn(commandID string, v domain.Value) {
	d.mu.Lock()
	n, ok := d.byCommand[commandID]
	d.mu.Unlock()
	if !ok || n.Return == nil {
		return
	}
	_ = n.Return.Set(v)
}

// Abort requests cancellation of an in-flight command through the
// Outbound adapter (§4.7, §9 Open Question 2: abort is modeled purely as
// the adapter-level InvokeAbort call plus a context.Context the caller
// threads through, not a self-cancelling adapter thread). It flips the
// node's AbortComplete false until DeliverAbortAck arrives, blocking the
// Failing -> Finished transition until the adapter confirms.
func (d *Dispatcher) Abort(commandID string) error {
	d.mu.Lock()
	n, ok := d.byCommand[commandID]
	pc := d.pending[commandID]
	d.mu.Unlock()
	if ok && n.AbortComplete != nil {
		_ = n.AbortComplete.Set(domain.BoolValue(false))
	}
	// The frozen spec captured at dispatch time identifies the command to
	// the adapter; a command already evicted from pending (terminal
	// handle) falls back to the node's own body.
	var name string
	var args []domain.Value
	switch {
	case pc != nil:
		name, args = pc.spec.Name, pc.spec.Args
	case ok && n.Command != nil:
		name, args = n.Command.Name, n.Command.Args
	}
	return d.out.InvokeAbort(commandID, name, args)
}

// DeliverAbortAck applies the adapter's acknowledgement of a previously
// requested abort, flipping the owning node's AbortComplete true
// regardless of aborted's value: an abort that failed to take still ends
// the node's wait for one (§4.7 leaves "what if the abort itself fails"
// to the interface's own retry policy, out of this module's scope).
func (d *Dispatcher) DeliverAbortAck(commandID string, aborted bool) {
	d.mu.Lock()
	n, ok := d.byCommand[commandID]
	d.mu.Unlock()
	if !ok || n.AbortComplete == nil {
		return
	}
	_ = n.AbortComplete.Set(domain.BoolValue(true))
}

// SendUpdate dispatches a frozen Update node's payload through the
// Outbound adapter, registering the update for the planner's later
// boolean acknowledgement (§4.7: "await a boolean acknowledgement,
// deliver it as the update-complete signal on the owning node").
func (d *Dispatcher) SendUpdate(n *domain.Node, spec domain.UpdateSpec) error {
	id := uuid.NewString()
	n.UpdateID = id
	d.mu.Lock()
	d.byUpdate[id] = n
	d.mu.Unlock()
	return d.out.SendPlannerUpdate(id, n.ID, spec.Pairs)
}

// DeliverUpdateAck applies the planner's acknowledgement of a previously
// sent update, flipping the owning node's ActionComplete so its default
// EndCondition can fire. The boolean itself only reaches the plan
// through a node-introspection expression; a negative acknowledgement
// still completes the update.
func (d *Dispatcher) DeliverUpdateAck(updateID string, ack bool) {
	d.mu.Lock()
	n, ok := d.byUpdate[updateID]
	if ok {
		delete(d.byUpdate, updateID)
	}
	d.mu.Unlock()
	if !ok || n.ActionComplete == nil {
		return
	}
	_ = n.ActionComplete.Set(domain.BoolValue(true))
}
