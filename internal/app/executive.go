// Package app is the executive's top-level context object (§4.8, §9):
// the explicit struct that replaces the singleton accessors the
// distilled spec flags as a redesign target. Every subsystem — cache,
// scheduler, dispatcher, timebase — is a field here, not a package
// global.
package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/plexirun/plexir/internal/cache"
	"github.com/plexirun/plexir/internal/dispatch"
	"github.com/plexirun/plexir/internal/domain"
	"github.com/plexirun/plexir/internal/iface"
	"github.com/plexirun/plexir/internal/infrastructure/debugtab"
	"github.com/plexirun/plexir/internal/sched"
)

// tracerName identifies this module's spans in whatever otel exporter
// the host process has configured; the executive never configures an
// exporter itself (that belongs to cmd/plexir-exec, if anywhere).
const tracerName = "github.com/plexirun/plexir/internal/app"

// Executive owns the full runtime state of one running plan (§4.8).
// Concrete adapters are out of scope; Outbound is supplied by the
// caller (a test double or, in cmd/plexir-exec, a no-op stub).
type Executive struct {
	state domain.ApplicationState

	Cache      *cache.StateCache
	Scheduler  *sched.Scheduler
	Dispatcher *dispatch.Dispatcher
	Timebase   *Timebase
	Log        zerolog.Logger

	root *domain.Node

	// wakeup is the single-implementation portable blocking wakeup
	// abstraction of §9 — a buffered channel works identically on every
	// Go platform, resolving the Mach/POSIX split the distilled spec
	// inherited from the original's two separate implementations.
	wakeup chan struct{}

	tracer trace.Tracer

	// cycle is bumped once per macro step; strictly increasing for the
	// life of the executive and stamped on every step's log output.
	cycle uint64

	markers *debugtab.Table

	block bool
	stdin *bufio.Reader
}

// Option configures an Executive at construction.
type Option func(*Executive)

// WithBlock enables the --block CLI flag's behavior: each macro step
// blocks on a line read from stdin before running (§6, SPEC_FULL C8
// supplement, grounded on original_source's StandAloneSimulator
// single-step convention).
func WithBlock(enabled bool) Option {
	return func(e *Executive) { e.block = enabled }
}

// WithDebugMarkers installs the debug-message table loaded from a
// --debug marker file (§6); a nil table disables marker-gated output.
func WithDebugMarkers(t *debugtab.Table) Option {
	return func(e *Executive) { e.markers = t }
}

// New constructs an Executive over root's plan tree, in ApplicationState
// Uninited.
func New(root *domain.Node, out iface.Outbound, log zerolog.Logger, opts ...Option) *Executive {
	e := &Executive{
		state:      domain.AppUninited,
		Cache:      cache.NewWithOutbound(out),
		Scheduler:  sched.New(root),
		Dispatcher: dispatch.New(out, nil),
		Timebase:   NewTimebase(),
		Log:        log,
		root:       root,
		wakeup:     make(chan struct{}, 1),
		tracer:     otel.Tracer(tracerName),
		stdin:      bufio.NewReader(os.Stdin),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State reports the executive's current ApplicationState.
func (e *Executive) State() domain.ApplicationState { return e.state }

// transition applies a, returning an InvariantViolated DomainError if the
// edge is not legal (§4.8).
func (e *Executive) transition(to domain.ApplicationState) error {
	if !e.state.CanTransition(to) {
		return domain.InvariantViolated(fmt.Sprintf("illegal application state transition %s -> %s", e.state, to))
	}
	e.Log.Debug().Str("from", e.state.String()).Str("to", to.String()).Msg("application state transition")
	e.state = to
	return nil
}

// Init moves Uninited -> Inited: validates library-call bindings, wires
// the root's activation condition, and activates the plan tree en masse
// (conditions, declared variables, assignment bodies).
func (e *Executive) Init() error {
	if err := e.transition(domain.AppInited); err != nil {
		return err
	}
	if err := firstBindErr(e.root); err != nil {
		return err
	}
	e.root.Conditions.Set(domain.CondParentExecuting, domain.NewConstant(domain.BoolValue(true)))
	e.root.ActivateSubtree()
	return nil
}

// firstBindErr walks the plan tree for a planbuild.WithLibraryCall
// whose alias set failed §6's coverage check, surfacing it here rather
// than at the point the node was built, since planbuild.Build's
// signature stays error-free for every non-library node.
func firstBindErr(n *domain.Node) error {
	if n.BindErr != nil {
		return n.BindErr
	}
	for _, c := range n.Children {
		if err := firstBindErr(c); err != nil {
			return err
		}
	}
	return nil
}

// Ready moves Inited -> Ready: root's activation conditions are wired
// and the executive is prepared to run its first macro step.
func (e *Executive) Ready() error {
	return e.transition(domain.AppReady)
}

// Run moves Ready -> Running and drives macro steps until the plan tree
// is quiescent and the root node has reached Finished, or ctx is
// cancelled (§4.8).
func (e *Executive) Run(ctx context.Context) error {
	if err := e.transition(domain.AppRunning); err != nil {
		return err
	}
	defer func() { _ = e.transition(domain.AppStopped) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if e.root.State == domain.StateFinished {
			return nil
		}

		if e.block {
			fmt.Fprint(os.Stderr, "press enter to run macro step> ")
			if _, err := e.stdin.ReadString('\n'); err != nil {
				return err
			}
		}

		e.stepOnce(ctx)

		if e.Scheduler.IsQuiescent() {
			if e.root.State == domain.StateFinished {
				return nil
			}
			// Nothing left to do without external input: wait for a
			// wakeup (an inbound state/command-handle delivery) or
			// cancellation.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.wakeup:
			}
		}
	}
}

// stepOnce runs exactly one macro step inside its own tracing span
// (SPEC_FULL C8: one span per macro step, child spans per fired
// transition). Side effects queued by fired transitions flush after the
// step reaches quiescence, assignments first, then commands and updates,
// then aborts, in §4.6 step 5's order.
func (e *Executive) stepOnce(ctx context.Context) {
	ctx, span := e.tracer.Start(ctx, "macro_step")
	defer span.End()

	e.cycle++
	e.Cache.Update(cache.StateKey{Name: "time"}, domain.RealValue(e.Timebase.Now()))

	fired := e.Scheduler.MacroStep(e.Timebase.Now())
	if e.markers.Enabled("Exec:macro-step") {
		e.Log.Debug().
			Uint64("cycle", e.cycle).
			Int("transitions", len(fired)).
			Msg("macro step quiesced")
	}
	for _, t := range fired {
		_, childSpan := e.tracer.Start(ctx, "transition",
			trace.WithAttributes())
		e.Log.Info().
			Uint64("cycle", e.cycle).
			Str("node", t.Node.Name).
			Str("from", t.From.String()).
			Str("to", t.To.String()).
			Msg("node state transition")
		childSpan.End()
	}

	for _, t := range fired {
		if t.To == domain.StateExecuting && t.Node.Type == domain.NodeTypeAssignment {
			e.applyAssignment(t.Node)
		}
	}
	for _, t := range fired {
		if t.To == domain.StateExecuting {
			e.dispatchAction(t.Node)
		}
	}
	for _, t := range fired {
		if t.To == domain.StateFailing {
			e.abortIfNeeded(t.Node)
		}
	}
}

// applyAssignment evaluates an Assignment node's RHS and writes it into
// the target (§4.6 step 5: assignments flush first, in insertion order,
// publishing each write). A failed write is a localized plan error: the
// node's outcome is marked Failure per §7's recovery policy, and the
// executive continues.
func (e *Executive) applyAssignment(n *domain.Node) {
	if n.Assign == nil {
		return
	}
	target, ok := n.Assign.Target.(interface{ Set(domain.Value) error })
	if !ok {
		e.Log.Warn().Str("node", n.Name).Msg("assignment target is not assignable")
		n.Outcome = domain.OutcomeFailure
		n.Failure = domain.FailurePreConditionFailed
		return
	}
	if err := target.Set(n.Assign.RHS.Value()); err != nil {
		e.Log.Warn().Str("node", n.Name).Err(err).Msg("assignment failed")
		n.Outcome = domain.OutcomeFailure
		n.Failure = domain.FailurePreConditionFailed
	}
}

// abortIfNeeded requests cancellation of a Command node's
// in-flight action when it enters Failing (§4.7: "if the node exits
// before completion, the scheduler sends an abort and waits for an abort
// acknowledgement before finishing"). A node whose action already
// reached a terminal handle has nothing to abort.
func (e *Executive) abortIfNeeded(n *domain.Node) {
	if n.Type != domain.NodeTypeCommand || n.CommandID == "" || n.Handle.IsTerminal() {
		return
	}
	if err := e.Dispatcher.Abort(n.CommandID); err != nil {
		e.Log.Warn().Str("node", n.Name).Err(err).Msg("abort request failed")
	}
}

// dispatchAction sends a newly-Executing Command or Update node's frozen
// body out through the Dispatcher (§4.7). Assignment bodies flush
// through applyAssignment before this runs; the remaining node types
// have nothing to dispatch and simply sit in Executing until their own
// conditions fire.
func (e *Executive) dispatchAction(n *domain.Node) {
	switch n.Type {
	case domain.NodeTypeCommand:
		if n.Command == nil {
			return
		}
		h := e.Dispatcher.Dispatch(n, *n.Command)
		n.Handle = h
		if h.IsTerminal() && n.ActionComplete != nil {
			_ = n.ActionComplete.Set(domain.BoolValue(true))
		}
	case domain.NodeTypeUpdate:
		if n.Update == nil {
			return
		}
		if err := e.Dispatcher.SendUpdate(n, *n.Update); err != nil {
			// A failed delivery still completes the update; there is no
			// acknowledgement coming for it.
			e.Log.Warn().Str("node", n.Name).Err(err).Msg("update delivery failed")
			if n.ActionComplete != nil {
				_ = n.ActionComplete.Set(domain.BoolValue(true))
			}
		}
	}
}

// ArmDeadline schedules a one-shot `time` state update at absolute
// timebase instant t, waking the executive when it fires (§4.8: timer
// wakeups are delivered as updates to the time cache entry, feeding the
// next macro step).
func (e *Executive) ArmDeadline(t float64) {
	e.Timebase.SetDeadline(t, func() {
		e.Cache.Update(cache.StateKey{Name: "time"}, domain.RealValue(e.Timebase.Now()))
		e.NotifyExec()
	})
}

// SetTickInterval schedules periodic `time` state updates every dt
// (§4.8's set_tick_interval), each waking the executive the same way a
// deadline does. A non-positive dt cancels the tick.
func (e *Executive) SetTickInterval(dt time.Duration) {
	e.Timebase.SetTickInterval(dt, func() {
		e.Cache.Update(cache.StateKey{Name: "time"}, domain.RealValue(e.Timebase.Now()))
		e.NotifyExec()
	})
}

// NotifyExec implements iface.Inbound's wakeup half: it is called by
// whatever delivers external events (a test harness, or a future
// adapter) to unblock Run from waiting on the wakeup semaphore.
func (e *Executive) NotifyExec() {
	select {
	case e.wakeup <- struct{}{}:
	default:
		// Already one pending wakeup queued; a second is redundant
		// (§4.8's semaphore is a capacity-1 gate, not a counter).
	}
}

// Shutdown moves Stopped -> Shutdown, releasing the timebase's pending
// deadline.
func (e *Executive) Shutdown() error {
	e.Timebase.Stop()
	return e.transition(domain.AppShutdown)
}

// Root exposes the plan tree root, used by tests and the CLI to inspect
// final outcome.
func (e *Executive) Root() *domain.Node { return e.root }

// CycleCount reports how many macro steps have run; strictly increasing.
func (e *Executive) CycleCount() uint64 { return e.cycle }
