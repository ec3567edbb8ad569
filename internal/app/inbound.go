package app

import (
	"github.com/plexirun/plexir/internal/cache"
	"github.com/plexirun/plexir/internal/domain"
	"github.com/plexirun/plexir/internal/iface"
)

var _ iface.Inbound = (*executiveInbound)(nil)

// Inbound returns an iface.Inbound view of this Executive. Kept as a
// thin adapter rather than having Executive itself satisfy the
// interface, so the method set callers see is exactly §6's boundary
// contract.
func (e *Executive) Inbound() *executiveInbound { return &executiveInbound{e} }

type executiveInbound struct{ e *Executive }

func (i *executiveInbound) UpdateState(name string, args []domain.Value, value domain.Value) {
	i.e.Cache.Update(cache.StateKey{Name: name, Args: cache.EncodeArgs(args)}, value)
	i.e.NotifyExec()
}

func (i *executiveInbound) SetThresholds(name string, args []domain.Value, low, high float64) {
	// Thresholds are re-derived per-Lookup from its own tolerance
	// whenever its subscription is (re)armed (internal/cache's
	// subscription.arm); an externally pushed override is out of this
	// module's scope beyond waking the executive to re-read its lookups.
	i.e.NotifyExec()
}

func (i *executiveInbound) DeliverCommandHandle(commandID string, handle domain.CommandHandle) {
	i.e.Dispatcher.DeliverHandle(commandID, handle)
	i.e.NotifyExec()
}

func (i *executiveInbound) DeliverCommandReturn(commandID string, value domain.Value) {
	i.e.Dispatcher.DeliverReturn(commandID, value)
	i.e.NotifyExec()
}

func (i *executiveInbound) DeliverCommandAbortAck(commandID string, aborted bool) {
	i.e.Dispatcher.DeliverAbortAck(commandID, aborted)
	i.e.NotifyExec()
}

func (i *executiveInbound) DeliverUpdateAck(updateID string, ack bool) {
	i.e.Dispatcher.DeliverUpdateAck(updateID, ack)
	i.e.NotifyExec()
}

func (i *executiveInbound) NotifyExec() { i.e.NotifyExec() }
