package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct{ calls int }

func (r *recordingListener) NotifyChanged() { r.calls++ }

func TestNotifierActivationHooks(t *testing.T) {
	var n Notifier
	activated, deactivated := 0, 0
	n.OnActivate(func() { activated++ })
	n.OnDeactivate(func() { deactivated++ })

	n.Activate()
	n.Activate()
	assert.Equal(t, 1, activated, "onActivate fires only on the 0->1 edge")
	assert.True(t, n.IsActive())

	require.NoError(t, n.Deactivate())
	assert.Equal(t, 0, deactivated)
	require.NoError(t, n.Deactivate())
	assert.Equal(t, 1, deactivated)
	assert.False(t, n.IsActive())
}

func TestNotifierDeactivateUnderflow(t *testing.T) {
	var n Notifier
	err := n.Deactivate()
	require.Error(t, err)
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, CategoryInvariant, de.Category)
}

func TestNotifierListenerDedup(t *testing.T) {
	var n Notifier
	l := &recordingListener{}
	n.AddListener(l)
	n.AddListener(l)
	assert.Equal(t, 1, n.ListenerCount())

	n.PublishChange()
	assert.Equal(t, 1, l.calls)

	n.RemoveListener(l)
	assert.Equal(t, 0, n.ListenerCount())
}

func TestNotifierCycleGuard(t *testing.T) {
	var n Notifier
	calls := 0
	l := publishOnNotify{notifier: &n, calls: &calls}
	n.AddListener(l)
	n.PublishChange()
	assert.Equal(t, 1, calls, "re-entrant PublishChange during unwind must be suppressed, not recurse")
}

type publishOnNotify struct {
	notifier *Notifier
	calls    *int
}

func (p publishOnNotify) NotifyChanged() {
	*p.calls++
	if *p.calls < 5 {
		p.notifier.PublishChange()
	}
}
