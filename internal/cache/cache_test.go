package cache

import (
	"reflect"
	"testing"

	"github.com/plexirun/plexir/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSeededToZero(t *testing.T) {
	c := New()
	assert.Equal(t, domain.RealValue(0), c.Get(StateKey{Name: "time"}))
}

func TestLookupNowDoesNotSubscribe(t *testing.T) {
	c := New()
	c.Update(StateKey{Name: "battery"}, domain.RealValue(50))

	l := NewLookupNow(c, StateKey{Name: "battery"})
	l.Activate()
	assert.Equal(t, domain.RealValue(50), l.Value())

	c.Update(StateKey{Name: "battery"}, domain.RealValue(10))
	assert.Equal(t, domain.RealValue(50), l.Value(), "LookupNow must not see subsequent updates")
}

func TestLookupOnChangeZeroToleranceNotifiesOnAnyChange(t *testing.T) {
	c := New()
	c.Update(StateKey{Name: "battery"}, domain.RealValue(50))

	l := NewLookupOnChange(c, StateKey{Name: "battery"}, 0)
	l.Activate()

	c.Update(StateKey{Name: "battery"}, domain.RealValue(50.0001))
	assert.Equal(t, domain.RealValue(50.0001), l.Value())
}

func TestLookupOnChangeWithinToleranceDoesNotNotify(t *testing.T) {
	c := New()
	c.Update(StateKey{Name: "battery"}, domain.RealValue(50))
	l := NewLookupOnChange(c, StateKey{Name: "battery"}, 5)
	l.Activate()

	c.Update(StateKey{Name: "battery"}, domain.RealValue(53))
	assert.Equal(t, domain.RealValue(50), l.Value(), "change within tolerance window must not update the cached value")
}

func TestLookupOnChangeOutsideToleranceNotifies(t *testing.T) {
	c := New()
	c.Update(StateKey{Name: "battery"}, domain.RealValue(50))
	l := NewLookupOnChange(c, StateKey{Name: "battery"}, 5)
	l.Activate()

	c.Update(StateKey{Name: "battery"}, domain.RealValue(56))
	assert.Equal(t, domain.RealValue(56), l.Value())
}

type recordingOutbound struct {
	subscribed   []string
	unsubscribed []string
}

func (r *recordingOutbound) ExecuteCommand(string, string, []domain.Value, []domain.ResourceDecl) error {
	return nil
}
func (r *recordingOutbound) InvokeAbort(string, string, []domain.Value) error { return nil }
func (r *recordingOutbound) SendPlannerUpdate(string, string, map[string]domain.Value) error {
	return nil
}
func (r *recordingOutbound) SubscribeState(name string, _ []domain.Value) error {
	r.subscribed = append(r.subscribed, name)
	return nil
}
func (r *recordingOutbound) UnsubscribeState(name string, _ []domain.Value) error {
	r.unsubscribed = append(r.unsubscribed, name)
	return nil
}

func TestLookupOnChangeSubscribesAndUnsubscribesThroughOutbound(t *testing.T) {
	out := &recordingOutbound{}
	c := NewWithOutbound(out)
	c.Update(StateKey{Name: "altitude"}, domain.RealValue(100))

	l1 := NewLookupOnChange(c, StateKey{Name: "altitude"}, 5)
	l1.Activate()
	assert.Equal(t, []string{"altitude"}, out.subscribed, "first lookup on a state subscribes")

	l2 := NewLookupOnChange(c, StateKey{Name: "altitude"}, 1)
	l2.Activate()
	assert.Equal(t, []string{"altitude"}, out.subscribed, "a second lookup on the same state does not re-subscribe")

	require.NoError(t, l1.Deactivate())
	assert.Empty(t, out.unsubscribed, "one remaining lookup keeps the subscription alive")

	require.NoError(t, l2.Deactivate())
	assert.Equal(t, []string{"altitude"}, out.unsubscribed, "the last lookup leaving unsubscribes")
}

func TestLookupOnChangeToleranceWindowStaysFixedAcrossNotifications(t *testing.T) {
	c := New()
	c.Update(StateKey{Name: "altitude"}, domain.RealValue(100))
	l := NewLookupOnChange(c, StateKey{Name: "altitude"}, 5)
	l.Activate()
	assert.Equal(t, domain.RealValue(100), l.Value())

	notify := func(v float64) bool {
		before := l.Value()
		c.Update(StateKey{Name: "altitude"}, domain.RealValue(v))
		return !reflect.DeepEqual(l.Value(), before)
	}

	assert.False(t, notify(102), "102 is within the [95,105] window armed at activation")
	assert.False(t, notify(104), "104 is within the [95,105] window armed at activation")
	assert.True(t, notify(106), "106 crosses the high threshold of the still-fixed [95,105] window")
	assert.False(t, notify(97), "97 falls back inside the original [95,105] window, which is not recentred on notify")
	assert.True(t, notify(95), "95 sits on the low threshold of the still-fixed [95,105] window")
	assert.Equal(t, domain.RealValue(95), l.Value())
}

func TestLookupOnChangeArmsWindowAtFirstKnownValue(t *testing.T) {
	c := New()
	l := NewLookupOnChange(c, StateKey{Name: "altitude"}, 5)
	l.Activate() // activated before the adapter's first push: entry still Unknown

	c.Update(StateKey{Name: "altitude"}, domain.RealValue(100))
	require.Equal(t, domain.RealValue(100), l.Value(), "the first known value always notifies")

	c.Update(StateKey{Name: "altitude"}, domain.RealValue(103))
	assert.Equal(t, domain.RealValue(100), l.Value(), "the window armed around the first known value suppresses in-band changes")

	c.Update(StateKey{Name: "altitude"}, domain.RealValue(106))
	assert.Equal(t, domain.RealValue(106), l.Value(), "a crossing of the armed window still fires")
}

func TestLookupOnChangeRearmsAfterUnknownInterlude(t *testing.T) {
	c := New()
	c.Update(StateKey{Name: "altitude"}, domain.RealValue(100))
	l := NewLookupOnChange(c, StateKey{Name: "altitude"}, 5)
	l.Activate()

	c.Update(StateKey{Name: "altitude"}, domain.Unknown())
	assert.False(t, l.Value().IsKnown(), "a known-to-unknown flip always notifies")

	c.Update(StateKey{Name: "altitude"}, domain.RealValue(101))
	require.Equal(t, domain.RealValue(101), l.Value(), "the next known value notifies and re-arms")

	c.Update(StateKey{Name: "altitude"}, domain.RealValue(103))
	assert.Equal(t, domain.RealValue(101), l.Value(), "the re-armed window is centred on the re-arming value")
}

func TestLookupOnChangeBoundaryIsInclusive(t *testing.T) {
	c := New()
	c.Update(StateKey{Name: "x"}, domain.RealValue(50))
	l := NewLookupOnChange(c, StateKey{Name: "x"}, 5)
	l.Activate()

	c.Update(StateKey{Name: "x"}, domain.RealValue(55))
	assert.Equal(t, domain.RealValue(55), l.Value(), "a value exactly on the high threshold counts as crossed")
}

func TestLookupDeactivateUnsubscribes(t *testing.T) {
	c := New()
	c.Update(StateKey{Name: "x"}, domain.RealValue(1))
	l := NewLookupOnChange(c, StateKey{Name: "x"}, 0)
	l.Activate()
	require.NoError(t, l.Deactivate())

	c.Update(StateKey{Name: "x"}, domain.RealValue(2))
	assert.False(t, l.Value().IsKnown(), "a deactivated lookup reads Unknown")
}
