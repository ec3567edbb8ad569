package dispatch

import (
	"testing"

	"github.com/plexirun/plexir/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceArbiterGrantsWithinCapacity(t *testing.T) {
	a := NewResourceArbiter(map[string]float64{"arm": 1})
	_, granted := a.Acquire("cmd1", []domain.ResourceDecl{{Name: "arm", Priority: 1, Upper: 1}})
	require.True(t, granted)
}

func TestResourceArbiterDeniesOverCapacityNoHigherPriority(t *testing.T) {
	a := NewResourceArbiter(map[string]float64{"arm": 1})
	_, granted := a.Acquire("cmd1", []domain.ResourceDecl{{Name: "arm", Priority: 1, Upper: 1}})
	require.True(t, granted)

	_, granted = a.Acquire("cmd2", []domain.ResourceDecl{{Name: "arm", Priority: 1, Upper: 1}})
	assert.False(t, granted, "equal priority contention must not displace the incumbent")
}

func TestResourceArbiterDisplacesLowerPriority(t *testing.T) {
	a := NewResourceArbiter(map[string]float64{"arm": 1})
	_, granted := a.Acquire("low", []domain.ResourceDecl{{Name: "arm", Priority: 5, Upper: 1}})
	require.True(t, granted)

	out, granted := a.Acquire("high", []domain.ResourceDecl{{Name: "arm", Priority: 1, Upper: 1}})
	require.True(t, granted)
	assert.Contains(t, out["arm"].Displaced, "low")
}

func TestResourceArbiterReleaseFreesCapacity(t *testing.T) {
	a := NewResourceArbiter(map[string]float64{"arm": 1})
	a.Acquire("cmd1", []domain.ResourceDecl{{Name: "arm", Priority: 1, Upper: 1}})
	a.Release("cmd1", "arm")

	_, granted := a.Acquire("cmd2", []domain.ResourceDecl{{Name: "arm", Priority: 1, Upper: 1}})
	assert.True(t, granted)
}

func TestReleaseTerminatedHonorsReleaseOnTerminationFlag(t *testing.T) {
	a := NewResourceArbiter(map[string]float64{"arm": 1})
	_, granted := a.Acquire("cmd1", []domain.ResourceDecl{{Name: "arm", Priority: 1, Upper: 1, ReleaseOnTermination: false}})
	require.True(t, granted)

	a.ReleaseTerminated("cmd1")
	_, granted = a.Acquire("cmd2", []domain.ResourceDecl{{Name: "arm", Priority: 1, Upper: 1}})
	assert.False(t, granted, "a claim with ReleaseOnTermination=false must survive its owner's termination")
}

func TestReleaseTerminatedFreesCapacityWhenFlagSet(t *testing.T) {
	a := NewResourceArbiter(map[string]float64{"arm": 1})
	_, granted := a.Acquire("cmd1", []domain.ResourceDecl{{Name: "arm", Priority: 1, Upper: 1, ReleaseOnTermination: true}})
	require.True(t, granted)

	a.ReleaseTerminated("cmd1")
	_, granted = a.Acquire("cmd2", []domain.ResourceDecl{{Name: "arm", Priority: 1, Upper: 1}})
	assert.True(t, granted, "a claim with ReleaseOnTermination=true is freed once its owner terminates")
}
