package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionSetDefaults(t *testing.T) {
	cs := NewConditionSet(nil)
	start := cs.Get(CondStart)
	require.NotNil(t, start)
	start.Activate()
	assert.Equal(t, BoolValue(true), start.Value())

	skip := cs.Get(CondSkip)
	require.NotNil(t, skip)
	skip.Activate()
	assert.Equal(t, BoolValue(false), skip.Value())
}

func TestConditionSetOverride(t *testing.T) {
	custom := NewConstant(BoolValue(true))
	cs := NewConditionSet(map[ConditionKind]Expression{CondSkip: custom})
	assert.Same(t, custom, cs.Get(CondSkip))
}

func TestAggregateConditionNilUntilSet(t *testing.T) {
	cs := NewConditionSet(nil)
	assert.Nil(t, cs.Get(CondParentExecuting))
	cs.Set(CondParentExecuting, NewConstant(BoolValue(true)))
	assert.NotNil(t, cs.Get(CondParentExecuting))
}

func TestIsUserDeclarable(t *testing.T) {
	assert.True(t, CondPre.IsUserDeclarable())
	assert.False(t, CondParentExecuting.IsUserDeclarable())
}
