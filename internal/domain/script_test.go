package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptExpressionEvaluatesAgainstVars(t *testing.T) {
	counter := NewVariable("counter", KindInt, IntValue(0))
	se, err := NewScriptExpression("counter >= 3", map[string]Expression{"counter": counter})
	require.NoError(t, err)

	counter.Activate()
	se.Activate()
	assert.Equal(t, BoolValue(false), se.Value())

	require.NoError(t, counter.Set(IntValue(3)))
	assert.Equal(t, BoolValue(true), se.Value())
}

func TestScriptExpressionUnknownOperandIsUnknown(t *testing.T) {
	x := NewVariable("x", KindInt, Unknown())
	se, err := NewScriptExpression("x > 0", map[string]Expression{"x": x})
	require.NoError(t, err)
	x.Activate()
	se.Activate()
	assert.False(t, se.Value().IsKnown())
}

func TestScriptExpressionCompileErrorAtConstruction(t *testing.T) {
	_, err := NewScriptExpression("this is not valid expr syntax (((", nil)
	require.Error(t, err)
}
