package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindLibraryCallRejectsMissingAlias(t *testing.T) {
	call := NewNode("Call", NodeTypeLibraryNodeCall, nil)
	library := NewNode("Lib", NodeTypeList, nil)
	library.Interface = []InterfaceVar{{Name: "target", InOut: true}}

	err := call.BindLibraryCall(library, map[string]Expression{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target")
}

func TestBindLibraryCallRejectsUnexpectedAlias(t *testing.T) {
	call := NewNode("Call", NodeTypeLibraryNodeCall, nil)
	library := NewNode("Lib", NodeTypeList, nil)

	err := call.BindLibraryCall(library, map[string]Expression{"stray": NewConstant(BoolValue(true))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stray")
}

func TestBindLibraryCallResolvesReadThroughAlias(t *testing.T) {
	caller := NewVariable("x", KindInt, IntValue(42))
	caller.Activate()

	call := NewNode("Call", NodeTypeLibraryNodeCall, nil)
	library := NewNode("Lib", NodeTypeEmpty, nil)
	library.Interface = []InterfaceVar{{Name: "in", InOut: false}}

	require.NoError(t, call.BindLibraryCall(library, map[string]Expression{"in": caller}))

	resolved := library.ResolveVariable("in")
	require.NotNil(t, resolved)
	resolved.Activate()
	assert.Equal(t, IntValue(42), resolved.Value())
}

func TestBindLibraryCallInAliasRejectsWrite(t *testing.T) {
	caller := NewVariable("x", KindInt, IntValue(1))
	call := NewNode("Call", NodeTypeLibraryNodeCall, nil)
	library := NewNode("Lib", NodeTypeEmpty, nil)
	library.Interface = []InterfaceVar{{Name: "in", InOut: false}}
	require.NoError(t, call.BindLibraryCall(library, map[string]Expression{"in": caller}))

	resolved := library.ResolveVariable("in")
	asg, ok := resolved.(interface{ Set(Value) error })
	require.True(t, ok)
	assert.Error(t, asg.Set(IntValue(2)))
}

func TestBindLibraryCallInOutAliasWritesThroughToCaller(t *testing.T) {
	caller := NewVariable("x", KindInt, IntValue(1))
	caller.Activate()

	call := NewNode("Call", NodeTypeLibraryNodeCall, nil)
	library := NewNode("Lib", NodeTypeEmpty, nil)
	library.Interface = []InterfaceVar{{Name: "acc", InOut: true}}
	require.NoError(t, call.BindLibraryCall(library, map[string]Expression{"acc": caller}))

	resolved := library.ResolveVariable("acc")
	asg, ok := resolved.(interface{ Set(Value) error })
	require.True(t, ok)
	require.NoError(t, asg.Set(IntValue(9)))
	assert.Equal(t, IntValue(9), caller.Value())
}

func TestBindLibraryCallAttachesLibraryAsChild(t *testing.T) {
	call := NewNode("Call", NodeTypeLibraryNodeCall, nil)
	library := NewNode("Lib", NodeTypeEmpty, nil)

	require.NoError(t, call.BindLibraryCall(library, nil))
	require.Len(t, call.Children, 1)
	assert.Same(t, library, call.Children[0])
	assert.False(t, call.IsLeaf())
}
