package debugtab

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSkipsCommentsAndBlankLines(t *testing.T) {
	tab, err := Parse(strings.NewReader("# header\n\n:Node:transition\n:Exec\n"))
	require.NoError(t, err)

	assert.True(t, tab.Enabled("Node:transition"))
	assert.True(t, tab.Enabled("Node:transition:detail"), "patterns match as prefixes")
	assert.True(t, tab.Enabled("Exec:macro-step"))
	assert.False(t, tab.Enabled("Cache:update"))
}

func TestParseRejectsMalformedLines(t *testing.T) {
	_, err := Parse(strings.NewReader("Node:transition\n"))
	assert.Error(t, err, "a marker line must start with ':'")
}

func TestNilTableDisablesEverything(t *testing.T) {
	var tab *Table
	assert.False(t, tab.Enabled("Node:transition"))
}
