package main

import (
	"testing"

	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"city=London", "days=3", "metric=true", "tags=[\"a\",\"b\"]", "note=a=b"})
	require.NoError(t, err)

	city, _ := params.Get("city")
	assert.Equal(t, mcp.KindString, city.Kind())
	assert.Equal(t, "London", city.String())

	days, _ := params.Get("days")
	assert.Equal(t, "3", days.String())

	metric, _ := params.Get("metric")
	b, ok := metric.BoolValue()
	assert.True(t, ok)
	assert.True(t, b)

	tags, _ := params.Get("tags")
	items, ok := tags.Items()
	require.True(t, ok)
	assert.Len(t, items, 2)

	note, _ := params.Get("note")
	assert.Equal(t, "a=b", note.String())
}

func TestParseParamsRejectsMalformedPairs(t *testing.T) {
	for _, pair := range []string{"novalue", "=x"} {
		_, err := parseParams([]string{pair})
		assert.Error(t, err, pair)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"version", "list", "call", "serve"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
