package base

import (
	"sort"
	"testing"

	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMapParams(t *testing.T) {
	tests := []struct {
		name    string
		params  mcp.Params
		mapping map[string]string
		want    mcp.Params
	}{
		{
			name:    "explicit and pass-through",
			params:  mcp.Params{"city": mcp.String("London"), "units": mcp.String("metric")},
			mapping: map[string]string{"city": "q"},
			want:    mcp.Params{"q": mcp.String("London"), "units": mcp.String("metric")},
		},
		{
			name:    "explicit beats implicit collision",
			params:  mcp.Params{"city": mcp.String("London"), "q": mcp.String("ignored")},
			mapping: map[string]string{"city": "q"},
			want:    mcp.Params{"q": mcp.String("London")},
		},
		{
			name:    "unmatched mapping entry",
			params:  mcp.Params{"units": mcp.String("metric")},
			mapping: map[string]string{"city": "q"},
			want:    mcp.Params{"units": mcp.String("metric")},
		},
		{
			name:    "two explicit mappings to one name",
			params:  mcp.Params{"town": mcp.String("Leeds"), "city": mcp.String("London")},
			mapping: map[string]string{"town": "q", "city": "q"},
			want:    mcp.Params{"q": mcp.String("London")},
		},
		{
			name:    "swap names",
			params:  mcp.Params{"a": mcp.Int(1), "b": mcp.Int(2)},
			mapping: map[string]string{"a": "b", "b": "a"},
			want:    mcp.Params{"b": mcp.Int(1), "a": mcp.Int(2)},
		},
		{
			name:   "nil mapping",
			params: mcp.Params{"x": mcp.Bool(true)},
			want:   mcp.Params{"x": mcp.Bool(true)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapParams(tt.params, tt.mapping))
		})
	}
}

func TestMapParamsPrecedence(t *testing.T) {
	names := rapid.SampledFrom([]string{"a", "b", "c", "q", "city", "units"})

	rapid.Check(t, func(t *rapid.T) {
		params := mcp.Params{}
		for _, n := range rapid.SliceOfDistinct(names, func(s string) string { return s }).Draw(t, "params") {
			params[n] = mcp.String("v_" + n)
		}
		mapping := rapid.MapOf(names, names).Draw(t, "mapping")

		out := MapParams(params, mapping)

		// every explicit target present in the request is set by the
		// smallest request name mapping to it
		winners := map[string]string{}
		froms := make([]string, 0, len(mapping))
		for from := range mapping {
			froms = append(froms, from)
		}
		sort.Strings(froms)
		for _, from := range froms {
			if _, ok := params[from]; !ok {
				continue
			}
			if _, ok := winners[mapping[from]]; !ok {
				winners[mapping[from]] = from
			}
		}
		for to, from := range winners {
			if out[to].String() != params[from].String() {
				t.Fatalf("target %q = %v, want value of %q", to, out[to], from)
			}
		}

		// unmapped names pass through unless an explicit target shadows them
		for name, v := range params {
			if _, mapped := mapping[name]; mapped {
				continue
			}
			if _, shadowed := winners[name]; shadowed {
				continue
			}
			if got, ok := out[name]; !ok || got.String() != v.String() {
				t.Fatalf("pass-through %q lost", name)
			}
		}

		if len(out) > len(params) {
			t.Fatalf("output has more entries than input")
		}
	})
}

func TestExpandPath(t *testing.T) {
	params := mcp.Params{"city": mcp.String("Tokyo"), "units": mcp.String("metric")}
	path, err := ExpandPath("/weather/{city}", params)
	require.NoError(t, err)
	assert.Equal(t, "/weather/Tokyo", path)
	assert.Equal(t, mcp.Params{"units": mcp.String("metric")}, params)
}

func TestExpandPathEscapesAndRenders(t *testing.T) {
	params := mcp.Params{"name": mcp.String("New York/NY"), "id": mcp.Int(42), "ratio": mcp.Float(1.5)}
	path, err := ExpandPath("/cities/{name}/items/{id}/{ratio}/{id}", params)
	require.NoError(t, err)
	assert.Equal(t, "/cities/New%20York%2FNY/items/42/1.5/42", path)
	assert.Empty(t, params)
}

func TestExpandPathMissingPlaceholder(t *testing.T) {
	params := mcp.Params{"city": mcp.String("Tokyo")}
	_, err := ExpandPath("/weather/{city}/{day}", params)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "day")
	// nothing consumed on failure
	assert.Contains(t, params, "city")
}
