package mcp

import (
	"math"
	"testing"

	jsonpool "github.com/ajitpratap0/mcpbridge/pkg/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueString(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"string", String("Tokyo"), "Tokyo"},
		{"int", Int(42), "42"},
		{"float", Float(2.5), "2.5"},
		{"whole float", Float(3), "3"},
		{"bool", Bool(true), "true"},
		{"null", Null(), ""},
		{"list", List(Int(1), String("a")), `[1,"a"]`},
		{"object", Object(Params{"k": String("v")}), `{"k":"v"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestQueryValuesExpandLists(t *testing.T) {
	assert.Equal(t, []string{"a", "2"}, List(String("a"), Int(2)).QueryValues())
	assert.Equal(t, []string{"x"}, String("x").QueryValues())
}

func TestValueOf(t *testing.T) {
	p, err := ParamsFrom(map[string]interface{}{
		"s":    "v",
		"i":    7,
		"u":    uint32(9),
		"f":    1.25,
		"b":    false,
		"n":    nil,
		"list": []interface{}{"a", 1},
		"strs": []string{"x", "y"},
		"ints": []int{1, 2},
		"obj":  map[string]interface{}{"nested": true},
		"num":  jsonpool.Number("12"),
	})
	require.NoError(t, err)

	assert.Equal(t, KindString, p["s"].Kind())
	assert.Equal(t, Int(7), p["i"])
	assert.Equal(t, Int(9), p["u"])
	assert.Equal(t, Float(1.25), p["f"])
	assert.Equal(t, Bool(false), p["b"])
	assert.True(t, p["n"].IsNull())
	assert.Equal(t, List(String("a"), Int(1)), p["list"])
	assert.Equal(t, List(String("x"), String("y")), p["strs"])
	assert.Equal(t, List(Int(1), Int(2)), p["ints"])
	assert.Equal(t, Int(12), p["num"])

	fields, ok := p["obj"].Fields()
	require.True(t, ok)
	assert.Equal(t, Bool(true), fields["nested"])
}

func TestValueOfRejectsUnsupported(t *testing.T) {
	_, err := ValueOf(struct{}{})
	assert.Error(t, err)

	_, err = ValueOf(uint64(math.MaxUint64))
	assert.Error(t, err)

	_, err = ParamsFrom(map[string]interface{}{"ch": make(chan int)})
	assert.ErrorContains(t, err, `parameter "ch"`)
}

func TestValueJSON(t *testing.T) {
	p := Params{"id": Int(9007199254740993), "ratio": Float(0.1), "tags": List()}
	data, err := jsonpool.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":9007199254740993,"ratio":0.1,"tags":[]}`, string(data))

	var back Params
	require.NoError(t, jsonpool.Unmarshal(data, &back))
	id, ok := back["id"].IntValue()
	require.True(t, ok)
	assert.Equal(t, int64(9007199254740993), id)

	_, err = Float(math.NaN()).MarshalJSON()
	assert.Error(t, err)
}

func TestParamsCloneIsDeep(t *testing.T) {
	inner := Params{"k": String("v")}
	p := Params{"obj": Object(inner), "list": List(String("a"))}
	c := p.Clone()

	inner["k"] = String("changed")
	fields, _ := c["obj"].Fields()
	assert.Equal(t, String("v"), fields["k"])
	assert.Equal(t, []string{"list", "obj"}, c.Names())
	assert.Nil(t, Params(nil).Clone())
}

func TestInterface(t *testing.T) {
	v := Object(Params{"a": List(Int(1), Float(1.5), Null())})
	assert.Equal(t, map[string]interface{}{"a": []interface{}{int64(1), 1.5, nil}}, v.Interface())
}
