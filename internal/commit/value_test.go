package commit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAnyConversions(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"string", "x", String("x")},
		{"int", 7, Int(7)},
		{"int64", int64(-3), Int(-3)},
		{"bool", true, Bool(true)},
		{"number", json.Number("42"), Int(42)},
		{"passthrough", Int(5), Int(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got))
		})
	}
}

func TestFromAnyRejectsFloats(t *testing.T) {
	_, err := FromAny(1.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")

	_, err = FromAny(json.Number("1.5"))
	require.Error(t, err)

	_, err = FromAny(json.Number("1e3"))
	require.Error(t, err)

	_, err = FromAny(map[string]any{"nested": []any{1.5}})
	require.Error(t, err)
}

func TestFromAnyRejectsUnsupportedTypes(t *testing.T) {
	_, err := FromAny(struct{}{})
	require.Error(t, err)
}

func TestObjectFromAnyNested(t *testing.T) {
	obj, err := ObjectFromAny(map[string]any{
		"name":  "relay",
		"count": 3,
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"ok": true},
	})
	require.NoError(t, err)

	want := Object{
		"name":  String("relay"),
		"count": Int(3),
		"tags":  Array{String("a"), String("b")},
		"meta":  Object{"ok": Bool(true)},
	}
	assert.True(t, Equal(want, obj))
}

func TestCloneIsDeep(t *testing.T) {
	original := Object{
		"list": Array{Int(1), Int(2)},
		"obj":  Object{"k": String("v")},
	}

	clone := original.Clone()
	clone["list"].(Array)[0] = Int(99)
	clone["obj"].(Object)["k"] = String("changed")
	clone["new"] = Int(1)

	assert.True(t, Equal(Int(1), original["list"].(Array)[0]))
	assert.True(t, Equal(String("v"), original["obj"].(Object)["k"]))
	_, exists := original["new"]
	assert.False(t, exists)
}

func TestCloneNil(t *testing.T) {
	var obj Object
	assert.Nil(t, obj.Clone())

	var arr Array
	assert.Nil(t, arr.Clone())
}

func TestEqual(t *testing.T) {
	a := Object{"x": Array{Int(1), Null{}}, "y": Bool(false)}
	b := Object{"y": Bool(false), "x": Array{Int(1), Null{}}}
	assert.True(t, Equal(a, b))

	assert.False(t, Equal(a, Object{"x": Array{Int(1), Null{}}}))
	assert.False(t, Equal(Int(1), String("1")))
	assert.False(t, Equal(Array{Int(1)}, Array{Int(2)}))
}

func TestObjectUnmarshalJSON(t *testing.T) {
	var obj Object
	err := json.Unmarshal([]byte(`{"s":"x","n":-5,"b":true,"nul":null,"arr":[1,"two"],"obj":{"k":"v"}}`), &obj)
	require.NoError(t, err)

	want := Object{
		"s":   String("x"),
		"n":   Int(-5),
		"b":   Bool(true),
		"nul": Null{},
		"arr": Array{Int(1), String("two")},
		"obj": Object{"k": String("v")},
	}
	assert.True(t, Equal(want, obj))
}

func TestObjectUnmarshalJSONRejectsFloats(t *testing.T) {
	var obj Object
	err := json.Unmarshal([]byte(`{"x":1.5}`), &obj)
	require.Error(t, err)
}

func TestObjectUnmarshalJSONLargeInteger(t *testing.T) {
	// Beyond float64's 2^53 integer precision; json.Number keeps it exact.
	var obj Object
	err := json.Unmarshal([]byte(`{"big":9007199254740993}`), &obj)
	require.NoError(t, err)
	assert.True(t, Equal(Int(9007199254740993), obj["big"]))
}

func TestObjectMarshalJSONSortedKeys(t *testing.T) {
	obj := Object{"b": Int(2), "a": Int(1), "c": Int(3)}
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(data))
}
