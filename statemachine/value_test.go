package statemachine

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueOf(t *testing.T) {
	for scenario, tc := range map[string]struct {
		in   any
		want Value
	}{
		"string":         {in: "5", want: String("5")},
		"int":            {in: 5, want: Int(5)},
		"json number":    {in: float64(3), want: Int(3)},
		"min int64":      {in: float64(math.MinInt64), want: Int(math.MinInt64)},
		"float too big":  {in: 1e20, want: Any(1e20)},
		"float too low":  {in: -1e19, want: Any(-1e19)},
		"two pow 63":     {in: float64(math.MaxInt64), want: Any(float64(math.MaxInt64))},
		"max int64 uint": {in: uint64(math.MaxInt64), want: Int(math.MaxInt64)},
		"uint64 too big": {in: uint64(math.MaxUint64), want: Any(uint64(math.MaxUint64))},
		"fraction":       {in: 2.5, want: Any(2.5)},
		"bool":           {in: true, want: Bool(true)},
		"string slice":   {in: []string{"a", "b"}, want: StringList("a", "b")},
		"any of strings": {in: []any{"a", "b"}, want: StringList("a", "b")},
		"nested map": {
			in:   map[string]any{"x": "1", "y": map[string]any{"z": true}},
			want: Map(map[string]Value{"x": String("1"), "y": Map(map[string]Value{"z": Bool(true)})}),
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			got := ValueOf(tc.in)
			require.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
			require.Equal(t, tc.want.Kind(), got.Kind())
		})
	}
}

func TestValueEqual(t *testing.T) {
	require.False(t, ValueOf(1e20).Equal(Int(math.MinInt64)))
	require.False(t, ValueOf(uint64(math.MaxUint64)).Equal(Int(-1)))
	require.False(t, String("1").Equal(Int(1)))
	require.False(t, Value{}.Equal(Value{}))
	require.True(t, StringList("a").Equal(StringList("a")))
	require.False(t, StringList("a").Equal(StringList("a", "b")))
	require.True(t, Any(1.5).Equal(Any(1.5)))
	require.False(t, Map(map[string]Value{"a": Int(1)}).Equal(Map(map[string]Value{"a": Int(2)})))
}

func TestEnvironmentCloneIsDeep(t *testing.T) {
	env := Environment{"list": StringList("a"), "n": Int(1)}
	cp := env.Clone()
	cp.Set("n", Int(2))
	require.True(t, env["n"].Equal(Int(1)))
	require.Equal(t, []string{"list", "n"}, env.Keys())
	require.Equal(t, map[string]any{"list": []string{"a"}, "n": int64(1)}, env.Plain())
}

func TestValueJSON(t *testing.T) {
	data, err := json.Marshal(Environment{"flag": Bool(true), "services": StringList("a", "b")})
	require.NoError(t, err)
	require.JSONEq(t, `{"flag":true,"services":["a","b"]}`, string(data))

	var env Environment
	require.NoError(t, json.Unmarshal([]byte(`{"count":3,"name":"milling"}`), &env))
	require.True(t, env["count"].Equal(Int(3)))
	require.True(t, env["name"].Equal(String("milling")))
}
