package deploy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	local := map[string]string{"a": "local-a", "b": "local-b"}
	remote := map[string]int{"b": 2, "c": 3, "d": 4}

	p := Diff(local, remote)

	assert.Equal(t, local, p.Set)
	assert.Equal(t, []string{"c", "d"}, p.Remove)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"local-a","b":"local-b","c":null,"d":null}`, string(data))
}

func TestDiffEmpty(t *testing.T) {
	p := Diff(map[string]string(nil), map[string]string(nil))
	assert.True(t, p.IsZero())

	p = Diff(map[string]string(nil), map[string]string{"gone": "x"})
	assert.False(t, p.IsZero())
	assert.Equal(t, []string{"gone"}, p.Remove)
}

func TestOptional(t *testing.T) {
	type body struct {
		Script Optional[string] `json:"script,omitzero"`
	}

	cases := []struct {
		name string
		in   Optional[string]
		want string
	}{
		{"absent", Optional[string]{}, `{}`},
		{"null", Null[string](), `{"script":null}`},
		{"value", Some("return 1"), `{"script":"return 1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(body{Script: tc.in})
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(data))
		})
	}

	v, ok := Some("x").Get()
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = Null[string]().Get()
	assert.False(t, ok)
}
