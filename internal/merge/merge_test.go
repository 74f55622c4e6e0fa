package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmart_ScalarsOverride(t *testing.T) {
	got := Smart(
		map[string]any{"devtool": "source-map", "mode": "production"},
		map[string]any{"devtool": "eval"},
	)
	assert.Equal(t, "eval", got["devtool"])
	assert.Equal(t, "production", got["mode"])
}

func TestSmart_MapsMergeRecursively(t *testing.T) {
	got := Smart(
		map[string]any{"output": map[string]any{"path": "/stage/main", "filename": "index.js"}},
		map[string]any{"output": map[string]any{"filename": "bundle.js"}},
	)
	assert.Equal(t, map[string]any{"path": "/stage/main", "filename": "bundle.js"}, got["output"])
}

func TestSmart_SlicesConcatenate(t *testing.T) {
	got := Smart(
		map[string]any{"resolve": map[string]any{"modules": []any{"/root/node_modules"}}},
		map[string]any{"resolve": map[string]any{"modules": []string{"vendor"}}},
	)
	assert.Equal(t, []any{"/root/node_modules", "vendor"}, got["resolve"].(map[string]any)["modules"])
}

func TestSmart_TypeMismatchTakesOverride(t *testing.T) {
	got := Smart(
		map[string]any{"entry": []any{"a.js"}},
		map[string]any{"entry": "b.js"},
	)
	assert.Equal(t, "b.js", got["entry"])
}

func TestSmart_NonDestructive(t *testing.T) {
	base := map[string]any{"define": map[string]any{"A": "1"}, "list": []any{"x"}}
	override := map[string]any{"define": map[string]any{"B": "2"}, "list": []any{"y"}}

	got := Smart(base, override)
	got["define"].(map[string]any)["C"] = "3"
	got["list"].([]any)[0] = "mutated"

	assert.Equal(t, map[string]any{"A": "1"}, base["define"])
	assert.Equal(t, []any{"x"}, base["list"])
	assert.Equal(t, map[string]any{"B": "2"}, override["define"])
}

func TestSmart_AnyKeyedMaps(t *testing.T) {
	got := Smart(
		map[string]any{"node": map[string]any{"__dirname": false}},
		map[string]any{"node": map[any]any{"global": true}},
	)
	require.IsType(t, map[string]any{}, got["node"])
	assert.Equal(t, map[string]any{"__dirname": false, "global": true}, got["node"])
}

type settings map[string]any

func TestSmart_NamedMapTypes(t *testing.T) {
	got := Smart(
		map[string]any{"output": map[string]any{"path": "/stage"}},
		map[string]any{"output": settings{"filename": "bundle.js"}},
	)
	require.IsType(t, map[string]any{}, got["output"])
	assert.Equal(t, map[string]any{"path": "/stage", "filename": "bundle.js"}, got["output"])

	cloned := Clone(settings{"entry": []any{"./main.js"}})
	require.IsType(t, map[string]any{}, cloned)
	assert.Equal(t, map[string]any{"entry": []any{"./main.js"}}, cloned)
}

func TestCloneMap_Nil(t *testing.T) {
	assert.Equal(t, map[string]any{}, CloneMap(nil))
}
