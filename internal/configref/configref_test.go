package configref

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestFileLoader_FormatsByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.yaml", "entry: ./src/main.js\nexternal: [sqlite3]\n")
	writeFile(t, root, "main.json", `{"entry": ["./src/a.js"], "output": {"filename": "main.js"}}`)
	writeFile(t, root, "main.toml", "entry = \"./src/main.ts\"\n[loader]\n\".png\" = \"file\"\n")

	loader := FileLoader{Root: root}

	y, err := loader.Load("main.yaml")
	require.NoError(t, err)
	assert.Equal(t, "./src/main.js", y["entry"])
	assert.Equal(t, []any{"sqlite3"}, y["external"])

	j, err := loader.Load("main.json")
	require.NoError(t, err)
	assert.Equal(t, []any{"./src/a.js"}, j["entry"])
	assert.Equal(t, map[string]any{"filename": "main.js"}, j["output"])

	tm, err := loader.Load("main.toml")
	require.NoError(t, err)
	assert.Equal(t, "./src/main.ts", tm["entry"])
	assert.Equal(t, map[string]any{".png": "file"}, tm["loader"])
}

func TestFileLoader_AnchorsOnRootNotWorkingDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "config/renderer.yaml", "devtool: eval\n")

	other := t.TempDir()
	t.Chdir(other)

	got, err := FileLoader{Root: root}.Load("config/renderer.yaml")
	require.NoError(t, err)
	assert.Equal(t, "eval", got["devtool"])
}

func TestFileLoader_ExpandsEnvironment(t *testing.T) {
	root := t.TempDir()
	t.Setenv("FORGEPACK_TEST_ENTRY", "./src/from-env.js")
	writeFile(t, root, "main.yml", "entry: ${FORGEPACK_TEST_ENTRY}\n")

	got, err := FileLoader{Root: root}.Load("main.yml")
	require.NoError(t, err)
	assert.Equal(t, "./src/from-env.js", got["entry"])
}

func TestFileLoader_Failures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "broken.yaml", "entry: [unterminated\n")
	writeFile(t, root, "list.yaml", "- a\n- b\n")
	writeFile(t, root, "main.js", "module.exports = {}\n")

	loader := FileLoader{Root: root}
	for _, ref := range []string{"missing.yaml", "broken.yaml", "list.yaml", "main.js"} {
		t.Run(ref, func(t *testing.T) {
			_, err := loader.Load(ref)
			require.Error(t, err)
			assert.True(t, ferrors.IsConfigResolution(err), "expected ConfigResolutionError, got %v", err)
			c, _ := ferrors.AsClassified(err)
			path, _ := c.Context().GetString("path")
			assert.Equal(t, filepath.Join(root, ref), path)
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	defaults := map[string]any{
		"devtool": "source-map",
		"resolve": map[string]any{"modules": []any{"/root/node_modules"}},
	}
	r := Resolver{Loader: MapLoader{
		"webpack.main.yaml": {"devtool": "eval", "resolve": map[string]any{"modules": []any{"lib"}}},
	}}

	t.Run("reference", func(t *testing.T) {
		got, err := r.Resolve("webpack.main.yaml", defaults)
		require.NoError(t, err)
		assert.Equal(t, "eval", got["devtool"])
		assert.Equal(t, []any{"/root/node_modules", "lib"}, got["resolve"].(map[string]any)["modules"])
	})

	t.Run("inline", func(t *testing.T) {
		got, err := r.Resolve(map[string]any{"entry": "./main.js"}, defaults)
		require.NoError(t, err)
		assert.Equal(t, "./main.js", got["entry"])
		assert.Equal(t, "source-map", got["devtool"])
	})

	t.Run("named map type", func(t *testing.T) {
		type bundlerConfig map[string]any
		got, err := r.Resolve(bundlerConfig{"entry": "./main.js"}, defaults)
		require.NoError(t, err)
		assert.Equal(t, "./main.js", got["entry"])
		assert.Equal(t, "source-map", got["devtool"])
	})

	t.Run("nil yields defaults", func(t *testing.T) {
		got, err := r.Resolve(nil, defaults)
		require.NoError(t, err)
		assert.Equal(t, defaults, got)
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := r.Resolve("nope.yaml", defaults)
		assert.True(t, ferrors.IsConfigResolution(err))
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := r.Resolve(42, defaults)
		assert.True(t, ferrors.IsConfigResolution(err))
	})

	assert.Equal(t, "source-map", defaults["devtool"], "defaults must not be mutated")
}
