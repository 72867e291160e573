package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestClassifyStaticSite(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html"), "<h1>hi</h1>")

	result, err := Classify(root)
	require.NoError(t, err)
	assert.Equal(t, KindStatic, result.Kind)
}

func TestClassifyNodeExactStartScript(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"scripts":{"start":"node server.js"}}`)
	writeFile(t, filepath.Join(root, "server.js"), "// listens on PORT")

	result, err := Classify(root)
	require.NoError(t, err)
	assert.Equal(t, KindNode, result.Kind)
	assert.Equal(t, "node", result.StartSpec.Command)
	assert.Equal(t, []string{"server.js"}, result.StartSpec.Args)
}

func TestClassifyNodeFallsBackToPackageManager(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"scripts":{"start":"next start -p $PORT"}}`)
	writeFile(t, filepath.Join(root, "yarn.lock"), "")

	result, err := Classify(root)
	require.NoError(t, err)
	assert.Equal(t, KindNode, result.Kind)
	assert.Equal(t, "yarn", result.StartSpec.Command)
	assert.Equal(t, []string{"run", "start"}, result.StartSpec.Args)
}

func TestClassifyUnclassifiable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "README.md"), "nothing here")

	_, err := Classify(root)
	assert.ErrorIs(t, err, ErrUnclassifiable)
}

func TestClassifyDescendsSingleChildDirectories(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "my-project-v1.2.3")
	writeFile(t, filepath.Join(nested, "index.html"), "<h1>hi</h1>")

	result, err := Classify(root)
	require.NoError(t, err)
	assert.Equal(t, KindStatic, result.Kind)
	assert.Equal(t, nested, result.RootPath)
}
