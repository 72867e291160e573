package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractNormalArchive(t *testing.T) {
	dest := t.TempDir()
	data := buildZip(t, map[string]string{
		"index.html":        "<h1>hi</h1>",
		"assets/style.css":  "body{}",
	})

	require.NoError(t, Extract(data, dest))

	content, err := os.ReadFile(filepath.Join(dest, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<h1>hi</h1>", string(content))

	content, err = os.ReadFile(filepath.Join(dest, "assets", "style.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(content))
}

func TestExtractRejectsZipSlip(t *testing.T) {
	dest := t.TempDir()
	data := buildZip(t, map[string]string{
		"../../../../etc/evil": "malicious",
	})

	err := Extract(data, dest)
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestExtractRejectsAbsolutePathEscape(t *testing.T) {
	dest := t.TempDir()
	// zip.Writer normalizes leading slashes away, so exercise the path
	// check directly with a crafted traversal instead.
	data := buildZip(t, map[string]string{
		"a/../../escape.txt": "malicious",
	})

	err := Extract(data, dest)
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestExtractRemovesNodeModules(t *testing.T) {
	dest := t.TempDir()
	data := buildZip(t, map[string]string{
		"package.json":                   "{}",
		"node_modules/left-pad/index.js": "module.exports = {}",
	})

	require.NoError(t, Extract(data, dest))

	_, err := os.Stat(filepath.Join(dest, "node_modules"))
	assert.True(t, os.IsNotExist(err))
}
