package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	require.True(t, IsDir(dir))

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))
	require.False(t, IsDir(file))
	require.False(t, IsDir(filepath.Join(dir, "missing")))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.False(t, FileExists(file))

	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))
	require.True(t, FileExists(file))
}

func TestTruncString(t *testing.T) {
	require.Equal(t, "abc", TruncString("abc", 10))
	require.Equal(t, "ab", TruncString("abcdef", 2))
}
