package filewalker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("int a;\n"), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now().Add(-time.Minute)

	touch(t, filepath.Join(root, "B.cxx"), recent)
	touch(t, filepath.Join(root, "A.CXX"), old)
	touch(t, filepath.Join(root, "notes.txt"), recent)
	touch(t, filepath.Join(root, "sub", "C.cxx"), recent)

	entries, err := NewWalker().Walk(root)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, filepath.Join(root, "A.CXX"), entries[0].Path)
	assert.Equal(t, filepath.Join(root, "B.cxx"), entries[1].Path)

	entries, err = NewWalker(Recursive()).Walk(root)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = NewWalker(ModifiedAfter(time.Now().Add(-time.Hour))).Walk(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Join(root, "B.cxx"), entries[0].Path)

	entries, err = NewWalker(WithExtensions(".txt")).Walk(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWalkNotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "A.cxx")
	touch(t, file, time.Now())

	_, err := NewWalker().Walk(file)
	assert.Error(t, err)
	_, err = NewWalker().Walk(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestStamp(t *testing.T) {
	stamp := filepath.Join(t.TempDir(), "UpdateMunged.timestamp")
	assert.True(t, StampTime(stamp).IsZero())

	require.NoError(t, Touch(stamp))
	assert.WithinDuration(t, time.Now(), StampTime(stamp), time.Minute)
}
