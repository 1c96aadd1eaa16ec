package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveReadDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save("progress/enr-1.csv", []byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, "progress/enr-1.csv", name)

	data, err := store.Read(name)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	require.NoError(t, store.Delete(name))
	_, err = store.Read(name)
	assert.Error(t, err)
	assert.NoError(t, store.Delete(name))
}

func TestLocalStorageSaveIsPrivateAndLeavesNoPartials(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("enr-1.pdf", []byte("%PDF"))
	require.NoError(t, err)
	_, err = store.Save("enr-1.pdf", []byte("%PDF-2"))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "enr-1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileMode), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := store.Read("enr-1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-2", string(data))
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../outside.csv", []byte("x"))
	assert.Error(t, err)
	_, err = store.Read("/etc/passwd")
	assert.Error(t, err)
	assert.Error(t, store.Delete(".."))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("old/enr-1.csv", []byte("x"))
	require.NoError(t, err)
	_, err = store.Save("fresh.csv", []byte("y"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, tempPrefix+"inflight"), []byte("z"), fileMode))

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old", "enr-1.csv"), past, past))

	deleted, err := store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old/enr-1.csv"}, deleted)

	_, err = os.Stat(filepath.Join(dir, "old"))
	assert.True(t, os.IsNotExist(err))
	_, err = store.Read("fresh.csv")
	assert.NoError(t, err)

	store.WithClock(func() time.Time { return time.Now().Add(48 * time.Hour) })
	deleted, err = store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh.csv"}, deleted)
	_, err = os.Stat(filepath.Join(dir, tempPrefix+"inflight"))
	assert.NoError(t, err)
}
