package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
)

func TestDirLock_LockUnlock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	lock := NewDirLock(dir)

	// TryLock creates the data directory
	require.NoError(t, lock.TryLock())
	_, err := os.Stat(lock.Path())
	require.NoError(t, err, "lock file should exist")
	assert.Equal(t, filepath.Join(dir, LockFileName), lock.Path())

	require.NoError(t, lock.Unlock())
}

func TestDirLock_UnlockWithoutLock(t *testing.T) {
	lock := NewDirLock(t.TempDir())
	assert.NoError(t, lock.Unlock())
}

func TestDirLock_DoubleUnlock(t *testing.T) {
	lock := NewDirLock(t.TempDir())
	require.NoError(t, lock.TryLock())
	require.NoError(t, lock.Unlock())
	assert.NoError(t, lock.Unlock())
}

func TestDirLock_AlreadyLocked(t *testing.T) {
	dir := t.TempDir()
	first := NewDirLock(dir)
	require.NoError(t, first.TryLock())
	defer func() { _ = first.Unlock() }()

	err := NewDirLock(dir).TryLock()
	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeIndexLocked, ierrors.GetCode(err))

	// released locks can be taken again
	require.NoError(t, first.Unlock())
	second := NewDirLock(dir)
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
}
