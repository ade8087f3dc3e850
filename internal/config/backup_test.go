package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFile_Missing(t *testing.T) {
	path, err := BackupFile(filepath.Join(t.TempDir(), ProjectFile))
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupAndRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectFile)
	writeFile(t, path, "version: 1\n")

	backup, err := BackupFile(path)
	require.NoError(t, err)
	require.FileExists(t, backup)

	writeFile(t, path, "version: 2\n")
	time.Sleep(5 * time.Millisecond) // distinct backup timestamp
	require.NoError(t, RestoreBackup(path, backup))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))

	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 2)
}

func TestListBackups_PrunesOldest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFile)
	writeFile(t, path, "version: 1\n")
	for _, ts := range []string{"20240101-000000.000", "20240102-000000.000", "20240103-000000.000", "20240104-000000.000"} {
		writeFile(t, path+BackupSuffix+"."+ts, "old")
	}

	_, err := BackupFile(path)
	require.NoError(t, err)

	backups, err := ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, MaxBackups)
	assert.NotContains(t, backups, path+BackupSuffix+".20240101-000000.000")
	assert.Equal(t, path+BackupSuffix+".20240104-000000.000", backups[1])
}
