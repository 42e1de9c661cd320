package resolve_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillgrove/goshell/internal/resolve"
)

func TestLookupWithSlashUsesArgvVerbatim(t *testing.T) {
	t.Parallel()
	path, err := resolve.Lookup("./some/relative/path")
	require.NoError(t, err)
	assert.Equal(t, "./some/relative/path", path)
}

func TestLookupSearchesPATH(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "mytool")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	t.Setenv("PATH", dir)

	path, err := resolve.Lookup("mytool")
	require.NoError(t, err)
	assert.Equal(t, exe, path)
}

func TestLookupSkipsEmptyPathComponents(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "mytool")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	t.Setenv("PATH", "::"+dir+"::/nonexistent")

	path, err := resolve.Lookup("mytool")
	require.NoError(t, err)
	assert.Equal(t, exe, path)
}

func TestLookupNotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := resolve.Lookup("definitely-not-a-real-command")
	assert.ErrorIs(t, err, resolve.ErrNotFound)
}
