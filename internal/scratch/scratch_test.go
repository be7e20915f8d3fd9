package scratch

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessDirCreatesNamespace(t *testing.T) {
	m := NewManager("/scratch")
	m.SetFs(afero.NewMemMapFs())

	dir, err := m.ProcessDir("abc-123")
	require.NoError(t, err)
	assert.Equal(t, "/scratch/abc-123", dir)

	ok, err := afero.DirExists(m.fs, dir)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSweepRemovesSubtree(t *testing.T) {
	m := NewManager("/scratch")
	m.SetFs(afero.NewMemMapFs())

	dir, err := m.ProcessDir("p1")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(m.fs, dir+"/video.mp4", []byte("x"), 0o644))

	m.Sweep("p1")

	ok, err := afero.DirExists(m.fs, "/scratch/p1")
	require.NoError(t, err)
	assert.False(t, ok)
}
