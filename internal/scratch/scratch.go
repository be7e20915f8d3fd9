// Package scratch owns the on-disk temp tree for in-flight downloads. Paths
// are namespaced per process id so concurrent jobs never collide; adapters
// carve their own temp subfolders inside the process directory.
package scratch

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/spf13/afero"
)

// Manager hands out scratch directories under a single configured root.
type Manager struct {
	fs   afero.Fs
	root string
}

func NewManager(root string) *Manager {
	return &Manager{fs: afero.NewOsFs(), root: root}
}

// SetFs swaps the backing filesystem. Used by tests.
func (m *Manager) SetFs(fs afero.Fs) { m.fs = fs }

// Root returns the scratch root directory.
func (m *Manager) Root() string { return m.root }

// ProcessDir creates and returns the scratch directory for one process.
func (m *Manager) ProcessDir(processID string) (string, error) {
	dir := filepath.Join(m.root, processID)
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("scratch: create %s: %w", dir, err)
	}
	return dir, nil
}

// Sweep removes a process's whole scratch subtree. Failures are logged, not
// returned: leftover temp data must never fail a completed job.
func (m *Manager) Sweep(processID string) {
	dir := filepath.Join(m.root, processID)
	if err := m.fs.RemoveAll(dir); err != nil {
		log.Printf("[scratch] failed to sweep %s: %v", dir, err)
	}
}
