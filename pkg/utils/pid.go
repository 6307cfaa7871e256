package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// PIDManager owns the gatherd PID file so the stop command can find the
// running server.
type PIDManager struct {
	pidFile string
}

// NewPIDManager creates a PIDManager for the given file path.
func NewPIDManager(pidFile string) *PIDManager {
	return &PIDManager{
		pidFile: pidFile,
	}
}

// NewPIDManagerFromConfig creates a PIDManager from the configured path.
func NewPIDManagerFromConfig(pidFile string) *PIDManager {
	return NewPIDManager(pidFile)
}

// WritePID records the current process ID, creating parent directories as
// needed.
func (p *PIDManager) WritePID() error {
	dir := filepath.Dir(p.pidFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}

	pid := os.Getpid()
	return os.WriteFile(p.pidFile, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

// RemovePID deletes the PID file on shutdown.
func (p *PIDManager) RemovePID() error {
	return os.Remove(p.pidFile)
}

// GetPIDFile returns the PID file path.
func (p *PIDManager) GetPIDFile() string {
	return p.pidFile
}
