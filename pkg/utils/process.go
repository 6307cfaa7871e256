package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// SendSignalToPIDFile signals the gatherd instance recorded in the PID file.
// It backs the stop command, which only needs SIGTERM, but takes the signal
// as a parameter.
func SendSignalToPIDFile(pidFile string, sig syscall.Signal) error {
	if pidFile == "" {
		return fmt.Errorf("PID file path is empty")
	}

	pid, err := readPIDFile(pidFile)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	if err := signalProcess(pid, sig); err != nil {
		return fmt.Errorf("failed to signal process: %w", err)
	}

	return nil
}

// readPIDFile parses the PID recorded by PIDManager.WritePID.
func readPIDFile(pidFile string) (int, error) {
	pidBytes, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidBytes)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID format in file: %w", err)
	}

	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID value: %d", pid)
	}

	return pid, nil
}

// signalProcess delivers sig to the process with the given PID.
func signalProcess(pid int, sig syscall.Signal) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("process not found: %w", err)
	}

	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to send signal: %w", err)
	}

	return nil
}
