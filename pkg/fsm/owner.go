package fsm

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// OwnerFile holds the pid of the process using an FSM store.
const OwnerFile = "owner.pid"

// StaleAfter is how long an unowned store must sit untouched before it
// counts as abandoned.
const StaleAfter = 10 * time.Minute

func writeOwner(dir string) error {
	return os.WriteFile(filepath.Join(dir, OwnerFile), []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

func removeOwner(dir string) error {
	err := os.Remove(filepath.Join(dir, OwnerFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// InUse reports whether the store in dir belongs to a running process. A
// store without an owner file is in use until it has been idle for StaleAfter.
func InUse(dir string, now time.Time) bool {
	data, err := os.ReadFile(filepath.Join(dir, OwnerFile))
	if err != nil {
		info, statErr := os.Stat(dir)
		return statErr == nil && now.Sub(info.ModTime()) < StaleAfter
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	return processAlive(pid)
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
