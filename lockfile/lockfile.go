// Package lockfile implements the process-wide named mutex the façade uses
// to serialize board-registry mutation across every process talking to the
// same set of boards (spec.md §4.4, §9). The source used a Win32 named
// mutex (original_source/.../Dio24.h: MUTEX_NAME, a fixed GUID string); a Go
// sync.Mutex only serializes within one process, so this package backs the
// same "one well-known name" contract with an advisory flock(2) on a file
// in the OS temp directory, following the pack's convention (e.g.
// BigBossBoolingB-VDATABPro's tap_device.go) of reaching into
// golang.org/x/sys/unix for OS primitives the standard library has no
// portable wrapper for.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"dio64board/errcode"
)

// Name is the well-known lock identity shared by every process coordinating
// the same boards, the Go analogue of the source's MUTEX_NAME GUID.
const Name = "dio64board-33998676-2494-4c8d-9653-2cf3a90a4d84"

// PollInterval is how often Acquire retries a contended lock.
const PollInterval = 10 * time.Millisecond

// Lock is a held advisory file lock. Not reentrant: a goroutine that
// already holds the lock and calls Acquire again will block on itself,
// matching spec.md §9's rejection of the source's recursive lock-count
// escape hatch.
type Lock struct {
	f *os.File
}

// Acquire blocks until the named lock is held or timeout elapses.
func Acquire(timeout time.Duration) (*Lock, error) {
	path := filepath.Join(os.TempDir(), Name+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, errcode.Wrap("lockfile.Acquire", errcode.Lock, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{f: f}, nil
		}
		if err != unix.EWOULDBLOCK {
			f.Close()
			return nil, errcode.Wrap("lockfile.Acquire", errcode.Lock, err)
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, errcode.Wrapf("lockfile.Acquire", errcode.Lock, fmt.Sprintf("timed out after %s", timeout))
		}
		time.Sleep(PollInterval)
	}
}

// Release drops the lock and closes the backing file descriptor. Calls
// after the first are no-ops that return nil.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	if err != nil {
		return err
	}
	return closeErr
}
