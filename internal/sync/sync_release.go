//go:build !deadlock

// Package sync aliases the lock types used by the filter pipeline. Building
// with -tags deadlock swaps the mutexes for go-deadlock, which reports lock
// cycles and locks held longer than LockTimeout.
package sync

import (
	"sync"
	"time"
)

// DetectionEnabled reports whether mutexes are checked for deadlocks.
const DetectionEnabled = false

// LockTimeout is unused without the deadlock tag.
const LockTimeout = 30 * time.Second

// DisableEnv turns detection off at runtime when set to any value.
const DisableEnv = "DIRFILTER_NO_DEADLOCK_DETECT"

type (
	Mutex   = sync.Mutex
	RWMutex = sync.RWMutex
	Locker  = sync.Locker
	Once    = sync.Once
	Cond    = sync.Cond
)

// NewCond returns a Cond bound to l.
func NewCond(l Locker) *Cond {
	return sync.NewCond(l)
}
