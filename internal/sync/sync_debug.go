//go:build deadlock

// Package sync aliases the lock types used by the filter pipeline. Building
// with -tags deadlock swaps the mutexes for go-deadlock, which reports lock
// cycles and locks held longer than LockTimeout.
package sync

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

// DetectionEnabled reports whether mutexes are checked for deadlocks.
const DetectionEnabled = true

// LockTimeout is how long a lock may be waited for before it is reported.
const LockTimeout = 30 * time.Second

// DisableEnv turns detection off at runtime when set to any value.
const DisableEnv = "DIRFILTER_NO_DEADLOCK_DETECT"

type (
	Mutex   = deadlock.Mutex
	RWMutex = deadlock.RWMutex
	Locker  = sync.Locker
	Once    = sync.Once
	Cond    = sync.Cond
)

// NewCond returns a Cond bound to l.
func NewCond(l Locker) *Cond {
	return sync.NewCond(l)
}

func init() {
	deadlock.Opts.DeadlockTimeout = LockTimeout
	if os.Getenv(DisableEnv) != "" {
		deadlock.Opts.Disable = true
		return
	}
	deadlock.Opts.PrintAllCurrentGoroutines = true
	log.Warn().Dur("timeout", LockTimeout).Msg("deadlock detection enabled")
}
