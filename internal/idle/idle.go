// Package idle turns OS inactivity measurements into the
// active/idle/locked transitions the session core reconciles against.
package idle

import (
	"errors"
	"time"
)

// State is the reported user activity state.
type State string

const (
	Active State = "active"
	Idle   State = "idle"
	Locked State = "locked"
)

// ErrUnsupported indicates idle detection is not available on this system.
var ErrUnsupported = errors.New("idle detection unsupported")

// Checker reports the duration of user inactivity. Platform adapters
// implement it; the watcher polls it.
type Checker interface {
	IdleDuration() (time.Duration, error)
}

// UnsupportedChecker always reports ErrUnsupported. Default on platforms
// without an adapter; the daemon then runs without idle reconciliation.
type UnsupportedChecker struct{}

func (UnsupportedChecker) IdleDuration() (time.Duration, error) {
	return 0, ErrUnsupported
}
