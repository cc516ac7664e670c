// Package spin implements the progressive idle backoff shared by every
// polling loop in the system: spin first, then yield to the scheduler,
// then sleep in short increments. Hot paths never call this; only the
// handful of threads that poll a queue for new work do (the matching
// engine loop, the gateway's order server and publisher, the logger
// consumer).
package spin

import (
	"runtime"
	"time"
)

const (
	spinThreshold  = 100
	yieldThreshold = 1100
	sleepStep      = 100 * time.Microsecond
)

// Backoff tracks consecutive empty polls and escalates from spinning
// to yielding to sleeping as the idle streak grows.
type Backoff struct {
	idle int
}

// Idle registers one empty poll and waits according to the current
// escalation tier.
func (b *Backoff) Idle() {
	b.idle++
	switch {
	case b.idle < spinThreshold:
		// busy-spin
	case b.idle < yieldThreshold:
		runtime.Gosched()
	default:
		time.Sleep(sleepStep)
	}
}

// Reset clears the idle streak, called after any successful poll.
func (b *Backoff) Reset() {
	b.idle = 0
}
