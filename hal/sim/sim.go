// Package sim is an in-memory stand-in for the native engines of a target.
//
// It implements hal.SAI and hal.Timer closely enough to exercise the drivers
// on a host: audio engines move bytes through DMA rings that tests drain and
// feed, and timers advance only when a test ticks them. Timer interrupts are
// dispatched through the registered trampoline inside isr.Simulate, so code
// under test observes interrupt context exactly as it would on hardware.
package sim

import (
	"sync"

	"devicecode-periph/hal"
)

// Op names accepted by FailNext.
const (
	OpInstall     = "install"
	OpUninstall   = "uninstall"
	OpSetPins     = "set_pins"
	OpRead        = "read"
	OpWrite       = "write"
	OpInit        = "init"
	OpDeinit      = "deinit"
	OpStart       = "start"
	OpPause       = "pause"
	OpEnableIntr  = "enable_intr"
	OpDisableIntr = "disable_intr"
	OpAddISR      = "isr_callback_add"
	OpRemoveISR   = "isr_callback_remove"
)

// faults holds one-shot errors injected by tests.
type faults struct {
	mu   sync.Mutex
	next map[string]error
}

func (f *faults) set(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next == nil {
		f.next = map[string]error{}
	}
	f.next[op] = err
}

func (f *faults) take(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.next[op]
	delete(f.next, op)
	return err
}

// New returns a fresh simulator pair with the usual chip layout: two audio
// ports, two timer groups of two.
func New() (*SAI, *Timer) {
	return NewSAI(2, 39), NewTimer()
}

// Install registers a fresh simulator pair as the platform backend.
func Install() (*SAI, *Timer) {
	s, t := New()
	hal.Use(s, t)
	return s, t
}
