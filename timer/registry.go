package timer

import (
	"sync/atomic"
	"unsafe"

	"devicecode-periph/hal"
	"devicecode-periph/isr"
)

// MaxTimers is the number of callback slots, one per timer.
const MaxTimers = hal.GroupMax * hal.IndexMax

// slot carries a handler to the trampoline. Its address is the opaque
// context registered with the native dispatcher, so a slot must stay
// reachable from slots until the registration is removed.
type slot struct {
	handler func()
}

func (s *slot) ctx() unsafe.Pointer { return unsafe.Pointer(s) }

var slots [MaxTimers]atomic.Pointer[slot]

func store(id hal.TimerID, handler func()) *slot {
	s := &slot{handler: handler}
	slots[id.Slot()].Store(s)
	return s
}

func dropSlot(id hal.TimerID) { slots[id.Slot()].Store(nil) }

func subscribed(id hal.TimerID) bool { return slots[id.Slot()].Load() != nil }

// trampoline is the single native entry point for every timer interrupt.
func trampoline(ctx unsafe.Pointer) bool {
	s := (*slot)(ctx)
	return isr.WithYieldSignal(s.handler)
}
