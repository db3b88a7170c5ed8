// Package isr tracks which execution context the caller runs in.
//
// Two contexts exist. Normal context may block, allocate and be preempted.
// Interrupt context runs in response to a hardware interrupt and must do
// neither. Drivers consult Active to pick the interrupt-safe variant of a
// native call, and MustNotBeActive to reject operations that are only
// defined for normal context.
package isr

import "devicecode-periph/errcode"

// MustNotBeActive panics when called from interrupt context. Running a
// normal-context operation inside an ISR is a programming error and there is
// no safe way to continue.
func MustNotBeActive(op string) {
	if Active() {
		panic(&errcode.E{C: errcode.InterruptContext, Op: op, Msg: "cannot be called from an ISR"})
	}
}

// WithYieldSignal runs fn as the body of an interrupt handler and reports
// whether fn asked for a context switch on return (see RequestYield).
// Nested scopes keep their own flag.
func WithYieldSignal(fn func()) bool {
	prev := swapYield(false)
	fn()
	return swapYield(prev)
}

// RequestYield asks the dispatcher to switch tasks once the current handler
// returns. Outside a WithYieldSignal scope it has no lasting effect.
func RequestYield() {
	swapYield(true)
}
