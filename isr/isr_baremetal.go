//go:build tinygo && baremetal

package isr

import (
	"runtime/interrupt"
	"runtime/volatile"
)

var yield volatile.Register8

// Active reports whether the caller runs inside an interrupt handler.
func Active() bool { return interrupt.In() }

// Simulate runs fn directly. Real hardware decides the context itself.
func Simulate(fn func()) { fn() }

func swapYield(v bool) bool {
	mask := interrupt.Disable()
	prev := yield.Get() != 0
	if v {
		yield.Set(1)
	} else {
		yield.Set(0)
	}
	interrupt.Restore(mask)
	return prev
}
