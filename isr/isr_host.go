//go:build !(tinygo && baremetal)

package isr

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// On hosts there is no real interrupt controller. Simulated dispatchers mark
// interrupt context with Simulate. The model is a single core: one simulated
// ISR runs at a time, on the goroutine that entered Simulate, and only that
// goroutine observes interrupt context. Other goroutines keep running as
// normal context.
var (
	core  sync.Mutex    // held while a simulated ISR runs
	owner atomic.Uint64 // goroutine running the ISR, 0 when idle
	yield atomic.Bool
)

// Active reports whether the caller runs inside a (simulated) ISR.
func Active() bool {
	id := owner.Load()
	return id != 0 && id == goid()
}

// Simulate runs fn as if it had been entered from the interrupt controller.
// A Simulate from another goroutine waits for the running ISR to return;
// a nested call on the ISR goroutine runs fn directly.
func Simulate(fn func()) {
	me := goid()
	if owner.Load() == me {
		fn()
		return
	}
	core.Lock()
	owner.Store(me)
	defer func() {
		owner.Store(0)
		core.Unlock()
	}()
	fn()
}

func swapYield(v bool) bool { return yield.Swap(v) }

// goid parses the current goroutine number from the stack header
// "goroutine N [...]".
func goid() uint64 {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for _, c := range buf[len("goroutine "):n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
