// Package periph enforces that each physical peripheral instance is owned by
// at most one live driver handle.
//
// Identity tokens are zero-size values and Go cannot stop them being copied,
// so ownership is taken at handle construction: a driver claims the key of
// its instance and releases it when the handle is closed.
package periph

import (
	"sync"

	"devicecode-periph/errcode"
)

// Key names one physical instance by class and hardware address.
type Key struct {
	Class string // "sai", "timer"
	Group uint8  // port number for sai
	Index uint8
}

func (k Key) String() string {
	s := k.Class + string(rune('0'+k.Group))
	if k.Class == "timer" {
		s += "." + string(rune('0'+k.Index))
	}
	return s
}

var (
	mu      sync.Mutex
	claimed = map[Key]struct{}{}
)

// Claim takes exclusive ownership of k. It fails with errcode.Busy while
// another handle holds it.
func Claim(k Key) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := claimed[k]; ok {
		return &errcode.E{C: errcode.Busy, Op: "claim", Msg: k.String()}
	}
	claimed[k] = struct{}{}
	return nil
}

// Release returns k to availability. Releasing a free key is a no-op.
func Release(k Key) {
	mu.Lock()
	delete(claimed, k)
	mu.Unlock()
}

// Claimed reports whether k is currently owned.
func Claimed(k Key) bool {
	mu.Lock()
	defer mu.Unlock()
	_, ok := claimed[k]
	return ok
}
