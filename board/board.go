// Package board hands out the chip's peripheral identities.
package board

import (
	"sync/atomic"

	"devicecode-periph/errcode"
	"devicecode-periph/sai"
	"devicecode-periph/timer"
)

// Peripherals is the full identity set of the chip.
type Peripherals struct {
	I2S0    sai.I2S0
	I2S1    sai.I2S1
	Timer00 timer.Timer00
	Timer01 timer.Timer01
	Timer10 timer.Timer10
	Timer11 timer.Timer11
}

var taken atomic.Bool

// Take returns the identity set. Only the first call succeeds; later calls
// fail with errcode.Busy.
func Take() (*Peripherals, error) {
	if !taken.CompareAndSwap(false, true) {
		return nil, &errcode.E{C: errcode.Busy, Op: "board take", Msg: "peripherals already taken"}
	}
	return &Peripherals{}, nil
}
