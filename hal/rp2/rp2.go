//go:build rp2040

// Package rp2 registers the RP2040 engines with hal.
//
// Audio runs on a PIO state machine per port (port 0 on PIO0, port 1 on
// PIO1) and supports the master transmitter in Philips format only. Timers
// are backed by TIMER alarms 1 to 3; alarm 0 stays with the runtime's
// sleep queue, so the fourth timer identity reports errcode.Unsupported.
//
// Importing the package is enough:
//
//	import _ "devicecode-periph/hal/rp2"
package rp2

import (
	"devicecode-periph/hal"
	"devicecode-periph/x/logx"
)

// maxGPIO is the highest user GPIO on the RP2040.
const maxGPIO = 28

func init() {
	hal.Use(newSAI(), newTimer())
	logx.LogDebug(logx.ComponentHAL, "rp2 engines registered")
}
