// Package hal is the contract between the drivers and the native engine
// routines of a target. Drivers never touch registers; they assemble the
// parameter blocks defined here and call a backend registered with Use.
package hal

import (
	"sync"
	"time"
	"unsafe"

	"devicecode-periph/errcode"
)

// SAI is the serial audio engine as exposed by the platform.
type SAI interface {
	// Install allocates the engine's DMA ring and applies cfg. Installing
	// an already installed port fails.
	Install(port Port, cfg *I2SConfig) error
	Uninstall(port Port) error
	// SetPins routes the engine signals to GPIOs.
	SetPins(port Port, pins *PinConfig) error
	// Read and Write block for at most timeout and return the number of
	// bytes moved. A wait that expires returns errcode.Timeout.
	Read(port Port, dst []byte, timeout time.Duration) (int, error)
	Write(port Port, src []byte, timeout time.Duration) (int, error)
}

// ISRFunc is a trampoline invoked by the interrupt dispatcher with the
// opaque context registered alongside it. It reports whether a task switch
// should happen when the interrupt returns.
type ISRFunc func(ctx unsafe.Pointer) bool

// Timer is a group of hardware timer engines. The *FromISR variants are the
// only calls allowed in interrupt context; they cannot fail.
type Timer interface {
	Init(id TimerID, cfg *TimerConfig) error
	Deinit(id TimerID) error
	Start(id TimerID) error
	Pause(id TimerID) error

	Counter(id TimerID) (uint64, error)
	CounterFromISR(id TimerID) uint64
	SetCounter(id TimerID, v uint64) error
	SetCounterFromISR(id TimerID, v uint64)

	Alarm(id TimerID) (uint64, error)
	SetAlarm(id TimerID, v uint64) error
	SetAlarmFromISR(id TimerID, v uint64)
	SetAlarmEnable(id TimerID, enable bool) error
	EnableAlarmFromISR(id TimerID)

	EnableIntr(id TimerID) error
	DisableIntr(id TimerID) error

	AddISRCallback(id TimerID, fn ISRFunc, ctx unsafe.Pointer) error
	RemoveISRCallback(id TimerID) error
}

var (
	mu       sync.RWMutex
	saiEng   SAI
	timerEng Timer
)

// Use registers the platform backends. Either may be nil when a target
// lacks that engine. Platform packages call it from init; tests call it
// with a simulator.
func Use(s SAI, t Timer) {
	mu.Lock()
	saiEng, timerEng = s, t
	mu.Unlock()
}

// SAIEngine returns the registered audio backend.
func SAIEngine() (SAI, error) {
	mu.RLock()
	defer mu.RUnlock()
	if saiEng == nil {
		return nil, &errcode.E{C: errcode.HALNotReady, Op: "sai"}
	}
	return saiEng, nil
}

// TimerEngine returns the registered timer backend.
func TimerEngine() (Timer, error) {
	mu.RLock()
	defer mu.RUnlock()
	if timerEng == nil {
		return nil, &errcode.E{C: errcode.HALNotReady, Op: "timer"}
	}
	return timerEng, nil
}
