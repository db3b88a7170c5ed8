//go:build rp2040

package rp2

import (
	"device/rp"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"devicecode-periph/errcode"
	"devicecode-periph/hal"
	"devicecode-periph/x/mathx"
)

// The TIMER block counts microseconds. A divider of 80 reproduces that
// rate against an 80 MHz reference, so counts are scaled by 80/divider.
const refDivider = 80

const nAlarms = 3 // alarms 1..3

type alarm struct {
	used    bool
	cfg     hal.TimerConfig
	running bool
	base    uint64 // microsecond timestamp of count zero while running
	frozen  uint64 // count while paused
	value   uint64
	armed   bool
	intrEn  bool
	fn      hal.ISRFunc
	ctx     unsafe.Pointer
	irq     interrupt.Interrupt
}

type timerEngine struct {
	alarms [nAlarms]alarm
}

var timers timerEngine

func newTimer() *timerEngine {
	timers.alarms[0].irq = interrupt.New(rp.IRQ_TIMER_IRQ_1, func(interrupt.Interrupt) { timers.fire(0) })
	timers.alarms[1].irq = interrupt.New(rp.IRQ_TIMER_IRQ_2, func(interrupt.Interrupt) { timers.fire(1) })
	timers.alarms[2].irq = interrupt.New(rp.IRQ_TIMER_IRQ_3, func(interrupt.Interrupt) { timers.fire(2) })
	return &timers
}

func nowUs() uint64 {
	for {
		hi := rp.TIMER.TIMERAWH.Get()
		lo := rp.TIMER.TIMERAWL.Get()
		if rp.TIMER.TIMERAWH.Get() == hi {
			return uint64(hi)<<32 | uint64(lo)
		}
	}
}

func alarmReg(i int) *volatile.Register32 {
	switch i {
	case 0:
		return &rp.TIMER.ALARM1
	case 1:
		return &rp.TIMER.ALARM2
	}
	return &rp.TIMER.ALARM3
}

// bit is the TIMER register bit of alarm slot i.
func bit(i int) uint32 { return 1 << (i + 1) }

// slot maps a timer address onto an alarm; the last identity has none.
func (e *timerEngine) slot(id hal.TimerID) (int, error) {
	i := id.Slot()
	if i < 0 || i >= hal.GroupMax*hal.IndexMax {
		return 0, errcode.InvalidParams
	}
	if i >= nAlarms {
		return 0, errcode.Unsupported
	}
	return i, nil
}

func (e *timerEngine) with(id hal.TimerID, fn func(i int, a *alarm) error) error {
	i, err := e.slot(id)
	if err != nil {
		return err
	}
	mask := interrupt.Disable()
	defer interrupt.Restore(mask)
	a := &e.alarms[i]
	if !a.used {
		return errcode.InvalidState
	}
	return fn(i, a)
}

func (a *alarm) count(now uint64) uint64 {
	if !a.running {
		return a.frozen
	}
	return (now - a.base) * refDivider / uint64(a.cfg.Divider)
}

// program loads the comparator for the current value, or disarms it.
func (a *alarm) program(i int) {
	rp.TIMER.ARMED.Set(bit(i))
	if !a.armed || !a.running {
		return
	}
	// Round up so the alarm never fires before the count is reached.
	target := a.base + mathx.CeilDiv(a.value*uint64(a.cfg.Divider), refDivider)
	now := nowUs()
	if target <= now {
		rp.TIMER.INTF.SetBits(bit(i))
		return
	}
	alarmReg(i).Set(uint32(target))
}

func (e *timerEngine) Init(id hal.TimerID, cfg *hal.TimerConfig) error {
	i, err := e.slot(id)
	if err != nil {
		return err
	}
	if cfg == nil || cfg.Divider < 2 || cfg.Divider > 65536 {
		return errcode.InvalidParams
	}
	if cfg.XTAL || cfg.CountDown {
		return errcode.Unsupported
	}
	mask := interrupt.Disable()
	defer interrupt.Restore(mask)
	a := &e.alarms[i]
	if a.used {
		return errcode.InvalidState
	}
	irq := a.irq
	*a = alarm{used: true, cfg: *cfg, irq: irq}
	rp.TIMER.ARMED.Set(bit(i))
	rp.TIMER.INTE.ClearBits(bit(i))
	return nil
}

func (e *timerEngine) Deinit(id hal.TimerID) error {
	return e.with(id, func(i int, a *alarm) error {
		rp.TIMER.ARMED.Set(bit(i))
		rp.TIMER.INTE.ClearBits(bit(i))
		a.irq.Disable()
		irq := a.irq
		*a = alarm{irq: irq}
		return nil
	})
}

func (e *timerEngine) Start(id hal.TimerID) error {
	return e.with(id, func(i int, a *alarm) error {
		if !a.running {
			a.base = nowUs() - a.frozen*uint64(a.cfg.Divider)/refDivider
			a.running = true
			a.program(i)
		}
		return nil
	})
}

func (e *timerEngine) Pause(id hal.TimerID) error {
	return e.with(id, func(i int, a *alarm) error {
		if a.running {
			a.frozen = a.count(nowUs())
			a.running = false
			a.program(i)
		}
		return nil
	})
}

func (e *timerEngine) Counter(id hal.TimerID) (v uint64, err error) {
	err = e.with(id, func(_ int, a *alarm) error { v = a.count(nowUs()); return nil })
	return v, err
}

func (e *timerEngine) CounterFromISR(id hal.TimerID) (v uint64) {
	_ = e.with(id, func(_ int, a *alarm) error { v = a.count(nowUs()); return nil })
	return v
}

func (a *alarm) load(i int, v uint64) {
	if a.running {
		a.base = nowUs() - v*uint64(a.cfg.Divider)/refDivider
	} else {
		a.frozen = v
	}
	a.program(i)
}

func (e *timerEngine) SetCounter(id hal.TimerID, v uint64) error {
	return e.with(id, func(i int, a *alarm) error { a.load(i, v); return nil })
}

func (e *timerEngine) SetCounterFromISR(id hal.TimerID, v uint64) {
	_ = e.with(id, func(i int, a *alarm) error { a.load(i, v); return nil })
}

func (e *timerEngine) Alarm(id hal.TimerID) (v uint64, err error) {
	err = e.with(id, func(_ int, a *alarm) error { v = a.value; return nil })
	return v, err
}

func (e *timerEngine) SetAlarm(id hal.TimerID, v uint64) error {
	return e.with(id, func(i int, a *alarm) error { a.value = v; a.program(i); return nil })
}

func (e *timerEngine) SetAlarmFromISR(id hal.TimerID, v uint64) {
	_ = e.SetAlarm(id, v)
}

func (e *timerEngine) SetAlarmEnable(id hal.TimerID, enable bool) error {
	return e.with(id, func(i int, a *alarm) error { a.armed = enable; a.program(i); return nil })
}

func (e *timerEngine) EnableAlarmFromISR(id hal.TimerID) {
	_ = e.SetAlarmEnable(id, true)
}

func (e *timerEngine) EnableIntr(id hal.TimerID) error {
	return e.with(id, func(i int, a *alarm) error {
		a.intrEn = true
		rp.TIMER.INTE.SetBits(bit(i))
		a.irq.Enable()
		return nil
	})
}

func (e *timerEngine) DisableIntr(id hal.TimerID) error {
	return e.with(id, func(i int, a *alarm) error {
		a.intrEn = false
		rp.TIMER.INTE.ClearBits(bit(i))
		return nil
	})
}

func (e *timerEngine) AddISRCallback(id hal.TimerID, fn hal.ISRFunc, ctx unsafe.Pointer) error {
	return e.with(id, func(_ int, a *alarm) error {
		if fn == nil {
			return errcode.InvalidParams
		}
		if a.fn != nil {
			return errcode.InvalidState
		}
		a.fn, a.ctx = fn, ctx
		return nil
	})
}

func (e *timerEngine) RemoveISRCallback(id hal.TimerID) error {
	return e.with(id, func(_ int, a *alarm) error {
		if a.fn == nil {
			return errcode.InvalidState
		}
		a.fn, a.ctx = nil, nil
		return nil
	})
}

// fire runs in interrupt context for alarm slot i. The alarm disarms on
// hit; with AutoReload the count restarts from zero and it re-arms.
func (e *timerEngine) fire(i int) {
	rp.TIMER.INTR.Set(bit(i))
	rp.TIMER.INTF.ClearBits(bit(i))
	a := &e.alarms[i]
	if !a.used {
		return
	}
	a.armed = false
	if a.cfg.AutoReload {
		a.base = nowUs()
		a.armed = true
		a.program(i)
	}
	if a.intrEn && a.fn != nil {
		// TinyGo switches goroutines only at scheduler points, so a yield
		// request has nothing to trigger here.
		_ = a.fn(a.ctx)
	}
}
