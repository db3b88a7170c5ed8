package sim

import (
	"sync"
	"unsafe"

	"devicecode-periph/errcode"
	"devicecode-periph/hal"
	"devicecode-periph/isr"
)

var _ hal.Timer = (*Timer)(nil)

// Timer simulates the timer groups. Counters move only on Tick.
type Timer struct {
	faults

	mu     sync.Mutex
	timers [hal.GroupMax * hal.IndexMax]*simTimer
	calls  []string
	yields int
}

type simTimer struct {
	cfg      hal.TimerConfig
	running  bool
	counter  uint64
	alarm    uint64
	alarmEn  bool
	intrEn   bool
	isr      hal.ISRFunc
	isrCtx   unsafe.Pointer
	pending  bool // alarm latched while the interrupt was masked
	triggers int
}

func NewTimer() *Timer { return &Timer{} }

// FailNext makes the next call of op return err.
func (t *Timer) FailNext(op string, err error) { t.set(op, err) }

// lookup returns the timer for id; caller holds t.mu.
func (t *Timer) lookup(id hal.TimerID) (*simTimer, error) {
	if id.Group >= hal.GroupMax || id.Index >= hal.IndexMax {
		return nil, errcode.InvalidParams
	}
	st := t.timers[id.Slot()]
	if st == nil {
		return nil, errcode.InvalidState
	}
	return st, nil
}

// do runs a normal-context native call: fault injection, call log, lookup.
func (t *Timer) do(op string, id hal.TimerID, fn func(*simTimer) error) error {
	if err := t.take(op); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, op)
	st, err := t.lookup(id)
	if err != nil {
		return err
	}
	return fn(st)
}

// isrDo runs an interrupt-safe native call. These cannot fail; an unknown
// timer is ignored the way the hardware ignores writes to a gated block.
func (t *Timer) isrDo(op string, id hal.TimerID, fn func(*simTimer)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, op)
	if st, err := t.lookup(id); err == nil {
		fn(st)
	}
}

func (t *Timer) Init(id hal.TimerID, cfg *hal.TimerConfig) error {
	if err := t.take(OpInit); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, OpInit)
	if id.Group >= hal.GroupMax || id.Index >= hal.IndexMax || cfg == nil {
		return errcode.InvalidParams
	}
	if cfg.Divider < 2 || cfg.Divider > 65536 {
		return errcode.InvalidParams
	}
	if t.timers[id.Slot()] != nil {
		return errcode.InvalidState
	}
	t.timers[id.Slot()] = &simTimer{cfg: *cfg}
	return nil
}

func (t *Timer) Deinit(id hal.TimerID) error {
	return t.do(OpDeinit, id, func(*simTimer) error {
		t.timers[id.Slot()] = nil
		return nil
	})
}

func (t *Timer) Start(id hal.TimerID) error {
	return t.do(OpStart, id, func(st *simTimer) error { st.running = true; return nil })
}

func (t *Timer) Pause(id hal.TimerID) error {
	return t.do(OpPause, id, func(st *simTimer) error { st.running = false; return nil })
}

func (t *Timer) Counter(id hal.TimerID) (v uint64, err error) {
	err = t.do("get_counter", id, func(st *simTimer) error { v = st.counter; return nil })
	return v, err
}

func (t *Timer) CounterFromISR(id hal.TimerID) (v uint64) {
	t.isrDo("get_counter_in_isr", id, func(st *simTimer) { v = st.counter })
	return v
}

func (t *Timer) SetCounter(id hal.TimerID, v uint64) error {
	return t.do("set_counter", id, func(st *simTimer) error { st.counter = v; return nil })
}

func (t *Timer) SetCounterFromISR(id hal.TimerID, v uint64) {
	t.isrDo("set_counter_in_isr", id, func(st *simTimer) { st.counter = v })
}

func (t *Timer) Alarm(id hal.TimerID) (v uint64, err error) {
	err = t.do("get_alarm", id, func(st *simTimer) error { v = st.alarm; return nil })
	return v, err
}

func (t *Timer) SetAlarm(id hal.TimerID, v uint64) error {
	return t.do("set_alarm_value", id, func(st *simTimer) error { st.alarm = v; return nil })
}

func (t *Timer) SetAlarmFromISR(id hal.TimerID, v uint64) {
	t.isrDo("set_alarm_value_in_isr", id, func(st *simTimer) { st.alarm = v })
}

func (t *Timer) SetAlarmEnable(id hal.TimerID, enable bool) error {
	return t.do("set_alarm", id, func(st *simTimer) error { st.alarmEn = enable; return nil })
}

func (t *Timer) EnableAlarmFromISR(id hal.TimerID) {
	t.isrDo("enable_alarm_in_isr", id, func(st *simTimer) { st.alarmEn = true })
}

func (t *Timer) EnableIntr(id hal.TimerID) error {
	return t.do(OpEnableIntr, id, func(st *simTimer) error { st.intrEn = true; return nil })
}

func (t *Timer) DisableIntr(id hal.TimerID) error {
	return t.do(OpDisableIntr, id, func(st *simTimer) error { st.intrEn = false; return nil })
}

func (t *Timer) AddISRCallback(id hal.TimerID, fn hal.ISRFunc, ctx unsafe.Pointer) error {
	return t.do(OpAddISR, id, func(st *simTimer) error {
		if fn == nil {
			return errcode.InvalidParams
		}
		if st.isr != nil {
			return errcode.InvalidState
		}
		st.isr, st.isrCtx = fn, ctx
		return nil
	})
}

func (t *Timer) RemoveISRCallback(id hal.TimerID) error {
	return t.do(OpRemoveISR, id, func(st *simTimer) error {
		if st.isr == nil {
			return errcode.InvalidState
		}
		st.isr, st.isrCtx = nil, nil
		return nil
	})
}

// Tick advances id by n counts, one at a time. Whenever the counter reaches
// the armed alarm the alarm disarms (or the counter reloads to zero with
// AutoReload) and, if the interrupt is enabled and a callback is registered,
// the callback runs in simulated interrupt context before the next count.
// It returns the number of interrupts dispatched.
func (t *Timer) Tick(id hal.TimerID, n uint64) int {
	dispatched := 0
	for ; n > 0; n-- {
		fn, ctx := t.step(id)
		if fn == nil {
			continue
		}
		dispatched++
		isr.Simulate(func() {
			if fn(ctx) {
				t.mu.Lock()
				t.yields++
				t.mu.Unlock()
			}
		})
	}
	return dispatched
}

func (t *Timer) step(id hal.TimerID) (hal.ISRFunc, unsafe.Pointer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, err := t.lookup(id)
	if err != nil || !st.running {
		return nil, nil
	}
	if st.cfg.CountDown {
		st.counter--
	} else {
		st.counter++
	}
	reached := st.counter >= st.alarm
	if st.cfg.CountDown {
		reached = st.counter <= st.alarm
	}
	if st.alarmEn && reached {
		st.triggers++
		st.alarmEn = false
		if st.cfg.AutoReload {
			st.counter = 0
			st.alarmEn = true
		}
		st.pending = true
	}
	if st.pending && st.intrEn && st.isr != nil {
		st.pending = false
		return st.isr, st.isrCtx
	}
	return nil, nil
}

// Calls returns the native calls made so far, in order.
func (t *Timer) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

// ResetCalls clears the call log.
func (t *Timer) ResetCalls() {
	t.mu.Lock()
	t.calls = nil
	t.mu.Unlock()
}

// Triggers is how often id's alarm has fired.
func (t *Timer) Triggers(id hal.TimerID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, err := t.lookup(id); err == nil {
		return st.triggers
	}
	return 0
}

// Yields counts handler runs that asked for a context switch.
func (t *Timer) Yields() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.yields
}

// Registered reports whether a callback is attached to id.
func (t *Timer) Registered(id hal.TimerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, err := t.lookup(id)
	return err == nil && st.isr != nil
}

// InterruptEnabled reports id's interrupt enable bit.
func (t *Timer) InterruptEnabled(id hal.TimerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, err := t.lookup(id)
	return err == nil && st.intrEn
}

// Initialized reports whether id has been initialised and not deinitialised.
func (t *Timer) Initialized(id hal.TimerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.lookup(id)
	return err == nil
}

// Config returns the parameter block id was initialised with.
func (t *Timer) Config(id hal.TimerID) (hal.TimerConfig, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, err := t.lookup(id)
	if err != nil {
		return hal.TimerConfig{}, false
	}
	return st.cfg, true
}
