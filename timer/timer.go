// Package timer drives the general purpose hardware timers.
//
// A Driver owns one timer identity for its lifetime. Operations that are
// legal from interrupt context (Counter, SetCounter, SetAlarm, enabling the
// alarm) pick the interrupt-safe native call when isr.Active reports an
// ISR; everything else panics there.
package timer

import (
	"errors"
	"sync/atomic"

	"devicecode-periph/errcode"
	"devicecode-periph/hal"
	"devicecode-periph/isr"
	"devicecode-periph/periph"
	"devicecode-periph/x/logx"
	"devicecode-periph/x/mathx"
)

// Identity is implemented by the timer identity tokens.
type Identity interface {
	comparable
	ID() hal.TimerID
}

type (
	Timer00 struct{} // group 0, timer 0
	Timer01 struct{} // group 0, timer 1
	Timer10 struct{} // group 1, timer 0
	Timer11 struct{} // group 1, timer 1
)

func (Timer00) ID() hal.TimerID { return hal.TimerID{Group: 0, Index: 0} }
func (Timer01) ID() hal.TimerID { return hal.TimerID{Group: 0, Index: 1} }
func (Timer10) ID() hal.TimerID { return hal.TimerID{Group: 1, Index: 0} }
func (Timer11) ID() hal.TimerID { return hal.TimerID{Group: 1, Index: 1} }

// Divider bounds. The prescaler is applied to the 80 MHz APB clock (or the
// crystal with XTAL), so the default counts at 1 MHz.
const (
	DefaultDivider = 80
	MinDivider     = 2
	MaxDivider     = 65536
)

// Config is applied once when the driver is created.
type Config struct {
	Divider    uint32
	XTAL       bool
	AutoReload bool
}

// NewConfig returns the default configuration.
func NewConfig() Config { return Config{Divider: DefaultDivider} }

func (c Config) WithDivider(d uint32) Config   { c.Divider = d; return c }
func (c Config) WithXTAL(on bool) Config       { c.XTAL = on; return c }
func (c Config) WithAutoReload(on bool) Config { c.AutoReload = on; return c }

// Driver is the handle for the timer identified by T.
type Driver[T Identity] struct {
	id     hal.TimerID
	eng    hal.Timer
	key    periph.Key
	closed atomic.Bool
}

// New initialises t with cfg. The counter starts paused at zero with the
// alarm disabled.
func New[T Identity](t T, cfg Config) (*Driver[T], error) {
	isr.MustNotBeActive("timer new")
	if !mathx.Between(cfg.Divider, MinDivider, MaxDivider) {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "timer new", Msg: "divider out of range"}
	}
	eng, err := hal.TimerEngine()
	if err != nil {
		return nil, err
	}
	id := t.ID()
	key := periph.Key{Class: "timer", Group: uint8(id.Group), Index: uint8(id.Index)}
	if err := periph.Claim(key); err != nil {
		return nil, err
	}
	hcfg := hal.TimerConfig{Divider: cfg.Divider, XTAL: cfg.XTAL, AutoReload: cfg.AutoReload}
	if err := eng.Init(id, &hcfg); err != nil {
		periph.Release(key)
		return nil, err
	}
	logx.LogDebug(logx.ComponentTimer, "initialised", "timer", key.String(), "divider", cfg.Divider, "xtal", cfg.XTAL)
	return &Driver[T]{id: id, eng: eng, key: key}, nil
}

// ID is the hardware address of the timer.
func (d *Driver[T]) ID() hal.TimerID { return d.id }

func (d *Driver[T]) ready(op string) error {
	isr.MustNotBeActive(op)
	if d.closed.Load() {
		return errcode.Closed
	}
	return nil
}

// Enable starts or pauses the counter.
func (d *Driver[T]) Enable(on bool) error {
	if err := d.ready("timer enable"); err != nil {
		return err
	}
	if on {
		return d.eng.Start(d.id)
	}
	return d.eng.Pause(d.id)
}

// Counter reads the current count.
func (d *Driver[T]) Counter() (uint64, error) {
	if d.closed.Load() {
		return 0, errcode.Closed
	}
	if isr.Active() {
		return d.eng.CounterFromISR(d.id), nil
	}
	return d.eng.Counter(d.id)
}

// SetCounter loads v into the counter.
func (d *Driver[T]) SetCounter(v uint64) error {
	if d.closed.Load() {
		return errcode.Closed
	}
	if isr.Active() {
		d.eng.SetCounterFromISR(d.id, v)
		return nil
	}
	return d.eng.SetCounter(d.id, v)
}

// Alarm reads the alarm threshold.
func (d *Driver[T]) Alarm() (uint64, error) {
	if err := d.ready("timer alarm"); err != nil {
		return 0, err
	}
	return d.eng.Alarm(d.id)
}

// SetAlarm sets the count at which the alarm fires.
func (d *Driver[T]) SetAlarm(v uint64) error {
	if d.closed.Load() {
		return errcode.Closed
	}
	if isr.Active() {
		d.eng.SetAlarmFromISR(d.id, v)
		return nil
	}
	return d.eng.SetAlarm(d.id, v)
}

// EnableAlarm arms or disarms the alarm. A fired alarm disarms itself, so
// handlers re-arm with EnableAlarm(true); disarming is normal context only.
func (d *Driver[T]) EnableAlarm(on bool) error {
	if d.closed.Load() {
		return errcode.Closed
	}
	if isr.Active() {
		if !on {
			panic(&errcode.E{C: errcode.InterruptContext, Op: "timer disable alarm", Msg: "cannot be called from an ISR"})
		}
		d.eng.EnableAlarmFromISR(d.id)
		return nil
	}
	return d.eng.SetAlarmEnable(d.id, on)
}

// EnableInterrupt unmasks the alarm interrupt.
func (d *Driver[T]) EnableInterrupt() error {
	if err := d.ready("timer enable interrupt"); err != nil {
		return err
	}
	return d.eng.EnableIntr(d.id)
}

// DisableInterrupt masks the alarm interrupt.
func (d *Driver[T]) DisableInterrupt() error {
	if err := d.ready("timer disable interrupt"); err != nil {
		return err
	}
	return d.eng.DisableIntr(d.id)
}

// Subscribe makes handler the alarm callback and unmasks the interrupt.
// Any previous handler is unsubscribed first. handler runs in interrupt
// context; it may call isr.RequestYield to ask for a task switch on return.
func (d *Driver[T]) Subscribe(handler func()) error {
	if err := d.ready("timer subscribe"); err != nil {
		return err
	}
	if handler == nil {
		return &errcode.E{C: errcode.InvalidParams, Op: "timer subscribe", Msg: "nil handler"}
	}
	if err := d.unsubscribe(); err != nil {
		return err
	}
	s := store(d.id, handler)
	if err := d.eng.AddISRCallback(d.id, trampoline, s.ctx()); err != nil {
		dropSlot(d.id)
		return err
	}
	if err := d.eng.EnableIntr(d.id); err != nil {
		if rerr := d.eng.RemoveISRCallback(d.id); rerr != nil {
			err = errors.Join(err, rerr)
		}
		dropSlot(d.id)
		return err
	}
	return nil
}

// Unsubscribe masks the interrupt and drops the handler. It is a no-op
// without a subscription and on a closed handle, whose identity may
// already belong to a new owner.
func (d *Driver[T]) Unsubscribe() error {
	isr.MustNotBeActive("timer unsubscribe")
	if d.closed.Load() {
		return nil
	}
	return d.unsubscribe()
}

// unsubscribe tears down in the order that keeps the trampoline's slot
// valid for as long as the interrupt can fire.
func (d *Driver[T]) unsubscribe() error {
	if !subscribed(d.id) {
		return nil
	}
	if err := d.eng.DisableIntr(d.id); err != nil {
		return err
	}
	if err := d.eng.RemoveISRCallback(d.id); err != nil {
		return err
	}
	dropSlot(d.id)
	return nil
}

// Close unsubscribes, deinitialises the timer and frees the identity.
// Further calls are no-ops. Failure leaves the hardware in an unknown
// state and panics after logging.
func (d *Driver[T]) Close() {
	isr.MustNotBeActive("timer close")
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	if err := d.unsubscribe(); err != nil {
		logx.Fatal(logx.ComponentTimer, "unsubscribe failed", errcode.Wrap("timer close", err), "timer", d.key.String())
	}
	if err := d.eng.Deinit(d.id); err != nil {
		logx.Fatal(logx.ComponentTimer, "deinit failed", errcode.Wrap("timer deinit", err), "timer", d.key.String())
	}
	periph.Release(d.key)
	logx.LogDebug(logx.ComponentTimer, "deinitialised", "timer", d.key.String())
}
