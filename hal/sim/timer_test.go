package sim

import (
	"errors"
	"testing"
	"unsafe"

	"devicecode-periph/errcode"
	"devicecode-periph/hal"
	"devicecode-periph/isr"
)

var t00 = hal.TimerID{Group: 0, Index: 0}

func initTimer(t *testing.T, tm *Timer, cfg hal.TimerConfig) {
	t.Helper()
	if err := tm.Init(t00, &cfg); err != nil {
		t.Fatal(err)
	}
}

func TestTickOnlyWhileRunning(t *testing.T) {
	tm := NewTimer()
	initTimer(t, tm, hal.TimerConfig{Divider: 80})
	tm.Tick(t00, 10)
	if v, _ := tm.Counter(t00); v != 0 {
		t.Fatalf("paused counter moved to %d", v)
	}
	_ = tm.Start(t00)
	tm.Tick(t00, 10)
	if v, _ := tm.Counter(t00); v != 10 {
		t.Fatalf("counter = %d, want 10", v)
	}
}

func TestAlarmDispatchesInInterruptContext(t *testing.T) {
	tm := NewTimer()
	initTimer(t, tm, hal.TimerConfig{Divider: 80})

	hits := 0
	var inISR bool
	var at uint64
	ctx := unsafe.Pointer(&hits)
	fn := func(p unsafe.Pointer) bool {
		*(*int)(p)++
		inISR = isr.Active()
		at = tm.CounterFromISR(t00)
		return true
	}
	if err := tm.AddISRCallback(t00, fn, ctx); err != nil {
		t.Fatal(err)
	}
	_ = tm.SetAlarm(t00, 5)
	_ = tm.SetAlarmEnable(t00, true)
	_ = tm.EnableIntr(t00)
	_ = tm.Start(t00)

	if n := tm.Tick(t00, 20); n != 1 {
		t.Fatalf("dispatched %d interrupts, want 1", n)
	}
	if hits != 1 || !inISR || at != 5 {
		t.Fatalf("hits=%d inISR=%v at=%d", hits, inISR, at)
	}
	if tm.Yields() != 1 {
		t.Fatalf("yields = %d", tm.Yields())
	}
}

func TestAutoReloadKeepsFiring(t *testing.T) {
	tm := NewTimer()
	initTimer(t, tm, hal.TimerConfig{Divider: 80, AutoReload: true})
	hits := 0
	_ = tm.AddISRCallback(t00, func(unsafe.Pointer) bool { hits++; return false }, nil)
	_ = tm.SetAlarm(t00, 4)
	_ = tm.SetAlarmEnable(t00, true)
	_ = tm.EnableIntr(t00)
	_ = tm.Start(t00)
	tm.Tick(t00, 12)
	if hits != 3 || tm.Triggers(t00) != 3 {
		t.Fatalf("hits=%d triggers=%d, want 3", hits, tm.Triggers(t00))
	}
}

func TestMaskedAlarmStaysPending(t *testing.T) {
	tm := NewTimer()
	initTimer(t, tm, hal.TimerConfig{Divider: 80})
	hits := 0
	_ = tm.AddISRCallback(t00, func(unsafe.Pointer) bool { hits++; return false }, nil)
	_ = tm.SetAlarm(t00, 2)
	_ = tm.SetAlarmEnable(t00, true)
	_ = tm.Start(t00)
	tm.Tick(t00, 5)
	if hits != 0 {
		t.Fatal("masked interrupt dispatched")
	}
	_ = tm.EnableIntr(t00)
	tm.Tick(t00, 1)
	if hits != 1 {
		t.Fatalf("pending interrupt not delivered after unmask, hits=%d", hits)
	}
}

func TestTimerErrors(t *testing.T) {
	tm := NewTimer()
	if _, err := tm.Counter(t00); !errors.Is(err, errcode.InvalidState) {
		t.Fatalf("counter before init: %v", err)
	}
	if err := tm.Init(t00, &hal.TimerConfig{Divider: 1}); !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("divider 1: %v", err)
	}
	initTimer(t, tm, hal.TimerConfig{Divider: 80})
	if err := tm.Init(t00, &hal.TimerConfig{Divider: 80}); !errors.Is(err, errcode.InvalidState) {
		t.Fatalf("double init: %v", err)
	}
	if err := tm.RemoveISRCallback(t00); !errors.Is(err, errcode.InvalidState) {
		t.Fatalf("remove without callback: %v", err)
	}
	if err := tm.Init(hal.TimerID{Group: 2}, &hal.TimerConfig{Divider: 80}); !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("bad group: %v", err)
	}
}
