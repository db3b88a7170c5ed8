// Package alarms moves timer alarm interrupts into normal context.
//
// The handler a Watch installs runs in interrupt context: it reads the
// counter, re-arms a periodic alarm and hands the reading to the worker
// without blocking. The worker goroutine numbers and timestamps the
// readings and publishes them on Events.
package alarms

import (
	"context"
	"sync"
	"sync/atomic"

	"devicecode-periph/errcode"
	"devicecode-periph/x/logx"
	"devicecode-periph/x/mathx"
	"devicecode-periph/x/timex"
)

// Source is the part of a timer handle the worker drives. *timer.Driver
// satisfies it for every timer identity.
type Source interface {
	Counter() (uint64, error)
	SetAlarm(v uint64) error
	EnableAlarm(on bool) error
	Subscribe(handler func()) error
	Unsubscribe() error
}

// Event is one alarm as seen by normal context.
type Event struct {
	Timer string
	Count uint64 // counter value read in the ISR
	Seq   uint64 // per-watch sequence, starting at 1
	TSms  int64
}

// maxBuf caps the queue depths; queues are preallocated.
const maxBuf = 256

type Worker struct {
	// Written by ISR; must not block it.
	isrQ    chan isrEvent
	outQ    chan Event
	stopped chan struct{}

	mu      sync.RWMutex
	watches map[string]*watch

	drops    atomic.Uint32 // ISR queue full
	outDrops atomic.Uint32 // consumer too slow
}

type isrEvent struct {
	name  string
	count uint64
}

type watch struct {
	src Source
	seq uint64
}

func New(isrBuf, outBuf int) *Worker {
	if isrBuf <= 0 {
		isrBuf = 16
	}
	if outBuf <= 0 {
		outBuf = 16
	}
	isrBuf = mathx.Clamp(isrBuf, 1, maxBuf)
	outBuf = mathx.Clamp(outBuf, 1, maxBuf)
	return &Worker{
		isrQ:    make(chan isrEvent, isrBuf),
		outQ:    make(chan Event, outBuf),
		stopped: make(chan struct{}),
		watches: map[string]*watch{},
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.isrQ:
				w.handleISR(ev)
			}
		}
	}()
}

// Done is closed once the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.stopped }

func (w *Worker) Events() <-chan Event { return w.outQ }

// Watch subscribes to src's alarm under name. With period > 0 the alarm is
// armed period counts ahead and re-armed by the handler on every hit;
// with period 0 the caller arms the alarm itself. The returned func
// unsubscribes and forgets the watch.
//
// A name or a source can be watched once at a time; a second Watch fails
// with errcode.Busy. Sources are compared with ==.
func (w *Worker) Watch(name string, src Source, period uint64) (func(), error) {
	wh := &watch{src: src}
	if err := w.reserve(name, wh); err != nil {
		return nil, err
	}

	handler := func() {
		now, _ := src.Counter()
		if period > 0 {
			_ = src.SetAlarm(now + period)
			_ = src.EnableAlarm(true)
		}
		select {
		case w.isrQ <- isrEvent{name: name, count: now}:
		default:
			w.drops.Add(1)
		}
	}
	if err := src.Subscribe(handler); err != nil {
		w.forget(name, wh)
		return nil, err
	}
	if period > 0 {
		now, err := src.Counter()
		if err == nil {
			err = src.SetAlarm(now + period)
		}
		if err == nil {
			err = src.EnableAlarm(true)
		}
		if err != nil {
			_ = src.Unsubscribe()
			w.forget(name, wh)
			return nil, err
		}
	}
	logx.LogDebug(logx.ComponentAlarms, "watching", "timer", name, "period", period)

	return func() {
		if !w.forget(name, wh) {
			return
		}
		if err := src.Unsubscribe(); err != nil {
			logx.LogWarn(logx.ComponentAlarms, "unsubscribe failed", "timer", name, "err", err)
		}
	}, nil
}

// reserve claims name and wh.src in one critical section, before the
// source is subscribed.
func (w *Worker) reserve(name string, wh *watch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, dup := w.watches[name]; dup {
		return &errcode.E{C: errcode.Busy, Op: "alarms watch", Msg: name}
	}
	for other, cur := range w.watches {
		if cur.src == wh.src {
			return &errcode.E{C: errcode.Busy, Op: "alarms watch", Msg: "source already watched as " + other}
		}
	}
	w.watches[name] = wh
	return nil
}

// forget drops name if it still maps to wh and reports whether it did.
func (w *Worker) forget(name string, wh *watch) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watches[name] != wh {
		return false
	}
	delete(w.watches, name)
	return true
}

func (w *Worker) handleISR(ev isrEvent) {
	w.mu.Lock()
	wh := w.watches[ev.name]
	var seq uint64
	if wh != nil {
		wh.seq++
		seq = wh.seq
	}
	w.mu.Unlock()
	if wh == nil {
		return
	}
	select {
	case w.outQ <- Event{Timer: ev.name, Count: ev.count, Seq: seq, TSms: timex.NowMs()}:
	default:
		w.outDrops.Add(1)
	}
}

// ISRDrops counts alarms lost because the ISR queue was full.
func (w *Worker) ISRDrops() uint32 { return w.drops.Load() }

// OutDrops counts events lost because Events was not drained.
func (w *Worker) OutDrops() uint32 { return w.outDrops.Load() }
