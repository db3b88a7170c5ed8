package sim

import (
	"sync"
	"time"

	"devicecode-periph/errcode"
	"devicecode-periph/hal"
	"devicecode-periph/x/mathx"
	"devicecode-periph/x/timex"
)

// MaxRingBytes bounds the DMA memory a port may claim; larger rings fail
// with errcode.NoMem.
const MaxRingBytes = 64 << 10

var _ hal.SAI = (*SAI)(nil)

// SAI simulates a set of serial audio engines.
type SAI struct {
	faults

	mu      sync.Mutex
	ports   []*saiPort
	maxGPIO hal.Pin
}

type saiPort struct {
	cfg    hal.I2SConfig
	pins   hal.PinConfig
	pinned bool
	tx     *ring
	rx     *ring
}

// NewSAI simulates n ports with GPIOs 0..maxGPIO.
func NewSAI(n int, maxGPIO hal.Pin) *SAI {
	return &SAI{ports: make([]*saiPort, n), maxGPIO: maxGPIO}
}

// FailNext makes the next call of op return err.
func (s *SAI) FailNext(op string, err error) { s.set(op, err) }

func (s *SAI) port(p hal.Port) (*saiPort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(p) >= len(s.ports) {
		return nil, errcode.InvalidParams
	}
	sp := s.ports[p]
	if sp == nil {
		return nil, errcode.InvalidState
	}
	return sp, nil
}

func (s *SAI) Install(p hal.Port, cfg *hal.I2SConfig) error {
	if err := s.take(OpInstall); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(p) >= len(s.ports) || cfg == nil {
		return errcode.InvalidParams
	}
	if s.ports[p] != nil {
		return errcode.InvalidState
	}
	size := cfg.RingBytes()
	if size <= 0 || cfg.SampleRate == 0 {
		return errcode.InvalidParams
	}
	if size > MaxRingBytes {
		return errcode.NoMem
	}
	sp := &saiPort{cfg: *cfg}
	ringSize := mathx.NextPow2(uint32(size))
	if cfg.Mode.Has(hal.ModeTx) {
		sp.tx = newRing(ringSize)
	}
	if cfg.Mode.Has(hal.ModeRx) {
		sp.rx = newRing(ringSize)
	}
	s.ports[p] = sp
	return nil
}

func (s *SAI) Uninstall(p hal.Port) error {
	if err := s.take(OpUninstall); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(p) >= len(s.ports) {
		return errcode.InvalidParams
	}
	if s.ports[p] == nil {
		return errcode.InvalidState
	}
	s.ports[p] = nil
	return nil
}

func (s *SAI) SetPins(p hal.Port, pins *hal.PinConfig) error {
	if err := s.take(OpSetPins); err != nil {
		return err
	}
	sp, err := s.port(p)
	if err != nil {
		return err
	}
	if pins == nil || pins.BCK == hal.NoPin || pins.WS == hal.NoPin {
		return errcode.InvalidParams
	}
	if sp.cfg.Mode.Has(hal.ModeTx) != (pins.DataOut != hal.NoPin) ||
		sp.cfg.Mode.Has(hal.ModeRx) != (pins.DataIn != hal.NoPin) {
		return errcode.InvalidParams
	}
	used := map[hal.Pin]bool{}
	for _, pin := range []hal.Pin{pins.BCK, pins.WS, pins.DataIn, pins.DataOut, pins.MCK} {
		if pin == hal.NoPin {
			continue
		}
		if pin < 0 || pin > s.maxGPIO {
			return errcode.UnknownPin
		}
		if used[pin] {
			return errcode.PinInUse
		}
		used[pin] = true
	}
	s.mu.Lock()
	sp.pins, sp.pinned = *pins, true
	s.mu.Unlock()
	return nil
}

func (s *SAI) Write(p hal.Port, src []byte, timeout time.Duration) (int, error) {
	if err := s.take(OpWrite); err != nil {
		return 0, err
	}
	sp, err := s.port(p)
	if err != nil {
		return 0, err
	}
	if sp.tx == nil {
		return 0, errcode.Unsupported
	}
	return pump(src, timeout, sp.tx.put, sp.tx.writable)
}

func (s *SAI) Read(p hal.Port, dst []byte, timeout time.Duration) (int, error) {
	if err := s.take(OpRead); err != nil {
		return 0, err
	}
	sp, err := s.port(p)
	if err != nil {
		return 0, err
	}
	if sp.rx == nil {
		return 0, errcode.Unsupported
	}
	return pump(dst, timeout, sp.rx.get, sp.rx.readable)
}

// pump moves buf through step until done, waiting on edge for progress. It
// gives up with errcode.Timeout once timeout has elapsed without finishing.
func pump(buf []byte, timeout time.Duration, step func([]byte) int, edge <-chan struct{}) (int, error) {
	var deadline <-chan time.Time
	n := 0
	for {
		n += step(buf[n:])
		if n == len(buf) {
			return n, nil
		}
		if deadline == nil {
			t := time.NewTimer(timeout)
			defer t.Stop()
			deadline = t.C
		}
		select {
		case <-edge:
		case <-deadline:
			n += step(buf[n:])
			if n == len(buf) {
				return n, nil
			}
			return n, errcode.Timeout
		}
	}
}

// Installed reports whether port p is installed.
func (s *SAI) Installed(p hal.Port) bool {
	_, err := s.port(p)
	return err == nil
}

// Config returns the parameter blocks last applied to p.
func (s *SAI) Config(p hal.Port) (hal.I2SConfig, hal.PinConfig, bool) {
	sp, err := s.port(p)
	if err != nil {
		return hal.I2SConfig{}, hal.PinConfig{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return sp.cfg, sp.pins, sp.pinned
}

// Drain clocks transmitted bytes out of p's ring into dst, as the bit clock
// would.
func (s *SAI) Drain(p hal.Port, dst []byte) int {
	sp, err := s.port(p)
	if err != nil || sp.tx == nil {
		return 0
	}
	return sp.tx.get(dst)
}

// Clock discards what the bit clock would shift out of p's ring during d at
// the configured sample rate, and returns the byte count.
func (s *SAI) Clock(p hal.Port, d time.Duration) int {
	sp, err := s.port(p)
	if err != nil || sp.tx == nil {
		return 0
	}
	n := timex.FramesIn(d, sp.cfg.SampleRate) * sp.cfg.FrameBytes()
	return sp.tx.get(make([]byte, n))
}

// Pending is the number of transmitted bytes not yet drained.
func (s *SAI) Pending(p hal.Port) int {
	sp, err := s.port(p)
	if err != nil || sp.tx == nil {
		return 0
	}
	return sp.tx.available()
}

// Feed delivers src on p's data-in line and returns how much fit.
func (s *SAI) Feed(p hal.Port, src []byte) int {
	sp, err := s.port(p)
	if err != nil || sp.rx == nil {
		return 0
	}
	return sp.rx.put(src)
}

// RingCapacity is the ring size allocated for p.
func (s *SAI) RingCapacity(p hal.Port) int {
	sp, err := s.port(p)
	if err != nil {
		return 0
	}
	if sp.tx != nil {
		return int(sp.tx.size())
	}
	if sp.rx != nil {
		return int(sp.rx.size())
	}
	return 0
}
