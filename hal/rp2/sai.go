//go:build rp2040

package rp2

import (
	"encoding/binary"
	"machine"
	"sync"
	"time"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"

	"devicecode-periph/errcode"
	"devicecode-periph/hal"
)

// framesPerChunk matches the TX FIFO depth, so a chunk never waits long
// past the deadline.
const framesPerChunk = 8

type saiPort struct {
	cfg hal.I2SConfig
	sm  pio.StateMachine
	dev *piolib.I2S
}

type saiEngine struct {
	mu    sync.Mutex
	ports [2]*saiPort
}

func newSAI() *saiEngine { return &saiEngine{} }

func pioBlock(p hal.Port) *pio.PIO {
	if p == 0 {
		return pio.PIO0
	}
	return pio.PIO1
}

func (s *saiEngine) Install(p hal.Port, cfg *hal.I2SConfig) error {
	if int(p) >= len(s.ports) || cfg == nil || cfg.SampleRate == 0 {
		return errcode.InvalidParams
	}
	// The PIO program clocks 16-bit stereo frames out, master only.
	if cfg.Mode != hal.ModeMaster|hal.ModeTx || cfg.CommFormat != hal.CommI2S ||
		cfg.BitsPerSample != hal.Bits16 || cfg.ChannelFormat != hal.ChannelRightLeft {
		return errcode.Unsupported
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ports[p] != nil {
		return errcode.InvalidState
	}
	sm, err := pioBlock(p).ClaimStateMachine()
	if err != nil {
		return errcode.Busy
	}
	s.ports[p] = &saiPort{cfg: *cfg, sm: sm}
	return nil
}

func (s *saiEngine) Uninstall(p hal.Port) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(p) >= len(s.ports) || s.ports[p] == nil {
		return errcode.InvalidState
	}
	sp := s.ports[p]
	if sp.dev != nil {
		sp.dev.Enable(false)
	}
	sp.sm.Unclaim()
	s.ports[p] = nil
	return nil
}

func (s *saiEngine) SetPins(p hal.Port, pins *hal.PinConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(p) >= len(s.ports) || s.ports[p] == nil {
		return errcode.InvalidState
	}
	sp := s.ports[p]
	if pins == nil || pins.DataOut == hal.NoPin || pins.DataIn != hal.NoPin || pins.MCK != hal.NoPin {
		return errcode.InvalidParams
	}
	// Side-set drives BCK and the next pin, which must be WS.
	if pins.WS != pins.BCK+1 {
		return errcode.InvalidParams
	}
	for _, pin := range []hal.Pin{pins.BCK, pins.WS, pins.DataOut} {
		if pin < 0 || pin > maxGPIO {
			return errcode.UnknownPin
		}
	}
	if pins.DataOut == pins.BCK || pins.DataOut == pins.WS {
		return errcode.PinInUse
	}
	dev, err := piolib.NewI2S(sp.sm, machine.Pin(pins.DataOut), machine.Pin(pins.BCK))
	if err != nil {
		return errcode.NoMem
	}
	if err := dev.SetSampleFrequency(sp.cfg.SampleRate); err != nil {
		return errcode.InvalidParams
	}
	dev.Enable(true)
	sp.dev = dev
	return nil
}

func (s *saiEngine) active(p hal.Port) (*saiPort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(p) >= len(s.ports) || s.ports[p] == nil || s.ports[p].dev == nil {
		return nil, errcode.InvalidState
	}
	return s.ports[p], nil
}

// Write packs each 4-byte frame (left then right, little-endian int16) into
// the MSB-first word the PIO program shifts out.
func (s *saiEngine) Write(p hal.Port, src []byte, timeout time.Duration) (int, error) {
	sp, err := s.active(p)
	if err != nil {
		return 0, err
	}
	deadline := time.Now().Add(timeout)
	var words [framesPerChunk]uint32
	n := 0
	for len(src)-n >= 4 {
		if time.Now().After(deadline) {
			return n, errcode.Timeout
		}
		k := 0
		for ; k < len(words) && len(src)-n-4*k >= 4; k++ {
			f := src[n+4*k:]
			words[k] = uint32(binary.LittleEndian.Uint16(f))<<16 | uint32(binary.LittleEndian.Uint16(f[2:]))
		}
		if _, err := sp.dev.WriteStereo(words[:k]); err != nil {
			return n, errcode.Busy
		}
		n += 4 * k
	}
	return n, nil
}

func (s *saiEngine) Read(p hal.Port, dst []byte, timeout time.Duration) (int, error) {
	return 0, errcode.Unsupported
}
