package sai

import (
	"errors"

	"devicecode-periph/errcode"
	"devicecode-periph/hal"
	"devicecode-periph/x/mathx"
)

// Pin sets per direction. Only the constructor matching a set exists, so a
// request without any data line cannot be expressed.
type (
	RxPins struct {
		BCK, WS, DataIn hal.Pin
	}
	TxPins struct {
		BCK, WS, DataOut hal.Pin
	}
	RxTxPins struct {
		BCK, WS, DataIn, DataOut hal.Pin
	}
)

// Defaults applied to every engine.
const (
	DefaultDMABufCount = 8
	DefaultDMABufLen   = 64
)

// Limits accepted for the DMA ring geometry.
const (
	minDMABufCount, maxDMABufCount = 2, 128
	minDMABufLen, maxDMABufLen     = 8, 1024
)

type options struct {
	mck      hal.Pin
	channels hal.ChannelFormat
	dmaCount int
	dmaLen   int
	apll     bool
}

func defaultOptions() options {
	return options{
		mck:      hal.NoPin,
		channels: hal.ChannelRightLeft,
		dmaCount: DefaultDMABufCount,
		dmaLen:   DefaultDMABufLen,
	}
}

// Option adjusts the engine parameters beyond pins and rate.
type Option func(*options)

// WithMasterClock routes MCK to pin.
func WithMasterClock(pin hal.Pin) Option { return func(o *options) { o.mck = pin } }

// WithChannelFormat selects how channels map onto slots (default RightLeft).
func WithChannelFormat(f hal.ChannelFormat) Option { return func(o *options) { o.channels = f } }

// WithDMABuffers sets the ring to count buffers of frames frames each.
func WithDMABuffers(count, frames int) Option {
	return func(o *options) { o.dmaCount, o.dmaLen = count, frames }
}

// WithAPLL clocks the engine from the audio PLL.
func WithAPLL(on bool) Option { return func(o *options) { o.apll = on } }

// wiring is the five pin roles; absent roles hold hal.NoPin.
type wiring struct {
	bck, ws, din, dout, mck hal.Pin
}

// requirePins fails with errcode.InvalidParams when a signal the handle
// type depends on is left unrouted.
func requirePins(op string, pins ...hal.Pin) error {
	for _, p := range pins {
		if p == hal.NoPin {
			return &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "required pin not set"}
		}
	}
	return nil
}

// assemble builds the parameter blocks for one engine. It has no side
// effects; the direction comes from which data lines are wired.
func assemble(role Role, format hal.CommFormat, w wiring, bits hal.BitsPerSample, rate uint32, o options) (hal.I2SConfig, hal.PinConfig, error) {
	var dir hal.Mode
	switch {
	case w.din != hal.NoPin && w.dout != hal.NoPin:
		dir = hal.ModeRx | hal.ModeTx
	case w.din != hal.NoPin:
		dir = hal.ModeRx
	case w.dout != hal.NoPin:
		dir = hal.ModeTx
	default:
		panic("sai: wiring without data pins")
	}
	if rate == 0 {
		return hal.I2SConfig{}, hal.PinConfig{}, &errcode.E{C: errcode.InvalidParams, Op: "configure", Msg: "sample rate 0"}
	}
	if !mathx.Between(o.dmaCount, minDMABufCount, maxDMABufCount) || !mathx.Between(o.dmaLen, minDMABufLen, maxDMABufLen) {
		return hal.I2SConfig{}, hal.PinConfig{}, &errcode.E{C: errcode.InvalidParams, Op: "configure", Msg: "dma geometry"}
	}

	cfg := hal.I2SConfig{
		Mode:          role.bits() | dir,
		SampleRate:    rate,
		BitsPerSample: bits,
		ChannelFormat: o.channels,
		CommFormat:    format,
		IntrFlags:     hal.IntrLevel1,
		DMABufCount:   o.dmaCount,
		DMABufLen:     o.dmaLen,
		UseAPLL:       o.apll,
	}
	pins := hal.PinConfig{
		BCK:     w.bck,
		WS:      w.ws,
		DataIn:  w.din,
		DataOut: w.dout,
		MCK:     w.mck,
	}
	return cfg, pins, nil
}

// configure installs the engine and binds its pins. A failed pin binding
// uninstalls again so no half-configured engine is left behind.
func configure(eng hal.SAI, port hal.Port, cfg *hal.I2SConfig, pins *hal.PinConfig) error {
	if err := eng.Install(port, cfg); err != nil {
		return err
	}
	if err := eng.SetPins(port, pins); err != nil {
		if uerr := eng.Uninstall(port); uerr != nil {
			return errors.Join(err, uerr)
		}
		return err
	}
	return nil
}
