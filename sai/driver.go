// Package sai drives the serial audio interface engines.
//
// A handle is typed by its mode tag M, sample type W and identity P:
//
//	tx, err := sai.NewTx[sai.Philips[sai.I2S0], int16](sai.I2S0{},
//		sai.TxPins{BCK: 26, WS: 27, DataOut: 25}, 44100)
//	defer tx.Close()
//
// The pair (P, M) resolves the wire format at compile time, W fixes the bit
// width, and the constructor used fixes the direction: RxDriver has Read,
// TxDriver has Write, RxTxDriver has both. Each identity can back one live
// handle at a time.
package sai

import (
	"sync/atomic"
	"time"

	"devicecode-periph/errcode"
	"devicecode-periph/hal"
	"devicecode-periph/isr"
	"devicecode-periph/periph"
	"devicecode-periph/x/logx"
)

// TransferTimeout bounds every blocking Read and Write.
const TransferTimeout = 100 * time.Millisecond

type core[M Mode[P], W Sample, P Port] struct {
	port   P
	eng    hal.SAI
	key    periph.Key
	cfg    hal.I2SConfig
	closed atomic.Bool
}

func (c *core[M, W, P]) open(port P, w wiring, rate uint32, opts []Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	w.mck = o.mck

	var m M
	cfg, pins, err := assemble(m.Role(), m.Format(port), w, BitsOf[W](), rate, o)
	if err != nil {
		return err
	}
	eng, err := hal.SAIEngine()
	if err != nil {
		return err
	}
	key := periph.Key{Class: "sai", Group: uint8(port.Num())}
	if err := periph.Claim(key); err != nil {
		return err
	}
	if err := configure(eng, port.Num(), &cfg, &pins); err != nil {
		periph.Release(key)
		return err
	}
	c.port, c.eng, c.key, c.cfg = port, eng, key, cfg
	logx.LogDebug(logx.ComponentSAI, "installed",
		"port", port.Num(), "mode", uint32(cfg.Mode), "format", cfg.CommFormat.String(),
		"bits", uint8(cfg.BitsPerSample), "rate", rate)
	return nil
}

func (c *core[M, W, P]) read(dst []W) (int, error) {
	isr.MustNotBeActive("sai read")
	if c.closed.Load() {
		return 0, errcode.Closed
	}
	n, err := c.eng.Read(c.port.Num(), asBytes(dst), TransferTimeout)
	return n / sizeOf[W](), err
}

func (c *core[M, W, P]) write(src []W) (int, error) {
	isr.MustNotBeActive("sai write")
	if c.closed.Load() {
		return 0, errcode.Closed
	}
	n, err := c.eng.Write(c.port.Num(), asBytes(src), TransferTimeout)
	return n / sizeOf[W](), err
}

// Close uninstalls the engine and frees the identity for a new handle.
// Further calls are no-ops. An engine that refuses to uninstall cannot be
// recovered, so that failure is logged and then panics.
func (c *core[M, W, P]) Close() {
	isr.MustNotBeActive("sai close")
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if err := c.eng.Uninstall(c.port.Num()); err != nil {
		logx.Fatal(logx.ComponentSAI, "uninstall failed", errcode.Wrap("sai uninstall", err), "port", c.port.Num())
	}
	periph.Release(c.key)
	logx.LogDebug(logx.ComponentSAI, "uninstalled", "port", c.port.Num())
}

// Port returns the identity the handle owns.
func (c *core[M, W, P]) Port() P { return c.port }

// Role is the clocking role of the mode tag.
func (c *core[M, W, P]) Role() Role {
	var m M
	return m.Role()
}

// Format is the wire format resolved for (P, M).
func (c *core[M, W, P]) Format() hal.CommFormat { return c.cfg.CommFormat }

// BitsPerSample is the width derived from W.
func (c *core[M, W, P]) BitsPerSample() hal.BitsPerSample { return c.cfg.BitsPerSample }

// Config returns the parameter block the engine was installed with.
func (c *core[M, W, P]) Config() hal.I2SConfig { return c.cfg }

// RxDriver is a receive-only handle.
type RxDriver[M Mode[P], W Sample, P Port] struct {
	core[M, W, P]
}

// NewRx installs port as a receiver on pins.
func NewRx[M Mode[P], W Sample, P Port](port P, pins RxPins, sampleRate uint32, opts ...Option) (*RxDriver[M, W, P], error) {
	if err := requirePins("sai new rx", pins.BCK, pins.WS, pins.DataIn); err != nil {
		return nil, err
	}
	d := &RxDriver[M, W, P]{}
	w := wiring{bck: pins.BCK, ws: pins.WS, din: pins.DataIn, dout: hal.NoPin}
	if err := d.open(port, w, sampleRate, opts); err != nil {
		return nil, err
	}
	return d, nil
}

// Read fills dst and returns the number of samples received. It waits at
// most TransferTimeout; engine errors are returned as reported.
func (d *RxDriver[M, W, P]) Read(dst []W) (int, error) { return d.read(dst) }

// TxDriver is a transmit-only handle.
type TxDriver[M Mode[P], W Sample, P Port] struct {
	core[M, W, P]
}

// NewTx installs port as a transmitter on pins.
func NewTx[M Mode[P], W Sample, P Port](port P, pins TxPins, sampleRate uint32, opts ...Option) (*TxDriver[M, W, P], error) {
	if err := requirePins("sai new tx", pins.BCK, pins.WS, pins.DataOut); err != nil {
		return nil, err
	}
	d := &TxDriver[M, W, P]{}
	w := wiring{bck: pins.BCK, ws: pins.WS, din: hal.NoPin, dout: pins.DataOut}
	if err := d.open(port, w, sampleRate, opts); err != nil {
		return nil, err
	}
	return d, nil
}

// Write queues src and returns the number of samples accepted. It waits at
// most TransferTimeout; engine errors are returned as reported.
func (d *TxDriver[M, W, P]) Write(src []W) (int, error) { return d.write(src) }

// RxTxDriver is a full-duplex handle.
type RxTxDriver[M Mode[P], W Sample, P Port] struct {
	core[M, W, P]
}

// NewRxTx installs port as transmitter and receiver on pins.
func NewRxTx[M Mode[P], W Sample, P Port](port P, pins RxTxPins, sampleRate uint32, opts ...Option) (*RxTxDriver[M, W, P], error) {
	if err := requirePins("sai new rxtx", pins.BCK, pins.WS, pins.DataIn, pins.DataOut); err != nil {
		return nil, err
	}
	d := &RxTxDriver[M, W, P]{}
	w := wiring{bck: pins.BCK, ws: pins.WS, din: pins.DataIn, dout: pins.DataOut}
	if err := d.open(port, w, sampleRate, opts); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *RxTxDriver[M, W, P]) Read(dst []W) (int, error)  { return d.read(dst) }
func (d *RxTxDriver[M, W, P]) Write(src []W) (int, error) { return d.write(src) }
