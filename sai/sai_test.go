package sai

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"

	"devicecode-periph/errcode"
	"devicecode-periph/hal"
	"devicecode-periph/hal/sim"
	"devicecode-periph/isr"
	"devicecode-periph/periph"
)

func mustPanicCode(t *testing.T, want errcode.Code, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected panic with %q", want)
		}
		err, ok := r.(error)
		if !ok || errcode.Of(err) != want {
			t.Fatalf("panic %v, want code %q", r, want)
		}
	}()
	fn()
}

func TestFormatTable(t *testing.T) {
	cases := []struct {
		name string
		got  hal.CommFormat
		want hal.CommFormat
	}{
		{"i2s0 philips", Philips[I2S0]{}.Format(I2S0{}), hal.CommI2S},
		{"i2s0 left", LeftJustified[I2S0]{}.Format(I2S0{}), hal.CommMSB},
		{"i2s0 tdm", TDM[I2S0]{}.Format(I2S0{}), hal.CommPCMShort},
		{"i2s1 philips", Philips[I2S1]{}.Format(I2S1{}), hal.CommI2S},
		{"i2s1 left", LeftJustified[I2S1]{}.Format(I2S1{}), hal.CommMSB},
		{"i2s1 tdm", TDM[I2S1]{}.Format(I2S1{}), hal.CommPCMShort},
		{"slave keeps format", Slave[I2S1, TDM[I2S1]]{}.Format(I2S1{}), hal.CommPCMShort},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("%s: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestRoles(t *testing.T) {
	if (Philips[I2S0]{}).Role() != RoleMaster {
		t.Fatal("philips tag must be master")
	}
	if (Slave[I2S0, Philips[I2S0]]{}).Role() != RoleSlave {
		t.Fatal("slave tag must be slave")
	}
	if RoleMaster.bits() != hal.ModeMaster || RoleSlave.bits() != hal.ModeSlave {
		t.Fatal("role bits mismatch")
	}
}

type myInt16 int16

func TestBitsOf(t *testing.T) {
	cases := map[string][2]hal.BitsPerSample{
		"int8":   {BitsOf[int8](), hal.Bits8},
		"uint8":  {BitsOf[uint8](), hal.Bits8},
		"int16":  {BitsOf[int16](), hal.Bits16},
		"named":  {BitsOf[myInt16](), hal.Bits16},
		"uint16": {BitsOf[uint16](), hal.Bits16},
		"int24":  {BitsOf[Int24](), hal.Bits24},
		"int32":  {BitsOf[int32](), hal.Bits32},
		"uint32": {BitsOf[uint32](), hal.Bits32},
	}
	for name, c := range cases {
		if c[0] != c[1] {
			t.Errorf("%s: got %d want %d", name, c[0], c[1])
		}
	}
}

func TestInt24RoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 0x7fffff, -0x800000, 123456, -654321} {
		if got := PackInt24(v).Int32(); got != v {
			t.Errorf("PackInt24(%d).Int32() = %d", v, got)
		}
	}
}

func TestAssembleDirection(t *testing.T) {
	o := defaultOptions()
	cases := []struct {
		name string
		w    wiring
		mode hal.Mode
	}{
		{"rx", wiring{bck: 1, ws: 2, din: 3, dout: hal.NoPin, mck: hal.NoPin}, hal.ModeMaster | hal.ModeRx},
		{"tx", wiring{bck: 1, ws: 2, din: hal.NoPin, dout: 4, mck: hal.NoPin}, hal.ModeMaster | hal.ModeTx},
		{"rxtx", wiring{bck: 1, ws: 2, din: 3, dout: 4, mck: hal.NoPin}, hal.ModeMaster | hal.ModeRx | hal.ModeTx},
	}
	for _, c := range cases {
		cfg, _, err := assemble(RoleMaster, hal.CommI2S, c.w, hal.Bits16, 44100, o)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if cfg.Mode != c.mode {
			t.Errorf("%s: mode %#x want %#x", c.name, cfg.Mode, c.mode)
		}
	}
}

func TestAssembleDefaults(t *testing.T) {
	w := wiring{bck: 26, ws: 27, din: hal.NoPin, dout: 25, mck: hal.NoPin}
	cfg, pins, err := assemble(RoleSlave, hal.CommMSB, w, hal.Bits24, 48000, defaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	wantCfg := hal.I2SConfig{
		Mode:          hal.ModeSlave | hal.ModeTx,
		SampleRate:    48000,
		BitsPerSample: hal.Bits24,
		ChannelFormat: hal.ChannelRightLeft,
		CommFormat:    hal.CommMSB,
		IntrFlags:     hal.IntrLevel1,
		DMABufCount:   8,
		DMABufLen:     64,
	}
	if diff := cmp.Diff(wantCfg, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	wantPins := hal.PinConfig{BCK: 26, WS: 27, DataIn: -1, DataOut: 25, MCK: -1}
	if diff := cmp.Diff(wantPins, pins); diff != "" {
		t.Errorf("pins mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleRejects(t *testing.T) {
	w := wiring{bck: 1, ws: 2, din: 3, dout: hal.NoPin, mck: hal.NoPin}
	if _, _, err := assemble(RoleMaster, hal.CommI2S, w, hal.Bits16, 0, defaultOptions()); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("rate 0: got %v", err)
	}
	o := defaultOptions()
	WithDMABuffers(1, 64)(&o)
	if _, _, err := assemble(RoleMaster, hal.CommI2S, w, hal.Bits16, 8000, o); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("one buffer: got %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("wiring without data pins must panic")
		}
	}()
	assemble(RoleMaster, hal.CommI2S, wiring{bck: 1, ws: 2, din: hal.NoPin, dout: hal.NoPin}, hal.Bits16, 8000, defaultOptions())
}

func TestConfigureRollsBackOnPinFailure(t *testing.T) {
	s, _ := sim.New()
	cfg, pins, _ := assemble(RoleMaster, hal.CommI2S,
		wiring{bck: 1, ws: 2, din: hal.NoPin, dout: 99, mck: hal.NoPin}, hal.Bits16, 8000, defaultOptions())
	err := configure(s, 0, &cfg, &pins)
	if errcode.Of(err) != errcode.UnknownPin {
		t.Fatalf("got %v, want unknown_pin", err)
	}
	if s.Installed(0) {
		t.Fatal("engine left installed after pin failure")
	}

	s.FailNext(sim.OpSetPins, errcode.PinInUse)
	s.FailNext(sim.OpUninstall, errcode.InvalidState)
	err = configure(s, 0, &cfg, &pins)
	if !errors.Is(err, errcode.PinInUse) || !errors.Is(err, errcode.InvalidState) {
		t.Fatalf("both failures should be reported, got %v", err)
	}
}

var txPins = TxPins{BCK: 26, WS: 27, DataOut: 25}

func TestTxWriteAndClose(t *testing.T) {
	s, _ := sim.Install()
	tx, err := NewTx[Philips[I2S0], int16](I2S0{}, txPins, 8000)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Format() != hal.CommI2S || tx.Role() != RoleMaster || tx.BitsPerSample() != hal.Bits16 {
		t.Fatalf("accessors: %v %v %v", tx.Format(), tx.Role(), tx.BitsPerSample())
	}
	cfg, pins, ok := s.Config(0)
	if !ok || cfg.Mode != hal.ModeMaster|hal.ModeTx || pins.DataIn != hal.NoPin {
		t.Fatalf("engine config %+v %+v %v", cfg, pins, ok)
	}

	src := []int16{1, -2, 300, -400}
	n, err := tx.Write(src)
	if err != nil || n != len(src) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	raw := make([]byte, 8)
	if s.Drain(0, raw) != 8 {
		t.Fatal("short drain")
	}
	for i, v := range src {
		if got := int16(binary.LittleEndian.Uint16(raw[2*i:])); got != v {
			t.Fatalf("sample %d: got %d want %d", i, got, v)
		}
	}

	tx.Close()
	if s.Installed(0) || periph.Claimed(periph.Key{Class: "sai", Group: 0}) {
		t.Fatal("close must uninstall and release")
	}
	tx.Close()
	if _, err := tx.Write(src); err != errcode.Closed {
		t.Fatalf("write after close: %v", err)
	}
}

func TestWriteTimeoutReportsPartialCount(t *testing.T) {
	s, _ := sim.Install()
	tx, err := NewTx[LeftJustified[I2S1], int32](I2S1{}, txPins, 8000, WithDMABuffers(2, 8))
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Close()
	capacity := s.RingCapacity(1) / 4
	n, err := tx.Write(make([]int32, capacity+4))
	if !errors.Is(err, errcode.Timeout) || n != capacity {
		t.Fatalf("Write = %d, %v; want %d, timeout", n, err, capacity)
	}
}

func TestRxTxRead(t *testing.T) {
	s, _ := sim.Install()
	d, err := NewRxTx[TDM[I2S0], uint8](I2S0{}, RxTxPins{BCK: 1, WS: 2, DataIn: 3, DataOut: 4}, 16000)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	s.Feed(0, []byte{9, 8, 7})
	dst := make([]uint8, 3)
	if n, err := d.Read(dst); err != nil || n != 3 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	if diff := cmp.Diff([]uint8{9, 8, 7}, dst); diff != "" {
		t.Fatal(diff)
	}
	if n, err := d.Write([]uint8{1}); err != nil || n != 1 {
		t.Fatalf("Write = %d, %v", n, err)
	}
}

func TestRxReadTimeout(t *testing.T) {
	sim.Install()
	rx, err := NewRx[Slave[I2S0, Philips[I2S0]], Int24](I2S0{}, RxPins{BCK: 1, WS: 2, DataIn: 3}, 8000)
	if err != nil {
		t.Fatal(err)
	}
	defer rx.Close()
	if rx.Config().Mode != hal.ModeSlave|hal.ModeRx {
		t.Fatalf("mode %#x", rx.Config().Mode)
	}
	if _, err := rx.Read(make([]Int24, 2)); err != errcode.Timeout {
		t.Fatalf("Read with nothing fed: %v", err)
	}
}

func TestOneHandlePerPort(t *testing.T) {
	sim.Install()
	a, err := NewTx[Philips[I2S0], int16](I2S0{}, txPins, 8000)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewRx[Philips[I2S0], int16](I2S0{}, RxPins{BCK: 1, WS: 2, DataIn: 3}, 8000); errcode.Of(err) != errcode.Busy {
		t.Fatalf("second handle: %v", err)
	}
	b, err := NewTx[Philips[I2S1], int16](I2S1{}, txPins, 8000)
	if err != nil {
		t.Fatalf("other port should be free: %v", err)
	}
	b.Close()
	a.Close()
	c, err := NewTx[Philips[I2S0], int16](I2S0{}, txPins, 8000)
	if err != nil {
		t.Fatalf("port should be free after close: %v", err)
	}
	c.Close()
}

func TestConstructorFailureReleasesPort(t *testing.T) {
	s, _ := sim.Install()
	s.FailNext(sim.OpInstall, errcode.NoMem)
	if _, err := NewTx[Philips[I2S0], int16](I2S0{}, txPins, 8000); err != errcode.NoMem {
		t.Fatalf("got %v", err)
	}
	if periph.Claimed(periph.Key{Class: "sai"}) {
		t.Fatal("failed constructor kept the claim")
	}
	if _, err := NewTx[Philips[I2S0], int16](I2S0{}, txPins, 0); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("rate 0: %v", err)
	}
}

func TestNoBackend(t *testing.T) {
	hal.Use(nil, nil)
	if _, err := NewTx[Philips[I2S0], int16](I2S0{}, txPins, 8000); errcode.Of(err) != errcode.HALNotReady {
		t.Fatalf("got %v", err)
	}
}

func TestDirectionIsInTheType(t *testing.T) {
	type reader interface{ Read([]int16) (int, error) }
	type writer interface{ Write([]int16) (int, error) }
	var tx any = &TxDriver[Philips[I2S0], int16, I2S0]{}
	var rx any = &RxDriver[Philips[I2S0], int16, I2S0]{}
	if _, ok := tx.(reader); ok {
		t.Fatal("tx handle must not read")
	}
	if _, ok := rx.(writer); ok {
		t.Fatal("rx handle must not write")
	}
	if _, ok := reflect.TypeOf(tx).MethodByName("Read"); ok {
		t.Fatal("tx handle exposes Read")
	}
}

func TestTransfersPanicInInterruptContext(t *testing.T) {
	sim.Install()
	tx, err := NewTx[Philips[I2S0], int16](I2S0{}, txPins, 8000)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Close()
	isr.Simulate(func() {
		mustPanicCode(t, errcode.InterruptContext, func() { tx.Write([]int16{1}) })
		mustPanicCode(t, errcode.InterruptContext, func() { tx.Close() })
	})
}

func TestUninstallFailureIsFatal(t *testing.T) {
	s, _ := sim.Install()
	tx, err := NewTx[Philips[I2S0], int16](I2S0{}, txPins, 8000)
	if err != nil {
		t.Fatal(err)
	}
	s.FailNext(sim.OpUninstall, errcode.InvalidState)
	mustPanicCode(t, errcode.InvalidState, tx.Close)
	periph.Release(periph.Key{Class: "sai"})
}

func TestConstructorsRequireTheirPins(t *testing.T) {
	s, _ := sim.Install()
	cases := []struct {
		name string
		open func() error
	}{
		{"rx without data in", func() error {
			_, err := NewRx[Philips[I2S0], int16](I2S0{}, RxPins{BCK: 1, WS: 2, DataIn: hal.NoPin}, 8000)
			return err
		}},
		{"rxtx without data in", func() error {
			_, err := NewRxTx[Philips[I2S0], int16](I2S0{}, RxTxPins{BCK: 1, WS: 2, DataIn: hal.NoPin, DataOut: 4}, 8000)
			return err
		}},
		{"rxtx without data out", func() error {
			_, err := NewRxTx[Philips[I2S0], int16](I2S0{}, RxTxPins{BCK: 1, WS: 2, DataIn: 3, DataOut: hal.NoPin}, 8000)
			return err
		}},
		{"tx without bit clock", func() error {
			_, err := NewTx[Philips[I2S0], int16](I2S0{}, TxPins{BCK: hal.NoPin, WS: 2, DataOut: 4}, 8000)
			return err
		}},
		{"tx without word select", func() error {
			_, err := NewTx[Philips[I2S0], int16](I2S0{}, TxPins{BCK: 1, WS: hal.NoPin, DataOut: 4}, 8000)
			return err
		}},
	}
	for _, c := range cases {
		if err := c.open(); errcode.Of(err) != errcode.InvalidParams {
			t.Errorf("%s: got %v, want invalid_params", c.name, err)
		}
		if s.Installed(0) || periph.Claimed(periph.Key{Class: "sai"}) {
			t.Fatalf("%s: rejected handle left the port installed or claimed", c.name)
		}
	}
}
