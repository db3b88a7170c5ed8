package hal

// Port selects one serial audio engine.
type Port uint8

// Pin is a GPIO number. NoPin marks an unused signal in a PinConfig.
type Pin int16

const NoPin Pin = -1

// Mode bits of I2SConfig.Mode.
type Mode uint32

const (
	ModeMaster Mode = 1 << 0
	ModeSlave  Mode = 1 << 1
	ModeTx     Mode = 1 << 2
	ModeRx     Mode = 1 << 3
	ModePDM    Mode = 1 << 6
)

func (m Mode) Has(bit Mode) bool { return m&bit != 0 }

type BitsPerSample uint8

const (
	Bits8  BitsPerSample = 8
	Bits16 BitsPerSample = 16
	Bits24 BitsPerSample = 24
	Bits32 BitsPerSample = 32
)

// Bytes is the in-memory width of one sample.
func (b BitsPerSample) Bytes() int { return int(b) / 8 }

type ChannelFormat uint8

const (
	ChannelRightLeft ChannelFormat = iota // separate left and right
	ChannelAllRight                       // right data on both channels
	ChannelAllLeft                        // left data on both channels
	ChannelOnlyRight                      // mono, right
	ChannelOnlyLeft                       // mono, left
)

// Channels is the number of slots carried per frame.
func (c ChannelFormat) Channels() int {
	if c == ChannelOnlyRight || c == ChannelOnlyLeft {
		return 1
	}
	return 2
}

// CommFormat is the wire protocol family.
type CommFormat uint8

const (
	CommI2S      CommFormat = 0x01 // Philips, data one BCK after WS edge
	CommMSB      CommFormat = 0x02 // left justified, data on the WS edge
	CommPCMShort CommFormat = 0x04 // DSP/TDM, WS pulse one BCK long
	CommPCMLong  CommFormat = 0x0C // WS pulse one slot long
)

func (f CommFormat) String() string {
	switch f {
	case CommI2S:
		return "i2s"
	case CommMSB:
		return "msb"
	case CommPCMShort:
		return "pcm_short"
	case CommPCMLong:
		return "pcm_long"
	}
	return "unknown"
}

// IntrLevel1 is the interrupt allocation flag the drivers request.
const IntrLevel1 = 1 << 1

// I2SConfig is the engine parameter block.
type I2SConfig struct {
	Mode          Mode
	SampleRate    uint32
	BitsPerSample BitsPerSample
	ChannelFormat ChannelFormat
	CommFormat    CommFormat
	IntrFlags     int
	DMABufCount   int // buffers in the ring
	DMABufLen     int // frames per buffer
	UseAPLL       bool
}

// FrameBytes is the size of one frame on the data lines.
func (c *I2SConfig) FrameBytes() int {
	return c.BitsPerSample.Bytes() * c.ChannelFormat.Channels()
}

// RingBytes is the DMA ring capacity implied by the buffer geometry.
func (c *I2SConfig) RingBytes() int {
	return c.DMABufCount * c.DMABufLen * c.FrameBytes()
}

// PinConfig routes engine signals; unused roles hold NoPin.
type PinConfig struct {
	BCK     Pin
	WS      Pin
	DataIn  Pin
	DataOut Pin
	MCK     Pin
}

// Timer addressing.
type (
	TimerGroup uint8
	TimerIndex uint8
)

const (
	GroupMax = 2 // groups per chip
	IndexMax = 2 // timers per group
)

// TimerID is the fixed hardware address of one timer.
type TimerID struct {
	Group TimerGroup
	Index TimerIndex
}

// Slot is the dense index group*IndexMax+index.
func (id TimerID) Slot() int { return int(id.Group)*IndexMax + int(id.Index) }

// TimerConfig is the timer parameter block. Init always leaves the counter
// paused, the alarm disabled and the interrupt level-triggered.
type TimerConfig struct {
	Divider    uint32
	XTAL       bool
	AutoReload bool
	CountDown  bool
}
