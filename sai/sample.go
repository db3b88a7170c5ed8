package sai

import (
	"unsafe"

	"devicecode-periph/hal"
)

// Int24 is a packed little-endian 24-bit sample.
type Int24 [3]byte

// PackInt24 truncates v to 24 bits.
func PackInt24(v int32) Int24 {
	return Int24{byte(v), byte(v >> 8), byte(v >> 16)}
}

// Int32 sign-extends the sample.
func (s Int24) Int32() int32 {
	return int32(uint32(s[0])<<8|uint32(s[1])<<16|uint32(s[2])<<24) >> 8
}

// Sample is the set of element types carried on the data lines.
type Sample interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~[3]byte | ~int32 | ~uint32
}

// BitsOf is the hardware sample width for W, derived from its size.
func BitsOf[W Sample]() hal.BitsPerSample {
	var w W
	switch unsafe.Sizeof(w) {
	case 1:
		return hal.Bits8
	case 2:
		return hal.Bits16
	case 3:
		return hal.Bits24
	case 4:
		return hal.Bits32
	}
	panic("sai: unreachable sample size")
}

func sizeOf[W Sample]() int {
	var w W
	return int(unsafe.Sizeof(w))
}

// asBytes views samples as the raw bytes handed to the engine.
func asBytes[W Sample](s []W) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*sizeOf[W]())
}
