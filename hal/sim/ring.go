package sim

import "sync/atomic"

// ring models an engine's DMA ring: a single-producer, single-consumer byte
// FIFO. The driver side and the simulated clock side never share a lock, so
// a blocked Write only waits on the edge channels.
type ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	readable chan struct{} // empty -> non-empty edge
	writable chan struct{} // full -> non-full edge
}

// newRing allocates a ring; size must be a power of two >= 2.
func newRing(size uint32) *ring {
	if size < 2 || size&(size-1) != 0 {
		panic("sim: ring size must be power of two >= 2")
	}
	return &ring{
		buf:      make([]byte, size),
		mask:     size - 1,
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

func (r *ring) size() uint32 { return uint32(len(r.buf)) }

func (r *ring) available() int { return int(r.wr.Load() - r.rd.Load()) }

func (r *ring) put(src []byte) int {
	rd, wr := r.rd.Load(), r.wr.Load()
	used := wr - rd
	n := int(r.size() - used)
	if len(src) < n {
		n = len(src)
	}
	if n == 0 {
		return 0
	}
	at := wr & r.mask
	first := copy(r.buf[at:], src[:n])
	copy(r.buf, src[first:n])
	r.wr.Store(wr + uint32(n))

	if used == 0 {
		signal(r.readable)
	}
	return n
}

func (r *ring) get(dst []byte) int {
	rd, wr := r.rd.Load(), r.wr.Load()
	used := wr - rd
	n := int(used)
	if len(dst) < n {
		n = len(dst)
	}
	if n == 0 {
		return 0
	}
	at := rd & r.mask
	first := copy(dst[:n], r.buf[at:])
	copy(dst[first:n], r.buf)
	r.rd.Store(rd + uint32(n))

	if used == r.size() {
		signal(r.writable)
	}
	return n
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
