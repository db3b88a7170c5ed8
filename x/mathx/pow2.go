package mathx

// NextPow2 returns the smallest power of two >= v (1 for v == 0).
func NextPow2[T ~uint | ~uint16 | ~uint32 | ~uint64](v T) T {
	p := T(1)
	for p < v {
		p <<= 1
	}
	return p
}
