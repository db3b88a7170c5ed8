package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// PeriodFromHz returns a nanosecond period for a requested frequency.
// freqHz==0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz uint32) uint64 {
	if freqHz == 0 {
		freqHz = 1
	}
	return uint64(1_000_000_000 / uint64(freqHz))
}

// FramesIn returns how many whole frames of a stream clocked at freqHz fit
// into d.
func FramesIn(d time.Duration, freqHz uint32) int {
	if d <= 0 {
		return 0
	}
	return int(uint64(d) / PeriodFromHz(freqHz))
}
