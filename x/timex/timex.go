// Package timex holds frequency/period conversions.
package timex

// PeriodFromHz returns the period in nanoseconds for a requested rate.
// freqHz of 0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz uint32) uint64 {
	if freqHz == 0 {
		freqHz = 1
	}
	return 1_000_000_000 / uint64(freqHz)
}
