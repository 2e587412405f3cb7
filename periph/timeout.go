package periph

import "time"

// Timeout bounds one transfer as a constant overhead plus a per-unit cost,
// so the same shape serves short register pokes and long streams. The zero
// value means "no deadline".
type Timeout struct {
	Constant time.Duration // fixed setup/turnaround allowance
	PerUnit  time.Duration // allowance per transferred unit (byte/word)
}

// IsZero reports whether no deadline was requested.
func (t Timeout) IsZero() bool { return t.Constant == 0 && t.PerUnit == 0 }

// Budget returns the total allowance for a transfer of n units.
func (t Timeout) Budget(n int) time.Duration {
	return t.Constant + time.Duration(n)*t.PerUnit
}

// Deadline returns the absolute deadline for a transfer of n units begun at
// start, or the zero time when no deadline was requested.
func (t Timeout) Deadline(start time.Time, n int) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return start.Add(t.Budget(n))
}

// Micros is a convenience constructor taking microsecond figures, the unit
// transfer budgets are usually quoted in.
func Micros(constant, perUnit int64) Timeout {
	return Timeout{
		Constant: time.Duration(constant) * time.Microsecond,
		PerUnit:  time.Duration(perUnit) * time.Microsecond,
	}
}
