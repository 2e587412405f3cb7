package uart

import "periphcore-go/errcode"

// Caps advertises what a target's hardware can express. Configure checks the
// requested Config against these flags and rejects what is missing.
type Caps uint16

const (
	CapAutoBaud Caps = 1 << iota
	CapParity
	CapFlowControl
	CapTwoStopBits
	CapWord5
	CapWord6
	CapWord7
	CapWord8
	CapWord9
)

// WordCap returns the capability flag for a word size, or 0 when the size is
// outside the representable 5..9 range.
func WordCap(bits uint8) Caps {
	if bits < 5 || bits > 9 {
		return 0
	}
	return CapWord5 << (bits - 5)
}

// RxFlags reports receive-side hardware conditions alongside a data unit.
type RxFlags uint8

const (
	RxOverrun RxFlags = 1 << iota
	RxBreak
	RxFraming
	RxParity
)

// code maps hardware flags to the in-transfer taxonomy. Overrun wins over
// break, break over framing, framing over parity, matching the order the
// line discipline detects them.
func (f RxFlags) code() errcode.Code {
	switch {
	case f&RxOverrun != 0:
		return errcode.BufferOverrun
	case f&RxBreak != 0:
		return errcode.BreakInterrupt
	case f&RxFraming != 0:
		return errcode.FramingError
	case f&RxParity != 0:
		return errcode.ParityError
	default:
		return ""
	}
}

// Target is the word-level contract a chip backend implements to be driven
// by Port. Nothing about register layout or clock trees is assumed; the
// engine owns divider math, deadlines and the taxonomy, the target moves
// single units and reports readiness.
//
// The engine programs a 16x-oversampled 16-bit integer divider:
// baud = ClockHz / (16 * divider). Apply(0, cfg) is issued for autobaud.
type Target interface {
	ClockHz() uint32
	Caps() Caps
	Apply(divider uint32, cfg Config)

	// TxReady reports room for one unit; WriteByte must only be called
	// after TxReady returned true.
	TxReady() bool
	WriteByte(b byte)

	// RxReady reports a pending unit; ReadByte must only be called after
	// RxReady returned true. Flags describe conditions attached to the
	// returned unit.
	RxReady() bool
	ReadByte() (byte, RxFlags)
}
