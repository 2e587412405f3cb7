// Package uart defines the UART capability: frame configuration and
// asynchronous, tick-driven send/receive transfers with independent
// per-direction state machines.
package uart

import "periphcore-go/periph"

type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

type StopBits uint8

const (
	StopBitsOne StopBits = iota
	StopBitsTwo
)

func (s StopBits) String() string {
	if s == StopBitsTwo {
		return "two"
	}
	return "one"
}

// Flow selects hardware flow control.
type Flow uint8

const (
	FlowNone Flow = iota
	FlowRTSCTS
)

func (f Flow) String() string {
	if f == FlowRTSCTS {
		return "rts_cts"
	}
	return "none"
}

// DefaultMaxBaudError is the accepted baud clock error in permille when
// Config.MaxBaudError is zero.
const DefaultMaxBaudError = 30

// Config describes the desired operating point. It is plain data, immutable
// once passed to Configure. A config the hardware cannot express is rejected
// with the matching code, never silently rounded.
type Config struct {
	BaudRate uint32 // ignored when AutoBaud is set
	AutoBaud bool
	DataBits uint8 // 5..9; zero defaults to 8
	StopBits StopBits
	Parity   Parity
	Flow     Flow

	// MaxBaudError is the acceptable deviation between requested and
	// achievable baud rate, in permille. Zero means DefaultMaxBaudError.
	MaxBaudError uint16
}

// Result is the outcome of one completed transfer.
// N is accurate even when Err is set, so callers can resume precisely.
type Result struct {
	N   int
	Err error // nil, or one in-transfer errcode.Code
}

// Conn is the UART capability operation set.
//
// The two directions are independent: each moves Idle -> Active -> Completed
// and back to Idle when the matching End operation consumes the result.
// Begin operations never block; they fail with errcode.InProgress while the
// direction is occupied. Progress happens only inside Tick, which is
// non-blocking and bounded. SendDone/ReceiveDone are safe to poll from the
// foreground while Tick runs in interrupt context. End operations fail with
// errcode.NotDone before completion; they are the only point at which the
// transfer buffer is released. Abort operations request abandonment; the
// transfer completes with errcode.Aborted on the next Tick.
type Conn interface {
	Configure(cfg Config) error

	BeginSend(buf []byte, t periph.Timeout) error
	BeginReceive(buf []byte, t periph.Timeout) error

	Tick()

	SendDone() bool
	ReceiveDone() bool

	EndSend() (Result, error)
	EndReceive() (Result, error)

	AbortSend()
	AbortReceive()
}

// Verify compiles only when T satisfies the UART capability. Instantiate it
// next to a driver's definition so a contract break fails the driver's own
// build, not its first caller's.
func Verify[T Conn]() {}

// Bind type-erases a concrete driver into a capability handle. The handle
// does not own the driver; the driver must outlive it.
func Bind[T Conn](impl T) Conn { return impl }
