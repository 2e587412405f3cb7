package uart

import (
	"sync/atomic"
	"time"

	"periphcore-go/errcode"
	"periphcore-go/periph"
	"periphcore-go/x/mathx"
)

// maxDivider is the width of the integer baud divider the engine assumes.
const maxDivider = 0xFFFF

// direction holds one transfer slot. active/done/abort are shared between
// the foreground caller and whatever context runs Tick; everything else has
// a single writer at any time, ordered by those flags.
type direction struct {
	active atomic.Bool
	done   atomic.Bool
	abort  atomic.Bool

	buf      []byte
	n        int
	err      errcode.Code
	deadline time.Time
}

// Port implements the UART capability over any Target. It owns the
// per-direction Idle -> Active -> Completed machines, the baud/frame
// validation and the timeout accounting; targets only move units.
//
// Instantiate it with a concrete target type for a statically dispatched,
// inlineable port, or hand it out as a Conn for dynamic binding.
type Port[T Target] struct {
	target T
	now    func() time.Time

	configured bool
	effective  uint32

	send direction
	recv direction
}

var _ Conn = (*Port[Target])(nil)

func NewPort[T Target](target T) *Port[T] {
	return &Port[T]{target: target, now: time.Now}
}

// SetClock replaces the time source, for simulation and tests.
func (p *Port[T]) SetClock(now func() time.Time) { p.now = now }

// Target returns the backing target, for backend-specific access.
func (p *Port[T]) Target() T { return p.target }

// EffectiveBaud is the baud rate actually programmed by the last successful
// Configure, 0 after autobaud. It deviates from the request by at most
// MaxBaudError permille.
func (p *Port[T]) EffectiveBaud() uint32 { return p.effective }

// Configure validates cfg against the target's clock and capabilities and
// programs it. It fails with errcode.Busy while either direction has an
// unconsumed transfer; the closed set of rejection codes is
// {Busy, BaudRateNotSupported, AutoBaudNotSupported, BaudRatePrecision,
// WordSizeNotSupported, StopBitsNotSupported, ParityNotSupported,
// FlowControlNotSupported}.
func (p *Port[T]) Configure(cfg Config) error {
	if p.send.active.Load() || p.recv.active.Load() {
		return errcode.Busy
	}
	caps := p.target.Caps()

	bits := cfg.DataBits
	if bits == 0 {
		bits = 8
	}
	if caps&WordCap(bits) == 0 {
		return errcode.WordSizeNotSupported
	}
	if cfg.StopBits == StopBitsTwo && caps&CapTwoStopBits == 0 {
		return errcode.StopBitsNotSupported
	}
	if cfg.Parity != ParityNone && caps&CapParity == 0 {
		return errcode.ParityNotSupported
	}
	if cfg.Flow == FlowRTSCTS && caps&CapFlowControl == 0 {
		return errcode.FlowControlNotSupported
	}

	var div, achieved uint32
	if cfg.AutoBaud {
		if caps&CapAutoBaud == 0 {
			return errcode.AutoBaudNotSupported
		}
	} else {
		if cfg.BaudRate == 0 {
			return errcode.BaudRateNotSupported
		}
		// 64-bit throughout: 16*BaudRate overflows uint32 for rates at
		// and above 1<<28, and the permille scaling can wrap too.
		clock := uint64(p.target.ClockHz())
		baud := uint64(cfg.BaudRate)
		div64 := (clock + 8*baud) / (16 * baud)
		if div64 == 0 || div64 > maxDivider {
			return errcode.BaudRateNotSupported
		}
		div = uint32(div64)
		achieved = uint32(clock / (16 * div64))
		maxErr := int64(cfg.MaxBaudError)
		if maxErr == 0 {
			maxErr = DefaultMaxBaudError
		}
		errPermille := mathx.Abs(int64(achieved)-int64(cfg.BaudRate)) * 1000 / int64(cfg.BaudRate)
		if errPermille > maxErr {
			return errcode.BaudRatePrecision
		}
	}

	p.target.Apply(div, cfg)
	p.effective = achieved
	p.configured = true
	return nil
}

// BeginSend accepts buf for transmission. buf must stay valid and unmodified
// until EndSend. Fails with errcode.InProgress while a send is active.
func (p *Port[T]) BeginSend(buf []byte, t periph.Timeout) error {
	return p.begin(&p.send, buf, t)
}

// BeginReceive accepts buf to be filled. Same contract as BeginSend.
func (p *Port[T]) BeginReceive(buf []byte, t periph.Timeout) error {
	return p.begin(&p.recv, buf, t)
}

func (p *Port[T]) begin(d *direction, buf []byte, t periph.Timeout) error {
	if d.active.Load() {
		return errcode.InProgress
	}
	d.buf = buf
	d.n = 0
	d.err = ""
	d.deadline = t.Deadline(p.now(), len(buf))
	d.abort.Store(false)
	d.done.Store(false)
	// Publish last: a Tick in interrupt context observes the fields above
	// only after it sees active.
	d.active.Store(true)
	return nil
}

// Tick advances both directions. It is non-blocking and bounded: it moves
// only units the hardware reports ready, then returns. Call it from the
// polling loop or the interrupt handler, never from both.
func (p *Port[T]) Tick() {
	now := p.now()
	p.tickSend(now)
	p.tickReceive(now)
}

func (p *Port[T]) tickSend(now time.Time) {
	d := &p.send
	if !d.active.Load() || d.done.Load() {
		return
	}
	if d.abort.Load() {
		p.complete(d, errcode.Aborted)
		return
	}
	for d.n < len(d.buf) && p.target.TxReady() {
		p.target.WriteByte(d.buf[d.n])
		d.n++
	}
	if d.n == len(d.buf) {
		p.complete(d, "")
		return
	}
	if !d.deadline.IsZero() && now.After(d.deadline) {
		p.complete(d, errcode.Timeout)
	}
}

func (p *Port[T]) tickReceive(now time.Time) {
	d := &p.recv
	if !d.active.Load() || d.done.Load() {
		return
	}
	if d.abort.Load() {
		p.complete(d, errcode.Aborted)
		return
	}
	for d.n < len(d.buf) && p.target.RxReady() {
		b, flags := p.target.ReadByte()
		if c := flags.code(); c != "" {
			p.complete(d, c)
			return
		}
		d.buf[d.n] = b
		d.n++
	}
	if d.n == len(d.buf) {
		p.complete(d, "")
		return
	}
	if !d.deadline.IsZero() && now.After(d.deadline) {
		p.complete(d, errcode.Timeout)
	}
}

// complete publishes the outcome. done is stored last so a foreground reader
// that observes it also observes n and err.
func (p *Port[T]) complete(d *direction, c errcode.Code) {
	d.err = c
	d.done.Store(true)
}

// SendDone reports completion of the active send. It reads the flag the
// ticking context writes, so polling it any number of times is safe; it
// never reverts to false before a fresh BeginSend.
func (p *Port[T]) SendDone() bool { return p.send.done.Load() }

// ReceiveDone is SendDone for the receive direction.
func (p *Port[T]) ReceiveDone() bool { return p.recv.done.Load() }

// EndSend consumes the completed send, releases its buffer and returns the
// direction to Idle. Calling it before SendDone fails with errcode.NotDone.
func (p *Port[T]) EndSend() (Result, error) { return p.end(&p.send) }

// EndReceive is EndSend for the receive direction.
func (p *Port[T]) EndReceive() (Result, error) { return p.end(&p.recv) }

func (p *Port[T]) end(d *direction) (Result, error) {
	if !d.done.Load() {
		return Result{}, errcode.NotDone
	}
	res := Result{N: d.n}
	if d.err != "" {
		res.Err = d.err
	}
	// Retire the slot before clearing done: a Tick racing this consume
	// bails on !active, so it can never re-complete the released buffer.
	d.active.Store(false)
	d.buf = nil
	d.n = 0
	d.err = ""
	d.done.Store(false)
	return res, nil
}

// AbortSend requests abandonment of the active send. The transfer completes
// with errcode.Aborted on the next Tick; until consumed by EndSend the
// direction stays occupied.
func (p *Port[T]) AbortSend() { abort(&p.send) }

// AbortReceive is AbortSend for the receive direction.
func (p *Port[T]) AbortReceive() { abort(&p.recv) }

func abort(d *direction) {
	if d.active.Load() && !d.done.Load() {
		d.abort.Store(true)
	}
}
