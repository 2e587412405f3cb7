// Package serialport implements the UART capability over an OS serial
// device via tarm/serial, so code written against uart.Conn runs on a
// development host talking to real hardware over a USB adapter.
//
// The OS buffers both directions, so Tick just moves whatever the kernel
// has; pacing and framing are the adapter's business.
package serialport

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"

	"periphcore-go/errcode"
	"periphcore-go/periph"
	"periphcore-go/uart"
)

// pollTimeout bounds how long a single Tick may sit in the kernel read.
const pollTimeout = time.Millisecond

// direction mirrors the engine's per-direction slot: Idle -> Active ->
// Completed, consumed by End.
type direction struct {
	active atomic.Bool
	done   atomic.Bool
	abort  atomic.Bool

	buf      []byte
	n        int
	err      errcode.Code
	deadline time.Time
}

// Port implements uart.Conn over one serial device.
type Port struct {
	device string
	port   *serial.Port
	now    func() time.Time

	send direction
	recv direction
}

var _ uart.Conn = (*Port)(nil)

// New names the device ("/dev/ttyUSB0", "COM3"); nothing is opened until
// Configure.
func New(device string) *Port {
	return &Port{device: device, now: time.Now}
}

// SetClock replaces the time source, for simulation and tests.
func (p *Port) SetClock(now func() time.Time) { p.now = now }

// MapConfig translates a frame configuration to the tarm/serial shape.
// It rejects everything an OS serial port cannot express with the same
// codes a constrained hardware target would use.
func MapConfig(device string, cfg uart.Config) (*serial.Config, error) {
	if cfg.AutoBaud {
		return nil, errcode.AutoBaudNotSupported
	}
	if cfg.BaudRate == 0 {
		return nil, errcode.BaudRateNotSupported
	}
	if cfg.Flow == uart.FlowRTSCTS {
		return nil, errcode.FlowControlNotSupported
	}
	bits := cfg.DataBits
	if bits == 0 {
		bits = 8
	}
	if bits < 5 || bits > 8 {
		return nil, errcode.WordSizeNotSupported
	}
	sc := &serial.Config{
		Name:        device,
		Baud:        int(cfg.BaudRate),
		Size:        byte(bits),
		ReadTimeout: pollTimeout,
	}
	switch cfg.Parity {
	case uart.ParityNone:
		sc.Parity = serial.ParityNone
	case uart.ParityEven:
		sc.Parity = serial.ParityEven
	case uart.ParityOdd:
		sc.Parity = serial.ParityOdd
	default:
		return nil, errcode.ParityNotSupported
	}
	switch cfg.StopBits {
	case uart.StopBitsOne:
		sc.StopBits = serial.Stop1
	case uart.StopBitsTwo:
		sc.StopBits = serial.Stop2
	default:
		return nil, errcode.StopBitsNotSupported
	}
	return sc, nil
}

// Configure maps cfg and (re)opens the device.
func (p *Port) Configure(cfg uart.Config) error {
	if p.send.active.Load() || p.recv.active.Load() {
		return errcode.Busy
	}
	sc, err := MapConfig(p.device, cfg)
	if err != nil {
		return err
	}
	if p.port != nil {
		p.port.Close()
		p.port = nil
	}
	port, err := serial.OpenPort(sc)
	if err != nil {
		return &errcode.E{C: errcode.Error, Op: "serialport.Configure", Msg: p.device, Err: err}
	}
	p.port = port
	return nil
}

// Close releases the device. Active transfers are not completed; abort and
// consume them first.
func (p *Port) Close() error {
	if p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	return err
}

func (p *Port) BeginSend(buf []byte, t periph.Timeout) error {
	return p.begin(&p.send, buf, t)
}

func (p *Port) BeginReceive(buf []byte, t periph.Timeout) error {
	return p.begin(&p.recv, buf, t)
}

func (p *Port) begin(d *direction, buf []byte, t periph.Timeout) error {
	if d.active.Load() {
		return errcode.InProgress
	}
	d.buf = buf
	d.n = 0
	d.err = ""
	d.deadline = t.Deadline(p.now(), len(buf))
	d.abort.Store(false)
	d.done.Store(false)
	d.active.Store(true)
	return nil
}

// Tick advances both directions. A receive may sit in the kernel for up to
// pollTimeout before giving up for this round.
func (p *Port) Tick() {
	now := p.now()
	p.tickSend(now)
	p.tickReceive(now)
}

func (p *Port) tickSend(now time.Time) {
	d := &p.send
	if !d.active.Load() || d.done.Load() {
		return
	}
	if d.abort.Load() {
		p.complete(d, errcode.Aborted)
		return
	}
	if d.n < len(d.buf) {
		n, err := p.port.Write(d.buf[d.n:])
		d.n += n
		if err != nil {
			p.complete(d, errcode.Error)
			return
		}
	}
	if d.n == len(d.buf) {
		p.complete(d, "")
		return
	}
	if !d.deadline.IsZero() && now.After(d.deadline) {
		p.complete(d, errcode.Timeout)
	}
}

func (p *Port) tickReceive(now time.Time) {
	d := &p.recv
	if !d.active.Load() || d.done.Load() {
		return
	}
	if d.abort.Load() {
		p.complete(d, errcode.Aborted)
		return
	}
	if d.n < len(d.buf) {
		n, err := p.port.Read(d.buf[d.n:])
		d.n += n
		// A poll timeout surfaces as io.EOF from the file layer; that is
		// just "no data this round".
		if err != nil && err != io.EOF {
			p.complete(d, errcode.Error)
			return
		}
	}
	if d.n == len(d.buf) {
		p.complete(d, "")
		return
	}
	if !d.deadline.IsZero() && now.After(d.deadline) {
		p.complete(d, errcode.Timeout)
	}
}

func (p *Port) complete(d *direction, c errcode.Code) {
	d.err = c
	d.done.Store(true)
}

func (p *Port) SendDone() bool    { return p.send.done.Load() }
func (p *Port) ReceiveDone() bool { return p.recv.done.Load() }

func (p *Port) EndSend() (uart.Result, error)    { return p.end(&p.send) }
func (p *Port) EndReceive() (uart.Result, error) { return p.end(&p.recv) }

func (p *Port) end(d *direction) (uart.Result, error) {
	if !d.done.Load() {
		return uart.Result{}, errcode.NotDone
	}
	res := uart.Result{N: d.n}
	if d.err != "" {
		res.Err = d.err
	}
	// Retire the slot before clearing done so a racing Tick bails on
	// !active instead of re-completing the released buffer.
	d.active.Store(false)
	d.buf = nil
	d.n = 0
	d.err = ""
	d.done.Store(false)
	return res, nil
}

func (p *Port) AbortSend()    { abortDir(&p.send) }
func (p *Port) AbortReceive() { abortDir(&p.recv) }

func abortDir(d *direction) {
	if d.active.Load() && !d.done.Load() {
		d.abort.Store(true)
	}
}
