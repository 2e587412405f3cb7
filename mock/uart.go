package mock

import "periphcore-go/uart"

// DefaultUARTCaps is everything a typical hardware UART offers, minus
// autobaud and 9-bit words so the rejection paths stay reachable.
const DefaultUARTCaps = uart.CapParity | uart.CapFlowControl | uart.CapTwoStopBits |
	uart.CapWord5 | uart.CapWord6 | uart.CapWord7 | uart.CapWord8

type rxUnit struct {
	b     byte
	flags uart.RxFlags
}

// UART is a scriptable uart.Target. Queue inbound units with QueueRx /
// QueueRxFlags, read transmitted bytes off Tx, stall the transmitter with
// TxStalled to exercise flow-control timeouts.
type UART struct {
	Clock        uint32
	Capabilities uart.Caps
	TxStalled    bool

	// Applied configuration, recorded for assertions.
	Div uint32
	Cfg uart.Config

	Tx []byte
	rx []rxUnit
}

var _ uart.Target = (*UART)(nil)

func NewUART() *UART {
	return &UART{Clock: 48_000_000, Capabilities: DefaultUARTCaps}
}

func (u *UART) ClockHz() uint32 { return u.Clock }
func (u *UART) Caps() uart.Caps { return u.Capabilities }

func (u *UART) Apply(divider uint32, cfg uart.Config) {
	u.Div = divider
	u.Cfg = cfg
}

func (u *UART) TxReady() bool { return !u.TxStalled }

func (u *UART) WriteByte(b byte) { u.Tx = append(u.Tx, b) }

func (u *UART) RxReady() bool { return len(u.rx) > 0 }

func (u *UART) ReadByte() (byte, uart.RxFlags) {
	unit := u.rx[0]
	u.rx = u.rx[1:]
	return unit.b, unit.flags
}

// QueueRx scripts clean inbound bytes.
func (u *UART) QueueRx(p ...byte) {
	for _, b := range p {
		u.rx = append(u.rx, rxUnit{b: b})
	}
}

// QueueRxFlags scripts one inbound unit carrying hardware condition flags.
func (u *UART) QueueRxFlags(b byte, flags uart.RxFlags) {
	u.rx = append(u.rx, rxUnit{b: b, flags: flags})
}
