package mock

import "periphcore-go/spi"

// SPI is a scriptable spi.Target. OnExchange supplies the inbound byte for
// each outbound one; when nil the bus reads back 0xFF (idle line).
// Transmitted bytes are recorded on Tx.
type SPI struct {
	Clock   uint32
	Stalled bool

	OnExchange func(out byte) byte

	// Applied configuration, recorded for assertions.
	Div  uint32
	Mode spi.Mode

	Tx []byte
}

var _ spi.Target = (*SPI)(nil)

func NewSPI() *SPI {
	return &SPI{Clock: 8_000_000}
}

func (s *SPI) ClockHz() uint32 { return s.Clock }

func (s *SPI) Apply(divider uint32, mode spi.Mode) {
	s.Div = divider
	s.Mode = mode
}

func (s *SPI) Ready() bool { return !s.Stalled }

func (s *SPI) Exchange(b byte) byte {
	s.Tx = append(s.Tx, b)
	if s.OnExchange == nil {
		return 0xFF
	}
	return s.OnExchange(b)
}
