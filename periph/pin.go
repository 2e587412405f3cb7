package periph

import (
	"periphcore-go/errcode"
)

// Pin addresses one GPIO-capable pin on any supported chip.
// Port 0 is "A" (or the only bank on single-bank chips like the RP2 family).
type Pin struct {
	Port  uint8
	Index uint8
}

// String renders the port-letter form, e.g. {0,3} -> "PA3".
func (p Pin) String() string {
	return "P" + string(rune('A'+p.Port)) + itoa(p.Index)
}

// ParsePin resolves a textual pin spec to a Pin. Two spellings are accepted:
//
//	"PA3", "pb12"        port letter + pin number
//	"GPIO25", "GP7"      single-bank numbering (port 0)
//
// Unrecognised specs fail with errcode.UnknownPin. Backends with their own
// naming scheme (e.g. host pin registries) implement ParsePin on their Conn
// instead; this is the default used by ports that follow chip datasheet
// naming.
func ParsePin(spec string) (Pin, error) {
	for _, prefix := range [...]string{"GPIO", "GP", "gpio", "gp"} {
		if len(spec) > len(prefix) && spec[:len(prefix)] == prefix {
			if idx, ok := parseIndex(spec[len(prefix):]); ok {
				return Pin{Port: 0, Index: idx}, nil
			}
		}
	}
	if len(spec) >= 3 && (spec[0] == 'P' || spec[0] == 'p') {
		if port := upper(spec[1]); port >= 'A' && port <= 'Z' {
			if idx, ok := parseIndex(spec[2:]); ok {
				return Pin{Port: port - 'A', Index: idx}, nil
			}
		}
	}
	return Pin{}, &errcode.E{C: errcode.UnknownPin, Op: "periph.ParsePin", Msg: spec}
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func parseIndex(s string) (uint8, bool) {
	if s == "" || len(s) > 3 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if n > 255 {
		return 0, false
	}
	return uint8(n), true
}

func itoa(v uint8) string {
	if v == 0 {
		return "0"
	}
	var buf [3]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
