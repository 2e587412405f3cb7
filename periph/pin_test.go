package periph

import (
	"testing"

	"periphcore-go/errcode"
)

func TestParsePin(t *testing.T) {
	cases := []struct {
		spec string
		want Pin
	}{
		{"PA3", Pin{0, 3}},
		{"pb12", Pin{1, 12}},
		{"PH0", Pin{7, 0}},
		{"GPIO25", Pin{0, 25}},
		{"GP7", Pin{0, 7}},
		{"gpio0", Pin{0, 0}},
	}
	for _, c := range cases {
		got, err := ParsePin(c.spec)
		if err != nil {
			t.Fatalf("ParsePin(%q): %v", c.spec, err)
		}
		if got != c.want {
			t.Fatalf("ParsePin(%q) = %v, want %v", c.spec, got, c.want)
		}
	}
}

func TestParsePinUnknown(t *testing.T) {
	for _, spec := range []string{"", "P", "PA", "Q7", "PA999", "GPIO", "led0", "P-3"} {
		_, err := ParsePin(spec)
		if err == nil {
			t.Fatalf("ParsePin(%q) should fail", spec)
		}
		if errcode.Of(err) != errcode.UnknownPin {
			t.Fatalf("ParsePin(%q) code = %v, want unknown_pin", spec, errcode.Of(err))
		}
	}
}

func TestPinString(t *testing.T) {
	if s := (Pin{0, 3}).String(); s != "PA3" {
		t.Fatalf("String() = %q", s)
	}
	if s := (Pin{2, 15}).String(); s != "PC15" {
		t.Fatalf("String() = %q", s)
	}
}
