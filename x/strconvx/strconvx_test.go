package strconvx

import "testing"

func TestItoa(t *testing.T) {
	for v, want := range map[int]string{0: "0", 1: "1", -1: "-1", 42: "42", -99999: "-99999"} {
		if got := Itoa(v); got != want {
			t.Fatalf("Itoa(%d) = %q, want %q", v, got, want)
		}
	}
}

func TestFormatFloatFixed(t *testing.T) {
	type C struct {
		in   float64
		prec int
		want string
	}
	for _, c := range []C{
		{0, 0, "0"},
		{12.3, 1, "12.3"},
		{20.45, 2, "20.45"},
		{0.999, 2, "1.00"},
		{-1.25, 2, "-1.25"},
		{45.5, 2, "45.50"},
	} {
		if got := FormatFloat(c.in, 'f', c.prec, 64); got != c.want {
			t.Fatalf("FormatFloat(%v,'f',%d) = %q, want %q", c.in, c.prec, got, c.want)
		}
	}
}

func TestParseFloat(t *testing.T) {
	v, err := ParseFloat("-20.25", 64)
	if err != nil || v != -20.25 {
		t.Fatalf("ParseFloat = %v, %v; want -20.25", v, err)
	}
	for _, s := range []string{"", "12.3.4", "abc", "-"} {
		if _, err := ParseFloat(s, 64); err == nil {
			t.Fatalf("ParseFloat(%q) expected error", s)
		}
	}
}
