//go:build rp2040 || rp2350

package strconvx

// Small replacements for the strconv calls the firmware makes. Only decimal
// integers and fixed-point ('f') floats are supported; that is all the
// summary records and upload bodies need.

type parseError struct{}

func (parseError) Error() string { return "invalid syntax" }

func Itoa(i int) string {
	if i < 0 {
		return "-" + utoa(uint64(-int64(i)))
	}
	return utoa(uint64(i))
}

func utoa(u uint64) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}

// FormatFloat renders f with prec decimals. fmt and bitSize are accepted for
// signature parity; everything is rendered as 'f'. NaN and Inf are not handled.
func FormatFloat(f float64, _ byte, prec, _ int) string {
	if prec < 0 {
		prec = 6
	}
	neg := f < 0
	if neg {
		f = -f
	}
	pow := uint64(1)
	for i := 0; i < prec; i++ {
		pow *= 10
	}
	// Round once on the scaled value so 0.999 -> "1.00", not "0.100".
	n := uint64(f*float64(pow) + 0.5)
	out := utoa(n / pow)
	if prec > 0 {
		fs := utoa(n % pow)
		for len(fs) < prec {
			fs = "0" + fs
		}
		out += "." + fs
	}
	if neg && n != 0 {
		return "-" + out
	}
	return out
}

func ParseFloat(s string, _ int) (float64, error) {
	if len(s) == 0 {
		return 0, parseError{}
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	var v float64
	i, digits := 0, 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		v = v*10 + float64(s[i]-'0')
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		scale := 0.1
		for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
			v += float64(s[i]-'0') * scale
			scale /= 10
			digits++
		}
	}
	if i != len(s) || digits == 0 {
		return 0, parseError{}
	}
	if neg {
		v = -v
	}
	return v, nil
}
