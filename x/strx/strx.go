package strx

// Coalesce returns the first non-empty value, or "" when all are empty.
func Coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// TrimEOL strips one trailing "\n" or "\r\n".
func TrimEOL(s string) string {
	n := len(s)
	if n > 0 && s[n-1] == '\n' {
		n--
		if n > 0 && s[n-1] == '\r' {
			n--
		}
	}
	return s[:n]
}
