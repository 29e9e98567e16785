package core

// Formatting helpers that avoid fmt, which is heavy on the firmware targets.

// itoa converts an integer to a string.
func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-n))
	}
	return utoa(uint32(n))
}

// utoa converts an unsigned integer to a string.
func utoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// Hex32 formats a port word as 0x-prefixed, zero padded hex.
func Hex32(v uint32) string {
	const digits = "0123456789abcdef"
	var buf [10]byte
	buf[0], buf[1] = '0', 'x'
	for i := 9; i >= 2; i-- {
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[:])
}
