package utils

const hexd = "0123456789ABCDEF"

// Hex2 formats a byte as two uppercase hex digits (e.g. "41").
func Hex2(v byte) string {
	return string([]byte{hexd[v>>4], hexd[v&0x0F]})
}

// Hex4 formats a uint16 as four uppercase hex digits (e.g. "FFFF").
func Hex4(v uint16) string {
	return string([]byte{
		hexd[(v>>12)&0xF],
		hexd[(v>>8)&0xF],
		hexd[(v>>4)&0xF],
		hexd[v&0xF],
	})
}

// BytesToHex converts a byte slice to an uppercase hex string.
func BytesToHex(b []byte) string {
	out := make([]byte, 0, len(b)*2)
	for _, x := range b {
		out = append(out, hexd[x>>4], hexd[x&0x0F])
	}
	return string(out)
}
