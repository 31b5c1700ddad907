package log

import "strconv"

// Escape renders b for the text trace format: newline as \n, carriage
// return as \r, bytes outside printable ASCII as \ooo, the rest verbatim.
func Escape(b []byte) string {
	return string(AppendEscaped(make([]byte, 0, len(b)), b))
}

// AppendEscaped appends the escaped form of b to dst.
func AppendEscaped(dst, b []byte) []byte {
	for _, c := range b {
		switch {
		case c == '\n':
			dst = append(dst, '\\', 'n')
		case c == '\r':
			dst = append(dst, '\\', 'r')
		case c < 32 || c >= 127:
			dst = append(dst, '\\')
			if c < 0o10 {
				dst = append(dst, '0', '0')
			} else if c < 0o100 {
				dst = append(dst, '0')
			}
			dst = strconv.AppendUint(dst, uint64(c), 8)
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

// TraceLine formats one text trace line, without the trailing newline.
func TraceLine(d Direction, b []byte) string {
	line := make([]byte, 0, len(b)+8)
	line = append(line, d.Tag()...)
	line = append(line, '>', ' ')
	return string(AppendEscaped(line, b))
}
