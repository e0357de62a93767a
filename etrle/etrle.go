/*
Package etrle implements the run-length compression scheme applied to
the palette indexes of each scanline of an indexed image.

The compressed stream is a sequence of control bytes carrying a length
in the 7 lower bits. A control byte with the high bit set stands for
that many index-0 (transparent) bytes and carries no payload; one with
the high bit clear is followed by that many literal bytes. Every line
ends with a control byte of value 0. Real runs always have a length of
at least 1, so the end-of-line sentinel is unambiguous.
*/
package etrle

const (
	maxRunLength   = 0x7f
	compressedFlag = 0x80
	endOfLine      = 0x00
)

// AppendLine compresses one scanline of palette indexes onto dst,
// including the trailing end-of-line sentinel, and returns the extended
// slice.
//
// Compression is greedy and never looks across line boundaries. Runs of
// consecutive zeros become a single compressed control byte, capped at
// 127 bytes per run. A lone zero flanked by non-zero bytes (or opening
// the line) stays inside the surrounding uncompressed run: splitting it
// out would cost an extra control byte. Only a zero pair, or a lone
// zero ending the line, starts a compressed run.
func AppendLine(dst, line []byte) []byte {
	for len(line) > 0 {
		if line[0] == 0 && (len(line) == 1 || line[1] == 0) {
			n := 1
			for n < len(line) && n < maxRunLength && line[n] == 0 {
				n++
			}
			dst = append(dst, compressedFlag|byte(n))
			line = line[n:]
			continue
		}
		n := 1
		for n < len(line) && n < maxRunLength {
			if line[n] == 0 && (n+1 == len(line) || line[n+1] == 0) {
				break
			}
			n++
		}
		dst = append(dst, byte(n))
		dst = append(dst, line[:n]...)
		line = line[n:]
	}
	return append(dst, endOfLine)
}

// Compress compresses pix, a row-major block of palette indexes width
// bytes per row, one scanline at a time.
func Compress(pix []byte, width int) []byte {
	if width <= 0 {
		return AppendLine(nil, nil)
	}
	out := make([]byte, 0, len(pix)/2+len(pix)/width+1)
	for len(pix) >= width {
		out = AppendLine(out, pix[:width])
		pix = pix[width:]
	}
	if len(pix) > 0 {
		out = AppendLine(out, pix)
	}
	return out
}

// Decompress expands a compressed stream back into palette indexes,
// concatenating all lines. It fails with *MalformedRunError if a
// literal run would read past the end of data.
func Decompress(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)*2)
	for i := 0; i < len(data); {
		ctrl := data[i]
		i++
		n := int(ctrl & maxRunLength)
		switch {
		case ctrl == endOfLine:
			// next line, if any data follows
		case ctrl&compressedFlag != 0:
			out = append(out, make([]byte, n)...)
		default:
			if i+n > len(data) {
				return nil, &MalformedRunError{Offset: i - 1, Length: n, Remaining: len(data) - i}
			}
			out = append(out, data[i:i+n]...)
			i += n
		}
	}
	return out, nil
}
