/*
Package pixel converts between packed integer pixel values and 8-bit
RGBA components for arbitrary channel bit masks and depths.

A Spec describes one truecolor packing scheme: a bit mask and depth for
each of the four channels, plus the total pixel depth which fixes the
serialized byte width. A channel whose raw bits are all ones under its
mask always expands to 255, matching hardware RGBA expansion; other
values rescale with integer floor division, which is the behavior
archived files were written against.
*/
package pixel

import "math/bits"

// Channel is one color channel of a packing scheme. Mask selects the
// channel's bits within the pixel and Depth is the number of bits set.
type Channel struct {
	Mask  uint32
	Depth uint8
}

// Spec fully describes one truecolor packing scheme. Depth is the total
// bits per pixel and fixes the serialized width at Depth/8 bytes.
type Spec struct {
	R, G, B, A Channel
	Depth      uint8
}

// RGB565 is the 16-bit 5-6-5 scheme used by shipped archives.
var RGB565 = Spec{
	R:     Channel{Mask: 0xf800, Depth: 5},
	G:     Channel{Mask: 0x07e0, Depth: 6},
	B:     Channel{Mask: 0x001f, Depth: 5},
	Depth: 16,
}

// Channels returns the four channels in RGBA order.
func (s Spec) Channels() [4]Channel {
	return [4]Channel{s.R, s.G, s.B, s.A}
}

// PixelBytes returns the serialized width of one pixel.
func (s Spec) PixelBytes() int {
	return int(s.Depth) / 8
}

// Opaque reports whether the scheme carries no alpha channel.
func (s Spec) Opaque() bool {
	return s.A.Mask == 0
}

// Validate checks that each mask is a contiguous run of exactly Depth
// one bits, that the total depth is a positive multiple of 8 no greater
// than 64, and that the channel depths fit within it.
func (s Spec) Validate() error {
	var sum int
	for _, ch := range s.Channels() {
		if ch.Depth > 32 {
			return &SpecError{Spec: s, Reason: "channel depth exceeds 32 bits"}
		}
		l := bits.Len32(ch.Mask)
		if l < int(ch.Depth) {
			return &SpecError{Spec: s, Reason: "mask narrower than channel depth"}
		}
		if want := (uint32(1)<<ch.Depth - 1) << uint(l-int(ch.Depth)); ch.Mask != want {
			return &SpecError{Spec: s, Reason: "mask bits not contiguous or not matching depth"}
		}
		sum += int(ch.Depth)
	}
	if s.Depth == 0 || s.Depth%8 != 0 || s.Depth > 64 {
		return &SpecError{Spec: s, Reason: "total depth not a positive multiple of 8 up to 64"}
	}
	if sum > int(s.Depth) {
		return &SpecError{Spec: s, Reason: "channel depths exceed total depth"}
	}
	return nil
}

func component(raw uint64, ch Channel) uint8 {
	if ch.Mask == 0 || ch.Depth == 0 {
		return 0
	}
	v := uint32(raw) & ch.Mask
	if v == ch.Mask {
		return 255 // saturated, always pure white/opaque
	}
	if ch.Depth > 8 {
		// discard extra precision
		return uint8(v >> uint(bits.Len32(ch.Mask)-8))
	}
	// mimics SDL_GetRGBA: floor division over the native range
	shift := uint(bits.Len32(ch.Mask) - int(ch.Depth))
	max := uint32(1)<<ch.Depth - 1
	return uint8((v >> shift) * 255 / max)
}

// Unpack expands a raw pixel value into 8-bit RGBA components. An absent
// channel yields 0; callers wanting opaque alpha for alpha-less schemes
// apply that themselves.
func Unpack(raw uint64, s Spec) (r, g, b, a uint8) {
	return component(raw, s.R), component(raw, s.G), component(raw, s.B), component(raw, s.A)
}

// Pack quantizes 8-bit RGBA components into a raw pixel value. Each
// component must be within 0 to 255 or Pack fails with *ComponentError.
// Round-tripping through Unpack is lossy for channel depths below 8.
func Pack(r, g, b, a int, s Spec) (uint64, error) {
	var raw uint32
	chans := s.Channels()
	for i, c := range [4]int{r, g, b, a} {
		if c < 0 || c > 255 {
			return 0, &ComponentError{Value: c}
		}
		mask := chans[i].Mask
		if c == 0 || mask == 0 {
			continue // already zero
		}
		shift := bits.Len32(mask) - 8
		switch {
		case shift > 0:
			raw |= uint32(c) << uint(shift) & mask
		case shift < 0:
			raw |= uint32(c) >> uint(-shift) & mask
		default:
			raw |= uint32(c) & mask
		}
	}
	return uint64(raw), nil
}

// Put serializes one raw pixel into dst, which must be at least
// PixelBytes long. Masks never address bits beyond 32, so for widths
// over four bytes the trailing bytes are always zero.
func (s Spec) Put(dst []byte, raw uint64) {
	n := s.PixelBytes()
	switch {
	case n == 1:
		dst[0] = byte(raw)
	case n == 2:
		dst[0] = byte(raw)
		dst[1] = byte(raw >> 8)
	case n == 3:
		dst[0] = byte(raw)
		dst[1] = byte(raw >> 8)
		dst[2] = byte(raw >> 16)
	default:
		dst[0] = byte(raw)
		dst[1] = byte(raw >> 8)
		dst[2] = byte(raw >> 16)
		dst[3] = byte(raw >> 24)
		for i := 4; i < n; i++ {
			dst[i] = 0
		}
	}
}

// Read deserializes one raw pixel from src, which must be at least
// PixelBytes long. Bytes beyond the fourth are ignored.
func (s Spec) Read(src []byte) uint64 {
	var raw uint64
	n := s.PixelBytes()
	if n > 4 {
		n = 4
	}
	for i := 0; i < n; i++ {
		raw |= uint64(src[i]) << uint(8*i)
	}
	return raw
}
