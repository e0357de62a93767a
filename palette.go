package stci

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/ericpauley/go-quantize/quantize"
)

// The palette is a pure transposition between the on-disk layout of
// three consecutive 256-byte planes and interleaved RGB triples in
// memory; keep both directions here so nothing else needs to know.

func paletteFromPlanes(b []byte) color.Palette {
	p := make(color.Palette, paletteColors)
	for i := range p {
		p[i] = color.RGBA{
			R: b[i],
			G: b[paletteColors+i],
			B: b[2*paletteColors+i],
			A: 0xff,
		}
	}
	return p
}

func planesFromPalette(p color.Palette) []byte {
	b := make([]byte, 3*paletteColors)
	for i, c := range p {
		if i >= paletteColors {
			break // truncated to the fixed color count
		}
		r, g, b2, _ := c.RGBA()
		b[i] = byte(r >> 8)
		b[paletteColors+i] = byte(g >> 8)
		b[2*paletteColors+i] = byte(b2 >> 8)
	}
	return b
}

func rgbKey(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// nrgbaAt reads one pixel as 8-bit components.
func nrgbaAt(m image.Image, x, y int) (r, g, b, a uint8) {
	c := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
	return c.R, c.G, c.B, c.A
}

// applyTransparency resolves a partially transparent pixel according
// to the chosen policy, returning the effective alpha.
func applyTransparency(a uint8, policy SemiTransparency) (uint8, bool) {
	if a == 0 || a == 255 {
		return a, true
	}
	switch policy {
	case ForceTransparent:
		return 0, true
	case ForceOpaque:
		return 255, true
	}
	return a, false
}

// buildIndexedFrames maps every frame onto one shared 256-color
// palette whose index 0 is the transparent color, returning the
// palette and one index buffer per frame. Opaque colors are looked up
// or added exactly while they fit; once the palette overflows, all
// frames are quantized together instead.
func buildIndexedFrames(frames []Frame, opts SaveOptions) (color.Palette, [][]byte, error) {
	if opts.Palette != nil {
		return remapToPalette(frames, pad256(opts.Palette), opts.SemiTransparent)
	}

	palette := color.Palette{color.RGBA{A: 0xff}} // index 0, transparent slot
	lookup := map[uint32]uint8{rgbKey(0, 0, 0): 0}
	indexed := make([][]byte, len(frames))

	for i, f := range frames {
		b := f.Image.Bounds()
		pix := make([]byte, 0, b.Dx()*b.Dy())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, a := nrgbaAt(f.Image, x, y)
				a, ok := applyTransparency(a, opts.SemiTransparent)
				if !ok {
					return nil, nil, &TransparencyError{Frame: i, X: x, Y: y}
				}
				if a == 0 {
					pix = append(pix, 0)
					continue
				}
				k := rgbKey(r, g, bl)
				idx, ok := lookup[k]
				if !ok {
					if len(palette) == paletteColors {
						// too many distinct colors for exact mapping
						return quantizeFrames(frames, opts.SemiTransparent)
					}
					idx = uint8(len(palette))
					lookup[k] = idx
					palette = append(palette, color.RGBA{R: r, G: g, B: bl, A: 0xff})
				}
				pix = append(pix, idx)
			}
		}
		indexed[i] = pix
	}
	return pad256(palette), indexed, nil
}

// quantizeFrames reduces all frames together to 255 shared colors plus
// the transparent slot.
func quantizeFrames(frames []Frame, policy SemiTransparency) (color.Palette, [][]byte, error) {
	var w, h int
	for _, f := range frames {
		b := f.Image.Bounds()
		if b.Dx() > w {
			w = b.Dx()
		}
		h += b.Dy()
	}

	// Stack the frames so a single median cut sees every color
	composite := image.NewNRGBA(image.Rect(0, 0, w, h))
	y := 0
	for _, f := range frames {
		b := f.Image.Bounds()
		draw.Draw(composite, image.Rect(0, y, b.Dx(), y+b.Dy()), f.Image, b.Min, draw.Src)
		y += b.Dy()
	}

	q := quantize.MedianCutQuantizer{}
	palette := append(color.Palette{color.RGBA{A: 0xff}}, q.Quantize(make(color.Palette, 0, paletteColors-1), composite)...)

	return remapToPalette(frames, pad256(palette), policy)
}

// remapToPalette maps every frame onto an existing palette. Index 0 is
// reserved for transparency, so opaque pixels match against the rest
// of the palette.
func remapToPalette(frames []Frame, palette color.Palette, policy SemiTransparency) (color.Palette, [][]byte, error) {
	opaque := palette[1:]
	indexed := make([][]byte, len(frames))
	for i, f := range frames {
		b := f.Image.Bounds()
		pix := make([]byte, 0, b.Dx()*b.Dy())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, a := nrgbaAt(f.Image, x, y)
				a, ok := applyTransparency(a, policy)
				if !ok {
					return nil, nil, &TransparencyError{Frame: i, X: x, Y: y}
				}
				if a == 0 {
					pix = append(pix, 0)
					continue
				}
				pix = append(pix, uint8(opaque.Index(color.RGBA{R: r, G: g, B: bl, A: 0xff})+1))
			}
		}
		indexed[i] = pix
	}
	return palette, indexed, nil
}

func pad256(p color.Palette) color.Palette {
	if len(p) >= paletteColors {
		return p[:paletteColors]
	}
	padded := make(color.Palette, paletteColors)
	copy(padded, p)
	for i := len(p); i < paletteColors; i++ {
		padded[i] = color.RGBA{A: 0xff}
	}
	return padded
}
