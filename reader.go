package stci

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/bodgit/stci/etrle"
	"github.com/bodgit/stci/header"
	"github.com/bodgit/stci/pixel"
	"github.com/bodgit/stci/stream"
)

// File is a fully decoded container. Exactly one of Truecolor and
// Indexed is non-nil, matching the variant flag in the header.
type File struct {
	Header    Header
	Truecolor *TruecolorImage
	Indexed   *IndexedImage
}

// TruecolorImage is the decoded form of an RGB-flagged container.
type TruecolorImage struct {
	Spec  pixel.Spec
	Image *image.NRGBA
}

// SubImage is one frame of an indexed container. Pixels holds width
// times height palette indexes in row-major order. Aux is the frame's
// tile metadata record, if the container carries any.
type SubImage struct {
	Pixels  []byte
	Width   int
	Height  int
	OffsetX int
	OffsetY int
	Aux     *AuxObjectData
}

// Image renders the frame against a palette.
func (s *SubImage) Image(p color.Palette) *image.Paletted {
	m := image.NewPaletted(image.Rect(0, 0, s.Width, s.Height), p)
	for y := 0; y < s.Height; y++ {
		copy(m.Pix[y*m.Stride:], s.Pixels[y*s.Width:(y+1)*s.Width])
	}
	return m
}

// IndexedImage is the decoded form of an INDEXED-flagged container.
// Width and Height are the canvas size; where the composed extent of
// the sub-images disagrees with the size the header declares, the
// composed size wins, as some shipped archives misreport the canvas.
type IndexedImage struct {
	Palette   color.Palette
	Width     int
	Height    int
	SubImages []*SubImage
}

// composedSize lays the sub-images out left to right with a single
// transparent pixel column between them.
func composedSize(subs []*SubImage) (w, h int) {
	for _, s := range subs {
		if w > 0 {
			w++
		}
		w += s.Width
		if s.Height > h {
			h = s.Height
		}
	}
	return
}

// Canvas composes all sub-images onto one paletted image, left to
// right with a single transparent column between them.
func (m *IndexedImage) Canvas() *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, m.Width, m.Height), m.Palette)
	x := 0
	for _, s := range m.SubImages {
		for y := 0; y < s.Height; y++ {
			copy(img.Pix[y*img.Stride+x:], s.Pixels[y*s.Width:(y+1)*s.Width])
		}
		x += s.Width + 1
	}
	return img
}

// ReadHeader reads and validates the outer container header, leaving r
// positioned at the start of the format payload.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, headerSize)
	if n, err := io.ReadFull(r, buf); err != nil {
		return nil, &header.TruncatedError{Need: headerSize, Have: n}
	}

	h, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}

	if h.flag(FlagZlib) {
		return nil, &UnsupportedError{Feature: "zlib compression"}
	}
	rgb, indexed := h.flag(FlagRGB), h.flag(FlagIndexed)
	if rgb == indexed {
		return nil, &FormatError{Reason: "exactly one of the RGB and INDEXED flags must be set"}
	}
	if rgb && h.flag(FlagAuxObjectData) {
		return nil, &UnsupportedError{Feature: "tile metadata on a truecolor image"}
	}
	if indexed && h.flag(FlagAuxObjectData) && !h.flag(FlagETRLE) {
		return nil, &UnsupportedError{Feature: "tile metadata without compressed sub-images"}
	}

	return h, nil
}

type decoder struct {
	r io.Reader

	header    *Header
	truecolor *TruecolorImage
	indexed   *IndexedImage
}

// readFull accumulates exactly n payload bytes through a bounded
// streaming decoder.
func (d *decoder) readFull(n int) ([]byte, error) {
	b, err := stream.ReadFull(d.r, n, writeChunk)
	if err != nil {
		return nil, &header.TruncatedError{Need: n, Have: len(b)}
	}
	return b, nil
}

func (d *decoder) decode(r io.Reader, configOnly bool) error {
	d.r = r

	h, err := ReadHeader(r)
	if err != nil {
		return err
	}
	d.header = h

	if h.flag(FlagRGB) {
		return d.decodeTruecolor(configOnly)
	}
	return d.decodeIndexed(configOnly)
}

func (d *decoder) decodeTruecolor(configOnly bool) error {
	v, err := truecolorLayout.Decode(d.header.FormatHeader)
	if err != nil {
		return err
	}
	spec := pixel.Spec{
		R:     pixel.Channel{Mask: uint32(v.Uint("red_color_mask")), Depth: uint8(v.Uint("red_color_depth"))},
		G:     pixel.Channel{Mask: uint32(v.Uint("green_color_mask")), Depth: uint8(v.Uint("green_color_depth"))},
		B:     pixel.Channel{Mask: uint32(v.Uint("blue_color_mask")), Depth: uint8(v.Uint("blue_color_depth"))},
		A:     pixel.Channel{Mask: uint32(v.Uint("alpha_channel_mask")), Depth: uint8(v.Uint("alpha_channel_depth"))},
		Depth: d.header.ColorDepth,
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	d.truecolor = &TruecolorImage{Spec: spec}
	if configOnly {
		return nil
	}

	w, h := d.header.Width, d.header.Height
	pb := spec.PixelBytes()
	data, err := d.readFull(w * h * pb)
	if err != nil {
		return err
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		r, g, b, a := pixel.Unpack(spec.Read(data[i*pb:]), spec)
		if spec.Opaque() {
			a = 0xff
		}
		img.Pix[4*i+0] = r
		img.Pix[4*i+1] = g
		img.Pix[4*i+2] = b
		img.Pix[4*i+3] = a
	}
	d.truecolor.Image = img

	return nil
}

func (d *decoder) decodeIndexed(configOnly bool) error {
	v, err := indexedLayout.Decode(d.header.FormatHeader)
	if err != nil {
		return err
	}
	if n := v.Uint("number_of_palette_colors"); n != paletteColors {
		return &UnsupportedError{Feature: fmt.Sprintf("palette with %d colors", n)}
	}

	planes, err := d.readFull(3 * paletteColors)
	if err != nil {
		return err
	}
	d.indexed = &IndexedImage{
		Palette: paletteFromPlanes(planes),
		Width:   d.header.Width,
		Height:  d.header.Height,
	}

	if !d.header.flag(FlagETRLE) {
		return d.decodeRawIndexes(configOnly)
	}
	return d.decodeCompressed(int(v.Uint("number_of_images")), configOnly)
}

func (d *decoder) decodeRawIndexes(configOnly bool) error {
	if configOnly {
		return nil
	}
	w, h := d.header.Width, d.header.Height
	pix, err := d.readFull(w * h)
	if err != nil {
		return err
	}
	d.indexed.SubImages = []*SubImage{{Pixels: pix, Width: w, Height: h}}
	return nil
}

func (d *decoder) decodeCompressed(numImages int, configOnly bool) error {
	if numImages == 0 {
		return &FormatError{Reason: "compressed container with no sub-images"}
	}

	descriptors, err := d.readFull(numImages * subImageLayout.Size())
	if err != nil {
		return err
	}
	subs := make([]*SubImage, numImages)
	offsets := make([]int, numImages)
	lengths := make([]int, numImages)
	for i := range subs {
		v, err := subImageLayout.Decode(descriptors[i*subImageLayout.Size():])
		if err != nil {
			return err
		}
		offsets[i], lengths[i] = int(v.Uint("offset")), int(v.Uint("length"))
		subs[i] = &SubImage{
			Width:   int(v.Uint("width")),
			Height:  int(v.Uint("height")),
			OffsetX: int(v.Uint("offset_x")),
			OffsetY: int(v.Uint("offset_y")),
		}
	}
	d.indexed.SubImages = subs

	// Some shipped archives misreport the canvas size; the composed
	// extent wins when they disagree.
	if w, h := composedSize(subs); w != d.indexed.Width || h != d.indexed.Height {
		d.indexed.Width, d.indexed.Height = w, h
	}

	if configOnly {
		return nil
	}

	block, err := d.readFull(int(d.header.CompressedSize))
	if err != nil {
		return err
	}
	for i, s := range subs {
		if offsets[i]+lengths[i] > len(block) {
			return &FormatError{Reason: fmt.Sprintf("sub-image %d extends past the compressed data block", i)}
		}
		pix, err := etrle.Decompress(block[offsets[i] : offsets[i]+lengths[i]])
		if err != nil {
			return err
		}
		if len(pix) != s.Width*s.Height {
			return &FormatError{Reason: fmt.Sprintf("sub-image %d decompressed to %d bytes, expected %d", i, len(pix), s.Width*s.Height)}
		}
		s.Pixels = pix
	}

	if d.header.flag(FlagAuxObjectData) {
		records, err := d.readFull(numImages * auxLayout.Size())
		if err != nil {
			return err
		}
		for i, s := range subs {
			aux := new(AuxObjectData)
			if err := aux.UnmarshalBinary(records[i*auxLayout.Size():]); err != nil {
				return err
			}
			s.Aux = aux
		}
	}

	return nil
}

// Load reads a whole container from r.
func Load(r io.Reader) (*File, error) {
	var d decoder
	if err := d.decode(r, false); err != nil {
		return nil, err
	}
	return &File{Header: *d.header, Truecolor: d.truecolor, Indexed: d.indexed}, nil
}

// Decode reads a container from r and returns it as a single
// image.Image: the pixel data for a truecolor container, the composed
// canvas for an indexed one.
func Decode(r io.Reader) (image.Image, error) {
	f, err := Load(r)
	if err != nil {
		return nil, err
	}
	if f.Truecolor != nil {
		return f.Truecolor.Image, nil
	}
	return f.Indexed.Canvas(), nil
}

// DecodeConfig returns the color model and canvas dimensions of a
// container without decoding any pixel data.
func DecodeConfig(r io.Reader) (image.Config, error) {
	var d decoder
	if err := d.decode(r, true); err != nil {
		return image.Config{}, err
	}
	if d.truecolor != nil {
		return image.Config{
			ColorModel: color.NRGBAModel,
			Width:      d.header.Width,
			Height:     d.header.Height,
		}, nil
	}
	return image.Config{
		ColorModel: d.indexed.Palette,
		Width:      d.indexed.Width,
		Height:     d.indexed.Height,
	}, nil
}
