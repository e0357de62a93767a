package stci

import (
	"bytes"
	"image"
	"image/color"
	"io"

	"github.com/bodgit/stci/etrle"
	"github.com/bodgit/stci/header"
	"github.com/bodgit/stci/pixel"
	"github.com/bodgit/stci/stream"
)

// SemiTransparency selects what happens to a partially transparent
// pixel when an image is quantized down to a palette whose index 0 is
// the only transparent entry.
type SemiTransparency int

const (
	// Reject fails the save with *TransparencyError
	Reject SemiTransparency = iota
	// ForceTransparent maps the pixel to index 0
	ForceTransparent
	// ForceOpaque keeps the pixel's color at full alpha
	ForceOpaque
)

// Frame is one sub-image of a compressed indexed container. OffsetX
// and OffsetY position the frame on the shared canvas; Aux is its
// optional tile metadata record.
type Frame struct {
	Image   image.Image
	OffsetX int
	OffsetY int
	Aux     *AuxObjectData
}

// SaveOptions adjusts SaveETRLE. The zero value quantizes frames onto
// a fresh shared palette and rejects partially transparent pixels.
type SaveOptions struct {
	SemiTransparent SemiTransparency

	// Palette, when non-nil, is used as the shared palette instead
	// of deriving one; its index 0 is the transparent slot.
	Palette color.Palette
}

func encodeTruecolorHeader(spec pixel.Spec) ([]byte, error) {
	return truecolorLayout.Encode(header.Values{
		"red_color_mask":      uint64(spec.R.Mask),
		"green_color_mask":    uint64(spec.G.Mask),
		"blue_color_mask":     uint64(spec.B.Mask),
		"alpha_channel_mask":  uint64(spec.A.Mask),
		"red_color_depth":     uint64(spec.R.Depth),
		"green_color_depth":   uint64(spec.G.Depth),
		"blue_color_depth":    uint64(spec.B.Depth),
		"alpha_channel_depth": uint64(spec.A.Depth),
	})
}

func encodeIndexedHeader(numImages int) ([]byte, error) {
	return indexedLayout.Encode(header.Values{
		"number_of_palette_colors": uint64(paletteColors),
		"number_of_images":         uint64(numImages),
		"red_color_depth":          8,
		"green_color_depth":        8,
		"blue_color_depth":         8,
	})
}

// SaveTruecolor writes m as a truecolor container packed under spec.
// The zero Spec selects the 5-6-5 scheme used by shipped archives.
func SaveTruecolor(w io.Writer, m image.Image, spec pixel.Spec) error {
	if spec == (pixel.Spec{}) {
		spec = pixel.RGB565
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	b := m.Bounds()
	width, height := b.Dx(), b.Dy()
	pb := spec.PixelBytes()
	size := uint32(width * height * pb)

	fh, err := encodeTruecolorHeader(spec)
	if err != nil {
		return err
	}
	h := Header{
		InitialSize:    size,
		CompressedSize: size,
		Width:          width,
		Height:         height,
		FormatHeader:   fh,
		ColorDepth:     spec.Depth,
	}
	if err := h.SetFlag(FlagRGB, true); err != nil {
		return err
	}
	hb, err := h.encode()
	if err != nil {
		return err
	}
	if _, err := w.Write(hb); err != nil {
		return err
	}

	// one packed row per step; a row is never split mid-encode
	row := make([]byte, width*pb)
	y := b.Min.Y
	var packErr error
	enc := stream.NewEncoder(func() ([]byte, bool) {
		if y >= b.Max.Y || packErr != nil {
			return nil, false
		}
		for x := 0; x < width; x++ {
			r, g, bl, a := nrgbaAt(m, b.Min.X+x, y)
			raw, err := pixel.Pack(int(r), int(g), int(bl), int(a), spec)
			if err != nil {
				packErr = err
				return nil, false
			}
			spec.Put(row[x*pb:], raw)
		}
		y++
		return row, true
	})
	if _, err := enc.WriteAll(w, writeChunk); err != nil {
		return err
	}
	return packErr
}

// SaveIndexed writes m as an uncompressed indexed container: the
// palette followed by one raw index byte per pixel.
func SaveIndexed(w io.Writer, m *image.Paletted) error {
	b := m.Bounds()
	width, height := b.Dx(), b.Dy()
	size := uint32(width * height)

	// no sub-image descriptors follow, so the count stays zero
	fh, err := encodeIndexedHeader(0)
	if err != nil {
		return err
	}
	h := Header{
		InitialSize:    size,
		CompressedSize: size,
		Width:          width,
		Height:         height,
		FormatHeader:   fh,
		ColorDepth:     8,
	}
	if err := h.SetFlag(FlagIndexed, true); err != nil {
		return err
	}
	hb, err := h.encode()
	if err != nil {
		return err
	}

	if _, err := w.Write(hb); err != nil {
		return err
	}
	if _, err := w.Write(planesFromPalette(m.Palette)); err != nil {
		return err
	}

	// raw indexes advance a pixel at a time
	var px [1]byte
	x, y := 0, 0
	enc := stream.NewEncoder(func() ([]byte, bool) {
		if y >= height {
			return nil, false
		}
		px[0] = m.Pix[y*m.Stride+x]
		if x++; x == width {
			x, y = 0, y+1
		}
		return px[:], true
	})
	_, err = enc.WriteAll(w, writeChunk)
	return err
}

// SaveETRLE writes frames as a compressed indexed container sharing a
// single 256-color palette. Frames are quantized onto the palette with
// index 0 transparent; if any frame carries tile metadata, every frame
// gets a record, missing ones all zero. Sub-image offsets within the
// compressed data block are relative to the start of the block.
func SaveETRLE(w io.Writer, frames []Frame, opts *SaveOptions) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	if opts == nil {
		opts = &SaveOptions{}
	}

	palette, indexed, err := buildIndexedFrames(frames, *opts)
	if err != nil {
		return err
	}

	// compress every frame up front; sizes are needed for the header
	compressed := make([][]byte, len(frames))
	var initialSize, compressedSize int
	for i, f := range frames {
		b := f.Image.Bounds()
		width, height := b.Dx(), b.Dy()
		initialSize += width * height

		pix := indexed[i]
		y := 0
		enc := stream.NewEncoder(func() ([]byte, bool) {
			if y >= height {
				return nil, false
			}
			line := etrle.AppendLine(nil, pix[y*width:(y+1)*width])
			y++
			return line, true
		})
		var buf bytes.Buffer
		if _, err := enc.WriteAll(&buf, writeChunk); err != nil {
			return err
		}
		compressed[i] = buf.Bytes()
		compressedSize += buf.Len()
	}

	descriptors := make([]byte, 0, len(frames)*subImageLayout.Size())
	offset := 0
	var canvasW, canvasH int
	for i, f := range frames {
		b := f.Image.Bounds()
		if canvasW > 0 {
			canvasW++
		}
		canvasW += b.Dx()
		if b.Dy() > canvasH {
			canvasH = b.Dy()
		}
		d, err := subImageLayout.Encode(header.Values{
			"offset":   uint64(offset),
			"length":   uint64(len(compressed[i])),
			"offset_x": uint64(f.OffsetX),
			"offset_y": uint64(f.OffsetY),
			"height":   uint64(b.Dy()),
			"width":    uint64(b.Dx()),
		})
		if err != nil {
			return err
		}
		descriptors = append(descriptors, d...)
		offset += len(compressed[i])
	}

	var aux []byte
	hasAux := false
	for _, f := range frames {
		if f.Aux != nil {
			hasAux = true
			break
		}
	}
	if hasAux {
		for _, f := range frames {
			record := f.Aux
			if record == nil {
				record = &AuxObjectData{}
			}
			rb, err := record.MarshalBinary()
			if err != nil {
				return err
			}
			aux = append(aux, rb...)
		}
	}

	fh, err := encodeIndexedHeader(len(frames))
	if err != nil {
		return err
	}
	h := Header{
		InitialSize:    uint32(initialSize),
		CompressedSize: uint32(compressedSize),
		Width:          canvasW,
		Height:         canvasH,
		FormatHeader:   fh,
		ColorDepth:     8,
		AuxDataSize:    uint32(len(aux)),
	}
	for _, flag := range []string{FlagIndexed, FlagETRLE} {
		if err := h.SetFlag(flag, true); err != nil {
			return err
		}
	}
	if hasAux {
		if err := h.SetFlag(FlagAuxObjectData, true); err != nil {
			return err
		}
	}
	hb, err := h.encode()
	if err != nil {
		return err
	}

	// everything is validated, flush in container order
	for _, b := range [][]byte{hb, planesFromPalette(palette), descriptors} {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	for _, b := range compressed {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	if hasAux {
		if _, err := w.Write(aux); err != nil {
			return err
		}
	}
	return nil
}
