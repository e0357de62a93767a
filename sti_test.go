package stci

import (
	"bytes"
	"image"
	"image/color"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/bodgit/stci/header"
	"github.com/bodgit/stci/pixel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTruecolor(t *testing.T) []byte {
	m := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	m.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	m.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})
	m.SetNRGBA(2, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, SaveTruecolor(&buf, m, pixel.Spec{}))
	return buf.Bytes()
}

func TestSaveTruecolorLayout(t *testing.T) {
	b := testTruecolor(t)

	require.Len(t, b, 64+3*2*2)
	assert.Equal(t, []byte(Magic), b[:4])
	assert.Equal(t, byte(1<<2), b[16]) // RGB flag
	assert.Equal(t, byte(2), b[20])    // height
	assert.Equal(t, byte(3), b[22])    // width
	assert.Equal(t, byte(16), b[44])   // color depth

	// all-red packs to 0xf800 under the default 5-6-5 scheme
	assert.Equal(t, []byte{0x00, 0xf8}, b[64:66])
}

func TestTruecolorRoundTrip(t *testing.T) {
	f, err := Load(bytes.NewReader(testTruecolor(t)))
	require.NoError(t, err)

	require.NotNil(t, f.Truecolor)
	require.Nil(t, f.Indexed)
	assert.Equal(t, pixel.RGB565, f.Truecolor.Spec)

	img := f.Truecolor.Image
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, img.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, img.NRGBAAt(2, 1))
	assert.Equal(t, color.NRGBA{A: 255}, img.NRGBAAt(0, 1)) // opaque scheme
}

func TestRawIndexedRoundTrip(t *testing.T) {
	p := color.Palette{
		color.RGBA{A: 255},
		color.RGBA{R: 255, A: 255},
		color.RGBA{G: 255, A: 255},
	}
	m := image.NewPaletted(image.Rect(0, 0, 4, 3), p)
	m.SetColorIndex(0, 0, 1)
	m.SetColorIndex(3, 2, 2)

	var buf bytes.Buffer
	require.NoError(t, SaveIndexed(&buf, m))

	f, err := Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	require.NotNil(t, f.Indexed)
	on, err := f.Header.Flag(FlagETRLE)
	require.NoError(t, err)
	assert.False(t, on)

	require.Len(t, f.Indexed.SubImages, 1)
	s := f.Indexed.SubImages[0]
	assert.Equal(t, 4, s.Width)
	assert.Equal(t, 3, s.Height)
	assert.Equal(t, m.Pix, s.Pixels)
	assert.Nil(t, s.Aux)

	for i, c := range p {
		assert.Equal(t, c, f.Indexed.Palette[i])
	}
}

func testFrames() []Frame {
	f0 := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	f0.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	f0.SetNRGBA(1, 0, color.NRGBA{})
	f0.SetNRGBA(0, 1, color.NRGBA{G: 255, A: 255})
	f0.SetNRGBA(1, 1, color.NRGBA{B: 255, A: 255})

	f1 := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	yellow := color.NRGBA{R: 255, G: 255, A: 255}
	f1.SetNRGBA(0, 0, color.NRGBA{})
	f1.SetNRGBA(1, 0, yellow)
	f1.SetNRGBA(0, 1, yellow)
	f1.SetNRGBA(1, 1, yellow)

	return []Frame{
		{Image: f0, Aux: &AuxObjectData{
			WallOrientation:   3,
			NumberOfTiles:     2,
			TileLocationIndex: 0x1234,
			CurrentFrame:      1,
			NumberOfFrames:    4,
			AnimatedTile:      true,
			UsesLandZ:         true,
		}},
		{Image: f1, OffsetX: 1, OffsetY: 2},
	}
}

func TestETRLERoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SaveETRLE(&buf, testFrames(), nil))

	f, err := Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.NotNil(t, f.Indexed)

	for _, flag := range []string{FlagIndexed, FlagETRLE, FlagAuxObjectData} {
		on, err := f.Header.Flag(flag)
		require.NoError(t, err)
		assert.True(t, on, flag)
	}

	assert.Equal(t, uint32(8), f.Header.InitialSize)
	assert.Equal(t, uint32(16), f.Header.CompressedSize)

	require.Len(t, f.Indexed.SubImages, 2)
	s0, s1 := f.Indexed.SubImages[0], f.Indexed.SubImages[1]

	// colors index the shared palette in scan order, transparent is 0
	assert.Equal(t, []byte{1, 0, 2, 3}, s0.Pixels)
	assert.Equal(t, []byte{0, 4, 4, 4}, s1.Pixels)
	assert.Len(t, f.Indexed.Palette, 256)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, f.Indexed.Palette[1])
	assert.Equal(t, color.RGBA{R: 255, G: 255, A: 255}, f.Indexed.Palette[4])

	assert.Equal(t, 0, s0.OffsetX)
	assert.Equal(t, 0, s0.OffsetY)
	assert.Equal(t, 1, s1.OffsetX)
	assert.Equal(t, 2, s1.OffsetY)

	require.NotNil(t, s0.Aux)
	assert.Equal(t, testFrames()[0].Aux, s0.Aux)
	require.NotNil(t, s1.Aux)
	assert.Equal(t, &AuxObjectData{}, s1.Aux)
}

func TestETRLECanvas(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SaveETRLE(&buf, testFrames(), nil))

	f, err := Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	// two 2x2 frames side by side with a transparent separator column
	assert.Equal(t, 5, f.Indexed.Width)
	assert.Equal(t, 2, f.Indexed.Height)

	canvas := f.Indexed.Canvas()
	assert.Equal(t, uint8(1), canvas.ColorIndexAt(0, 0))
	assert.Equal(t, uint8(0), canvas.ColorIndexAt(2, 0)) // separator
	assert.Equal(t, uint8(0), canvas.ColorIndexAt(3, 0))
	assert.Equal(t, uint8(4), canvas.ColorIndexAt(4, 1))
}

func TestCanvasSizeOverride(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SaveETRLE(&buf, testFrames(), nil))

	// misreport the canvas size the way some shipped archives do
	b := buf.Bytes()
	b[20], b[22] = 7, 9

	f, err := Load(bytes.NewReader(b))
	require.NoError(t, err)

	assert.Equal(t, 9, f.Header.Width)
	assert.Equal(t, 7, f.Header.Height)
	assert.Equal(t, 5, f.Indexed.Width)
	assert.Equal(t, 2, f.Indexed.Height)
}

func TestSemiTransparency(t *testing.T) {
	m := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	m.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 128})
	frames := []Frame{{Image: m}}

	var buf bytes.Buffer
	err := SaveETRLE(&buf, frames, nil)
	require.Error(t, err)
	te, ok := err.(*TransparencyError)
	require.True(t, ok)
	assert.Equal(t, 0, te.Frame)

	buf.Reset()
	require.NoError(t, SaveETRLE(&buf, frames, &SaveOptions{SemiTransparent: ForceTransparent}))
	f, err := Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, f.Indexed.SubImages[0].Pixels)

	buf.Reset()
	require.NoError(t, SaveETRLE(&buf, frames, &SaveOptions{SemiTransparent: ForceOpaque}))
	f, err = Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, f.Indexed.SubImages[0].Pixels)
}

func TestSaveETRLEQuantizes(t *testing.T) {
	// more distinct colors than one palette can hold exactly
	m := image.NewNRGBA(image.Rect(0, 0, 32, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			m.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 16), B: uint8(x*4 + y), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, SaveETRLE(&buf, []Frame{{Image: m}}, nil))

	f, err := Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, f.Indexed.SubImages, 1)
	assert.Equal(t, 32, f.Indexed.SubImages[0].Width)
	assert.Len(t, f.Indexed.Palette, 256)
}

func TestSaveETRLENoFrames(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, ErrNoFrames, SaveETRLE(&buf, nil, nil))
	assert.Zero(t, buf.Len())
}

func TestLoadWrongMagic(t *testing.T) {
	b := testTruecolor(t)
	b[0] = 'X'

	_, err := Load(bytes.NewReader(b))
	assert.Equal(t, ErrFormat, err)
}

func TestLoadZlib(t *testing.T) {
	b := testTruecolor(t)
	b[16] |= 1 << 4

	_, err := Load(bytes.NewReader(b))
	require.Error(t, err)
	_, ok := err.(*UnsupportedError)
	assert.True(t, ok)
}

func TestLoadContradictoryFlags(t *testing.T) {
	b := testTruecolor(t)
	b[16] |= 1 << 3 // RGB and INDEXED together

	_, err := Load(bytes.NewReader(b))
	require.Error(t, err)
	_, ok := err.(*FormatError)
	assert.True(t, ok)
}

func TestLoadTruncated(t *testing.T) {
	b := testTruecolor(t)

	_, err := Load(bytes.NewReader(b[:63]))
	require.Error(t, err)
	te, ok := err.(*header.TruncatedError)
	require.True(t, ok)
	assert.Equal(t, 64, te.Need)
	assert.Equal(t, 63, te.Have)

	_, err = Load(bytes.NewReader(b[:70]))
	require.Error(t, err)
	_, ok = err.(*header.TruncatedError)
	assert.True(t, ok)
}

func TestHeaderFlagUnknown(t *testing.T) {
	var h Header
	_, err := h.Flag("MISSING")
	require.Error(t, err)
	_, ok := err.(*header.UnknownFlagError)
	assert.True(t, ok)
}

func TestAuxObjectDataBinary(t *testing.T) {
	in := &AuxObjectData{
		WallOrientation:   1,
		NumberOfTiles:     2,
		TileLocationIndex: 0x0304,
		CurrentFrame:      5,
		NumberOfFrames:    6,
		FullTile:          true,
		UsesLandZ:         true,
	}

	b, err := in.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 0x04, 0x03, 0, 0, 0, 5, 6, 0x21, 0, 0, 0, 0, 0, 0}, b)

	out := new(AuxObjectData)
	require.NoError(t, out.UnmarshalBinary(b))
	assert.Equal(t, in, out)
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(bytes.NewReader(testTruecolor(t)))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Width)
	assert.Equal(t, 2, cfg.Height)
	assert.Equal(t, color.NRGBAModel, cfg.ColorModel)

	var buf bytes.Buffer
	require.NoError(t, SaveETRLE(&buf, testFrames(), nil))

	cfg, err = DecodeConfig(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Width)
	assert.Equal(t, 2, cfg.Height)
	_, ok := cfg.ColorModel.(color.Palette)
	assert.True(t, ok)
}

func TestDecode(t *testing.T) {
	m, err := Decode(bytes.NewReader(testTruecolor(t)))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), m.Bounds())
}

func TestExtractDir(t *testing.T) {
	dir, err := ioutil.TempDir("", "stci")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	var buf bytes.Buffer
	require.NoError(t, SaveETRLE(&buf, testFrames(), nil))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "tiles.sti"), buf.Bytes(), 0644))

	e := NewExtractor(log.New(ioutil.Discard, "", 0))
	require.NoError(t, e.ExtractDir(dir))

	for _, name := range []string{"tiles.png", "tiles.0.png", "tiles.1.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}
