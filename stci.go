/*
Package stci implements a decoder and encoder for the STCI ("Sir-Tech's
Crazy Image") sprite and tile container format, commonly carried in
files with a .sti extension.

A container is a fixed 64-byte header followed by one of three
payloads: raw 16-bit truecolor pixels packed under arbitrary channel
bit masks, a 256-color palette followed by raw 8-bit palette indexes,
or a palette followed by one or more run-length compressed sub-images,
each with its own canvas position and optionally a fixed-size tile
metadata record. The palette is stored on disk as three consecutive
256-byte planes (all red, then green, then blue) rather than
interleaved triples.

The zlib-flagged variant of the container is not supported and is
rejected on load.
*/
package stci

import "github.com/bodgit/stci/header"

// Magic is the identifier opening every container.
const Magic = "STCI"

const (
	headerSize       = 64
	formatHeaderSize = 20
	paletteColors    = 256

	// writeChunk bounds each streaming encode/decode step
	writeChunk = 16384
)

// Container flag names, addressing bits 0, 2, 3, 4 and 5 of the header
// flag field.
const (
	FlagAuxObjectData = "AUX_OBJECT_DATA"
	FlagRGB           = "RGB"
	FlagIndexed       = "INDEXED"
	FlagZlib          = "ZLIB"
	FlagETRLE         = "ETRLE"
)

// Tile metadata flag names, addressing bits 0 through 5 of the record
// flag field.
const (
	FlagFullTile        = "FULL_TILE"
	FlagAnimatedTile    = "ANIMATED_TILE"
	FlagDynamicTile     = "DYNAMIC_TILE"
	FlagInteractiveTile = "INTERACTIVE_TILE"
	FlagIgnoresHeight   = "IGNORES_HEIGHT"
	FlagUsesLandZ       = "USES_LAND_Z"
)

var headerLayout = header.New(
	header.Field{Name: "file_identifier", Type: header.Bytes, Size: 4},
	header.Field{Name: "initial_size", Type: header.Uint, Size: 4},
	header.Field{Name: "size_after_compression", Type: header.Uint, Size: 4},
	header.Field{Name: "transparent_color", Type: header.Uint, Size: 4},
	header.Field{Name: "flags", Type: header.Uint, Size: 4},
	header.Field{Name: "height", Type: header.Uint, Size: 2},
	header.Field{Name: "width", Type: header.Uint, Size: 2},
	header.Field{Name: "format_specific_header", Type: header.Bytes, Size: formatHeaderSize},
	header.Field{Name: "color_depth", Type: header.Uint, Size: 1},
	header.Field{Type: header.Pad, Size: 3},
	header.Field{Name: "aux_data_size", Type: header.Uint, Size: 4},
	header.Field{Type: header.Pad, Size: 12},
).WithFlags("flags", map[string]uint{
	FlagAuxObjectData: 0,
	FlagRGB:           2,
	FlagIndexed:       3,
	FlagZlib:          4,
	FlagETRLE:         5,
})

var truecolorLayout = header.New(
	header.Field{Name: "red_color_mask", Type: header.Uint, Size: 4},
	header.Field{Name: "green_color_mask", Type: header.Uint, Size: 4},
	header.Field{Name: "blue_color_mask", Type: header.Uint, Size: 4},
	header.Field{Name: "alpha_channel_mask", Type: header.Uint, Size: 4},
	header.Field{Name: "red_color_depth", Type: header.Uint, Size: 1},
	header.Field{Name: "green_color_depth", Type: header.Uint, Size: 1},
	header.Field{Name: "blue_color_depth", Type: header.Uint, Size: 1},
	header.Field{Name: "alpha_channel_depth", Type: header.Uint, Size: 1},
)

var indexedLayout = header.New(
	header.Field{Name: "number_of_palette_colors", Type: header.Uint, Size: 4},
	header.Field{Name: "number_of_images", Type: header.Uint, Size: 2},
	header.Field{Name: "red_color_depth", Type: header.Uint, Size: 1},
	header.Field{Name: "green_color_depth", Type: header.Uint, Size: 1},
	header.Field{Name: "blue_color_depth", Type: header.Uint, Size: 1},
	header.Field{Type: header.Pad, Size: 11},
)

var subImageLayout = header.New(
	header.Field{Name: "offset", Type: header.Uint, Size: 4},
	header.Field{Name: "length", Type: header.Uint, Size: 4},
	header.Field{Name: "offset_x", Type: header.Uint, Size: 2},
	header.Field{Name: "offset_y", Type: header.Uint, Size: 2},
	header.Field{Name: "height", Type: header.Uint, Size: 2},
	header.Field{Name: "width", Type: header.Uint, Size: 2},
)

var auxLayout = header.New(
	header.Field{Name: "wall_orientation", Type: header.Uint, Size: 1},
	header.Field{Name: "number_of_tiles", Type: header.Uint, Size: 1},
	header.Field{Name: "tile_location_index", Type: header.Uint, Size: 2},
	header.Field{Type: header.Pad, Size: 3},
	header.Field{Name: "current_frame", Type: header.Uint, Size: 1},
	header.Field{Name: "number_of_frames", Type: header.Uint, Size: 1},
	header.Field{Name: "flags", Type: header.Uint, Size: 1},
	header.Field{Type: header.Pad, Size: 6},
).WithFlags("flags", map[string]uint{
	FlagFullTile:        0,
	FlagAnimatedTile:    1,
	FlagDynamicTile:     2,
	FlagInteractiveTile: 3,
	FlagIgnoresHeight:   4,
	FlagUsesLandZ:       5,
})

// Header is the decoded outer container header.
type Header struct {
	InitialSize      uint32
	CompressedSize   uint32
	TransparentColor uint32
	Flags            uint32
	Width            int
	Height           int
	FormatHeader     []byte
	ColorDepth       uint8
	AuxDataSize      uint32
}

func decodeHeader(b []byte) (*Header, error) {
	v, err := headerLayout.Decode(b)
	if err != nil {
		return nil, err
	}
	if string(v.Bytes("file_identifier")) != Magic {
		return nil, ErrFormat
	}
	return &Header{
		InitialSize:      uint32(v.Uint("initial_size")),
		CompressedSize:   uint32(v.Uint("size_after_compression")),
		TransparentColor: uint32(v.Uint("transparent_color")),
		Flags:            uint32(v.Uint("flags")),
		Width:            int(v.Uint("width")),
		Height:           int(v.Uint("height")),
		FormatHeader:     v.Bytes("format_specific_header"),
		ColorDepth:       uint8(v.Uint("color_depth")),
		AuxDataSize:      uint32(v.Uint("aux_data_size")),
	}, nil
}

func (h *Header) encode() ([]byte, error) {
	return headerLayout.Encode(header.Values{
		"file_identifier":        []byte(Magic),
		"initial_size":           uint64(h.InitialSize),
		"size_after_compression": uint64(h.CompressedSize),
		"transparent_color":      uint64(h.TransparentColor),
		"flags":                  uint64(h.Flags),
		"height":                 uint64(h.Height),
		"width":                  uint64(h.Width),
		"format_specific_header": h.FormatHeader,
		"color_depth":            uint64(h.ColorDepth),
		"aux_data_size":          uint64(h.AuxDataSize),
	})
}

// Flag reports whether the named container flag is set. It fails with
// *header.UnknownFlagError for a name that is not one of the Flag
// constants.
func (h *Header) Flag(name string) (bool, error) {
	return headerLayout.Flag(header.Values{"flags": uint64(h.Flags)}, "flags", name)
}

// SetFlag sets or clears the named container flag.
func (h *Header) SetFlag(name string, on bool) error {
	v := header.Values{"flags": uint64(h.Flags)}
	if err := headerLayout.SetFlag(v, "flags", name, on); err != nil {
		return err
	}
	h.Flags = uint32(v.Uint("flags"))
	return nil
}

func (h *Header) flag(name string) bool {
	on, _ := h.Flag(name)
	return on
}

// AuxObjectData is the per-sub-image tile metadata record. It
// implements the encoding.BinaryMarshaler and
// encoding.BinaryUnmarshaler interfaces for its fixed 16-byte form.
type AuxObjectData struct {
	WallOrientation   uint8
	NumberOfTiles     uint8
	TileLocationIndex uint16
	CurrentFrame      uint8
	NumberOfFrames    uint8

	FullTile        bool
	AnimatedTile    bool
	DynamicTile     bool
	InteractiveTile bool
	IgnoresHeight   bool
	UsesLandZ       bool
}

// MarshalBinary encodes the record into its fixed 16-byte form.
func (a *AuxObjectData) MarshalBinary() ([]byte, error) {
	v := header.Values{
		"wall_orientation":    uint64(a.WallOrientation),
		"number_of_tiles":     uint64(a.NumberOfTiles),
		"tile_location_index": uint64(a.TileLocationIndex),
		"current_frame":       uint64(a.CurrentFrame),
		"number_of_frames":    uint64(a.NumberOfFrames),
	}
	for name, on := range map[string]bool{
		FlagFullTile:        a.FullTile,
		FlagAnimatedTile:    a.AnimatedTile,
		FlagDynamicTile:     a.DynamicTile,
		FlagInteractiveTile: a.InteractiveTile,
		FlagIgnoresHeight:   a.IgnoresHeight,
		FlagUsesLandZ:       a.UsesLandZ,
	} {
		if err := auxLayout.SetFlag(v, "flags", name, on); err != nil {
			return nil, err
		}
	}
	return auxLayout.Encode(v)
}

// UnmarshalBinary decodes the record from its fixed 16-byte form.
func (a *AuxObjectData) UnmarshalBinary(b []byte) error {
	v, err := auxLayout.Decode(b)
	if err != nil {
		return err
	}
	a.WallOrientation = uint8(v.Uint("wall_orientation"))
	a.NumberOfTiles = uint8(v.Uint("number_of_tiles"))
	a.TileLocationIndex = uint16(v.Uint("tile_location_index"))
	a.CurrentFrame = uint8(v.Uint("current_frame"))
	a.NumberOfFrames = uint8(v.Uint("number_of_frames"))
	for name, p := range map[string]*bool{
		FlagFullTile:        &a.FullTile,
		FlagAnimatedTile:    &a.AnimatedTile,
		FlagDynamicTile:     &a.DynamicTile,
		FlagInteractiveTile: &a.InteractiveTile,
		FlagIgnoresHeight:   &a.IgnoresHeight,
		FlagUsesLandZ:       &a.UsesLandZ,
	} {
		on, err := auxLayout.Flag(v, "flags", name)
		if err != nil {
			return err
		}
		*p = on
	}
	return nil
}
