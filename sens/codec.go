package sens

import (
	"github.com/pkg/errors"
)

// ColorCodec identifies how a frame's color payload is compressed.
type ColorCodec int32

// Color codecs as stored in the container header.
const (
	ColorUnknown ColorCodec = -1
	ColorRaw     ColorCodec = 0
	ColorPNG     ColorCodec = 1
	ColorJPEG    ColorCodec = 2
)

// DepthCodec identifies how a frame's depth payload is compressed.
type DepthCodec int32

// Depth codecs as stored in the container header.
const (
	DepthUnknown    DepthCodec = -1
	DepthRawUShort  DepthCodec = 0
	DepthZlibUShort DepthCodec = 1
	DepthOcciUShort DepthCodec = 2
)

var (
	colorCodecNames = map[ColorCodec]string{
		ColorUnknown: "unknown",
		ColorRaw:     "raw",
		ColorPNG:     "png",
		ColorJPEG:    "jpeg",
	}
	depthCodecNames = map[DepthCodec]string{
		DepthUnknown:    "unknown",
		DepthRawUShort:  "raw_ushort",
		DepthZlibUShort: "zlib_ushort",
		DepthOcciUShort: "occi_ushort",
	}
)

// ColorCodecFromCode resolves a header code, failing with ErrUnknownCodec for codes outside the table.
func ColorCodecFromCode(code int32) (ColorCodec, error) {
	c := ColorCodec(code)
	if _, ok := colorCodecNames[c]; !ok {
		return ColorUnknown, errors.Wrapf(ErrUnknownCodec, "color compression code %d", code)
	}
	return c, nil
}

// DepthCodecFromCode resolves a header code, failing with ErrUnknownCodec for codes outside the table.
func DepthCodecFromCode(code int32) (DepthCodec, error) {
	c := DepthCodec(code)
	if _, ok := depthCodecNames[c]; !ok {
		return DepthUnknown, errors.Wrapf(ErrUnknownCodec, "depth compression code %d", code)
	}
	return c, nil
}

// ParseColorCodec looks a color codec up by name.
func ParseColorCodec(name string) (ColorCodec, error) {
	for c, n := range colorCodecNames {
		if n == name {
			return c, nil
		}
	}
	return ColorUnknown, errors.Wrapf(ErrUnknownCodec, "color compression %q", name)
}

// ParseDepthCodec looks a depth codec up by name.
func ParseDepthCodec(name string) (DepthCodec, error) {
	for c, n := range depthCodecNames {
		if n == name {
			return c, nil
		}
	}
	return DepthUnknown, errors.Wrapf(ErrUnknownCodec, "depth compression %q", name)
}

func (c ColorCodec) String() string {
	if n, ok := colorCodecNames[c]; ok {
		return n
	}
	return "invalid"
}

func (c DepthCodec) String() string {
	if n, ok := depthCodecNames[c]; ok {
		return n
	}
	return "invalid"
}
