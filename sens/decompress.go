package sens

import (
	"bytes"
	"encoding/binary"
	"image"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/sensreader/rimage"
)

// payloadSize returns width*height*channels, or ErrSizeMismatch when the declared
// dimensions are negative or their product does not fit in an int.
func payloadSize(width, height, channels int) (int, error) {
	if width < 0 || height < 0 || (width != 0 && height > math.MaxInt/channels/width) {
		return 0, errors.Wrapf(ErrSizeMismatch, "cannot hold a %dx%d image", width, height)
	}
	return width * height * channels, nil
}

// DecompressDepth decodes a depth payload into a width x height map of raw samples.
func DecompressDepth(payload []byte, codec DepthCodec, width, height int) (*rimage.DepthMap, error) {
	expected, err := payloadSize(width, height, 2)
	if err != nil {
		return nil, err
	}
	var raw []byte
	switch codec {
	case DepthRawUShort:
		raw = payload
	case DepthZlibUShort:
		var zr io.ReadCloser
		zr, err = zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, errors.Wrap(err, "cannot open zlib depth payload")
		}
		defer utils.UncheckedErrorFunc(zr.Close)
		// one byte past the expected size is enough to detect an oversized payload
		raw, err = io.ReadAll(io.LimitReader(zr, int64(expected)+1))
		if err != nil {
			return nil, errors.Wrap(err, "cannot inflate depth payload")
		}
	case DepthOcciUShort, DepthUnknown:
		return nil, errors.Wrapf(ErrUnsupportedCodec, "depth compression %s", codec)
	default:
		return nil, errors.Wrapf(ErrUnknownCodec, "depth compression code %d", int32(codec))
	}

	if len(raw) != expected {
		return nil, errors.Wrapf(ErrSizeMismatch, "depth payload has %d bytes, expected %d for %dx%d",
			len(raw), expected, width, height)
	}
	dm := rimage.NewEmptyDepthMap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := 2 * (y*width + x)
			dm.Set(x, y, rimage.Depth(binary.LittleEndian.Uint16(raw[i:])))
		}
	}
	return dm, nil
}

// DecompressColor decodes a color payload into a width x height image.
func DecompressColor(payload []byte, codec ColorCodec, width, height int) (*image.NRGBA, error) {
	switch codec {
	case ColorRaw:
		expected, err := payloadSize(width, height, 3)
		if err != nil {
			return nil, err
		}
		if len(payload) != expected {
			return nil, errors.Wrapf(ErrSizeMismatch, "color payload has %d bytes, expected %d for %dx%d",
				len(payload), expected, width, height)
		}
		return rimage.NewNRGBAFromRGB(payload, width, height)
	case ColorPNG, ColorJPEG:
		img, err := rimage.DecodeImage(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "color compression %s", codec)
		}
		if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
			return nil, errors.Wrapf(ErrSizeMismatch, "decoded color image is %dx%d, expected %dx%d",
				b.Dx(), b.Dy(), width, height)
		}
		return rimage.ToNRGBA(img), nil
	case ColorUnknown:
		return nil, errors.Wrapf(ErrUnsupportedCodec, "color compression %s", codec)
	default:
		return nil, errors.Wrapf(ErrUnknownCodec, "color compression code %d", int32(codec))
	}
}
