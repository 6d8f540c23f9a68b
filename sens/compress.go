package sens

import (
	"bytes"
	"encoding/binary"
	"image"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"

	"go.viam.com/sensreader/rimage"
)

// CompressDepth encodes a depth map as a frame payload.
func CompressDepth(dm *rimage.DepthMap, codec DepthCodec) ([]byte, error) {
	raw := make([]byte, 0, 2*dm.Len())
	for _, s := range dm.Samples() {
		raw = binary.LittleEndian.AppendUint16(raw, s)
	}

	switch codec {
	case DepthRawUShort:
		return raw, nil
	case DepthZlibUShort:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case DepthOcciUShort, DepthUnknown:
		return nil, errors.Wrapf(ErrUnsupportedCodec, "depth compression %s", codec)
	default:
		return nil, errors.Wrapf(ErrUnknownCodec, "depth compression code %d", int32(codec))
	}
}

// CompressColor encodes an image as a frame payload.
func CompressColor(img image.Image, codec ColorCodec) ([]byte, error) {
	var buf bytes.Buffer
	switch codec {
	case ColorRaw:
		return rimage.PackRGB(img), nil
	case ColorPNG:
		if err := rimage.EncodeImage(&buf, img, ".png"); err != nil {
			return nil, err
		}
	case ColorJPEG:
		if err := rimage.EncodeImage(&buf, img, ".jpg"); err != nil {
			return nil, err
		}
	case ColorUnknown:
		return nil, errors.Wrapf(ErrUnsupportedCodec, "color compression %s", codec)
	default:
		return nil, errors.Wrapf(ErrUnknownCodec, "color compression code %d", int32(codec))
	}
	return buf.Bytes(), nil
}
