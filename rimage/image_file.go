package rimage

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/xfmoulet/qoi"
	"go.uber.org/multierr"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ImageExtensions lists the file extensions EncodeImage can write.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp", ".ppm", ".qoi"}

// DepthExtensions lists the extensions whose encoders keep 16-bit gray samples intact.
var DepthExtensions = []string{".png", ".tif", ".tiff"}

// ParseImageExt lower cases ext, adds a leading dot if missing and checks it against
// allowed. The empty string returns def.
func ParseImageExt(ext, def string, allowed []string) (string, error) {
	if ext == "" {
		return def, nil
	}
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if !lo.Contains(allowed, ext) {
		return "", errors.Errorf("image extension %q is not one of %s", ext, strings.Join(allowed, ", "))
	}
	return ext, nil
}

// DecodeImage decodes PNG, JPEG, TIFF, BMP, PPM or QOI bytes.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode image")
	}
	return img, nil
}

// NewNRGBAFromRGB builds an image from tightly packed 8-bit RGB triples in raster order.
func NewNRGBAFromRGB(packed []byte, width, height int) (*image.NRGBA, error) {
	if len(packed) != 3*width*height {
		return nil, errors.Errorf("have %d bytes of RGB for a %dx%d image", len(packed), width, height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < len(packed); i, j = i+3, j+4 {
		img.Pix[j] = packed[i]
		img.Pix[j+1] = packed[i+1]
		img.Pix[j+2] = packed[i+2]
		img.Pix[j+3] = 255
	}
	return img, nil
}

// PackRGB flattens img into 8-bit RGB triples in raster order, dropping alpha.
func PackRGB(img image.Image) []byte {
	nrgba := ToNRGBA(img)
	bounds := nrgba.Bounds()
	out := make([]byte, 0, 3*bounds.Dx()*bounds.Dy())
	for y := 0; y < bounds.Dy(); y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+4*bounds.Dx()]
		for x := 0; x < len(row); x += 4 {
			out = append(out, row[x], row[x+1], row[x+2])
		}
	}
	return out
}

// ToNRGBA returns img as an NRGBA image anchored at the origin, copying only when needed.
func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Bounds().Min == (image.Point{}) {
		return nrgba
	}
	return imaging.Clone(img)
}

// ResizeColor resamples img to width x height using nearest neighbor.
func ResizeColor(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, imaging.NearestNeighbor)
}

// EncodeImage writes img in the format named by ext (".png", ".jpg", ".jpeg", ".tif",
// ".tiff", ".bmp", ".ppm" or ".qoi").
func EncodeImage(out io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(out, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(out, img, &jpeg.Options{Quality: jpeg.DefaultQuality})
	case ".tif", ".tiff":
		return tiff.Encode(out, img, &tiff.Options{Compression: tiff.Deflate})
	case ".bmp":
		return bmp.Encode(out, img)
	case ".ppm":
		return ppm.Encode(out, toRGBA(img))
	case ".qoi":
		return qoi.Encode(out, img)
	default:
		return errors.Errorf("do not know how to encode image with extension %q", ext)
	}
}

// toRGBA returns img as *image.RGBA, which is the only layout the PPM encoder accepts.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}

// WriteImageToFile writes img to fn, choosing the encoder by the file extension.
func WriteImageToFile(fn string, img image.Image) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	return EncodeImage(f, img, filepath.Ext(fn))
}

// ReadImageFromFile decodes the image at fn with any decoder DecodeImage knows.
func ReadImageFromFile(fn string) (image.Image, error) {
	//nolint:gosec
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	return DecodeImage(data)
}
