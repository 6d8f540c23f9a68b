package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/montanaflynn/stats"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Depth is a raw 16-bit depth sample as produced by the sensor. Zero means no reading.
type Depth uint16

// MaxDepth is the largest representable raw depth sample.
const MaxDepth = Depth(65535)

// DepthMap is a row-major grid of raw depth samples.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns a zeroed depth map of the given size.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// NewDepthMapFromSamples wraps row-major samples. The slice is copied.
func NewDepthMapFromSamples(width, height int, samples []uint16) (*DepthMap, error) {
	if width < 0 || height < 0 || (width != 0 && height > math.MaxInt/width) || len(samples) != width*height {
		return nil, errors.Errorf("have %d depth samples for a %dx%d map", len(samples), width, height)
	}
	dm := NewEmptyDepthMap(width, height)
	for i, s := range samples {
		dm.data[i] = Depth(s)
	}
	return dm, nil
}

// Width returns the horizontal size of the map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical size of the map.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle covering the map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// ColorModel reports 16-bit grayscale so that a DepthMap can be used as an image.Image.
func (dm *DepthMap) ColorModel() color.Model {
	return color.Gray16Model
}

// At returns the sample at (x, y) as a Gray16 color.
func (dm *DepthMap) At(x, y int) color.Color {
	if !(image.Point{x, y}).In(dm.Bounds()) {
		return color.Gray16{}
	}
	return color.Gray16{Y: uint16(dm.GetDepth(x, y))}
}

// GetDepth returns the sample at (x, y).
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[y*dm.width+x]
}

// Set stores a sample at (x, y).
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[y*dm.width+x] = val
}

// Samples returns a copy of the raw samples in raster order.
func (dm *DepthMap) Samples() []uint16 {
	out := make([]uint16, len(dm.data))
	for i, d := range dm.data {
		out[i] = uint16(d)
	}
	return out
}

// Len is the number of samples, width*height.
func (dm *DepthMap) Len() int {
	return len(dm.data)
}

// MinMax returns the smallest and largest non-zero depth. Both are zero if the map is empty.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	min, max := MaxDepth, Depth(0)
	for _, z := range dm.data {
		if z == 0 {
			continue
		}
		if z < min {
			min = z
		}
		if z > max {
			max = z
		}
	}
	if max == 0 {
		return 0, 0
	}
	return min, max
}

// DepthStats summarizes the non-zero samples of a depth map, in raw units.
type DepthStats struct {
	Valid  int
	Mean   float64
	Median float64
	StdDev float64
}

// Stats computes DepthStats. A map with no valid samples has zero stats.
func (dm *DepthMap) Stats() (DepthStats, error) {
	valid := make(stats.Float64Data, 0, len(dm.data))
	for _, z := range dm.data {
		if z != 0 {
			valid = append(valid, float64(z))
		}
	}
	if len(valid) == 0 {
		return DepthStats{}, nil
	}
	mean, err := valid.Mean()
	if err != nil {
		return DepthStats{}, err
	}
	median, err := valid.Median()
	if err != nil {
		return DepthStats{}, err
	}
	sd, err := valid.StandardDeviation()
	if err != nil {
		return DepthStats{}, err
	}
	return DepthStats{Valid: len(valid), Mean: mean, Median: median, StdDev: sd}, nil
}

// ToGray16 copies the map into a 16-bit grayscale image.
func (dm *DepthMap) ToGray16() *image.Gray16 {
	img := image.NewGray16(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(dm.GetDepth(x, y))})
		}
	}
	return img
}

// ConvertImageToDepthMap reads the gray level of every pixel of img as a raw depth sample.
func ConvertImageToDepthMap(img image.Image) (*DepthMap, error) {
	if img == nil {
		return nil, errors.New("cannot convert nil image to depth map")
	}
	if dm, ok := img.(*DepthMap); ok {
		return dm, nil
	}
	bounds := img.Bounds()
	dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			dm.Set(x, y, Depth(g.Y))
		}
	}
	return dm, nil
}

// Resize returns a nearest-neighbor resampled copy, so no new depth values are invented.
func (dm *DepthMap) Resize(width, height int) *DepthMap {
	if width == dm.width && height == dm.height {
		out := NewEmptyDepthMap(width, height)
		copy(out.data, dm.data)
		return out
	}
	resized := resize.Resize(uint(width), uint(height), dm.ToGray16(), resize.NearestNeighbor)
	out, err := ConvertImageToDepthMap(resized)
	if err != nil {
		// resize never returns nil for a non-nil input
		panic(err)
	}
	return out
}

// ToPrettyPicture colors the depth by hue, clamped to [hardMin, hardMax]. Empty pixels stay black.
func (dm *DepthMap) ToPrettyPicture(hardMin, hardMax Depth) image.Image {
	min, max := dm.MinMax()
	if min < hardMin {
		min = hardMin
	}
	if max > hardMax {
		max = hardMax
	}

	img := image.NewNRGBA(dm.Bounds())
	span := float64(max) - float64(min)

	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			z := dm.GetDepth(x, y)
			if z == 0 {
				img.SetNRGBA(x, y, color.NRGBA{A: 255})
				continue
			}
			if z < min {
				z = min
			}
			if z > max {
				z = max
			}

			ratio := 0.0
			if span > 0 {
				ratio = float64(z-min) / span
			}
			hue := 30 + (200.0 * ratio)
			r, g, b := colorful.Hsv(hue, 1.0, 1.0).RGB255()
			img.SetNRGBA(x, y, color.NRGBA{r, g, b, 255})
		}
	}

	return img
}
