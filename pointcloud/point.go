package pointcloud

import (
	"image/color"

	"github.com/golang/geo/r3"
)

// NewVector convenience method for creating a vector.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// Data describes data associated single point within a PointCloud.
type Data interface {
	// HasColor returns whether or not this point is colored.
	HasColor() bool

	// RGB255 returns, if colored, the RGB components of the color.
	RGB255() (uint8, uint8, uint8)

	// Color returns the native color of the point. A zero alpha marks a point whose color
	// could not be resolved.
	Color() color.NRGBA

	// SetColor sets the given color on the point.
	SetColor(c color.NRGBA) Data
}

type basicData struct {
	hasColor bool
	c        color.NRGBA
}

// NewBasicData returns a point that is solely positionally based.
func NewBasicData() Data {
	return &basicData{}
}

// NewColoredData returns a point that has both position and color.
func NewColoredData(c color.NRGBA) Data {
	return &basicData{c: c, hasColor: true}
}

func (bp *basicData) SetColor(c color.NRGBA) Data {
	bp.c = c
	bp.hasColor = true
	return bp
}

func (bp *basicData) HasColor() bool {
	return bp.hasColor
}

func (bp *basicData) RGB255() (uint8, uint8, uint8) {
	return bp.c.R, bp.c.G, bp.c.B
}

func (bp *basicData) Color() color.NRGBA {
	return bp.c
}

// NormalizedColor returns the color channels of d scaled to [0, 1] in r, g, b, a order.
// Uncolored or nil data is fully transparent black.
func NormalizedColor(d Data) [4]float64 {
	if d == nil || !d.HasColor() {
		return [4]float64{}
	}
	c := d.Color()
	return [4]float64{
		float64(c.R) / 255.,
		float64(c.G) / 255.,
		float64(c.B) / 255.,
		float64(c.A) / 255.,
	}
}
