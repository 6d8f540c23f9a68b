package sens

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/sensreader/rimage"
	"go.viam.com/sensreader/spatialmath"
)

// SyntheticConfig describes a generated container.
type SyntheticConfig struct {
	Width      int
	Height     int
	NumFrames  int
	Color      ColorCodec
	Depth      DepthCodec
	DepthShift float32
}

// Validate checks that the config can be rendered.
func (conf *SyntheticConfig) Validate(path string) error {
	if conf.Width <= 0 || conf.Height <= 0 {
		return errors.Errorf("%s: resolution must be positive, got %dx%d", path, conf.Width, conf.Height)
	}
	if conf.NumFrames < 0 {
		return errors.Errorf("%s: cannot have %d frames", path, conf.NumFrames)
	}
	if conf.DepthShift <= 0 {
		return errors.Errorf("%s: depth shift must be positive, got %v", path, conf.DepthShift)
	}
	return nil
}

// NewSyntheticSensorData renders a container of a slanted plane seen by a pinhole camera
// that slides along +x by 25cm per frame. Every third frame has a lost pose. Color and depth
// share one sensor, so the extrinsics are the identity.
func NewSyntheticSensorData(conf SyntheticConfig) (*SensorData, error) {
	if err := conf.Validate("synthetic"); err != nil {
		return nil, err
	}
	w, h := float64(conf.Width), float64(conf.Height)
	intrinsics := spatialmath.Matrix4{
		w, 0, w / 2, 0,
		0, w, h / 2, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	sd := &SensorData{
		SensorCalibration: SensorCalibration{
			SensorName:       "synthetic",
			IntrinsicColor:   intrinsics,
			ExtrinsicColor:   spatialmath.Identity4(),
			IntrinsicDepth:   intrinsics,
			ExtrinsicDepth:   spatialmath.Identity4(),
			ColorCompression: conf.Color,
			DepthCompression: conf.Depth,
			ColorWidth:       uint32(conf.Width),
			ColorHeight:      uint32(conf.Height),
			DepthWidth:       uint32(conf.Width),
			DepthHeight:      uint32(conf.Height),
			DepthShift:       conf.DepthShift,
		},
	}

	img := gradientImage(conf.Width, conf.Height)
	colorData, err := CompressColor(img, conf.Color)
	if err != nil {
		return nil, err
	}
	const frameMicros = 33333
	for i := 0; i < conf.NumFrames; i++ {
		depthData, err := CompressDepth(slantedPlane(conf.Width, conf.Height, conf.DepthShift, i), conf.Depth)
		if err != nil {
			return nil, err
		}
		pose := spatialmath.Identity4()
		pose[3] = 0.25 * float64(i)
		if i%3 == 2 {
			pose[0] = math.Inf(-1)
		}
		sd.Frames = append(sd.Frames, &Frame{
			CameraToWorld:  pose,
			TimestampColor: uint64(i * frameMicros),
			TimestampDepth: uint64(i*frameMicros + 100),
			ColorData:      colorData,
			DepthData:      depthData,
		})
	}
	return sd, nil
}

func gradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	totalDist := math.Hypot(float64(width), float64(height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dist := math.Hypot(float64(x), float64(y)) / totalDist
			img.SetNRGBA(x, y, color.NRGBA{uint8(255 - (255 * dist)), uint8(255 - (255 * dist)), uint8(255 * dist), 255})
		}
	}
	return img
}

// slantedPlane is a plane receding from 1m at the left edge to 2m at the right edge, with
// a hole punched in the top left pixel.
func slantedPlane(width, height int, depthShift float32, frame int) *rimage.DepthMap {
	dm := rimage.NewEmptyDepthMap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			meters := 1 + float64(x)/float64(width) + 0.01*float64(frame)
			dm.Set(x, y, rimage.Depth(math.Min(math.Round(meters*float64(depthShift)), float64(rimage.MaxDepth))))
		}
	}
	dm.Set(0, 0, 0)
	return dm
}
