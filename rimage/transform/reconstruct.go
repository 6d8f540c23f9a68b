// Package transform back-projects depth frames into colored world-space point clouds.
package transform

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/sensreader/pointcloud"
	"go.viam.com/sensreader/rimage"
	"go.viam.com/sensreader/sens"
	"go.viam.com/sensreader/spatialmath"
)

// ErrSingularIntrinsics is returned when the depth intrinsic matrix cannot be inverted.
var ErrSingularIntrinsics = errors.New("depth intrinsics are singular")

// Options tune a reconstruction.
type Options struct {
	// Normalize re-centers the cloud on its centroid and scales it into the unit sphere.
	Normalize bool
}

// Reconstructor turns frames of one container into point clouds. It is read-only after
// construction and safe for concurrent use.
type Reconstructor struct {
	calib        *sens.SensorCalibration
	depthInverse spatialmath.Matrix4
}

// NewReconstructor inverts the calibration's depth intrinsics.
func NewReconstructor(calib *sens.SensorCalibration) (*Reconstructor, error) {
	inv, err := calib.IntrinsicDepth.Inverse()
	if err != nil {
		return nil, errors.Wrapf(ErrSingularIntrinsics, "%v", err)
	}
	return &Reconstructor{
		calib:        calib,
		depthInverse: inv,
	}, nil
}

// ReconstructFrame decodes a frame and reconstructs its point cloud.
func (r *Reconstructor) ReconstructFrame(f *sens.Frame, opts Options) (pointcloud.PointCloud, error) {
	dm, err := f.DecompressDepth(r.calib)
	if err != nil {
		return nil, err
	}
	img, err := f.DecompressColor(r.calib)
	if err != nil {
		return nil, err
	}
	return r.Reconstruct(f.CameraToWorld, dm, img, opts)
}

// Reconstruct emits one point per nonzero depth sample, in raster order. A pixel at depth d
// meters is back-projected as inverse(intrinsic_depth)·(x·d, y·d, d, 0) and carried to world
// space by pose. A lost pose is replaced by the identity. Each point takes the color of the
// pixel it reprojects onto, or transparent black when that pixel is outside img.
func (r *Reconstructor) Reconstruct(
	pose spatialmath.Matrix4,
	dm *rimage.DepthMap,
	img *image.NRGBA,
	opts Options,
) (pointcloud.PointCloud, error) {
	if dm == nil {
		return nil, errors.New("depth map is nil")
	}
	if img == nil {
		return nil, errors.New("color image is nil")
	}
	if pose.IsDegeneratePose() {
		pose = spatialmath.Identity4()
	}
	shift := float64(r.calib.DepthShift)
	bounds := img.Bounds()

	pc := pointcloud.NewWithPrealloc(dm.Len())
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			raw := dm.GetDepth(x, y)
			if raw == 0 {
				continue
			}
			d := float64(raw) / shift
			cam := r.depthInverse.MulVec([4]float64{float64(x) * d, float64(y) * d, d, 0})
			world := pose.MulVec(cam)

			var c color.NRGBA
			if u, v, ok := r.colorPixel(cam, bounds); ok {
				c = img.NRGBAAt(u, v)
				c.A = 255
			}
			if err := pc.Set(pointcloud.NewVector(world[0], world[1], world[2]), pointcloud.NewColoredData(c)); err != nil {
				return nil, err
			}
		}
	}

	if opts.Normalize {
		return pointcloud.Normalize(pc), nil
	}
	return pc, nil
}

// colorPixel reprojects a depth camera point into the color image.
func (r *Reconstructor) colorPixel(cam [4]float64, bounds image.Rectangle) (int, int, bool) {
	cc := r.calib.IntrinsicColor.MulVec(r.calib.ExtrinsicDepth.MulVec(cam))
	u := math.RoundToEven(cc[0] / cc[2])
	v := math.RoundToEven(cc[1] / cc[2])
	// NaN fails both comparisons
	if !(u >= 0 && u < float64(bounds.Dx()) && v >= 0 && v < float64(bounds.Dy())) {
		return 0, 0, false
	}
	return int(u) + bounds.Min.X, int(v) + bounds.Min.Y, true
}
