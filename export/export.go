// Package export writes the contents of a sensor stream container to disk: depth and color
// images, camera poses, calibration matrices and reconstructed point clouds.
package export

import (
	"context"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/sensreader/logging"
	"go.viam.com/sensreader/pointcloud"
	"go.viam.com/sensreader/rimage"
	"go.viam.com/sensreader/rimage/transform"
	"go.viam.com/sensreader/sens"
)

const (
	defaultDepthExt = ".png"
	defaultColorExt = ".jpg"
)

// Options tune an export.
type Options struct {
	// FrameSkip exports every FrameSkip-th frame starting at frame 0. Zero means every frame.
	FrameSkip int
	// Width and Height resize exported images with nearest neighbor sampling. Zero keeps
	// the stored resolution.
	Width  int
	Height int
	// DepthExt is the depth image file extension, one of rimage.DepthExtensions.
	// Empty means ".png".
	DepthExt string
	// ColorExt is the color image file extension, one of rimage.ImageExtensions.
	// Empty means ".jpg".
	ColorExt string
	// Format is the point cloud file format.
	Format pointcloud.Format
	// Normalize fits each point cloud into the unit sphere around its centroid.
	Normalize bool
	// HalfPrecision rounds point cloud values to float16 before writing.
	HalfPrecision bool
	// Workers bounds how many frames are processed at once. Zero means one per CPU.
	Workers int
}

// Validate checks the options, reporting the first invalid field.
func (o *Options) Validate() error {
	if o.FrameSkip < 0 {
		return errors.Errorf("frame skip must not be negative, got %d", o.FrameSkip)
	}
	if o.Width < 0 || o.Height < 0 || (o.Width == 0) != (o.Height == 0) {
		return errors.Errorf("image size must set both width and height, got %dx%d", o.Width, o.Height)
	}
	if o.Workers < 0 {
		return errors.Errorf("workers must not be negative, got %d", o.Workers)
	}
	if o.Format != "" {
		if _, err := pointcloud.ParseFormat(string(o.Format)); err != nil {
			return err
		}
	}
	if _, err := rimage.ParseImageExt(o.DepthExt, defaultDepthExt, rimage.DepthExtensions); err != nil {
		return errors.Wrap(err, "depth images")
	}
	if _, err := rimage.ParseImageExt(o.ColorExt, defaultColorExt, rimage.ImageExtensions); err != nil {
		return errors.Wrap(err, "color images")
	}
	return nil
}

func (o *Options) frameSkip() int {
	if o.FrameSkip <= 0 {
		return 1
	}
	return o.FrameSkip
}

func (o *Options) workers() int {
	if o.Workers <= 0 {
		return runtime.NumCPU()
	}
	return o.Workers
}

// Result lists which frames an export wrote and which failed.
type Result struct {
	Kind string

	mu      sync.Mutex
	written []int
	failed  map[int]error
}

func newResult(kind string) *Result {
	return &Result{Kind: kind, failed: map[int]error{}}
}

func (r *Result) succeed(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written = append(r.written, i)
}

func (r *Result) fail(i int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[i] = err
}

// Written returns the exported frame indices in ascending order.
func (r *Result) Written() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]int(nil), r.written...)
	sort.Ints(out)
	return out
}

// Failed returns the indices of frames that could not be exported in ascending order.
func (r *Result) Failed() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := lo.Keys(r.failed)
	sort.Ints(out)
	return out
}

// FrameErr returns why frame i failed, if it did.
func (r *Result) FrameErr(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed[i]
}

// Err combines every frame failure, in frame order.
func (r *Result) Err() error {
	var errs error
	for _, i := range r.Failed() {
		errs = multierr.Append(errs, errors.Wrapf(r.FrameErr(i), "%s frame %d", r.Kind, i))
	}
	return errs
}

// Exporter writes one container's contents. Frames are decoded on demand, so an Exporter
// holds no more than Workers decoded frames at once.
type Exporter struct {
	sd     *sens.SensorData
	opts   Options
	logger logging.Logger
}

// NewExporter returns an Exporter for sd.
func NewExporter(sd *sens.SensorData, opts Options, logger logging.Logger) (*Exporter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	// already validated
	opts.Format, _ = pointcloud.ParseFormat(string(opts.Format))
	opts.DepthExt, _ = rimage.ParseImageExt(opts.DepthExt, defaultDepthExt, rimage.DepthExtensions)
	opts.ColorExt, _ = rimage.ParseImageExt(opts.ColorExt, defaultColorExt, rimage.ImageExtensions)
	return &Exporter{sd: sd, opts: opts, logger: logger}, nil
}

// FrameIndices returns the frames selected by a stride of skip over n frames.
func FrameIndices(n, skip int) []int {
	if skip <= 0 {
		skip = 1
	}
	return lo.RangeWithSteps(0, n, skip)
}

// forEachFrame runs fn over the selected frames on a bounded pool. A failing frame is
// recorded and never stops its siblings; only ctx cancellation ends the export early.
func (e *Exporter) forEachFrame(
	ctx context.Context,
	kind, dir string,
	fn func(i int, f *sens.Frame) error,
) (*Result, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	indices := FrameIndices(e.sd.NumFrames(), e.opts.frameSkip())
	e.logger.Infow("exporting", "kind", kind, "frames", len(indices), "dir", dir)

	res := newResult(kind)
	var g errgroup.Group
	g.SetLimit(e.opts.workers())
	for _, i := range indices {
		if ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := fn(i, e.sd.Frames[i]); err != nil {
				e.logger.Warnw("frame export failed", "kind", kind, "frame", i, "error", err)
				res.fail(i, err)
				return nil
			}
			res.succeed(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	e.logger.Infow("exported", "kind", kind, "written", len(res.Written()), "failed", len(res.Failed()))
	return res, nil
}

// PointClouds reconstructs every selected frame and writes it as <index>.<ext>.
func (e *Exporter) PointClouds(ctx context.Context, dir string) (*Result, error) {
	r, rErr := transform.NewReconstructor(&e.sd.SensorCalibration)
	reconOpts := transform.Options{Normalize: e.opts.Normalize}
	writeOpts := pointcloud.WriteOptions{HalfPrecision: e.opts.HalfPrecision}
	return e.forEachFrame(ctx, "point cloud", dir, func(i int, f *sens.Frame) error {
		if rErr != nil {
			return rErr
		}
		pc, err := r.ReconstructFrame(f, reconOpts)
		if err != nil {
			return err
		}
		return pointcloud.WriteToFile(pc, frameFile(dir, i, e.opts.Format.Ext()), e.opts.Format, writeOpts)
	})
}
