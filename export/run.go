package export

import (
	"context"
	"path/filepath"

	"go.uber.org/multierr"
)

// Kinds selects what Run exports.
type Kinds struct {
	Depth        bool
	Color        bool
	Poses        bool
	Intrinsics   bool
	PointClouds  bool
	DepthPreview bool
}

// Any reports whether at least one kind is selected.
func (k Kinds) Any() bool {
	return k.Depth || k.Color || k.Poses || k.Intrinsics || k.PointClouds || k.DepthPreview
}

// Subdirectories of the output directory used by Run.
const (
	DepthDir        = "depth"
	ColorDir        = "color"
	PoseDir         = "pose"
	IntrinsicDir    = "intrinsic"
	PointCloudDir   = "point_cloud"
	DepthPreviewDir = "depth_preview"
)

// Run exports the selected kinds into subdirectories of outDir. Every kind is attempted;
// the returned error combines the frame failures of all of them. Cancellation of ctx
// stops the run.
func (e *Exporter) Run(ctx context.Context, outDir string, kinds Kinds) ([]*Result, error) {
	perFrame := []struct {
		enabled bool
		dir     string
		fn      func(context.Context, string) (*Result, error)
	}{
		{kinds.Depth, DepthDir, e.DepthImages},
		{kinds.Color, ColorDir, e.ColorImages},
		{kinds.Poses, PoseDir, e.Poses},
		{kinds.PointClouds, PointCloudDir, e.PointClouds},
		{kinds.DepthPreview, DepthPreviewDir, e.DepthPreviews},
	}

	var results []*Result
	var errs error
	if kinds.Intrinsics {
		errs = multierr.Append(errs, e.Intrinsics(filepath.Join(outDir, IntrinsicDir)))
	}
	for _, job := range perFrame {
		if !job.enabled {
			continue
		}
		res, err := job.fn(ctx, filepath.Join(outDir, job.dir))
		if res != nil {
			results = append(results, res)
			errs = multierr.Append(errs, res.Err())
		}
		if err != nil {
			return results, multierr.Append(errs, err)
		}
	}
	return results, errs
}
