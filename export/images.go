package export

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"go.viam.com/sensreader/rimage"
	"go.viam.com/sensreader/sens"
)

func frameFile(dir string, i int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%d%s", i, ext))
}

func (e *Exporter) depthMap(f *sens.Frame) (*rimage.DepthMap, error) {
	dm, err := f.DecompressDepth(&e.sd.SensorCalibration)
	if err != nil {
		return nil, err
	}
	if e.opts.Width > 0 {
		dm = dm.Resize(e.opts.Width, e.opts.Height)
	}
	return dm, nil
}

// DepthImages writes each selected depth frame as a 16-bit grayscale <index>.<DepthExt> of raw samples.
func (e *Exporter) DepthImages(ctx context.Context, dir string) (*Result, error) {
	return e.forEachFrame(ctx, "depth", dir, func(i int, f *sens.Frame) error {
		dm, err := e.depthMap(f)
		if err != nil {
			return err
		}
		return rimage.WriteImageToFile(frameFile(dir, i, e.opts.DepthExt), dm.ToGray16())
	})
}

// DepthPreviews writes each selected depth frame as a hue colored <index>.png for viewing.
func (e *Exporter) DepthPreviews(ctx context.Context, dir string) (*Result, error) {
	return e.forEachFrame(ctx, "depth preview", dir, func(i int, f *sens.Frame) error {
		dm, err := e.depthMap(f)
		if err != nil {
			return err
		}
		return rimage.WriteImageToFile(frameFile(dir, i, ".png"), dm.ToPrettyPicture(0, rimage.MaxDepth))
	})
}

// ColorImages writes each selected color frame as <index>.<ColorExt>.
func (e *Exporter) ColorImages(ctx context.Context, dir string) (*Result, error) {
	return e.forEachFrame(ctx, "color", dir, func(i int, f *sens.Frame) error {
		img, err := f.DecompressColor(&e.sd.SensorCalibration)
		if err != nil {
			return err
		}
		var out image.Image = img
		if e.opts.Width > 0 {
			out = rimage.ResizeColor(img, e.opts.Width, e.opts.Height)
		}
		return rimage.WriteImageToFile(frameFile(dir, i, e.opts.ColorExt), out)
	})
}
