package export

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"go.viam.com/sensreader/sens"
	"go.viam.com/sensreader/spatialmath"
)

func writeMatrixFile(fn string, m spatialmath.Matrix4) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return m.WriteText(f)
}

// Poses writes each selected camera to world pose as <index>.txt, four rows of four values.
// Lost poses are written as stored.
func (e *Exporter) Poses(ctx context.Context, dir string) (*Result, error) {
	return e.forEachFrame(ctx, "pose", dir, func(i int, f *sens.Frame) error {
		return writeMatrixFile(frameFile(dir, i, ".txt"), f.CameraToWorld)
	})
}

// IntrinsicsFiles are the calibration file names written by Intrinsics.
var IntrinsicsFiles = []string{"intrinsic_color.txt", "extrinsic_color.txt", "intrinsic_depth.txt", "extrinsic_depth.txt"}

// Intrinsics writes the four calibration matrices to dir.
func (e *Exporter) Intrinsics(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	e.logger.Infow("exporting camera intrinsics", "dir", dir)
	calib := e.sd.SensorCalibration
	var errs error
	for i, m := range []spatialmath.Matrix4{calib.IntrinsicColor, calib.ExtrinsicColor, calib.IntrinsicDepth, calib.ExtrinsicDepth} {
		errs = multierr.Append(errs, writeMatrixFile(filepath.Join(dir, IntrinsicsFiles[i]), m))
	}
	return errs
}
