package export

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/sensreader/logging"
	"go.viam.com/sensreader/pointcloud"
	"go.viam.com/sensreader/rimage"
	"go.viam.com/sensreader/rimage/transform"
	"go.viam.com/sensreader/sens"
	"go.viam.com/sensreader/spatialmath"
)

func syntheticData(t *testing.T, depth sens.DepthCodec) *sens.SensorData {
	t.Helper()
	sd, err := sens.NewSyntheticSensorData(sens.SyntheticConfig{
		Width: 8, Height: 6, NumFrames: 5, Color: sens.ColorPNG, Depth: depth, DepthShift: 1000,
	})
	test.That(t, err, test.ShouldBeNil)
	return sd
}

func newExporter(t *testing.T, sd *sens.SensorData, opts Options) *Exporter {
	t.Helper()
	e, err := NewExporter(sd, opts, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return e
}

func TestFrameIndices(t *testing.T) {
	test.That(t, FrameIndices(5, 2), test.ShouldResemble, []int{0, 2, 4})
	test.That(t, FrameIndices(5, 0), test.ShouldResemble, []int{0, 1, 2, 3, 4})
	test.That(t, FrameIndices(6, 3), test.ShouldResemble, []int{0, 3})
	test.That(t, FrameIndices(0, 3), test.ShouldBeEmpty)
}

func TestOptionsValidate(t *testing.T) {
	for _, bad := range []Options{
		{FrameSkip: -1},
		{Width: 10},
		{Width: -1, Height: -1},
		{Workers: -2},
		{Format: "obj"},
		{DepthExt: "jpg"},
		{ColorExt: "gif"},
	} {
		test.That(t, bad.Validate(), test.ShouldNotBeNil)
	}
	good := Options{FrameSkip: 3, Width: 4, Height: 3, Format: "NPY", Workers: 2}
	test.That(t, good.Validate(), test.ShouldBeNil)

	e := newExporter(t, syntheticData(t, sens.DepthZlibUShort), Options{Format: "NPY"})
	test.That(t, e.opts.Format, test.ShouldEqual, pointcloud.FormatNPY)
	e = newExporter(t, syntheticData(t, sens.DepthZlibUShort), Options{})
	test.That(t, e.opts.Format, test.ShouldEqual, pointcloud.FormatPLY)
	test.That(t, e.opts.DepthExt, test.ShouldEqual, ".png")
	test.That(t, e.opts.ColorExt, test.ShouldEqual, ".jpg")
}

func TestImageExtensions(t *testing.T) {
	sd := syntheticData(t, sens.DepthZlibUShort)
	dir := t.TempDir()
	e := newExporter(t, sd, Options{FrameSkip: 4, DepthExt: "TIFF", ColorExt: "qoi"})

	_, err := e.DepthImages(context.Background(), filepath.Join(dir, "depth"))
	test.That(t, err, test.ShouldBeNil)
	img, err := rimage.ReadImageFromFile(filepath.Join(dir, "depth", "4.tiff"))
	test.That(t, err, test.ShouldBeNil)
	_, ok := img.(*image.Gray16)
	test.That(t, ok, test.ShouldBeTrue)
	got, err := rimage.ConvertImageToDepthMap(img)
	test.That(t, err, test.ShouldBeNil)
	expected, err := sd.DepthMap(4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Samples(), test.ShouldResemble, expected.Samples())

	_, err = e.ColorImages(context.Background(), filepath.Join(dir, "color"))
	test.That(t, err, test.ShouldBeNil)
	img, err = rimage.ReadImageFromFile(filepath.Join(dir, "color", "4.qoi"))
	test.That(t, err, test.ShouldBeNil)
	want, err := sd.ColorImage(4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rimage.ToNRGBA(img).Pix, test.ShouldResemble, want.Pix)

	for _, ext := range []string{".bmp", ".ppm", ".tif"} {
		e := newExporter(t, sd, Options{FrameSkip: 4, ColorExt: ext})
		res, err := e.ColorImages(context.Background(), filepath.Join(dir, ext))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Failed(), test.ShouldBeEmpty)
		_, err = os.Stat(filepath.Join(dir, ext, "0"+ext))
		test.That(t, err, test.ShouldBeNil)
	}
}

func TestDepthImages(t *testing.T) {
	sd := syntheticData(t, sens.DepthZlibUShort)
	dir := t.TempDir()
	res, err := newExporter(t, sd, Options{FrameSkip: 2, Workers: 2}).DepthImages(context.Background(), dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Written(), test.ShouldResemble, []int{0, 2, 4})
	test.That(t, res.Failed(), test.ShouldBeEmpty)
	test.That(t, res.Err(), test.ShouldBeNil)

	_, err = os.Stat(filepath.Join(dir, "1.png"))
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)

	img, err := rimage.ReadImageFromFile(filepath.Join(dir, "2.png"))
	test.That(t, err, test.ShouldBeNil)
	_, ok := img.(*image.Gray16)
	test.That(t, ok, test.ShouldBeTrue)
	got, err := rimage.ConvertImageToDepthMap(img)
	test.That(t, err, test.ShouldBeNil)
	expected, err := sd.DepthMap(2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Samples(), test.ShouldResemble, expected.Samples())
}

func TestResizedImages(t *testing.T) {
	sd := syntheticData(t, sens.DepthRawUShort)
	dir := t.TempDir()
	e := newExporter(t, sd, Options{Width: 4, Height: 3})

	_, err := e.DepthImages(context.Background(), filepath.Join(dir, "depth"))
	test.That(t, err, test.ShouldBeNil)
	_, err = e.ColorImages(context.Background(), filepath.Join(dir, "color"))
	test.That(t, err, test.ShouldBeNil)
	_, err = e.DepthPreviews(context.Background(), filepath.Join(dir, "preview"))
	test.That(t, err, test.ShouldBeNil)

	for _, fn := range []string{"depth/4.png", "color/4.jpg", "preview/0.png"} {
		img, err := rimage.ReadImageFromFile(filepath.Join(dir, fn))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 3))
	}
}

func TestPosesAndIntrinsics(t *testing.T) {
	sd := syntheticData(t, sens.DepthRawUShort)
	dir := t.TempDir()
	e := newExporter(t, sd, Options{})

	res, err := e.Poses(context.Background(), dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Written(), test.ShouldResemble, []int{0, 1, 2, 3, 4})

	//nolint:gosec
	f, err := os.Open(filepath.Join(dir, "1.txt"))
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	pose, err := spatialmath.ReadMatrix4Text(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose, test.ShouldResemble, sd.Frames[1].CameraToWorld)

	intrinsicDir := filepath.Join(dir, "intrinsic")
	test.That(t, e.Intrinsics(intrinsicDir), test.ShouldBeNil)
	for _, fn := range IntrinsicsFiles {
		_, err := os.Stat(filepath.Join(intrinsicDir, fn))
		test.That(t, err, test.ShouldBeNil)
	}
	text, err := os.ReadFile(filepath.Join(intrinsicDir, "intrinsic_depth.txt"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(text), test.ShouldStartWith, "8.000000 0.000000 4.000000 0.000000\n")
}

func TestPointCloudsContinuePastFailures(t *testing.T) {
	sd := syntheticData(t, sens.DepthRawUShort)
	sd.Frames[1].DepthData = []byte{1, 2, 3}
	sd.Frames[3].ColorData = []byte("garbage")

	logger, logs := logging.NewObservedTestLogger(t)
	e, err := NewExporter(sd, Options{Format: pointcloud.FormatTXT, Workers: 3}, logger)
	test.That(t, err, test.ShouldBeNil)

	dir := t.TempDir()
	res, err := e.PointClouds(context.Background(), dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Written(), test.ShouldResemble, []int{0, 2, 4})
	test.That(t, res.Failed(), test.ShouldResemble, []int{1, 3})
	test.That(t, errors.Is(res.FrameErr(1), sens.ErrSizeMismatch), test.ShouldBeTrue)
	test.That(t, res.Err().Error(), test.ShouldContainSubstring, "point cloud frame 1")
	test.That(t, res.Err().Error(), test.ShouldContainSubstring, "point cloud frame 3")

	warnings := logs.FilterMessage("frame export failed").All()
	test.That(t, warnings, test.ShouldHaveLength, 2)

	for _, i := range []string{"0", "2", "4"} {
		_, err := os.Stat(filepath.Join(dir, i+".txt"))
		test.That(t, err, test.ShouldBeNil)
	}
	_, err = os.Stat(filepath.Join(dir, "1.txt"))
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
}

func TestPointCloudsSingularIntrinsics(t *testing.T) {
	sd := syntheticData(t, sens.DepthRawUShort)
	sd.IntrinsicDepth = spatialmath.Matrix4{}
	res, err := newExporter(t, sd, Options{FrameSkip: 2}).PointClouds(context.Background(), t.TempDir())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Written(), test.ShouldBeEmpty)
	test.That(t, res.Failed(), test.ShouldResemble, []int{0, 2, 4})
	test.That(t, errors.Is(res.FrameErr(4), transform.ErrSingularIntrinsics), test.ShouldBeTrue)
}

func TestPointCloudFormats(t *testing.T) {
	sd := syntheticData(t, sens.DepthZlibUShort)
	for _, format := range pointcloud.Formats {
		t.Run(string(format), func(t *testing.T) {
			dir := t.TempDir()
			opts := Options{Format: format, FrameSkip: 4, Normalize: true, HalfPrecision: true}
			res, err := newExporter(t, sd, opts).PointClouds(context.Background(), dir)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, res.Err(), test.ShouldBeNil)
			test.That(t, res.Written(), test.ShouldResemble, []int{0, 4})
			info, err := os.Stat(filepath.Join(dir, "4"+format.Ext()))
			test.That(t, err, test.ShouldBeNil)
			test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)
		})
	}
}

func TestCanceledExport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()
	res, err := newExporter(t, syntheticData(t, sens.DepthRawUShort), Options{}).Poses(ctx, dir)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, res.Written(), test.ShouldBeEmpty)
}

func TestRun(t *testing.T) {
	sd := syntheticData(t, sens.DepthRawUShort)
	sd.Frames[2].ColorData = nil
	dir := t.TempDir()
	kinds := Kinds{Depth: true, Color: true, Poses: true, Intrinsics: true, PointClouds: true, DepthPreview: true}
	test.That(t, kinds.Any(), test.ShouldBeTrue)
	test.That(t, Kinds{}.Any(), test.ShouldBeFalse)

	results, err := newExporter(t, sd, Options{}).Run(context.Background(), dir, kinds)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "color frame 2")
	test.That(t, err.Error(), test.ShouldContainSubstring, "point cloud frame 2")
	test.That(t, results, test.ShouldHaveLength, 5)

	for _, fn := range []string{
		"depth/2.png", "color/1.jpg", "pose/4.txt", "intrinsic/extrinsic_color.txt",
		"point_cloud/0.ply", "depth_preview/3.png",
	} {
		_, err := os.Stat(filepath.Join(dir, fn))
		test.That(t, err, test.ShouldBeNil)
	}
}
