package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/sensreader/export"
	"go.viam.com/sensreader/pointcloud"
)

func TestFromReader(t *testing.T) {
	conf, err := FromReader("job.json", strings.NewReader(`{
		"input": "scene0000_00.sens",
		"output_dir": "out",
		"frame_skip": "10",
		"image_size": "320x240",
		"format": "npy",
		"depth_ext": "tiff",
		"color_ext": ".qoi",
		"normalize": true,
		"workers": 4,
		"export_point_clouds": true,
		"export_poses": "true"
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Input, test.ShouldEqual, "scene0000_00.sens")
	test.That(t, conf.FrameSkip, test.ShouldEqual, 10)
	test.That(t, conf.Half(), test.ShouldBeTrue)
	test.That(t, conf.Kinds(), test.ShouldResemble, export.Kinds{Poses: true, PointClouds: true})

	opts, err := conf.Options()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts, test.ShouldResemble, export.Options{
		FrameSkip:     10,
		Width:         320,
		Height:        240,
		DepthExt:      "tiff",
		ColorExt:      ".qoi",
		Format:        pointcloud.FormatNPY,
		Normalize:     true,
		HalfPrecision: true,
		Workers:       4,
	})
}

func TestFromReaderErrors(t *testing.T) {
	for name, body := range map[string]string{
		"not json":       `{`,
		"unknown field":  `{"frame_stride": 2}`,
		"bad type":       `{"workers": "many"}`,
		"negative skip":  `{"frame_skip": -1}`,
		"bad size":       `{"image_size": "640by480"}`,
		"bad format":     `{"format": "obj"}`,
		"lossy depth":    `{"depth_ext": "jpg"}`,
		"bad color ext":  `{"color_ext": "gif"}`,
		"missing output": `{"export_depth_images": true}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromReader("job.json", strings.NewReader(body))
			test.That(t, err, test.ShouldNotBeNil)
		})
	}

	_, err := FromReader("job.json", strings.NewReader(`{"export_color_images": true}`))
	test.That(t, err.Error(), test.ShouldContainSubstring, "output_dir")
}

func TestHalfPrecisionOff(t *testing.T) {
	conf, err := FromMap(map[string]interface{}{"half_precision": false})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Half(), test.ShouldBeFalse)
	opts, err := conf.Options()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts.HalfPrecision, test.ShouldBeFalse)
	test.That(t, opts.Format, test.ShouldEqual, pointcloud.FormatPLY)
}

func TestParseImageSize(t *testing.T) {
	w, h, err := ParseImageSize("640x480")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, []int{w, h}, test.ShouldResemble, []int{640, 480})
	w, h, err = ParseImageSize("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, []int{w, h}, test.ShouldResemble, []int{0, 0})
	test.That(t, FormatImageSize(640, 480), test.ShouldEqual, "640x480")
	test.That(t, FormatImageSize(0, 0), test.ShouldEqual, "")

	for _, bad := range []string{"640", "0x480", "ax480", "640x-1", "1x2x3"} {
		_, _, err := ParseImageSize(bad)
		test.That(t, err, test.ShouldNotBeNil)
	}
}

func TestRead(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "job.json")
	test.That(t, os.WriteFile(fn, []byte(`{"output_dir": "out", "export_intrinsics": true}`), 0o600), test.ShouldBeNil)
	conf, err := Read(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Intrinsics, test.ShouldBeTrue)

	_, err = Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
