package sens

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/sensreader/logging"
	"go.viam.com/sensreader/rimage"
	"go.viam.com/sensreader/spatialmath"
)

func tinyCalibration() SensorCalibration {
	return SensorCalibration{
		SensorName:       "tiny",
		IntrinsicColor:   spatialmath.Identity4(),
		ExtrinsicColor:   spatialmath.Identity4(),
		IntrinsicDepth:   spatialmath.Identity4(),
		ExtrinsicDepth:   spatialmath.Identity4(),
		ColorCompression: ColorRaw,
		DepthCompression: DepthRawUShort,
		ColorWidth:       2,
		ColorHeight:      1,
		DepthWidth:       2,
		DepthHeight:      1,
		DepthShift:       1000,
	}
}

func tinyFrame(ts uint64) *Frame {
	return &Frame{
		CameraToWorld:  spatialmath.Identity4(),
		TimestampColor: ts,
		TimestampDepth: ts + 1,
		ColorData:      []byte{10, 20, 30, 40, 50, 60},
		DepthData:      []byte{0, 0, 0xe8, 0x03},
	}
}

// numFramesOffset is where the frame count sits for a sensor name of n bytes.
func numFramesOffset(n int) int {
	return 4 + 8 + n + 4*64 + 4 + 4 + 4*4 + 4
}

func encode(t *testing.T, sd *SensorData) []byte {
	t.Helper()
	var buf bytes.Buffer
	test.That(t, WriteSensorData(&buf, sd), test.ShouldBeNil)
	return buf.Bytes()
}

func TestReadWriteRoundTrip(t *testing.T) {
	sd := &SensorData{SensorCalibration: tinyCalibration(), Frames: []*Frame{tinyFrame(0), tinyFrame(33)}}
	sd.SensorName = "StructureSensor\x00\xff"
	sd.Frames[1].CameraToWorld[0] = math.Inf(-1)

	read, err := ReadSensorData(bytes.NewReader(encode(t, sd)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmp.Diff(sd, read), test.ShouldBeEmpty)
	test.That(t, read.NumFrames(), test.ShouldEqual, 2)
	test.That(t, read.SensorName, test.ShouldEqual, "StructureSensor\x00\xff")
}

func TestReadEmptyContainer(t *testing.T) {
	sd := &SensorData{SensorCalibration: tinyCalibration()}
	read, err := ReadSensorData(bytes.NewReader(encode(t, sd)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.NumFrames(), test.ShouldEqual, 0)

	_, err = read.Frame(0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadHeaderLayout(t *testing.T) {
	sd := &SensorData{SensorCalibration: tinyCalibration()}
	raw := encode(t, sd)
	test.That(t, len(raw), test.ShouldEqual, numFramesOffset(len(sd.SensorName))+8)
	test.That(t, binary.LittleEndian.Uint32(raw), test.ShouldEqual, uint32(4))
	test.That(t, binary.LittleEndian.Uint64(raw[4:]), test.ShouldEqual, uint64(4))
	test.That(t, string(raw[12:16]), test.ShouldEqual, "tiny")
}

func TestReadErrors(t *testing.T) {
	sd := &SensorData{SensorCalibration: tinyCalibration(), Frames: []*Frame{tinyFrame(0), tinyFrame(1)}}
	good := encode(t, sd)

	t.Run("version", func(t *testing.T) {
		raw := bytes.Clone(good)
		binary.LittleEndian.PutUint32(raw, 3)
		read, err := ReadSensorData(bytes.NewReader(raw))
		test.That(t, read, test.ShouldBeNil)
		test.That(t, errors.Is(err, ErrUnsupportedVersion), test.ShouldBeTrue)
	})

	t.Run("empty stream", func(t *testing.T) {
		read, err := ReadSensorData(bytes.NewReader(nil))
		test.That(t, read, test.ShouldBeNil)
		test.That(t, errors.Is(err, ErrTruncatedStream), test.ShouldBeTrue)
	})

	t.Run("missing frames", func(t *testing.T) {
		raw := bytes.Clone(good)
		binary.LittleEndian.PutUint64(raw[numFramesOffset(len(sd.SensorName)):], 5)
		read, err := ReadSensorData(bytes.NewReader(raw))
		test.That(t, read, test.ShouldBeNil)
		test.That(t, errors.Is(err, ErrTruncatedStream), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "frame 2 of 5")
	})

	t.Run("cut payload", func(t *testing.T) {
		for _, cut := range []int{1, 3, 20} {
			read, err := ReadSensorData(bytes.NewReader(good[:len(good)-cut]))
			test.That(t, read, test.ShouldBeNil)
			test.That(t, errors.Is(err, ErrTruncatedStream), test.ShouldBeTrue)
		}
	})

	t.Run("huge payload length", func(t *testing.T) {
		one := &SensorData{SensorCalibration: tinyCalibration(), Frames: []*Frame{tinyFrame(0)}}
		raw := encode(t, one)
		colorSizeOffset := numFramesOffset(len(one.SensorName)) + 8 + 64 + 16
		binary.LittleEndian.PutUint64(raw[colorSizeOffset:], math.MaxUint64/2)
		read, err := ReadSensorData(bytes.NewReader(raw))
		test.That(t, read, test.ShouldBeNil)
		test.That(t, errors.Is(err, ErrTruncatedStream), test.ShouldBeTrue)
	})

	t.Run("unknown codec", func(t *testing.T) {
		raw := bytes.Clone(good)
		colorCodeOffset := 4 + 8 + len(sd.SensorName) + 4*64
		binary.LittleEndian.PutUint32(raw[colorCodeOffset:], 9)
		read, err := ReadSensorData(bytes.NewReader(raw))
		test.That(t, read, test.ShouldBeNil)
		test.That(t, errors.Is(err, ErrUnknownCodec), test.ShouldBeTrue)
	})
}

func TestWriteRejectsUnknownCodec(t *testing.T) {
	sd := &SensorData{SensorCalibration: tinyCalibration()}
	sd.DepthCompression = DepthCodec(7)
	var buf bytes.Buffer
	err := WriteSensorData(&buf, sd)
	test.That(t, errors.Is(err, ErrUnknownCodec), test.ShouldBeTrue)
	test.That(t, buf.Len(), test.ShouldEqual, 0)
}

func TestCodecNames(t *testing.T) {
	test.That(t, ColorJPEG.String(), test.ShouldEqual, "jpeg")
	test.That(t, DepthZlibUShort.String(), test.ShouldEqual, "zlib_ushort")
	test.That(t, DepthCodec(42).String(), test.ShouldEqual, "invalid")

	c, err := ColorCodecFromCode(-1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldEqual, ColorUnknown)
	_, err = DepthCodecFromCode(3)
	test.That(t, errors.Is(err, ErrUnknownCodec), test.ShouldBeTrue)

	d, err := ParseDepthCodec("occi_ushort")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldEqual, DepthOcciUShort)
	_, err = ParseColorCodec("webp")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDecompressDepth(t *testing.T) {
	dm, err := rimage.NewDepthMapFromSamples(3, 2, []uint16{0, 1, 2, 1000, 65535, 7})
	test.That(t, err, test.ShouldBeNil)

	for _, codec := range []DepthCodec{DepthRawUShort, DepthZlibUShort} {
		t.Run(codec.String(), func(t *testing.T) {
			payload, err := CompressDepth(dm, codec)
			test.That(t, err, test.ShouldBeNil)
			out, err := DecompressDepth(payload, codec, 3, 2)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, out.Samples(), test.ShouldResemble, dm.Samples())
			test.That(t, out.GetDepth(0, 1), test.ShouldEqual, rimage.Depth(1000))

			_, err = DecompressDepth(payload, codec, 3, 3)
			test.That(t, errors.Is(err, ErrSizeMismatch), test.ShouldBeTrue)
			_, err = DecompressDepth(payload, codec, 2, 2)
			test.That(t, errors.Is(err, ErrSizeMismatch), test.ShouldBeTrue)
		})
	}

	_, err = DecompressDepth([]byte{1, 2}, DepthOcciUShort, 1, 1)
	test.That(t, errors.Is(err, ErrUnsupportedCodec), test.ShouldBeTrue)
	_, err = DecompressDepth([]byte{1, 2}, DepthUnknown, 1, 1)
	test.That(t, errors.Is(err, ErrUnsupportedCodec), test.ShouldBeTrue)
	_, err = DecompressDepth([]byte{1, 2}, DepthCodec(5), 1, 1)
	test.That(t, errors.Is(err, ErrUnknownCodec), test.ShouldBeTrue)
	_, err = DecompressDepth([]byte{1, 2, 3}, DepthZlibUShort, 1, 1)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = CompressDepth(dm, DepthOcciUShort)
	test.That(t, errors.Is(err, ErrUnsupportedCodec), test.ShouldBeTrue)
}

func TestDecompressOversizedDimensions(t *testing.T) {
	var small bytes.Buffer
	zw := zlib.NewWriter(&small)
	_, err := zw.Write([]byte{1, 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, zw.Close(), test.ShouldBeNil)

	for _, dims := range [][2]int{
		{math.MaxInt / 2, 3},
		{math.MaxInt / 4, math.MaxInt / 4},
		{-1, 2},
		{2, -2},
	} {
		_, err := DecompressDepth([]byte{1, 2}, DepthRawUShort, dims[0], dims[1])
		test.That(t, errors.Is(err, ErrSizeMismatch), test.ShouldBeTrue)
		_, err = DecompressDepth(small.Bytes(), DepthZlibUShort, dims[0], dims[1])
		test.That(t, errors.Is(err, ErrSizeMismatch), test.ShouldBeTrue)
		_, err = DecompressColor([]byte{1, 2, 3}, ColorRaw, dims[0], dims[1])
		test.That(t, errors.Is(err, ErrSizeMismatch), test.ShouldBeTrue)
	}
}

func TestDecompressColor(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(50 * x), uint8(100 * y), 200, 255})
		}
	}

	for _, codec := range []ColorCodec{ColorRaw, ColorPNG} {
		t.Run(codec.String(), func(t *testing.T) {
			payload, err := CompressColor(img, codec)
			test.That(t, err, test.ShouldBeNil)
			out, err := DecompressColor(payload, codec, 4, 2)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, out.Pix, test.ShouldResemble, img.Pix)

			_, err = DecompressColor(payload, codec, 2, 4)
			test.That(t, errors.Is(err, ErrSizeMismatch), test.ShouldBeTrue)
		})
	}

	t.Run("jpeg", func(t *testing.T) {
		payload, err := CompressColor(img, ColorJPEG)
		test.That(t, err, test.ShouldBeNil)
		out, err := DecompressColor(payload, ColorJPEG, 4, 2)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 2))
		test.That(t, out.NRGBAAt(0, 0).A, test.ShouldEqual, uint8(255))

		_, err = DecompressColor(payload, ColorJPEG, 5, 2)
		test.That(t, errors.Is(err, ErrSizeMismatch), test.ShouldBeTrue)
	})

	_, err := DecompressColor([]byte{1, 2, 3}, ColorUnknown, 1, 1)
	test.That(t, errors.Is(err, ErrUnsupportedCodec), test.ShouldBeTrue)
	_, err = DecompressColor([]byte{1, 2, 3}, ColorCodec(3), 1, 1)
	test.That(t, errors.Is(err, ErrUnknownCodec), test.ShouldBeTrue)
	_, err = DecompressColor([]byte("not an image"), ColorPNG, 1, 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSyntheticSensorData(t *testing.T) {
	conf := SyntheticConfig{Width: 8, Height: 6, NumFrames: 4, Color: ColorJPEG, Depth: DepthZlibUShort, DepthShift: 1000}
	sd, err := NewSyntheticSensorData(conf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sd.NumFrames(), test.ShouldEqual, 4)
	test.That(t, sd.Frames[2].CameraToWorld.IsDegeneratePose(), test.ShouldBeTrue)
	test.That(t, sd.Frames[1].CameraToWorld.IsDegeneratePose(), test.ShouldBeFalse)

	dm, err := sd.DepthMap(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, rimage.Depth(0))
	test.That(t, dm.GetDepth(4, 3), test.ShouldEqual, rimage.Depth(1510))

	img, err := sd.ColorImage(3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 8)

	fn := filepath.Join(t.TempDir(), "synthetic.sens")
	test.That(t, WriteSensorDataToFile(fn, sd), test.ShouldBeNil)
	read, err := ReadSensorDataFromFile(fn, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmp.Diff(sd, read), test.ShouldBeEmpty)

	_, err = ReadSensorDataFromFile(filepath.Join(t.TempDir(), "missing.sens"), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)

	bad := conf
	bad.DepthShift = 0
	_, err = NewSyntheticSensorData(bad)
	test.That(t, err, test.ShouldNotBeNil)
	bad = conf
	bad.Depth = DepthOcciUShort
	_, err = NewSyntheticSensorData(bad)
	test.That(t, errors.Is(err, ErrUnsupportedCodec), test.ShouldBeTrue)
}
