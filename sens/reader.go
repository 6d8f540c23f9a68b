package sens

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/sensreader/logging"
	"go.viam.com/sensreader/spatialmath"
)

// maxFramePrealloc bounds how many frame slots a header's frame count can reserve up front.
const maxFramePrealloc = 4096

// maxPayloadPrealloc bounds how much buffer a declared payload length can reserve up front;
// larger payloads grow as bytes actually arrive.
const maxPayloadPrealloc = 64 << 20

// ReadSensorDataFromFile parses the container at fn.
func ReadSensorDataFromFile(fn string, logger logging.Logger) (*SensorData, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	sd, err := ReadSensorData(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %q", fn)
	}
	logger.Debugw("loaded sensor data",
		"file", fn,
		"sensor", sd.SensorName,
		"frames", sd.NumFrames(),
		"color", sd.ColorCompression.String(),
		"depth", sd.DepthCompression.String())
	return sd, nil
}

// ReadSensorData parses a whole container from r. Either every frame is read or an error
// is returned; a partial SensorData is never returned.
func ReadSensorData(r io.Reader) (*SensorData, error) {
	sr := &streamReader{in: bufio.NewReader(r)}

	version, err := sr.uint32("version")
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "got version %d, expected %d", version, Version)
	}

	calib, err := sr.calibration()
	if err != nil {
		return nil, err
	}

	numFrames, err := sr.uint64("num_frames")
	if err != nil {
		return nil, err
	}

	prealloc := numFrames
	if prealloc > maxFramePrealloc {
		prealloc = maxFramePrealloc
	}
	sd := &SensorData{SensorCalibration: calib, Frames: make([]*Frame, 0, prealloc)}
	for i := uint64(0); i < numFrames; i++ {
		frame, err := sr.frame()
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d of %d", i, numFrames)
		}
		sd.Frames = append(sd.Frames, frame)
	}
	return sd, nil
}

type streamReader struct {
	in      *bufio.Reader
	scratch [64]byte
}

// read fills n bytes of scratch space.
func (sr *streamReader) read(n int, field string) ([]byte, error) {
	buf := sr.scratch[:n]
	if _, err := io.ReadFull(sr.in, buf); err != nil {
		return nil, truncated(err, field)
	}
	return buf, nil
}

func truncated(err error, field string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrapf(ErrTruncatedStream, "reading %s", field)
	}
	return errors.Wrapf(err, "reading %s", field)
}

func (sr *streamReader) uint32(field string) (uint32, error) {
	buf, err := sr.read(4, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (sr *streamReader) int32(field string) (int32, error) {
	v, err := sr.uint32(field)
	return int32(v), err
}

func (sr *streamReader) float32(field string) (float32, error) {
	v, err := sr.uint32(field)
	return math.Float32frombits(v), err
}

func (sr *streamReader) uint64(field string) (uint64, error) {
	buf, err := sr.read(8, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func (sr *streamReader) matrix(field string) (spatialmath.Matrix4, error) {
	buf, err := sr.read(64, field)
	if err != nil {
		return spatialmath.Matrix4{}, err
	}
	var vals [16]float32
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return spatialmath.NewMatrix4FromFloat32(vals), nil
}

// bytes reads exactly n opaque bytes.
func (sr *streamReader) bytes(n uint64, field string) ([]byte, error) {
	if n > math.MaxInt64 {
		return nil, errors.Wrapf(ErrTruncatedStream, "%s declares %d bytes", field, n)
	}
	var buf bytes.Buffer
	if n <= maxPayloadPrealloc {
		buf.Grow(int(n))
	} else {
		buf.Grow(maxPayloadPrealloc)
	}
	if _, err := io.CopyN(&buf, sr.in, int64(n)); err != nil {
		return nil, truncated(err, field)
	}
	return buf.Bytes(), nil
}

func (sr *streamReader) calibration() (SensorCalibration, error) {
	var calib SensorCalibration
	var err error

	nameLen, err := sr.uint64("sensor name length")
	if err != nil {
		return calib, err
	}
	name, err := sr.bytes(nameLen, "sensor name")
	if err != nil {
		return calib, err
	}
	calib.SensorName = string(name)

	for _, m := range []struct {
		dst   *spatialmath.Matrix4
		field string
	}{
		{&calib.IntrinsicColor, "intrinsic_color"},
		{&calib.ExtrinsicColor, "extrinsic_color"},
		{&calib.IntrinsicDepth, "intrinsic_depth"},
		{&calib.ExtrinsicDepth, "extrinsic_depth"},
	} {
		if *m.dst, err = sr.matrix(m.field); err != nil {
			return calib, err
		}
	}

	colorCode, err := sr.int32("color compression")
	if err != nil {
		return calib, err
	}
	depthCode, err := sr.int32("depth compression")
	if err != nil {
		return calib, err
	}
	if calib.ColorCompression, err = ColorCodecFromCode(colorCode); err != nil {
		return calib, err
	}
	if calib.DepthCompression, err = DepthCodecFromCode(depthCode); err != nil {
		return calib, err
	}

	for _, d := range []struct {
		dst   *uint32
		field string
	}{
		{&calib.ColorWidth, "color width"},
		{&calib.ColorHeight, "color height"},
		{&calib.DepthWidth, "depth width"},
		{&calib.DepthHeight, "depth height"},
	} {
		if *d.dst, err = sr.uint32(d.field); err != nil {
			return calib, err
		}
	}

	if calib.DepthShift, err = sr.float32("depth shift"); err != nil {
		return calib, err
	}
	return calib, nil
}

func (sr *streamReader) frame() (*Frame, error) {
	var f Frame
	var err error
	if f.CameraToWorld, err = sr.matrix("camera_to_world"); err != nil {
		return nil, err
	}
	if f.TimestampColor, err = sr.uint64("timestamp_color"); err != nil {
		return nil, err
	}
	if f.TimestampDepth, err = sr.uint64("timestamp_depth"); err != nil {
		return nil, err
	}
	colorSize, err := sr.uint64("color size")
	if err != nil {
		return nil, err
	}
	depthSize, err := sr.uint64("depth size")
	if err != nil {
		return nil, err
	}
	if f.ColorData, err = sr.bytes(colorSize, "color data"); err != nil {
		return nil, err
	}
	if f.DepthData, err = sr.bytes(depthSize, "depth data"); err != nil {
		return nil, err
	}
	return &f, nil
}
