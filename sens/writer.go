package sens

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/sensreader/spatialmath"
)

// WriteSensorDataToFile encodes sd into a new container file at fn.
func WriteSensorDataToFile(fn string, sd *SensorData) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WriteSensorData(f, sd)
}

// WriteSensorData encodes sd in the version 4 container layout. Payloads are written as
// they are; use CompressDepth and CompressColor to produce them.
func WriteSensorData(w io.Writer, sd *SensorData) error {
	if _, ok := colorCodecNames[sd.ColorCompression]; !ok {
		return errors.Wrapf(ErrUnknownCodec, "color compression code %d", int32(sd.ColorCompression))
	}
	if _, ok := depthCodecNames[sd.DepthCompression]; !ok {
		return errors.Wrapf(ErrUnknownCodec, "depth compression code %d", int32(sd.DepthCompression))
	}

	sw := &streamWriter{out: bufio.NewWriter(w)}
	sw.uint32(Version)
	sw.uint64(uint64(len(sd.SensorName)))
	sw.raw([]byte(sd.SensorName))
	sw.matrix(sd.IntrinsicColor)
	sw.matrix(sd.ExtrinsicColor)
	sw.matrix(sd.IntrinsicDepth)
	sw.matrix(sd.ExtrinsicDepth)
	sw.uint32(uint32(int32(sd.ColorCompression)))
	sw.uint32(uint32(int32(sd.DepthCompression)))
	sw.uint32(sd.ColorWidth)
	sw.uint32(sd.ColorHeight)
	sw.uint32(sd.DepthWidth)
	sw.uint32(sd.DepthHeight)
	sw.uint32(math.Float32bits(sd.DepthShift))
	sw.uint64(uint64(len(sd.Frames)))

	for _, f := range sd.Frames {
		sw.matrix(f.CameraToWorld)
		sw.uint64(f.TimestampColor)
		sw.uint64(f.TimestampDepth)
		sw.uint64(uint64(len(f.ColorData)))
		sw.uint64(uint64(len(f.DepthData)))
		sw.raw(f.ColorData)
		sw.raw(f.DepthData)
	}
	if sw.err != nil {
		return sw.err
	}
	return sw.out.Flush()
}

// streamWriter remembers the first write error so the layout above reads straight through.
type streamWriter struct {
	out     *bufio.Writer
	scratch [64]byte
	err     error
}

func (sw *streamWriter) raw(b []byte) {
	if sw.err != nil {
		return
	}
	_, sw.err = sw.out.Write(b)
}

func (sw *streamWriter) uint32(v uint32) {
	binary.LittleEndian.PutUint32(sw.scratch[:4], v)
	sw.raw(sw.scratch[:4])
}

func (sw *streamWriter) uint64(v uint64) {
	binary.LittleEndian.PutUint64(sw.scratch[:8], v)
	sw.raw(sw.scratch[:8])
}

func (sw *streamWriter) matrix(m spatialmath.Matrix4) {
	for i, v := range m.Float32() {
		binary.LittleEndian.PutUint32(sw.scratch[i*4:], math.Float32bits(v))
	}
	sw.raw(sw.scratch[:64])
}
