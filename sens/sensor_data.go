// Package sens reads and writes version 4 RGB-D sensor stream containers: a calibration
// header followed by frames of compressed color and depth with a camera pose.
package sens

import (
	"image"

	"github.com/pkg/errors"

	"go.viam.com/sensreader/rimage"
	"go.viam.com/sensreader/spatialmath"
)

// Version is the only container version understood by this package.
const Version = uint32(4)

// SensorCalibration describes the color and depth sensors and how frames are encoded.
type SensorCalibration struct {
	// SensorName is kept byte for byte as stored.
	SensorName string

	IntrinsicColor spatialmath.Matrix4
	ExtrinsicColor spatialmath.Matrix4
	IntrinsicDepth spatialmath.Matrix4
	ExtrinsicDepth spatialmath.Matrix4

	ColorCompression ColorCodec
	DepthCompression DepthCodec

	ColorWidth  uint32
	ColorHeight uint32
	DepthWidth  uint32
	DepthHeight uint32

	// DepthShift converts raw depth samples to meters: meters = raw / DepthShift.
	DepthShift float32
}

// Frame is one synchronized color and depth capture. Payloads stay compressed until decoded.
type Frame struct {
	// CameraToWorld is the depth camera pose. A top-left entry of 0 or -Inf marks a lost pose.
	CameraToWorld  spatialmath.Matrix4
	TimestampColor uint64
	TimestampDepth uint64

	ColorData []byte
	DepthData []byte
}

// SensorData is a parsed container. It is not modified after loading, so frames can be
// decoded concurrently.
type SensorData struct {
	SensorCalibration
	Frames []*Frame
}

// DecompressDepth decodes the frame's depth payload.
func (f *Frame) DecompressDepth(calib *SensorCalibration) (*rimage.DepthMap, error) {
	return DecompressDepth(f.DepthData, calib.DepthCompression, int(calib.DepthWidth), int(calib.DepthHeight))
}

// DecompressColor decodes the frame's color payload.
func (f *Frame) DecompressColor(calib *SensorCalibration) (*image.NRGBA, error) {
	return DecompressColor(f.ColorData, calib.ColorCompression, int(calib.ColorWidth), int(calib.ColorHeight))
}

// NumFrames returns the number of frames in the container.
func (sd *SensorData) NumFrames() int {
	return len(sd.Frames)
}

// Frame returns frame i.
func (sd *SensorData) Frame(i int) (*Frame, error) {
	if i < 0 || i >= len(sd.Frames) {
		return nil, errors.Errorf("frame index %d out of range [0,%d)", i, len(sd.Frames))
	}
	return sd.Frames[i], nil
}

// DepthMap decodes the depth payload of frame i.
func (sd *SensorData) DepthMap(i int) (*rimage.DepthMap, error) {
	f, err := sd.Frame(i)
	if err != nil {
		return nil, err
	}
	return f.DecompressDepth(&sd.SensorCalibration)
}

// ColorImage decodes the color payload of frame i.
func (sd *SensorData) ColorImage(i int) (*image.NRGBA, error) {
	f, err := sd.Frame(i)
	if err != nil {
		return nil, err
	}
	return f.DecompressColor(&sd.SensorCalibration)
}
