package transform

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/sensreader/spatialmath"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// NewPinholeCameraIntrinsicsFromMatrix reads focal lengths and principal point out of a 4x4
// intrinsic matrix laid out as [fx 0 ppx 0; 0 fy ppy 0; 0 0 1 0; 0 0 0 1].
func NewPinholeCameraIntrinsicsFromMatrix(m spatialmath.Matrix4, width, height int) *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     m.At(0, 0),
		Fy:     m.At(1, 1),
		Ppx:    m.At(0, 2),
		Ppy:    m.At(1, 2),
	}
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width == 0 || params.Height == 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// FieldOfView returns the horizontal and vertical field of view in degrees.
func (params *PinholeCameraIntrinsics) FieldOfView() (float64, float64) {
	if params == nil || params.Fx == 0 || params.Fy == 0 {
		return 0, 0
	}
	h := 2 * math.Atan(float64(params.Width)/(2*params.Fx))
	v := 2 * math.Atan(float64(params.Height)/(2*params.Fy))
	return h * 180 / math.Pi, v * 180 / math.Pi
}
