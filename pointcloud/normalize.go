package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/x448/float16"
)

// Centroid returns the mean position of the cloud. An empty cloud has no centroid and
// returns the zero vector.
func Centroid(cloud PointCloud) r3.Vector {
	if cloud.Size() == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		sum = sum.Add(p)
		return true
	})
	n := float64(cloud.Size())
	return r3.Vector{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}
}

// Normalize re-centers the cloud on its centroid and scales it uniformly so that the
// farthest point lies on the unit sphere. Order and data are preserved. An empty cloud is
// returned as is; a cloud whose points all coincide collapses to the origin.
func Normalize(cloud PointCloud) PointCloud {
	if cloud.Size() == 0 {
		return cloud
	}
	center := Centroid(cloud)

	var scale float64
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		scale = math.Max(scale, p.Sub(center).Norm())
		return true
	})

	out := NewWithPrealloc(cloud.Size())
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		q := p.Sub(center)
		if scale > 0 {
			q = r3.Vector{X: q.X / scale, Y: q.Y / scale, Z: q.Z / scale}
		}
		//nolint:errcheck
		out.Set(q, d)
		return true
	})
	return out
}

// ToHalfPrecision rounds v to the nearest IEEE 754 half precision value, ties to even.
// The result is rounded from v itself, not from float32(v).
func ToHalfPrecision(v float64) float64 {
	h := float16.Fromfloat32(float32(v))
	hv := float64(h.Float32())
	if hv == v || math.IsNaN(v) || math.IsInf(hv, 0) {
		return hv
	}
	// float32(v) can land on a half precision midpoint that v itself is off of.
	var other float16.Float16
	switch {
	case math.Abs(v) > math.Abs(hv):
		other = h + 1
	case h&0x7fff != 0:
		other = h - 1
	default:
		return hv
	}
	ov := float64(other.Float32())
	if math.IsInf(ov, 0) {
		return hv
	}
	dh, do := math.Abs(v-hv), math.Abs(v-ov)
	if do < dh || (do == dh && other&1 == 0) {
		return ov
	}
	return hv
}

// Quantize returns a copy of the cloud with every coordinate rounded to half precision.
func Quantize(cloud PointCloud) PointCloud {
	out := NewWithPrealloc(cloud.Size())
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		//nolint:errcheck
		out.Set(r3.Vector{X: ToHalfPrecision(p.X), Y: ToHalfPrecision(p.Y), Z: ToHalfPrecision(p.Z)}, d)
		return true
	})
	return out
}

// QuantizedColor is NormalizedColor with every channel rounded to half precision.
func QuantizedColor(d Data) [4]float64 {
	c := NormalizedColor(d)
	for i := range c {
		c[i] = ToHalfPrecision(c[i])
	}
	return c
}
