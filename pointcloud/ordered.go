package pointcloud

import (
	"github.com/golang/geo/r3"
)

// orderedPointCloud keeps points in insertion order. Coincident points are all kept, since
// distinct pixels can back-project to the same position.
type orderedPointCloud struct {
	points []PointAndData
	index  map[r3.Vector]int
	meta   MetaData
}

// New returns an empty ordered PointCloud.
func New() PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated ordered PointCloud.
func NewWithPrealloc(size int) PointCloud {
	return &orderedPointCloud{
		points: make([]PointAndData, 0, size),
		index:  make(map[r3.Vector]int, size),
		meta:   NewMetaData(),
	}
}

func (cloud *orderedPointCloud) Size() int {
	return len(cloud.points)
}

func (cloud *orderedPointCloud) MetaData() MetaData {
	return cloud.meta
}

// At returns the first point inserted at the given position.
func (cloud *orderedPointCloud) At(x, y, z float64) (Data, bool) {
	i, ok := cloud.index[r3.Vector{X: x, Y: y, Z: z}]
	if !ok {
		return nil, false
	}
	return cloud.points[i].D, true
}

func (cloud *orderedPointCloud) Set(p r3.Vector, d Data) error {
	if _, ok := cloud.index[p]; !ok {
		cloud.index[p] = len(cloud.points)
	}
	cloud.points = append(cloud.points, PointAndData{P: p, D: d})
	cloud.meta.Merge(p, d)
	return nil
}

func (cloud *orderedPointCloud) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	for i, pd := range cloud.points {
		if numBatches > 0 && i%numBatches != myBatch {
			continue
		}
		if !fn(pd.P, pd.D) {
			return
		}
	}
}
