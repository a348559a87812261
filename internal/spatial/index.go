// Package spatial assigns each building the wind speed of its nearest wind
// grid point.
//
// Coordinates are projected onto a local equirectangular plane centred on
// the grid's mean latitude, which keeps distances in metres accurate to well
// under a percent across a single storm swath.
package spatial

import (
	"errors"
	"math"

	"github.com/couchcryptid/storm-data-windloss/internal/windfield"
	"gonum.org/v1/gonum/spatial/kdtree"
)

const earthRadiusM = 6371008.8

// Index is a k-d tree over projected wind grid points.
type Index struct {
	tree   *kdtree.Tree
	points []windfield.Point
	cosLat float64
}

// NewIndex builds the tree. It fails on an empty grid.
func NewIndex(points []windfield.Point) (*Index, error) {
	if len(points) == 0 {
		return nil, errors.New("wind grid has no points")
	}
	var latSum float64
	for _, p := range points {
		latSum += p.Latitude
	}
	ix := &Index{
		points: points,
		cosLat: math.Cos(radians(latSum / float64(len(points)))),
	}

	projected := make(planePoints, len(points))
	for i, p := range points {
		projected[i] = ix.project(p.Longitude, p.Latitude, i)
	}
	ix.tree = kdtree.New(projected, false)
	return ix, nil
}

// Nearest returns the grid point closest to (lon, lat) and its distance in
// metres.
func (ix *Index) Nearest(lon, lat float64) (windfield.Point, float64) {
	q := ix.project(lon, lat, -1)
	got, d2 := ix.tree.Nearest(q)
	return ix.points[got.(planePoint).idx], math.Sqrt(d2)
}

func (ix *Index) project(lon, lat float64, idx int) planePoint {
	return planePoint{
		x:   earthRadiusM * radians(lon) * ix.cosLat,
		y:   earthRadiusM * radians(lat),
		idx: idx,
	}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// planePoint is a projected point remembering its grid index.
type planePoint struct {
	x, y float64
	idx  int
}

func (p planePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(planePoint)
	if d == 0 {
		return p.x - q.x
	}
	return p.y - q.y
}

func (p planePoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance, as kdtree expects.
func (p planePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(planePoint)
	dx, dy := p.x-q.x, p.y-q.y
	return dx*dx + dy*dy
}

type planePoints []planePoint

func (p planePoints) Index(i int) kdtree.Comparable { return p[i] }
func (p planePoints) Len() int                      { return len(p) }
func (p planePoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

func (p planePoints) Pivot(d kdtree.Dim) int {
	return axis{points: p, dim: d}.pivot()
}

// axis sorts planePoints along one dimension for median partitioning.
type axis struct {
	points planePoints
	dim    kdtree.Dim
}

func (a axis) pivot() int { return kdtree.Partition(a, kdtree.MedianOfMedians(a)) }

func (a axis) Len() int { return len(a.points) }

func (a axis) Less(i, j int) bool {
	return a.points[i].Compare(a.points[j], a.dim) < 0
}

func (a axis) Swap(i, j int) { a.points[i], a.points[j] = a.points[j], a.points[i] }

func (a axis) Slice(start, end int) kdtree.SortSlicer {
	a.points = a.points[start:end]
	return a
}
