package vdb

// Accessor is a probe handle over a grid that caches the most recently
// visited leaf region, making repeated probes within one region cheap.
//
// An Accessor must not be shared across goroutines: concurrent workers over
// the same grid should each construct their own.
type Accessor struct {
	grid   *FloatGrid
	origin Coord
	leaf   *FloatLeafNode
	cached bool
}

// NewAccessor returns an accessor over the given grid.
func NewAccessor(g *FloatGrid) *Accessor {
	return &Accessor{grid: g}
}

// ProbeLeaf returns the leaf node covering the given coordinate, or nil if
// that region is represented by a tile or background.
func (a *Accessor) ProbeLeaf(c Coord) *FloatLeafNode {
	origin := LeafOrigin(c)
	if a.cached && a.origin == origin {
		return a.leaf
	}
	a.origin = origin
	a.leaf = a.grid.ProbeLeaf(c)
	a.cached = true
	return a.leaf
}

// ProbeValue returns the value and active state at the given coordinate.
func (a *Accessor) ProbeValue(c Coord) (float32, bool) {
	if leaf := a.ProbeLeaf(c); leaf != nil {
		return leaf.ValueAt(c)
	}
	return a.grid.ProbeValue(c)
}
