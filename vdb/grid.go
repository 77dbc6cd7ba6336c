package vdb

import (
	"fmt"

	"github.com/DmitriyVTitov/size"
)

// tileKey identifies a constant-value tile by its region origin and level.
type tileKey struct {
	origin Coord
	level  uint8
}

// tile is a constant (value, active-state) pair covering a whole region
// without per-voxel storage.
type tile struct {
	value  float32
	active bool
}

// FloatGrid is a sparse float32 voxel grid.  Leaf nodes hold 8³ regions of
// per-voxel data; tiles represent constant regions at leaf, lower (128³), or
// upper (4096³) granularity.  Any coordinate not covered by a leaf or tile
// has the background value and is inactive.
//
// A FloatGrid is safe for concurrent readers.  Mutation must not be
// concurrent with any other access.
type FloatGrid struct {
	background float32
	leaves     map[Coord]*FloatLeafNode
	tiles      map[tileKey]tile
}

// NewFloatGrid returns an empty grid with the given background value.
func NewFloatGrid(background float32) *FloatGrid {
	return &FloatGrid{
		background: background,
		leaves:     make(map[Coord]*FloatLeafNode),
		tiles:      make(map[tileKey]tile),
	}
}

// Background returns the grid-wide default value for unstored regions.
func (g *FloatGrid) Background() float32 {
	return g.background
}

// Empty returns true if the grid stores no leaves and no tiles.
func (g *FloatGrid) Empty() bool {
	return len(g.leaves) == 0 && len(g.tiles) == 0
}

// LeafCount returns the number of materialized leaf nodes.
func (g *FloatGrid) LeafCount() int {
	return len(g.leaves)
}

// TileCount returns the number of tiles at all levels.
func (g *FloatGrid) TileCount() int {
	return len(g.tiles)
}

// ActiveTileCount returns the number of active tiles at all levels.
func (g *FloatGrid) ActiveTileCount() int {
	count := 0
	for _, t := range g.tiles {
		if t.active {
			count++
		}
	}
	return count
}

func (g *FloatGrid) String() string {
	return fmt.Sprintf("float grid (background %g, %d leaves, %d tiles)",
		g.background, len(g.leaves), len(g.tiles))
}

// GetValue returns the grid's value at the given coordinate.
func (g *FloatGrid) GetValue(c Coord) float32 {
	v, _ := g.ProbeValue(c)
	return v
}

// IsActive returns the active state at the given coordinate.
func (g *FloatGrid) IsActive(c Coord) bool {
	_, active := g.ProbeValue(c)
	return active
}

// ProbeValue returns the value and active state at the given coordinate,
// falling through leaf, then leaf/lower/upper tiles, then background.
func (g *FloatGrid) ProbeValue(c Coord) (float32, bool) {
	leafOrigin := LeafOrigin(c)
	if leaf, found := g.leaves[leafOrigin]; found {
		return leaf.ValueAt(c)
	}
	if t, found := g.tiles[tileKey{leafOrigin, LeafTileLevel}]; found {
		return t.value, t.active
	}
	if t, found := g.tiles[tileKey{LowerOrigin(c), LowerTileLevel}]; found {
		return t.value, t.active
	}
	if t, found := g.tiles[tileKey{UpperOrigin(c), UpperTileLevel}]; found {
		return t.value, t.active
	}
	return g.background, false
}

// ProbeLeaf returns the leaf node covering the given coordinate, or nil if
// that region is represented by a tile or background.
func (g *FloatGrid) ProbeLeaf(c Coord) *FloatLeafNode {
	return g.leaves[LeafOrigin(c)]
}

// AddLeaf inserts or replaces the leaf node covering the leaf's origin,
// taking ownership of the node.  Any tile at that leaf region is removed.
func (g *FloatGrid) AddLeaf(leaf *FloatLeafNode) {
	origin := LeafOrigin(leaf.Origin)
	leaf.Origin = origin
	g.leaves[origin] = leaf
	delete(g.tiles, tileKey{origin, LeafTileLevel})
}

// AddTile inserts or replaces a constant tile at the given level covering
// the region containing c.  Finer-grained content within the region is removed.
func (g *FloatGrid) AddTile(level int, c Coord, value float32, active bool) error {
	var origin Coord
	switch level {
	case LeafTileLevel:
		origin = LeafOrigin(c)
		delete(g.leaves, origin)
	case LowerTileLevel:
		origin = LowerOrigin(c)
		g.clearRegion(CoordBBox{origin, origin.OffsetBy(LowerTotalDim - 1)}, LowerTileLevel)
	case UpperTileLevel:
		origin = UpperOrigin(c)
		g.clearRegion(CoordBBox{origin, origin.OffsetBy(UpperTotalDim - 1)}, UpperTileLevel)
	default:
		return fmt.Errorf("can't add tile at unknown level %d", level)
	}
	g.tiles[tileKey{origin, uint8(level)}] = tile{value, active}
	return nil
}

// EraseLeafRegion removes any leaf node or leaf-level tile covering the
// region containing c, reverting it to background.
func (g *FloatGrid) EraseLeafRegion(c Coord) {
	origin := LeafOrigin(c)
	delete(g.leaves, origin)
	delete(g.tiles, tileKey{origin, LeafTileLevel})
}

// clearRegion removes all leaves, and all tiles finer than the given level,
// whose origin lies inside bbox.
func (g *FloatGrid) clearRegion(bbox CoordBBox, level uint8) {
	for origin := range g.leaves {
		if bbox.IsInside(origin) {
			delete(g.leaves, origin)
		}
	}
	for key := range g.tiles {
		if key.level < level && bbox.IsInside(key.origin) {
			delete(g.tiles, key)
		}
	}
}

// ActiveVoxelCount returns the total number of active voxels, counting each
// active tile as its full region.
func (g *FloatGrid) ActiveVoxelCount() uint64 {
	var count uint64
	for _, leaf := range g.leaves {
		count += uint64(leaf.ValueMask.CountOn())
	}
	for key, t := range g.tiles {
		if !t.active {
			continue
		}
		switch key.level {
		case LeafTileLevel:
			count += LeafTotalDim * LeafTotalDim * LeafTotalDim
		case LowerTileLevel:
			count += LowerTotalDim * LowerTotalDim * LowerTotalDim
		case UpperTileLevel:
			count += UpperTotalDim * UpperTotalDim * UpperTotalDim
		}
	}
	return count
}

// BBox returns the bounding box of all stored content, which may be empty.
func (g *FloatGrid) BBox() CoordBBox {
	bbox := NewEmptyBBox()
	for origin := range g.leaves {
		bbox.ExpandBBox(origin)
		bbox.ExpandBBox(origin.OffsetBy(LeafTotalDim - 1))
	}
	for key := range g.tiles {
		bbox.ExpandBBox(key.origin)
		switch key.level {
		case LeafTileLevel:
			bbox.ExpandBBox(key.origin.OffsetBy(LeafTotalDim - 1))
		case LowerTileLevel:
			bbox.ExpandBBox(key.origin.OffsetBy(LowerTotalDim - 1))
		case UpperTileLevel:
			bbox.ExpandBBox(key.origin.OffsetBy(UpperTotalDim - 1))
		}
	}
	return bbox
}

// MemUsage returns the deep memory usage of the grid in bytes.
func (g *FloatGrid) MemUsage() uint64 {
	return uint64(size.Of(g))
}

// CopyToDense writes the grid's values, active and inactive, into the given
// coordinate range of a dense array.  The range must lie within the array's
// bounding box.  Every voxel in the range is overwritten, so afterward the
// array reflects the grid exactly over the range.
func (g *FloatGrid) CopyToDense(bbox CoordBBox, dst DenseArray) {
	// Walk the range in leaf-aligned sub-boxes.  Each sub-box is covered by
	// at most one leaf or one tile, so its source is uniform or one node.
	var sub CoordBBox
	for sub.Min.X = bbox.Min.X; sub.Min.X <= bbox.Max.X; sub.Min.X = sub.Max.X + 1 {
		for sub.Min.Y = bbox.Min.Y; sub.Min.Y <= bbox.Max.Y; sub.Min.Y = sub.Max.Y + 1 {
			for sub.Min.Z = bbox.Min.Z; sub.Min.Z <= bbox.Max.Z; sub.Min.Z = sub.Max.Z + 1 {
				sub.Max = MinComponent(bbox.Max, LeafOrigin(sub.Min).OffsetBy(LeafDim-1))
				if leaf := g.leaves[LeafOrigin(sub.Min)]; leaf != nil {
					leaf.CopyToDense(sub, dst)
				} else {
					value, _ := g.ProbeValue(sub.Min)
					fillDense(sub, dst, value)
				}
			}
		}
	}
}

// fillDense writes a constant value over a coordinate range of a dense array.
func fillDense(bbox CoordBBox, dst DenseArray, value float32) {
	data := dst.Values()
	min := dst.BBox().Min
	xStride, yStride := dst.XStride(), dst.YStride()
	for x := bbox.Min.X; x <= bbox.Max.X; x++ {
		for y := bbox.Min.Y; y <= bbox.Max.Y; y++ {
			offset := int(x-min.X)*xStride + int(y-min.Y)*yStride + int(bbox.Min.Z-min.Z)
			for z := bbox.Min.Z; z <= bbox.Max.Z; z++ {
				data[offset] = value
				offset++
			}
		}
	}
}

// PruneTiles collapses redundant tiles within the given tolerance: inactive
// tiles indistinguishable from background are removed, and fully-tiled
// sibling runs sharing one active state and near-equal values are replaced
// by a single coarser tile.  Leaf nodes are never pruned.
func (g *FloatGrid) PruneTiles(tolerance float32) {
	// Inactive tiles within tolerance of background are already implied by
	// the grid's background, unless they shadow a coarser tile that would
	// otherwise report a different value there.
	for key, t := range g.tiles {
		if !t.active && absDiff(t.value, g.background) <= tolerance && !g.coveredByCoarserTile(key) {
			delete(g.tiles, key)
		}
	}
	g.collapseLevel(LeafTileLevel, tolerance)
	g.collapseLevel(LowerTileLevel, tolerance)
}

// coveredByCoarserTile reports whether a tile's region also lies under a
// coarser tile.
func (g *FloatGrid) coveredByCoarserTile(key tileKey) bool {
	if key.level < LowerTileLevel {
		if _, found := g.tiles[tileKey{LowerOrigin(key.origin), LowerTileLevel}]; found {
			return true
		}
	}
	if key.level < UpperTileLevel {
		if _, found := g.tiles[tileKey{UpperOrigin(key.origin), UpperTileLevel}]; found {
			return true
		}
	}
	return false
}

// collapseLevel replaces complete, homogeneous runs of sibling tiles at the
// given level with single tiles one level coarser.
func (g *FloatGrid) collapseLevel(level uint8, tolerance float32) {
	childDim := int32(LowerDim)   // children per axis in the parent region
	childSpan := int32(LeafTotalDim)
	parentOrigin := LowerOrigin
	if level == LowerTileLevel {
		childDim = UpperDim
		childSpan = LowerTotalDim
		parentOrigin = UpperOrigin
	}
	full := int(childDim) * int(childDim) * int(childDim)

	counts := make(map[Coord]int)
	for key := range g.tiles {
		if key.level == level {
			counts[parentOrigin(key.origin)]++
		}
	}
	for parent, n := range counts {
		if n != full {
			continue
		}
		rep, found := g.tiles[tileKey{parent, level}]
		if !found {
			continue
		}
		if !g.regionIsHomogeneous(parent, level, childDim, childSpan, rep, tolerance) {
			continue
		}
		for i := int32(0); i < childDim; i++ {
			for j := int32(0); j < childDim; j++ {
				for k := int32(0); k < childDim; k++ {
					child := parent.Add(Coord{i * childSpan, j * childSpan, k * childSpan})
					delete(g.tiles, tileKey{child, level})
				}
			}
		}
		g.tiles[tileKey{parent, level + 1}] = rep
	}
}

// regionIsHomogeneous reports whether every child tile of the parent region
// matches the representative tile's active state and value within tolerance.
func (g *FloatGrid) regionIsHomogeneous(parent Coord, level uint8, childDim, childSpan int32, rep tile, tolerance float32) bool {
	for i := int32(0); i < childDim; i++ {
		for j := int32(0); j < childDim; j++ {
			for k := int32(0); k < childDim; k++ {
				child := parent.Add(Coord{i * childSpan, j * childSpan, k * childSpan})
				t, found := g.tiles[tileKey{child, level}]
				if !found || t.active != rep.active || absDiff(t.value, rep.value) > tolerance {
					return false
				}
			}
		}
	}
	return true
}
