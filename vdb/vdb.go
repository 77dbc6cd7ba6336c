// Package vdb provides an in-memory, pure Go sparse voxel grid in the style
// of NanoVDB value grids.
//
// The grid stores float32 values in a shallow hierarchy: 8³ leaf nodes hold
// per-voxel values and an active-state bitmask, while constant regions are
// represented by tiles at leaf (8³), lower (128³), or upper (4096³)
// granularity without materializing per-voxel storage.  Any region not
// explicitly stored has the grid's background value and is inactive.
//
// Node dimensions follow NanoVDB: Root -> Upper (32³) -> Lower (16³) -> Leaf (8³).
package vdb

import (
	"fmt"
	"math"
	"math/bits"
)

// Node dimensions (log2) from NanoVDB.
const (
	LeafLog2Dim  = 3 // 8³ = 512 voxels per leaf
	LowerLog2Dim = 4 // 16³ children per lower internal node
	UpperLog2Dim = 5 // 32³ children per upper internal node

	LeafDim  = 1 << LeafLog2Dim  // 8
	LowerDim = 1 << LowerLog2Dim // 16
	UpperDim = 1 << UpperLog2Dim // 32

	// Total voxels spanned per axis by each node type.
	LeafTotalDim  = LeafDim                  // 8 voxels
	LowerTotalDim = LowerDim * LeafTotalDim  // 128 voxels
	UpperTotalDim = UpperDim * LowerTotalDim // 4096 voxels

	// Number of values per leaf node.
	LeafValues = LeafDim * LeafDim * LeafDim // 512
)

// Tile levels accepted by FloatGrid.AddTile.
const (
	LeafTileLevel  = 1 // tile spans one leaf region (8³)
	LowerTileLevel = 2 // tile spans one lower region (128³)
	UpperTileLevel = 3 // tile spans one upper region (4096³)
)

// Coord represents a 3D integer voxel coordinate.
type Coord struct {
	X, Y, Z int32
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Add returns the component-wise sum of two coordinates.
func (c Coord) Add(c2 Coord) Coord {
	return Coord{c.X + c2.X, c.Y + c2.Y, c.Z + c2.Z}
}

// OffsetBy returns the coordinate with the scalar added to every component.
func (c Coord) OffsetBy(n int32) Coord {
	return Coord{c.X + n, c.Y + n, c.Z + n}
}

// MinComponent returns the component-wise minimum of two coordinates.
func MinComponent(a, b Coord) Coord {
	return Coord{MinInt32(a.X, b.X), MinInt32(a.Y, b.Y), MinInt32(a.Z, b.Z)}
}

// MaxComponent returns the component-wise maximum of two coordinates.
func MaxComponent(a, b Coord) Coord {
	return Coord{MaxInt32(a.X, b.X), MaxInt32(a.Y, b.Y), MaxInt32(a.Z, b.Z)}
}

// LeafOrigin returns the origin coordinate of the leaf region containing c.
func LeafOrigin(c Coord) Coord {
	mask := int32(^(LeafTotalDim - 1))
	return Coord{c.X & mask, c.Y & mask, c.Z & mask}
}

// LowerOrigin returns the origin coordinate of the lower region containing c.
func LowerOrigin(c Coord) Coord {
	mask := int32(^(LowerTotalDim - 1))
	return Coord{c.X & mask, c.Y & mask, c.Z & mask}
}

// UpperOrigin returns the origin coordinate of the upper region containing c.
func UpperOrigin(c Coord) Coord {
	mask := int32(^(UpperTotalDim - 1))
	return Coord{c.X & mask, c.Y & mask, c.Z & mask}
}

// CoordBBox represents an inclusive bounding box of coordinates.
type CoordBBox struct {
	Min, Max Coord
}

// NewCoordBBox returns the inclusive bounding box [min, max].
func NewCoordBBox(min, max Coord) CoordBBox {
	return CoordBBox{min, max}
}

// NewEmptyBBox creates a bounding box initialized to "empty" state.
func NewEmptyBBox() CoordBBox {
	return CoordBBox{
		Min: Coord{math.MaxInt32, math.MaxInt32, math.MaxInt32},
		Max: Coord{math.MinInt32, math.MinInt32, math.MinInt32},
	}
}

func (bbox CoordBBox) String() string {
	return fmt.Sprintf("[%s, %s]", bbox.Min, bbox.Max)
}

// IsEmpty returns true if the bounding box contains no coordinates.
func (bbox CoordBBox) IsEmpty() bool {
	return bbox.Min.X > bbox.Max.X || bbox.Min.Y > bbox.Max.Y || bbox.Min.Z > bbox.Max.Z
}

// Dim returns the extent of the bounding box along each axis.
func (bbox CoordBBox) Dim() Coord {
	return Coord{bbox.Max.X - bbox.Min.X + 1, bbox.Max.Y - bbox.Min.Y + 1, bbox.Max.Z - bbox.Min.Z + 1}
}

// Volume returns the number of coordinates within the bounding box.
func (bbox CoordBBox) Volume() int64 {
	if bbox.IsEmpty() {
		return 0
	}
	d := bbox.Dim()
	return int64(d.X) * int64(d.Y) * int64(d.Z)
}

// IsInside returns true if the coordinate lies within the bounding box.
func (bbox CoordBBox) IsInside(c Coord) bool {
	return c.X >= bbox.Min.X && c.X <= bbox.Max.X &&
		c.Y >= bbox.Min.Y && c.Y <= bbox.Max.Y &&
		c.Z >= bbox.Min.Z && c.Z <= bbox.Max.Z
}

// Intersect returns the intersection of two bounding boxes, which may be empty.
func (bbox CoordBBox) Intersect(other CoordBBox) CoordBBox {
	return CoordBBox{
		Min: MaxComponent(bbox.Min, other.Min),
		Max: MinComponent(bbox.Max, other.Max),
	}
}

// ExpandBBox expands the bounding box to include the given coordinate.
func (bbox *CoordBBox) ExpandBBox(c Coord) {
	if c.X < bbox.Min.X {
		bbox.Min.X = c.X
	}
	if c.Y < bbox.Min.Y {
		bbox.Min.Y = c.Y
	}
	if c.Z < bbox.Min.Z {
		bbox.Min.Z = c.Z
	}
	if c.X > bbox.Max.X {
		bbox.Max.X = c.X
	}
	if c.Y > bbox.Max.Y {
		bbox.Max.Y = c.Y
	}
	if c.Z > bbox.Max.Z {
		bbox.Max.Z = c.Z
	}
}

// ExpandBBoxRange expands the bounding box to include another bounding box.
func (bbox *CoordBBox) ExpandBBoxRange(other CoordBBox) {
	if other.IsEmpty() {
		return
	}
	bbox.ExpandBBox(other.Min)
	bbox.ExpandBBox(other.Max)
}

// Mask512 represents a bitmask for 512 elements (8 x uint64 = 512 bits),
// one bit per voxel of a leaf node.
type Mask512 [8]uint64

// SetBit sets the bit at position i.
func (m *Mask512) SetBit(i int) {
	if i >= 0 && i < 512 {
		m[i>>6] |= 1 << (i & 63)
	}
}

// ClearBit clears the bit at position i.
func (m *Mask512) ClearBit(i int) {
	if i >= 0 && i < 512 {
		m[i>>6] &^= 1 << (i & 63)
	}
}

// GetBit returns true if bit at position i is set.
func (m *Mask512) GetBit(i int) bool {
	if i >= 0 && i < 512 {
		return (m[i>>6] & (1 << (i & 63))) != 0
	}
	return false
}

// CountOn returns the number of set bits.
func (m *Mask512) CountOn() int {
	count := 0
	for _, v := range m {
		count += bits.OnesCount64(v)
	}
	return count
}

// SetAll sets every bit on or off.
func (m *Mask512) SetAll(on bool) {
	var v uint64
	if on {
		v = ^uint64(0)
	}
	for i := range m {
		m[i] = v
	}
}

// MinInt32 returns the minimum of two int32 values.
func MinInt32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// MaxInt32 returns the maximum of two int32 values.
func MaxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
