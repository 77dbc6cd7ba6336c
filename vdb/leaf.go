package vdb

import "math"

// DenseArray is the subset of a dense buffer that grid and leaf operations
// read or write.  The backing slice is laid out with the z coordinate
// fastest-varying: the offset of the voxel at local coordinate (i,j,k)
// relative to BBox().Min is k + j*YStride() + i*XStride().
type DenseArray interface {
	// BBox returns the inclusive signed coordinate range of the array.
	BBox() CoordBBox

	// XStride returns the array stride along x ( = dimY*dimZ).
	XStride() int

	// YStride returns the array stride along y ( = dimZ).
	YStride() int

	// Values returns the backing value slice.
	Values() []float32
}

// FloatLeafNode is a leaf node of a float32 grid: 8³ = 512 voxels with
// per-voxel values and an active-state bitmask.  Voxels are stored with the
// z coordinate fastest-varying, matching the dense buffer layout.
type FloatLeafNode struct {
	Origin    Coord      // origin coordinate of this leaf region
	ValueMask Mask512    // which voxels are active
	Values    [LeafValues]float32
}

// NewFloatLeafNode returns a leaf with all voxels inactive and zero-valued.
func NewFloatLeafNode() *FloatLeafNode {
	return &FloatLeafNode{}
}

// LeafOffsetOf returns the linear offset within a leaf of the voxel at the
// given coordinate.  Only the low LeafLog2Dim bits of each component are
// used, so any coordinate within the leaf's region maps correctly.
func LeafOffsetOf(c Coord) int {
	return int(c.X&(LeafDim-1))<<(2*LeafLog2Dim) |
		int(c.Y&(LeafDim-1))<<LeafLog2Dim |
		int(c.Z&(LeafDim-1))
}

// SetOrigin sets the spatial origin of this leaf's region.
func (leaf *FloatLeafNode) SetOrigin(origin Coord) {
	leaf.Origin = origin
}

// BBox returns the inclusive coordinate range spanned by this leaf.
func (leaf *FloatLeafNode) BBox() CoordBBox {
	return CoordBBox{leaf.Origin, leaf.Origin.OffsetBy(LeafDim - 1)}
}

// Fill sets every voxel of the leaf to the given value and active state.
func (leaf *FloatLeafNode) Fill(value float32, active bool) {
	for i := range leaf.Values {
		leaf.Values[i] = value
	}
	leaf.ValueMask.SetAll(active)
}

// ValueAt returns the value and active state of the voxel at the given coordinate.
func (leaf *FloatLeafNode) ValueAt(c Coord) (float32, bool) {
	offset := LeafOffsetOf(c)
	return leaf.Values[offset], leaf.ValueMask.GetBit(offset)
}

// SetValueOn sets the voxel at the given coordinate to an active value.
func (leaf *FloatLeafNode) SetValueOn(c Coord, value float32) {
	offset := LeafOffsetOf(c)
	leaf.Values[offset] = value
	leaf.ValueMask.SetBit(offset)
}

// SetValueOff sets the voxel at the given coordinate to an inactive value.
func (leaf *FloatLeafNode) SetValueOff(c Coord, value float32) {
	offset := LeafOffsetOf(c)
	leaf.Values[offset] = value
	leaf.ValueMask.ClearBit(offset)
}

// CopyFromDense overlays values from the given coordinate range of a dense
// array onto this leaf.  Values within tolerance of background are stored as
// inactive background voxels; all others are stored as active values.
// The range must lie within both the leaf's region and the array's bounding box.
func (leaf *FloatLeafNode) CopyFromDense(bbox CoordBBox, src DenseArray, background, tolerance float32) {
	data := src.Values()
	min := src.BBox().Min
	xStride, yStride := src.XStride(), src.YStride()
	for x := bbox.Min.X; x <= bbox.Max.X; x++ {
		for y := bbox.Min.Y; y <= bbox.Max.Y; y++ {
			offset := int(x-min.X)*xStride + int(y-min.Y)*yStride + int(bbox.Min.Z-min.Z)
			for z := bbox.Min.Z; z <= bbox.Max.Z; z++ {
				v := data[offset]
				if absDiff(v, background) <= tolerance {
					leaf.SetValueOff(Coord{x, y, z}, background)
				} else {
					leaf.SetValueOn(Coord{x, y, z}, v)
				}
				offset++
			}
		}
	}
}

// CopyToDense writes this leaf's values, active and inactive, into the given
// coordinate range of a dense array.  The range must lie within both the
// leaf's region and the array's bounding box.
func (leaf *FloatLeafNode) CopyToDense(bbox CoordBBox, dst DenseArray) {
	data := dst.Values()
	min := dst.BBox().Min
	xStride, yStride := dst.XStride(), dst.YStride()
	for x := bbox.Min.X; x <= bbox.Max.X; x++ {
		for y := bbox.Min.Y; y <= bbox.Max.Y; y++ {
			offset := int(x-min.X)*xStride + int(y-min.Y)*yStride + int(bbox.Min.Z-min.Z)
			leafOff := LeafOffsetOf(Coord{x, y, bbox.Min.Z})
			for z := bbox.Min.Z; z <= bbox.Max.Z; z++ {
				data[offset] = leaf.Values[leafOff]
				offset++
				leafOff++
			}
		}
	}
}

// IsConstant reports whether every voxel of the leaf shares one active state
// and a value within tolerance of the first voxel's value.  If so, that value
// and state are returned with constant == true.
func (leaf *FloatLeafNode) IsConstant(tolerance float32) (value float32, active bool, constant bool) {
	value = leaf.Values[0]
	active = leaf.ValueMask.GetBit(0)
	on := leaf.ValueMask.CountOn()
	if on != 0 && on != LeafValues {
		return value, active, false
	}
	for i := 1; i < LeafValues; i++ {
		if absDiff(leaf.Values[i], value) > tolerance {
			return value, active, false
		}
	}
	return value, active, true
}

func absDiff(a, b float32) float32 {
	return float32(math.Abs(float64(a) - float64(b)))
}
