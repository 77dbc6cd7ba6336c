// Package dense provides a fully-materialized 3d voxel buffer addressed by
// signed integer coordinates, plus high-throughput converters between the
// buffer and the sparse grids of the vdb package.
//
// A Buffer can represent orders of magnitude more memory than the sparse
// grid it is converted from, since it stores every voxel in its bounding box.
package dense

import (
	"fmt"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/govdb/vdb"
)

// arrayOwnership says whether a buffer allocated its backing array or wraps
// one supplied by the caller.
type arrayOwnership uint8

const (
	ownedArray    arrayOwnership = iota // allocated with the buffer
	borrowedArray                       // caller guarantees size and lifetime
)

// Buffer is a dense float32 voxel array over an inclusive signed coordinate
// bounding box.  Values are laid out with the z coordinate fastest-varying,
// the same layout the vdb package uses, so the voxel at local coordinate
// (i,j,k) relative to the box minimum lives at offset k + j*YStride() +
// i*XStride().
//
// The bounding box and strides are fixed at construction; values are mutable
// in place.
type Buffer struct {
	bbox      vdb.CoordBBox
	values    []float32
	ownership arrayOwnership
	yStride   int // size along z, the fastest-varying axis
	xStride   int // yStride * size along y
}

// NewBuffer constructs a buffer covering the given bounding box, with all
// values zero.  The min and max coordinates of the box are inclusive.
func NewBuffer(bbox vdb.CoordBBox) (*Buffer, error) {
	if bbox.IsEmpty() {
		return nil, fmt.Errorf("can't construct a dense buffer with an empty bounding box %s", bbox)
	}
	dim := bbox.Dim()
	return &Buffer{
		bbox:      bbox,
		values:    make([]float32, bbox.Volume()),
		ownership: ownedArray,
		yStride:   int(dim.Z),
		xStride:   int(dim.Y) * int(dim.Z),
	}, nil
}

// NewFilledBuffer constructs a buffer covering the given bounding box with
// every value initialized to the given value.
func NewFilledBuffer(bbox vdb.CoordBBox, value float32) (*Buffer, error) {
	d, err := NewBuffer(bbox)
	if err != nil {
		return nil, err
	}
	d.Fill(value)
	return d, nil
}

// NewBufferFromSlice constructs a buffer that wraps a caller-supplied value
// slice instead of allocating its own.  The slice must hold at least the
// box's voxel count, laid out with z fastest-varying, and must stay alive for
// the buffer's lifetime.
func NewBufferFromSlice(bbox vdb.CoordBBox, values []float32) (*Buffer, error) {
	if bbox.IsEmpty() {
		return nil, fmt.Errorf("can't construct a dense buffer with an empty bounding box %s", bbox)
	}
	if int64(len(values)) < bbox.Volume() {
		return nil, fmt.Errorf("dense buffer slice has %d values, needs %d for bounding box %s",
			len(values), bbox.Volume(), bbox)
	}
	dim := bbox.Dim()
	return &Buffer{
		bbox:      bbox,
		values:    values,
		ownership: borrowedArray,
		yStride:   int(dim.Z),
		xStride:   int(dim.Y) * int(dim.Z),
	}, nil
}

// NewBufferFromDims constructs a buffer with the given dimensions whose first
// voxel is at min, so the box spans [min, min+dim-1].
func NewBufferFromDims(dim, min vdb.Coord) (*Buffer, error) {
	if dim.X <= 0 || dim.Y <= 0 || dim.Z <= 0 {
		return nil, fmt.Errorf("can't construct a dense buffer with dimensions %s", dim)
	}
	return NewBuffer(vdb.CoordBBox{Min: min, Max: min.Add(dim.OffsetBy(-1))})
}

// Values returns the buffer's backing value slice for direct access.
func (d *Buffer) Values() []float32 {
	return d.values
}

// BBox returns the inclusive signed coordinate range of this buffer.
func (d *Buffer) BBox() vdb.CoordBBox {
	return d.bbox
}

// XStride returns the array stride along x ( = dimY*dimZ).
func (d *Buffer) XStride() int {
	return d.xStride
}

// YStride returns the array stride along y ( = dimZ).
func (d *Buffer) YStride() int {
	return d.yStride
}

// VoxelCount returns the number of voxels contained in this buffer.
func (d *Buffer) VoxelCount() int64 {
	return d.bbox.Volume()
}

// MemUsage returns the deep memory usage of the buffer in bytes, including
// a borrowed backing array.
func (d *Buffer) MemUsage() uint64 {
	return uint64(size.Of(d))
}

func (d *Buffer) String() string {
	return fmt.Sprintf("dense buffer %s (%d voxels, %s)",
		d.bbox, d.VoxelCount(), humanize.Bytes(d.MemUsage()))
}

// Fill sets every value of the buffer to the given value.
func (d *Buffer) Fill(value float32) {
	for i := range d.values {
		d.values[i] = value
	}
}

// Value returns the value at the given array offset.
func (d *Buffer) Value(offset int) float32 {
	return d.values[offset]
}

// SetValue sets the value at the given array offset.
func (d *Buffer) SetValue(offset int, value float32) {
	d.values[offset] = value
}

// LocalToOffset returns the linear array offset of the voxel at unsigned
// local coordinates (i,j,k), i.e. coordinates relative to the minimum corner
// of the buffer's bounding box.
func (d *Buffer) LocalToOffset(i, j, k int) int {
	return k + j*d.yStride + i*d.xStride
}

// CoordToOffset returns the linear array offset of the voxel at the given
// signed coordinate, which must lie inside the buffer's bounding box.
func (d *Buffer) CoordToOffset(c vdb.Coord) int {
	return d.LocalToOffset(int(c.X-d.bbox.Min.X), int(c.Y-d.bbox.Min.Y), int(c.Z-d.bbox.Min.Z))
}

// ValueLocal returns the value at unsigned local coordinates (i,j,k).
func (d *Buffer) ValueLocal(i, j, k int) float32 {
	return d.values[d.LocalToOffset(i, j, k)]
}

// SetValueLocal sets the value at unsigned local coordinates (i,j,k).
func (d *Buffer) SetValueLocal(i, j, k int, value float32) {
	d.values[d.LocalToOffset(i, j, k)] = value
}

// ValueAt returns the value at the given signed coordinate, which must lie
// inside the buffer's bounding box.
func (d *Buffer) ValueAt(c vdb.Coord) float32 {
	return d.values[d.CoordToOffset(c)]
}

// SetValueAt sets the value at the given signed coordinate, which must lie
// inside the buffer's bounding box.
func (d *Buffer) SetValueAt(c vdb.Coord, value float32) {
	d.values[d.CoordToOffset(c)] = value
}
