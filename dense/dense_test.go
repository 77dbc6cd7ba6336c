package dense

import (
	"testing"

	"github.com/janelia-flyem/govdb/vdb"
)

func TestNewBufferErrors(t *testing.T) {
	empty := vdb.NewCoordBBox(vdb.Coord{X: 1, Y: 0, Z: 0}, vdb.Coord{X: 0, Y: 0, Z: 0})
	if _, err := NewBuffer(empty); err == nil {
		t.Error("NewBuffer with empty bbox should fail")
	}
	if _, err := NewFilledBuffer(empty, 1); err == nil {
		t.Error("NewFilledBuffer with empty bbox should fail")
	}
	if _, err := NewBufferFromSlice(empty, make([]float32, 10)); err == nil {
		t.Error("NewBufferFromSlice with empty bbox should fail")
	}
	if _, err := NewBufferFromDims(vdb.Coord{X: 4, Y: 0, Z: 4}, vdb.Coord{X: 0, Y: 0, Z: 0}); err == nil {
		t.Error("NewBufferFromDims with zero extent should fail")
	}

	bbox := vdb.NewCoordBBox(vdb.Coord{X: 0, Y: 0, Z: 0}, vdb.Coord{X: 3, Y: 3, Z: 3})
	if _, err := NewBufferFromSlice(bbox, make([]float32, 63)); err == nil {
		t.Error("NewBufferFromSlice with short slice should fail")
	}
}

func TestBufferStrides(t *testing.T) {
	// For extents (X,Y,Z), local (i,j,k) maps to offset k + j*Z + i*Y*Z.
	bbox := vdb.NewCoordBBox(vdb.Coord{X: -1, Y: 2, Z: 3}, vdb.Coord{X: 1, Y: 5, Z: 7}) // extents 3,4,5
	d, err := NewBuffer(bbox)
	if err != nil {
		t.Fatal(err)
	}
	if d.YStride() != 5 {
		t.Errorf("Expected y stride 5, got %d", d.YStride())
	}
	if d.XStride() != 20 {
		t.Errorf("Expected x stride 20, got %d", d.XStride())
	}
	if d.VoxelCount() != 60 {
		t.Errorf("Expected 60 voxels, got %d", d.VoxelCount())
	}

	// Offsets of all voxels are pairwise distinct and span [0, X*Y*Z).
	seen := make([]bool, d.VoxelCount())
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 5; k++ {
				offset := d.LocalToOffset(i, j, k)
				if offset != k+j*5+i*20 {
					t.Fatalf("Offset of (%d,%d,%d) is %d, expected %d", i, j, k, offset, k+j*5+i*20)
				}
				if offset < 0 || offset >= len(seen) || seen[offset] {
					t.Fatalf("Offset %d of (%d,%d,%d) out of range or duplicated", offset, i, j, k)
				}
				seen[offset] = true
			}
		}
	}

	// Signed coordinates address the same voxels relative to the box minimum.
	if d.CoordToOffset(vdb.Coord{X: -1, Y: 2, Z: 3}) != 0 {
		t.Error("Box minimum should map to offset 0")
	}
	if d.CoordToOffset(vdb.Coord{X: 1, Y: 5, Z: 7}) != int(d.VoxelCount())-1 {
		t.Error("Box maximum should map to the last offset")
	}
}

func TestBufferValues(t *testing.T) {
	d, err := NewFilledBuffer(vdb.NewCoordBBox(vdb.Coord{X: 0, Y: 0, Z: 0}, vdb.Coord{X: 2, Y: 2, Z: 2}), 1.5)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range d.Values() {
		if v != 1.5 {
			t.Fatalf("NewFilledBuffer should initialize every value, got %g", v)
		}
	}

	d.SetValueAt(vdb.Coord{X: 1, Y: 1, Z: 1}, 8)
	if v := d.ValueAt(vdb.Coord{X: 1, Y: 1, Z: 1}); v != 8 {
		t.Errorf("Expected 8, got %g", v)
	}
	d.SetValueLocal(0, 0, 2, 3)
	if v := d.Value(2); v != 3 {
		t.Errorf("Expected 3 at offset 2, got %g", v)
	}
	d.SetValue(0, -4)
	if v := d.ValueLocal(0, 0, 0); v != -4 {
		t.Errorf("Expected -4, got %g", v)
	}

	d.Fill(0)
	for _, v := range d.Values() {
		if v != 0 {
			t.Fatalf("Fill should overwrite every value, got %g", v)
		}
	}
}

func TestBufferFromSlice(t *testing.T) {
	values := make([]float32, 64)
	for i := range values {
		values[i] = float32(i)
	}
	bbox := vdb.NewCoordBBox(vdb.Coord{X: 0, Y: 0, Z: 0}, vdb.Coord{X: 3, Y: 3, Z: 3})
	d, err := NewBufferFromSlice(bbox, values)
	if err != nil {
		t.Fatal(err)
	}

	if v := d.ValueAt(vdb.Coord{X: 0, Y: 0, Z: 0}); v != 0 {
		t.Errorf("Expected 0, got %g", v)
	}
	if v := d.ValueAt(vdb.Coord{X: 3, Y: 3, Z: 3}); v != 63 {
		t.Errorf("Expected 63, got %g", v)
	}

	// Writes through the buffer are visible in the caller's slice.
	d.SetValueAt(vdb.Coord{X: 0, Y: 0, Z: 1}, -9)
	if values[1] != -9 {
		t.Errorf("Borrowed slice should alias buffer storage, got %g", values[1])
	}
	if d.ownership != borrowedArray {
		t.Error("Slice-backed buffer should be marked borrowed")
	}
}

func TestBufferMemUsage(t *testing.T) {
	d, err := NewBuffer(vdb.NewCoordBBox(vdb.Coord{X: 0, Y: 0, Z: 0}, vdb.Coord{X: 7, Y: 7, Z: 7}))
	if err != nil {
		t.Fatal(err)
	}
	if mem := d.MemUsage(); mem < 512*4 {
		t.Errorf("Memory usage %d should at least cover %d value bytes", mem, 512*4)
	}
	if d.String() == "" {
		t.Error("String should describe the buffer")
	}
}
