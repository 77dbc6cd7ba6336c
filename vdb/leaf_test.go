package vdb

import "testing"

// testDense is a minimal DenseArray used to exercise leaf and grid copies
// without depending on the dense package.
type testDense struct {
	bbox   CoordBBox
	values []float32
}

func newTestDense(bbox CoordBBox) *testDense {
	return &testDense{bbox: bbox, values: make([]float32, bbox.Volume())}
}

func (d *testDense) BBox() CoordBBox  { return d.bbox }
func (d *testDense) YStride() int     { return int(d.bbox.Dim().Z) }
func (d *testDense) XStride() int     { return int(d.bbox.Dim().Y) * int(d.bbox.Dim().Z) }
func (d *testDense) Values() []float32 { return d.values }

func (d *testDense) offsetOf(c Coord) int {
	return int(c.Z-d.bbox.Min.Z) + int(c.Y-d.bbox.Min.Y)*d.YStride() + int(c.X-d.bbox.Min.X)*d.XStride()
}

func TestLeafFill(t *testing.T) {
	leaf := NewFloatLeafNode()
	leaf.Fill(3.5, true)

	if v, active := leaf.ValueAt(Coord{3, 4, 5}); v != 3.5 || !active {
		t.Errorf("Expected (3.5, active), got (%g, %t)", v, active)
	}
	if leaf.ValueMask.CountOn() != LeafValues {
		t.Errorf("Expected all voxels active, got %d", leaf.ValueMask.CountOn())
	}

	leaf.Fill(0, false)
	if v, active := leaf.ValueAt(Coord{0, 0, 0}); v != 0 || active {
		t.Errorf("Expected (0, inactive), got (%g, %t)", v, active)
	}
}

func TestLeafSetValue(t *testing.T) {
	leaf := NewFloatLeafNode()
	leaf.SetValueOn(Coord{1, 2, 3}, 7)
	leaf.SetValueOff(Coord{4, 5, 6}, -2)

	if v, active := leaf.ValueAt(Coord{1, 2, 3}); v != 7 || !active {
		t.Errorf("Expected (7, active), got (%g, %t)", v, active)
	}
	if v, active := leaf.ValueAt(Coord{4, 5, 6}); v != -2 || active {
		t.Errorf("Expected (-2, inactive), got (%g, %t)", v, active)
	}
	if leaf.ValueMask.CountOn() != 1 {
		t.Errorf("Expected 1 active voxel, got %d", leaf.ValueMask.CountOn())
	}
}

func TestLeafIsConstant(t *testing.T) {
	leaf := NewFloatLeafNode()
	leaf.Fill(2, true)

	if value, active, constant := leaf.IsConstant(0); !constant || value != 2 || !active {
		t.Errorf("Filled leaf should be constant (2, active), got (%g, %t, %t)", value, active, constant)
	}

	// One diverging value breaks exact constancy but not a loose tolerance.
	leaf.SetValueOn(Coord{0, 0, 0}, 2.05)
	if _, _, constant := leaf.IsConstant(0); constant {
		t.Error("Leaf with diverging value should not be constant at tolerance 0")
	}
	if _, _, constant := leaf.IsConstant(0.1); !constant {
		t.Error("Leaf should be constant within tolerance 0.1")
	}

	// Mixed active states are never constant.
	leaf.Fill(2, true)
	leaf.SetValueOff(Coord{7, 7, 7}, 2)
	if _, _, constant := leaf.IsConstant(1); constant {
		t.Error("Leaf with mixed active states should not be constant")
	}
}

func TestLeafCopyFromDense(t *testing.T) {
	bbox := NewCoordBBox(Coord{0, 0, 0}, Coord{7, 7, 7})
	d := newTestDense(bbox)
	for i := range d.values {
		d.values[i] = 1 // background
	}
	d.values[d.offsetOf(Coord{1, 2, 3})] = 5
	d.values[d.offsetOf(Coord{4, 4, 4})] = 1.05 // within tolerance of background

	leaf := NewFloatLeafNode()
	leaf.Fill(1, false)
	leaf.CopyFromDense(bbox, d, 1, 0.1)

	if v, active := leaf.ValueAt(Coord{1, 2, 3}); v != 5 || !active {
		t.Errorf("Expected (5, active), got (%g, %t)", v, active)
	}
	if v, active := leaf.ValueAt(Coord{4, 4, 4}); v != 1 || active {
		t.Errorf("Near-background value should be stored as (1, inactive), got (%g, %t)", v, active)
	}
	if leaf.ValueMask.CountOn() != 1 {
		t.Errorf("Expected 1 active voxel, got %d", leaf.ValueMask.CountOn())
	}
}

func TestLeafCopyFromDensePartial(t *testing.T) {
	// Overlay only a sub-range; voxels outside it keep their prior state.
	bbox := NewCoordBBox(Coord{0, 0, 0}, Coord{7, 7, 7})
	d := newTestDense(bbox)
	for i := range d.values {
		d.values[i] = 9
	}

	leaf := NewFloatLeafNode()
	leaf.Fill(4, true)
	sub := NewCoordBBox(Coord{0, 0, 0}, Coord{3, 7, 7})
	leaf.CopyFromDense(sub, d, 0, 0)

	if v, active := leaf.ValueAt(Coord{2, 0, 0}); v != 9 || !active {
		t.Errorf("Overlaid voxel should be (9, active), got (%g, %t)", v, active)
	}
	if v, active := leaf.ValueAt(Coord{5, 0, 0}); v != 4 || !active {
		t.Errorf("Untouched voxel should keep (4, active), got (%g, %t)", v, active)
	}
}

func TestLeafCopyToDense(t *testing.T) {
	leaf := NewFloatLeafNode()
	leaf.Fill(0, false)
	leaf.SetValueOn(Coord{1, 1, 1}, 6)
	leaf.SetValueOff(Coord{2, 2, 2}, -3) // inactive values are copied too

	bbox := NewCoordBBox(Coord{0, 0, 0}, Coord{7, 7, 7})
	d := newTestDense(bbox)
	for i := range d.values {
		d.values[i] = 99
	}
	leaf.CopyToDense(bbox, d)

	if v := d.values[d.offsetOf(Coord{1, 1, 1})]; v != 6 {
		t.Errorf("Expected 6, got %g", v)
	}
	if v := d.values[d.offsetOf(Coord{2, 2, 2})]; v != -3 {
		t.Errorf("Inactive value should be copied, got %g", v)
	}
	if v := d.values[d.offsetOf(Coord{0, 0, 0})]; v != 0 {
		t.Errorf("Expected 0, got %g", v)
	}
}
