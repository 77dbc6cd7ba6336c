package dense

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/govdb"
	"github.com/janelia-flyem/govdb/vdb"
)

// CopyToDense populates a dense buffer with the values of voxels from a
// sparse grid, over the grid's domain intersected with the buffer's bounding
// box.  Both active and inactive values are copied, so every value in the
// buffer is overwritten regardless of the grid's topology.  If serial is
// false, disjoint sub-ranges of the buffer are processed in parallel.
func CopyToDense(grid *vdb.FloatGrid, dst *Buffer, serial bool) {
	timelog := govdb.NewTimeLog()

	if serial {
		grid.CopyToDense(dst.BBox(), dst)
	} else {
		// The sub-boxes are disjoint and the grid is read-only, so workers
		// need no synchronization beyond the join.
		var wg sync.WaitGroup
		for _, sub := range splitBBox(dst.BBox(), 4*runtime.NumCPU()) {
			wg.Add(1)
			go func(sub vdb.CoordBBox) {
				defer wg.Done()
				grid.CopyToDense(sub, dst)
			}(sub)
		}
		wg.Wait()
	}

	timelog.Debugf("copied %s into %s", grid, dst)
}

// splitBBox recursively bisects a bounding box along its longest axis into
// at most parts disjoint sub-boxes that exactly cover it.
func splitBBox(bbox vdb.CoordBBox, parts int) []vdb.CoordBBox {
	dim := bbox.Dim()
	if parts <= 1 || (dim.X == 1 && dim.Y == 1 && dim.Z == 1) {
		return []vdb.CoordBBox{bbox}
	}
	lo, hi := bbox, bbox
	switch {
	case dim.X >= dim.Y && dim.X >= dim.Z && dim.X > 1:
		mid := bbox.Min.X + dim.X/2
		lo.Max.X = mid - 1
		hi.Min.X = mid
	case dim.Y >= dim.Z && dim.Y > 1:
		mid := bbox.Min.Y + dim.Y/2
		lo.Max.Y = mid - 1
		hi.Min.Y = mid
	default:
		mid := bbox.Min.Z + dim.Z/2
		lo.Max.Z = mid - 1
		hi.Min.Z = mid
	}
	return append(splitBBox(lo, parts/2), splitBBox(hi, parts-parts/2)...)
}

// block is the intersection of the source buffer's bounding box with one
// leaf-aligned cube: the unit of parallel work in dense-to-sparse
// conversion.  Exactly one worker writes its result fields during the build
// phase; the commit phase consumes them.
type block struct {
	bbox       vdb.CoordBBox
	leaf       *vdb.FloatLeafNode // set if the block is not constant
	tileValue  float32            // constant summary otherwise
	tileActive bool
}

// denseToSparse converts a dense buffer into leaf nodes and tiles of a
// target sparse grid in three phases: a single-threaded partition of the
// buffer's bounding box into leaf-aligned blocks, a parallel per-block build
// of candidate leaves, and a single-threaded commit into the grid followed
// by a tile-collapsing prune.
type denseToSparse struct {
	src       *Buffer
	grid      *vdb.FloatGrid
	tolerance float32
	blocks    []block
}

// CopyFromDense updates a sparse grid so that over the buffer's bounding box
// the grid matches the buffer, except that values within tolerance of the
// grid's background become inactive background voxels or tiles.  Grid
// content outside the buffer's bounding box is preserved.  If serial is
// false, blocks are built in parallel; the grid itself is only mutated
// single-threaded after all build work completes.
func CopyFromDense(src *Buffer, grid *vdb.FloatGrid, tolerance float32, serial bool) error {
	if tolerance < 0 {
		return fmt.Errorf("can't copy from dense buffer with negative tolerance %g", tolerance)
	}
	timelog := govdb.NewTimeLog()

	op := &denseToSparse{src: src, grid: grid, tolerance: tolerance}
	op.partition()
	if err := op.build(serial); err != nil {
		return err
	}
	if err := op.commit(); err != nil {
		return err
	}

	timelog.Debugf("copied %s into %s using %d blocks", src, grid, len(op.blocks))
	return nil
}

// partition walks the buffer's bounding box and appends one block per
// intersection with a leaf-aligned cube.  The blocks exactly tile the box
// with no overlap, ordered x-major for determinism.
func (op *denseToSparse) partition() {
	bbox := op.src.BBox()
	var sub vdb.CoordBBox
	for sub.Min.X = bbox.Min.X; sub.Min.X <= bbox.Max.X; sub.Min.X = sub.Max.X + 1 {
		for sub.Min.Y = bbox.Min.Y; sub.Min.Y <= bbox.Max.Y; sub.Min.Y = sub.Max.Y + 1 {
			for sub.Min.Z = bbox.Min.Z; sub.Min.Z <= bbox.Max.Z; sub.Min.Z = sub.Max.Z + 1 {
				sub.Max = vdb.MinComponent(bbox.Max,
					vdb.LeafOrigin(sub.Min).OffsetBy(vdb.LeafDim-1))
				op.blocks = append(op.blocks, block{bbox: sub})
			}
		}
	}
}

// build runs the per-block synthesis, in parallel over contiguous block
// ranges unless serial.  Wait provides the full barrier the commit phase
// requires.
func (op *denseToSparse) build(serial bool) error {
	numBlocks := len(op.blocks)
	workers := runtime.NumCPU()
	if workers > numBlocks {
		workers = numBlocks
	}
	if serial || workers < 2 {
		op.processRange(0, numBlocks)
		return nil
	}
	chunk := (numBlocks + workers - 1) / workers
	var eg errgroup.Group
	for begin := 0; begin < numBlocks; begin += chunk {
		begin := begin
		end := begin + chunk
		if end > numBlocks {
			end = numBlocks
		}
		eg.Go(func() error {
			op.processRange(begin, end)
			return nil
		})
	}
	return eg.Wait()
}

// processRange builds candidate leaves for blocks [begin, end).  Each worker
// holds its own accessor over the read-only grid and reuses one scratch leaf
// until a block keeps it.
func (op *denseToSparse) processRange(begin, end int) {
	background := op.grid.Background()
	var acc *vdb.Accessor
	if !op.grid.Empty() {
		acc = vdb.NewAccessor(op.grid)
	}
	leaf := vdb.NewFloatLeafNode()

	for m := begin; m < end; m++ {
		b := &op.blocks[m]
		bbox := b.bbox

		if acc == nil { // empty target grid
			leaf.Fill(background, false)
		} else { // account for existing content in the target grid
			if target := acc.ProbeLeaf(bbox.Min); target != nil {
				*leaf = *target
			} else {
				value, state := acc.ProbeValue(bbox.Min)
				leaf.Fill(value, state)
			}
		}

		leaf.CopyFromDense(bbox, op.src, background, op.tolerance)

		if value, state, constant := leaf.IsConstant(op.tolerance); constant {
			b.tileValue, b.tileActive = value, state
		} else {
			leaf.SetOrigin(vdb.LeafOrigin(bbox.Min))
			b.leaf = leaf
			leaf = vdb.NewFloatLeafNode()
		}
	}
}

// commit inserts every block's result into the grid in partition order, then
// prunes tiles.  It must only run after build has completed for all blocks.
func (op *denseToSparse) commit() error {
	background := op.grid.Background()
	for m := range op.blocks {
		b := &op.blocks[m]
		switch {
		case b.leaf != nil:
			op.grid.AddLeaf(b.leaf)
			b.leaf = nil
		case b.tileActive:
			if err := op.grid.AddTile(vdb.LeafTileLevel, b.bbox.Min, b.tileValue, true); err != nil {
				return err
			}
		default:
			// An inactive constant summary is the grid's implicit background,
			// so nothing is materialized.  Stale content at this region is
			// removed explicitly, and if a coarser tile still reports a
			// different value here, an inactive background tile shadows it.
			op.grid.EraseLeafRegion(b.bbox.Min)
			if value, active := op.grid.ProbeValue(b.bbox.Min); active || absDiff32(value, background) > op.tolerance {
				if err := op.grid.AddTile(vdb.LeafTileLevel, b.bbox.Min, background, false); err != nil {
					return err
				}
			}
		}
	}
	op.grid.PruneTiles(op.tolerance)
	return nil
}

func absDiff32(a, b float32) float32 {
	if a > b {
		return a - b
	}
	return b - a
}
