// Package govdb provides conversion between dense voxel arrays and sparse
// VDB-style voxel grids.
//
// The dense package holds the Buffer type, a fully-materialized 3d array
// addressed by signed voxel coordinates, plus high-throughput converters in
// both directions.  The vdb package holds the sparse FloatGrid these
// converters read and write.  This root package carries shared concerns like
// logging.
package govdb
