// Package mask partitions lattice-shaped data into two complementary
// channels for coupling-layer flow architectures.
//
// Every mask provides three operations:
//
//  1. Split, partitioning data into channel 0 and channel 1,
//  2. Cat, reassembling the two channels,
//  3. Purify, removing any contamination from the other channel.
//
// Data is flattened row-major over the mask's lattice shape. Split returns
// full-length vectors with the complementary channel zeroed, so Cat is a
// plain elementwise sum.
package mask
