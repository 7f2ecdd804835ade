// Package grid provides the coordinate arithmetic of a chunked N5 dataset.
//
// A dataset of shape dimensions is split into blocks of shape blockSize.
// The grid extent along axis i is ceil(dimensions[i] / blockSize[i]); a
// block is addressed by its grid coordinate, one index per axis in block
// units. Blocks on the upper edge of an axis may extend past the dataset;
// [Grid.BlockExtent] reports the part that lies inside.
//
// Element order inside blocks and dense arrays is column-major: axis 0
// varies fastest. [CopyRegion] moves a rectangular sub-region between two
// dense column-major buffers and is the primitive the dataset layer uses to
// gather blocks into an array and scatter an array into blocks.
//
// Nothing in this package performs I/O.
package grid
