// Package n5 provides a pure Go implementation of the N5 chunked
// N-dimensional array format on the local filesystem.
//
// An N5 root is a directory. Groups are subdirectories; a dataset is a
// directory whose attributes.json holds its layout:
//
//	{"dimensions":[100,200],"blockSize":[64,64],"dataType":"uint16",
//	 "compression":{"type":"gzip","level":-1,"useZlib":false}}
//
// Each written block lives in its own file at <dataset>/<c0>/<c1>/...,
// keyed by its grid coordinate. Blocks that were never written read as a
// caller-supplied fill value.
//
// # Opening a root
//
//	store, err := n5.OpenOrCreate("/data/volume.n5")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// [Open] opens an existing root read-only and fails with
// [ErrRootNotFound] if it is missing. [OpenRoot] takes an explicit [Mode]:
// [ModeReadWrite] also requires the root, [ModeCreate] fails with
// [ErrRootExists] if it is present, and [ModeTruncate] replaces it. The
// version record is written only when a root is created; an existing
// directory without one is not an N5 root.
//
// # Datasets
//
//	attrs, err := n5.NewDatasetAttributes(
//	    []int64{100, 200}, []int32{64, 64}, n5.Uint16, n5.DefaultCompression())
//	ds, err := store.NewDataset("raw", attrs)
//
//	arr := n5.NewArray[uint16](10, 10)
//	err = n5.WriteNdarray(ds, []int64{60, 60}, arr, 0)
//	out, err := n5.ReadNdarray[uint16](ds, n5.NewBoundingBox([]int64{60, 60}, []int64{10, 10}), 0)
//
// Arrays and blocks are column-major: axis 0 varies fastest, matching the
// on-disk layout. The byte-level methods on [Store] and [Dataset] exchange
// big-endian element bytes; the generic functions [ReadBlock],
// [WriteBlock], [ReadNdarray] and [WriteNdarray] convert to and from Go
// slices and fail with [UnsupportedDataTypeError] when the element type
// does not match the dataset.
//
// # Concurrency
//
// A Store is safe for concurrent use. Writes to distinct blocks need no
// coordination; a block file is replaced atomically, so concurrent writers
// of the same block leave one complete version. ReadNdarray and
// WriteNdarray process blocks in parallel, bounded by [WithParallelism].
// WriteNdarray is not atomic across blocks.
//
// # Errors
//
// Failures match one of the sentinel errors in this package with
// errors.Is ([ErrDatasetNotFound], [ErrCorruptBlock], ...) or one of the
// typed errors ([BlockSizeMismatchError], [UnsupportedDataTypeError],
// [UnsupportedCodecError]) with errors.As.
package n5
