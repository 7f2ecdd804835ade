// Package codec implements the block compression schemes of the N5 format.
//
// Every block payload written by a dataset is passed through exactly one
// codec, chosen when the dataset is created and recorded in the dataset's
// attributes.json under the "compression" key:
//
//	"compression": {"type": "gzip", "level": -1, "useZlib": false}
//
// # Supported Codecs
//
//   - raw: no compression via [Raw].
//   - gzip: DEFLATE with a gzip (default) or zlib wrapper via [Gzip]. The
//     "level" parameter follows the zlib convention where -1 selects the
//     library default.
//   - bzip2: Burrows-Wheeler compression via [Bzip2]. "blockSize" is the
//     block size in units of 100kB (1-9).
//   - xz: LZMA2 in an xz container via [Xz]. "preset" (0-9) selects the
//     dictionary size the way the xz command line tool does.
//   - zstd: Zstandard via [Zstd].
//   - snappy: Snappy block format via [Snappy].
//
// Older datasets may carry only a "compressionType" string; [FromType]
// builds the codec with default parameters for that case.
//
// # Errors
//
// Unknown type names fail with [UnsupportedError]. Malformed compressed
// input fails with an error matching [ErrCorrupt]; out-of-range parameters
// fail with an error matching [ErrInvalidParameter].
//
// Codecs are safe for concurrent use.
package codec
