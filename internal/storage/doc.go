// Package storage implements the filesystem key/value layer under an N5
// root.
//
// Keys are slash-separated paths relative to the root directory
// ("volume/raw/attributes.json", "volume/raw/0/3/1"). Every key is resolved
// against the root and rejected if it would escape it.
//
// Writes never expose a partially written file: data goes to a uniquely
// named temporary file in the destination directory, is optionally synced,
// and is then renamed over the target. [FS.PutExclusive] hard-links the
// temporary file instead, which fails if the target already exists and so
// gives an atomic create-if-absent.
//
// Reads of missing keys return nil data and no error.
package storage
