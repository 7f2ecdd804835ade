package n5

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-n5/internal/block"
	"github.com/robert-malhotra/go-n5/internal/grid"
	"github.com/robert-malhotra/go-n5/internal/storage"
)

// Version is the N5 format version written to new roots.
const Version = "2.0.2"

// Store is a handle on an N5 root directory. It is safe for concurrent use.
type Store struct {
	fs       *storage.FS
	opts     *options
	log      logrus.FieldLogger
	readOnly bool
	closed   atomic.Bool

	// attrMu serializes read-modify-write cycles on attributes.json.
	attrMu sync.Mutex
}

// Mode selects how OpenRoot treats an existing or missing root.
type Mode int

const (
	// ModeReadOnly opens an existing root for reading ("r").
	ModeReadOnly Mode = iota
	// ModeReadWrite opens an existing root for reading and writing ("r+").
	ModeReadWrite
	// ModeOpenOrCreate opens the root, creating it if missing ("a").
	ModeOpenOrCreate
	// ModeCreate creates a new root and fails if one exists ("w-" or "x").
	ModeCreate
	// ModeTruncate creates a new root, removing any existing one ("w").
	ModeTruncate
)

var modeNames = map[string]Mode{
	"r":  ModeReadOnly,
	"r+": ModeReadWrite,
	"a":  ModeOpenOrCreate,
	"w-": ModeCreate,
	"x":  ModeCreate,
	"w":  ModeTruncate,
}

// ParseMode converts an h5py-style mode string ("r", "r+", "a", "w-", "x"
// or "w") to a Mode.
func ParseMode(name string) (Mode, error) {
	m, ok := modeNames[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, name)
	}
	return m, nil
}

func (m Mode) String() string {
	switch m {
	case ModeReadOnly:
		return "r"
	case ModeReadWrite:
		return "r+"
	case ModeOpenOrCreate:
		return "a"
	case ModeCreate:
		return "w-"
	case ModeTruncate:
		return "w"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// OpenRoot opens the root at path according to mode. The version record
// is written only when the root is created; an existing root without one
// fails with ErrIncompatibleVersion.
func OpenRoot(path string, mode Mode, opts ...Option) (*Store, error) {
	o := applyOptions(opts)
	switch mode {
	case ModeReadOnly, ModeReadWrite:
		return openRoot(path, o, mode == ModeReadOnly)

	case ModeOpenOrCreate:
		s, err := openRoot(path, o, false)
		if !errors.Is(err, ErrRootNotFound) {
			return s, err
		}
		s, err = createRoot(path, o)
		if errors.Is(err, ErrRootExists) {
			// Another process created it first.
			if existing, openErr := openRoot(path, o, false); openErr == nil {
				return existing, nil
			}
		}
		return s, err

	case ModeCreate:
		return createRoot(path, o)

	case ModeTruncate:
		if err := storage.Destroy(path); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return nil, fmt.Errorf("%w: %s is not a directory", ErrRootExists, path)
			}
			return nil, ioFailure("removing root", path, err)
		}
		return createRoot(path, o)

	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidMode, mode)
	}
}

// OpenOrCreate opens the root at path for reading and writing, creating it
// and its version record if absent.
func OpenOrCreate(path string, opts ...Option) (*Store, error) {
	return OpenRoot(path, ModeOpenOrCreate, opts...)
}

// Open opens an existing root read-only. It fails with ErrRootNotFound if
// the directory does not exist.
func Open(path string, opts ...Option) (*Store, error) {
	return OpenRoot(path, ModeReadOnly, opts...)
}

func openRoot(path string, o *options, readOnly bool) (*Store, error) {
	fsys, err := storage.Open(path, o.storageOptions())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, path)
		}
		return nil, ioFailure("opening root", path, err)
	}

	s := newStore(fsys, o, readOnly)
	if err := s.checkVersion(); err != nil {
		return nil, err
	}
	if readOnly {
		s.log.Info("opened n5 root read-only")
	} else {
		s.log.Info("opened n5 root")
	}
	return s, nil
}

func createRoot(path string, o *options) (*Store, error) {
	record, err := json.Marshal(map[string]string{keyVersion: Version})
	if err != nil {
		return nil, err
	}
	fsys, err := storage.CreateNew(path, o.storageOptions(), map[string][]byte{attributesKey(""): record})
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootExists, path)
		}
		return nil, ioFailure("creating root", path, err)
	}

	s := newStore(fsys, o, false)
	s.log.Info("created n5 root")
	return s, nil
}

func newStore(fsys *storage.FS, o *options, readOnly bool) *Store {
	return &Store{
		fs:       fsys,
		opts:     o,
		log:      o.logger.WithField("root", fsys.Root()),
		readOnly: readOnly,
	}
}

func (o *options) storageOptions() storage.Options {
	return storage.Options{
		Sync:     o.sync,
		FileMode: o.fileMode,
		DirMode:  o.dirMode,
		Logger:   o.logger,
	}
}

// Root returns the absolute root directory.
func (s *Store) Root() string {
	return s.fs.Root()
}

// ReadOnly reports whether the store was opened in ModeReadOnly.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// Close releases the handle. Later calls fail with ErrClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return ErrClosed
	}
	return nil
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (s *Store) checkWritable() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.readOnly {
		return ErrReadOnly
	}
	return nil
}

// Version returns the format version recorded at the root, or "" if none.
func (s *Store) Version() (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	fields, err := s.readAttributes("")
	if err != nil {
		return "", err
	}
	raw, ok := fields[keyVersion]
	if !ok {
		return "", nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%w: n5 version: %w", ErrAttributeParse, err)
	}
	return v, nil
}

func (s *Store) checkVersion() error {
	v, err := s.Version()
	if err != nil {
		return err
	}
	if v == "" {
		return fmt.Errorf("%w: no n5 version found at %s", ErrIncompatibleVersion, s.Root())
	}
	return s.compareVersion(v)
}

// compareVersion fails on a major version mismatch and warns on a minor one.
func (s *Store) compareVersion(v string) error {
	got, err := parseVersion(v)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrIncompatibleVersion, v, err)
	}
	want, _ := parseVersion(Version)
	if got[0] != want[0] {
		return fmt.Errorf("%w: expected %s, got %s", ErrIncompatibleVersion, Version, v)
	}
	if got[1] != want[1] {
		s.log.WithField("version", v).Warnf("expected n5 version %s, trying to open anyway", Version)
	}
	return nil
}

func parseVersion(v string) ([3]int, error) {
	var out [3]int
	parts := strings.Split(v, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return out, fmt.Errorf("malformed version")
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return out, fmt.Errorf("malformed version component %q", p)
		}
		out[i] = n
	}
	return out, nil
}

// readAttributes returns the raw fields of path's attributes.json, or nil
// if it does not exist.
func (s *Store) readAttributes(path string) (map[string]json.RawMessage, error) {
	key := attributesKey(path)
	data, err := s.fs.Get(key)
	if err != nil {
		return nil, ioFailure("reading", key, err)
	}
	if data == nil {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAttributeParse, key, err)
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	return fields, nil
}

func (s *Store) writeAttributes(path string, fields map[string]json.RawMessage) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	key := attributesKey(path)
	if err := s.fs.Put(key, data); err != nil {
		return ioFailure("writing", key, err)
	}
	return nil
}

// mergeAttributes sets attrs on path's record. Dataset keys and the root
// version cannot be changed through it.
func (s *Store) mergeAttributes(path string, attrs map[string]interface{}) error {
	s.attrMu.Lock()
	defer s.attrMu.Unlock()

	fields, err := s.readAttributes(path)
	if err != nil {
		return err
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	for k, v := range attrs {
		if isDatasetKey(k) || (path == "" && k == keyVersion) {
			return fmt.Errorf("%w: attribute %q is reserved", ErrInvalidPath, k)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding attribute %q: %w", k, err)
		}
		fields[k] = raw
	}
	return s.writeAttributes(path, fields)
}

// Exists reports whether a dataset is present at path.
func (s *Store) Exists(path string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	p, err := CleanPath(path)
	if err != nil {
		return false, err
	}
	fields, err := s.readAttributes(p)
	if err != nil {
		return false, err
	}
	return hasDatasetKeys(fields), nil
}

// GroupExists reports whether path is a directory that is not a dataset.
func (s *Store) GroupExists(path string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	p, err := CleanPath(path)
	if err != nil {
		return false, err
	}
	isDir, err := s.fs.IsDir(p)
	if err != nil {
		return false, ioFailure("stat", p, err)
	}
	if !isDir {
		return false, nil
	}
	isDataset, err := s.Exists(p)
	return !isDataset && err == nil, err
}

// CreateGroup creates path and any missing parents as groups.
func (s *Store) CreateGroup(path string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	if isDataset, err := s.Exists(p); err != nil {
		return err
	} else if isDataset {
		return fmt.Errorf("%w: %s", ErrDatasetAlreadyExists, p)
	}
	if err := s.fs.MkdirAll(p); err != nil {
		return ioFailure("creating group", p, err)
	}
	s.log.WithField("group", p).Debug("created group")
	return nil
}

// CreateDataset persists attrs as a new dataset at path. It fails with
// ErrDatasetAlreadyExists if one is already present. Creation is exclusive:
// of several concurrent creators exactly one succeeds.
func (s *Store) CreateDataset(path string, attrs *DatasetAttributes) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	if p == "" {
		return fmt.Errorf("%w: a dataset cannot live at the root", ErrInvalidPath)
	}
	if attrs == nil {
		return fmt.Errorf("%w: nil dataset attributes", ErrInvalidShape)
	}

	record, err := attrs.fields()
	if err != nil {
		return err
	}

	s.attrMu.Lock()
	defer s.attrMu.Unlock()

	existing, err := s.readAttributes(p)
	if err != nil {
		return err
	}
	switch {
	case hasDatasetKeys(existing):
		return fmt.Errorf("%w: %s", ErrDatasetAlreadyExists, p)
	case existing != nil:
		// Group record: keep its attributes.
		for k, v := range record {
			existing[k] = v
		}
		if err := s.writeAttributes(p, existing); err != nil {
			return err
		}
	default:
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		key := attributesKey(p)
		if err := s.fs.PutExclusive(key, data); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return fmt.Errorf("%w: %s", ErrDatasetAlreadyExists, p)
			}
			return ioFailure("creating", key, err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"dataset":    p,
		"dimensions": attrs.dimensions,
		"blockSize":  attrs.blockSize,
		"dataType":   attrs.dataType.String(),
		"codec":      attrs.compression.Type(),
	}).Info("created dataset")
	return nil
}

// DatasetAttributes loads the attributes of the dataset at path.
func (s *Store) DatasetAttributes(path string) (*DatasetAttributes, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	fields, err := s.readAttributes(p)
	if err != nil {
		return nil, err
	}
	if !hasDatasetKeys(fields) {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, p)
	}
	attrs, err := decodeDatasetAttributes(fields)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", p, err)
	}
	return attrs, nil
}

// Attributes returns every key of path's attributes.json, including the
// dataset keys. A path without a record yields an empty map.
func (s *Store) Attributes(path string) (map[string]interface{}, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	fields, err := s.readAttributes(p)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(fields))
	for k, raw := range fields {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrAttributeParse, k, err)
		}
		out[k] = v
	}
	return out, nil
}

// SetAttributes merges attrs into path's attributes.json. Dataset keys and
// the root version are reserved.
func (s *Store) SetAttributes(path string, attrs map[string]interface{}) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	return s.mergeAttributes(p, attrs)
}

// RemoveAttributes deletes keys from path's attributes.json. Missing keys
// are ignored; reserved keys are rejected.
func (s *Store) RemoveAttributes(path string, keys ...string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	p, err := CleanPath(path)
	if err != nil {
		return err
	}

	s.attrMu.Lock()
	defer s.attrMu.Unlock()

	fields, err := s.readAttributes(p)
	if err != nil || fields == nil {
		return err
	}
	for _, k := range keys {
		if isDatasetKey(k) || (p == "" && k == keyVersion) {
			return fmt.Errorf("%w: attribute %q is reserved", ErrInvalidPath, k)
		}
		delete(fields, k)
	}
	return s.writeAttributes(p, fields)
}

// List returns the names of the groups and datasets directly below path.
func (s *Store) List(path string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	names, err := s.fs.ListDirs(p)
	if err != nil {
		return nil, ioFailure("listing", p, err)
	}
	return names, nil
}

// Remove deletes the group or dataset at path with everything below it.
// Removing a missing path is not an error.
func (s *Store) Remove(path string) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	if p == "" {
		return fmt.Errorf("%w: cannot remove the root", ErrInvalidPath)
	}
	if err := s.fs.RemoveAll(p); err != nil {
		return ioFailure("removing", p, err)
	}
	s.log.WithField("path", p).Info("removed")
	return nil
}

// ReadBlock reads the block at coord. It returns nil and no error if the
// block has never been written.
func (s *Store) ReadBlock(path string, attrs *DatasetAttributes, coord []int64) (*Block, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	if err := checkCoord(attrs, coord, false); err != nil {
		return nil, err
	}
	return s.readBlock(p, attrs, coord)
}

func (s *Store) readBlock(path string, attrs *DatasetAttributes, coord []int64) (*Block, error) {
	key := blockKey(path, coord)
	data, err := s.fs.Get(key)
	if err != nil {
		return nil, ioFailure("reading block", key, err)
	}
	if data == nil {
		return nil, nil
	}

	h, raw, err := block.Decode(data, attrs.ElementSize(), attrs.compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptBlock, key, err)
	}
	if len(h.Size) != attrs.Rank() {
		return nil, fmt.Errorf("%w: %s: block rank %d, dataset rank %d", ErrCorruptBlock, key, len(h.Size), attrs.Rank())
	}
	if n := grid.Product(int64s(h.Size)); h.ElementCount() != n {
		return nil, fmt.Errorf("%w: %s: %d elements for block size %v", ErrCorruptBlock, key, h.ElementCount(), h.Size)
	}
	return &Block{
		GridPosition: append([]int64(nil), coord...),
		Size:         h.Size,
		Data:         raw,
	}, nil
}

// BlockExists reports whether the block at coord has been written.
func (s *Store) BlockExists(path string, coord []int64) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	p, err := CleanPath(path)
	if err != nil {
		return false, err
	}
	ok, err := s.fs.Has(blockKey(p, coord))
	if err != nil {
		return false, ioFailure("stat", blockKey(p, coord), err)
	}
	return ok, nil
}

// WriteBlock stores b, replacing any previous content at its grid
// position. The block must have the dataset's nominal block size; a nil
// Size is taken to mean that.
func (s *Store) WriteBlock(path string, attrs *DatasetAttributes, b *Block) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	p, err := s.requireDataset(path)
	if err != nil {
		return err
	}
	if err := checkBlock(b); err != nil {
		return err
	}
	if err := checkCoord(attrs, b.GridPosition, false); err != nil {
		return err
	}

	if b.Size != nil && !equalInt32(b.Size, attrs.blockSize) {
		if n := b.NumElements(); n == attrs.BlockCount() {
			return fmt.Errorf("%w: block shape %v differs from dataset block size %v", ErrInvalidShape, b.Size, attrs.blockSize)
		}
		return &BlockSizeMismatchError{Expected: attrs.BlockCount(), Actual: b.NumElements()}
	}
	if err := checkDataLength(attrs, attrs.BlockCount(), b.Data); err != nil {
		return err
	}
	return s.writeBlock(p, attrs, b.GridPosition, attrs.blockSize, b.Data)
}

// WriteIrregularBlock stores b with its own Size at its grid position,
// without requiring Size to match the dataset's block size or the position
// to lie inside the grid. Reads clip such blocks to the nominal block
// extent: a smaller block leaves the remainder at the fill value and a
// larger one is truncated.
func (s *Store) WriteIrregularBlock(path string, attrs *DatasetAttributes, b *Block) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	p, err := s.requireDataset(path)
	if err != nil {
		return err
	}
	if err := checkBlock(b); err != nil {
		return err
	}
	if err := checkCoord(attrs, b.GridPosition, true); err != nil {
		return err
	}
	if len(b.Size) != attrs.Rank() {
		return fmt.Errorf("%w: block size %v has rank %d, dataset has rank %d", ErrInvalidShape, b.Size, len(b.Size), attrs.Rank())
	}
	for i, sz := range b.Size {
		if sz < 0 {
			return fmt.Errorf("%w: negative block size %d on axis %d", ErrInvalidShape, sz, i)
		}
	}
	if err := checkDataLength(attrs, b.NumElements(), b.Data); err != nil {
		return err
	}

	if !equalInt32(b.Size, attrs.blockSize) || !attrs.grid.InBounds(b.GridPosition) {
		s.log.WithFields(logrus.Fields{
			"dataset": p,
			"coord":   b.GridPosition,
			"size":    b.Size,
		}).Warn("writing irregular block")
	}
	return s.writeBlock(p, attrs, b.GridPosition, b.Size, b.Data)
}

func checkBlock(b *Block) error {
	if b == nil {
		return fmt.Errorf("%w: nil block", ErrInvalidShape)
	}
	return nil
}

func (s *Store) writeBlock(path string, attrs *DatasetAttributes, coord []int64, size []int32, data []byte) error {
	encoded, err := block.Encode(size, data, attrs.ElementSize(), attrs.compression)
	if err != nil {
		return fmt.Errorf("encoding block %v of %s: %w", coord, path, err)
	}
	key := blockKey(path, coord)
	if err := s.fs.Put(key, encoded); err != nil {
		return ioFailure("writing block", key, err)
	}
	s.log.WithFields(logrus.Fields{"dataset": path, "coord": coord, "bytes": len(encoded)}).Debug("wrote block")
	return nil
}

// RemoveBlock deletes the block at coord. Later reads see the fill value.
func (s *Store) RemoveBlock(path string, coord []int64) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	p, err := s.requireDataset(path)
	if err != nil {
		return err
	}
	key := blockKey(p, coord)
	if err := s.fs.Delete(key); err != nil {
		return ioFailure("removing block", key, err)
	}
	return nil
}

func (s *Store) requireDataset(path string) (string, error) {
	p, err := CleanPath(path)
	if err != nil {
		return "", err
	}
	ok, err := s.Exists(p)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDatasetNotFound, p)
	}
	return p, nil
}

// checkCoord validates a grid coordinate. Irregular writes only need a
// non-negative coordinate of the right rank.
func checkCoord(attrs *DatasetAttributes, coord []int64, irregular bool) error {
	if attrs == nil {
		return fmt.Errorf("%w: nil dataset attributes", ErrInvalidShape)
	}
	if len(coord) != attrs.Rank() {
		return fmt.Errorf("%w: grid position %v has rank %d, dataset has rank %d", ErrInvalidShape, coord, len(coord), attrs.Rank())
	}
	if irregular {
		for i, c := range coord {
			if c < 0 {
				return fmt.Errorf("%w: negative grid position %d on axis %d", ErrInvalidShape, c, i)
			}
		}
		return nil
	}
	if !attrs.grid.InBounds(coord) {
		return fmt.Errorf("%w: grid position %v outside grid extent %v", ErrInvalidShape, coord, attrs.GridExtent())
	}
	return nil
}

func checkDataLength(attrs *DatasetAttributes, expected int64, data []byte) error {
	es := int64(attrs.ElementSize())
	n := int64(len(data))
	if n%es != 0 || n/es != expected {
		return &BlockSizeMismatchError{Expected: expected, Actual: n / es}
	}
	return nil
}

func equalInt32(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func int64s(v []int32) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}
