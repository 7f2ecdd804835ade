package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// ErrInvalidKey is returned for keys that resolve outside the root.
var ErrInvalidKey = errors.New("invalid key")

const tempSuffix = ".tmp"

// Options configures an FS.
type Options struct {
	// Sync fsyncs files and their directory before a write returns.
	Sync bool

	FileMode os.FileMode
	DirMode  os.FileMode

	Logger logrus.FieldLogger
}

func (o *Options) setDefaults() {
	if o.FileMode == 0 {
		o.FileMode = 0o644
	}
	if o.DirMode == 0 {
		o.DirMode = 0o755
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
}

// FS is a key/value store rooted at a directory. It is safe for
// concurrent use.
type FS struct {
	root string
	opts Options
	log  logrus.FieldLogger
}

// Open opens an existing root directory. It fails with an error matching
// fs.ErrNotExist if the directory is missing.
func Open(root string, opts Options) (*FS, error) {
	opts.setDefaults()
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !stat.IsDir() {
		return nil, &os.PathError{Op: "open", Path: abs, Err: fs.ErrNotExist}
	}

	return newFS(abs, opts), nil
}

// Create opens root, creating it and any missing parents.
func Create(root string, opts Options) (*FS, error) {
	opts.setDefaults()
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := ensureDir(abs, opts.DirMode); err != nil {
		return nil, err
	}
	return newFS(abs, opts), nil
}

// CreateNew creates root, and any missing parents, holding the given
// files. The root appears in one rename, so concurrent callers see either
// no directory or a populated one. It fails with an error matching
// fs.ErrExist if root already exists.
func CreateNew(root string, opts Options, files map[string][]byte) (*FS, error) {
	opts.setDefaults()
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := checkAbsent(abs); err != nil {
		return nil, err
	}

	parent := filepath.Dir(abs)
	if err := os.MkdirAll(parent, opts.DirMode); err != nil {
		return nil, err
	}
	staging := filepath.Join(parent, "."+filepath.Base(abs)+"."+uuid.NewString()+tempSuffix)
	if err := os.Mkdir(staging, opts.DirMode); err != nil {
		return nil, err
	}

	tmp := newFS(staging, opts)
	for key, data := range files {
		if err := tmp.Put(key, data); err != nil {
			return nil, multierr.Append(err, os.RemoveAll(staging))
		}
	}
	if err := os.Rename(staging, abs); err != nil {
		cleanup := os.RemoveAll(staging)
		if _, statErr := os.Lstat(abs); statErr == nil {
			return nil, multierr.Append(&os.PathError{Op: "create", Path: abs, Err: fs.ErrExist}, cleanup)
		}
		return nil, multierr.Append(err, cleanup)
	}

	s := newFS(abs, opts)
	if err := s.syncDir(parent); err != nil {
		return nil, err
	}
	s.log.Debug("created root")
	return s, nil
}

// Destroy removes root and everything below it. A missing root is not an
// error; a path that is not a directory is refused with fs.ErrExist.
func Destroy(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	stat, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if !stat.IsDir() {
		return &os.PathError{Op: "destroy", Path: abs, Err: fs.ErrExist}
	}
	return os.RemoveAll(abs)
}

func checkAbsent(path string) error {
	_, err := os.Lstat(path)
	if err == nil {
		return &os.PathError{Op: "create", Path: path, Err: fs.ErrExist}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func newFS(root string, opts Options) *FS {
	return &FS{
		root: filepath.Clean(root),
		opts: opts,
		log:  opts.Logger.WithField("root", root),
	}
}

// Root returns the absolute root directory.
func (s *FS) Root() string {
	return s.root
}

// Path resolves a key to a filesystem path inside the root.
func (s *FS) Path(key string) (string, error) {
	resolved := filepath.Clean(filepath.Join(s.root, filepath.FromSlash(key)))
	if resolved != s.root && !strings.HasPrefix(resolved, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q escapes the root", ErrInvalidKey, key)
	}
	return resolved, nil
}

// Get returns the contents of key, or nil if it does not exist.
func (s *FS) Get(key string) ([]byte, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Has reports whether key exists as a regular file.
func (s *FS) Has(key string) (bool, error) {
	info, err := s.Stat(key)
	if err != nil || info == nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// IsDir reports whether key exists as a directory.
func (s *FS) IsDir(key string) (bool, error) {
	info, err := s.Stat(key)
	if err != nil || info == nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Stat returns file information for key, or nil if it does not exist.
func (s *FS) Stat(key string) (fs.FileInfo, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return info, nil
}

// MkdirAll creates the directory for key and any missing parents.
func (s *FS) MkdirAll(key string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	return ensureDir(path, s.opts.DirMode)
}

// Put atomically replaces the contents of key, creating parent directories
// as needed.
func (s *FS) Put(key string, data []byte) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := ensureDir(dir, s.opts.DirMode); err != nil {
		return err
	}

	tmp, err := s.writeTemp(dir, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return multierr.Append(fmt.Errorf("renaming %s: %w", key, err), removeIfExists(tmp))
	}
	if err := s.syncDir(dir); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"key": key, "bytes": len(data)}).Debug("put")
	return nil
}

// PutExclusive writes key only if it does not exist yet. It fails with an
// error matching fs.ErrExist otherwise.
func (s *FS) PutExclusive(key string, data []byte) (err error) {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := ensureDir(dir, s.opts.DirMode); err != nil {
		return err
	}

	tmp, err := s.writeTemp(dir, data)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, removeIfExists(tmp))
	}()

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &os.PathError{Op: "create", Path: path, Err: fs.ErrExist}
		}
		return fmt.Errorf("linking %s: %w", key, err)
	}
	if err := s.syncDir(dir); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"key": key, "bytes": len(data)}).Debug("created")
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *FS) Delete(key string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	return removeIfExists(path)
}

// RemoveAll removes key and everything below it.
func (s *FS) RemoveAll(key string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if path == s.root {
		return fmt.Errorf("%w: refusing to remove the root", ErrInvalidKey)
	}
	if err := os.RemoveAll(path); err != nil {
		return err
	}
	s.log.WithField("key", key).Debug("removed")
	return nil
}

// ListDirs returns the sorted names of the subdirectories of key. A
// missing key yields an empty list.
func (s *FS) ListDirs(key string) ([]string, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// WalkFiles calls fn for every regular file below key with its key and
// size. Temporary files of in-flight writes are skipped.
func (s *FS) WalkFiles(key string, fn func(key string, size int64) error) error {
	start, err := s.Path(key)
	if err != nil {
		return err
	}
	return filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == start {
				return nil
			}
			return err
		}
		if d.IsDir() || isTemp(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), info.Size())
	})
}

func (s *FS) writeTemp(dir string, data []byte) (string, error) {
	name := filepath.Join(dir, "."+uuid.NewString()+tempSuffix)
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.opts.FileMode)
	if err != nil {
		return "", err
	}

	_, err = f.Write(data)
	if err == nil && s.opts.Sync {
		err = f.Sync()
	}
	err = multierr.Append(err, f.Close())
	if err != nil {
		return "", multierr.Append(err, removeIfExists(name))
	}
	return name, nil
}

func (s *FS) syncDir(dir string) error {
	if !s.opts.Sync {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	return multierr.Append(d.Sync(), d.Close())
}

// ensureDir checks if a directory exists at the given path, and if not, creates it.
func ensureDir(path string, mode os.FileMode) error {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(path, mode)
		}
		return err
	}
	if !stat.IsDir() {
		return &os.PathError{Op: "ensureDir", Path: path, Err: os.ErrExist}
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, tempSuffix)
}
