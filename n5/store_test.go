package n5

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRootVersion(t *testing.T, root, version string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o755))
	data, err := json.Marshal(map[string]string{"n5": version})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "attributes.json"), data, 0o644))
}

func TestOpenMissingRoot(t *testing.T) {
	root := testRoot(t)

	_, err := Open(root, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, ErrRootNotFound)

	_, err = OpenDataset(root, "ds", true, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, ErrRootNotFound)

	_, statErr := os.Stat(root)
	assert.True(t, os.IsNotExist(statErr), "read-only open must not create the root")
}

func TestOpenOrCreateWritesVersion(t *testing.T) {
	root := testRoot(t)

	s, err := OpenOrCreate(root, WithLogger(quietLogger()))
	require.NoError(t, err)
	v, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, Version, v)
	require.NoError(t, s.Close())

	// Idempotent.
	s, err = OpenOrCreate(root, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ro, err := Open(root, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.True(t, ro.ReadOnly())
	require.NoError(t, ro.Close())
}

func TestOpenOrCreateUnwritableRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := OpenOrCreate(file, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, ErrRootExists)
	_, err = OpenRoot(file, ModeTruncate, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, ErrRootExists)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data), "a regular file is never replaced")
}

func TestVersionCheck(t *testing.T) {
	t.Run("major mismatch", func(t *testing.T) {
		root := testRoot(t)
		writeRootVersion(t, root, "3.0.0")

		_, err := OpenOrCreate(root, WithLogger(quietLogger()))
		assert.ErrorIs(t, err, ErrIncompatibleVersion)
		_, err = Open(root, WithLogger(quietLogger()))
		assert.ErrorIs(t, err, ErrIncompatibleVersion)
	})

	t.Run("malformed", func(t *testing.T) {
		root := testRoot(t)
		writeRootVersion(t, root, "two")

		_, err := Open(root, WithLogger(quietLogger()))
		assert.ErrorIs(t, err, ErrIncompatibleVersion)
	})

	t.Run("minor mismatch warns", func(t *testing.T) {
		root := testRoot(t)
		writeRootVersion(t, root, "2.5.0")

		logger, hook := test.NewNullLogger()
		s, err := Open(root, WithLogger(logger))
		require.NoError(t, err)
		defer s.Close()

		var warned bool
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.WarnLevel {
				warned = true
			}
		}
		assert.True(t, warned, "expected a warning for a minor version mismatch")
	})

	t.Run("missing version", func(t *testing.T) {
		root := testRoot(t)
		require.NoError(t, os.MkdirAll(root, 0o755))

		for _, mode := range []Mode{ModeReadOnly, ModeReadWrite, ModeOpenOrCreate} {
			_, err := OpenRoot(root, mode, WithLogger(quietLogger()))
			assert.ErrorIs(t, err, ErrIncompatibleVersion, "mode %v", mode)
		}
		_, err := os.Stat(filepath.Join(root, "attributes.json"))
		assert.True(t, os.IsNotExist(err), "an existing directory is not stamped with a version")
	})
}

func TestOpenRootModes(t *testing.T) {
	opt := WithLogger(quietLogger())

	t.Run("read-write requires the root", func(t *testing.T) {
		root := testRoot(t)
		_, err := OpenRoot(root, ModeReadWrite, opt)
		assert.ErrorIs(t, err, ErrRootNotFound)
		_, err = OpenDataset(root, "ds", false, opt)
		assert.ErrorIs(t, err, ErrRootNotFound)
		_, statErr := os.Stat(root)
		assert.True(t, os.IsNotExist(statErr))

		writeRootVersion(t, root, Version)
		s, err := OpenRoot(root, ModeReadWrite, opt)
		require.NoError(t, err)
		assert.False(t, s.ReadOnly())
		require.NoError(t, s.CreateGroup("g"))
		require.NoError(t, s.Close())
	})

	t.Run("create is exclusive", func(t *testing.T) {
		root := testRoot(t)
		s, err := OpenRoot(root, ModeCreate, opt)
		require.NoError(t, err)
		v, err := s.Version()
		require.NoError(t, err)
		assert.Equal(t, Version, v)
		require.NoError(t, s.Close())

		_, err = OpenRoot(root, ModeCreate, opt)
		assert.ErrorIs(t, err, ErrRootExists)

		empty := testRoot(t)
		require.NoError(t, os.MkdirAll(empty, 0o755))
		_, err = OpenRoot(empty, ModeCreate, opt)
		assert.ErrorIs(t, err, ErrRootExists)
	})

	t.Run("truncate replaces the root", func(t *testing.T) {
		root := testRoot(t)
		s, err := OpenOrCreate(root, opt)
		require.NoError(t, err)
		testDataset(t, s, "ds", []int64{4}, []int32{2}, Uint8, nil)
		require.NoError(t, s.SetAttributes("", map[string]interface{}{"owner": "me"}))
		require.NoError(t, s.Close())

		s, err = OpenRoot(root, ModeTruncate, opt)
		require.NoError(t, err)
		defer s.Close()
		ok, err := s.Exists("ds")
		require.NoError(t, err)
		assert.False(t, ok)
		attrs, err := s.Attributes("")
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"n5": Version}, attrs)

		missing := testRoot(t)
		s2, err := OpenRoot(missing, ModeTruncate, opt)
		require.NoError(t, err)
		require.NoError(t, s2.Close())
	})

	t.Run("concurrent open-or-create", func(t *testing.T) {
		root := testRoot(t)
		const openers = 8
		var wg sync.WaitGroup
		errs := make([]error, openers)
		for i := 0; i < openers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s, err := OpenOrCreate(root, opt)
				if err == nil {
					err = s.Close()
				}
				errs[i] = err
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			assert.NoError(t, err)
		}
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := OpenRoot(testRoot(t), Mode(42), opt)
		assert.ErrorIs(t, err, ErrInvalidMode)
	})
}

func TestParseMode(t *testing.T) {
	for name, want := range map[string]Mode{
		"r": ModeReadOnly, "r+": ModeReadWrite, "a": ModeOpenOrCreate,
		"w-": ModeCreate, "x": ModeCreate, "w": ModeTruncate,
	} {
		got, err := ParseMode(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	assert.Equal(t, "w-", ModeCreate.String())

	_, err := ParseMode("rw")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestCreateDatasetScenario(t *testing.T) {
	s := testStore(t)

	attrs, err := NewDatasetAttributes([]int64{100}, []int32{10}, Float64, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateDataset("ds", attrs))

	ok, err := s.Exists("ds")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.DatasetAttributes("ds")
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, got.Dimensions())
	assert.Equal(t, []int32{10}, got.BlockSize())
	assert.Equal(t, Float64, got.DataType())
	assert.Equal(t, "gzip", got.Compression().Type())

	err = s.CreateDataset("ds", attrs)
	assert.ErrorIs(t, err, ErrDatasetAlreadyExists)

	other, err := NewDatasetAttributes([]int64{5}, []int32{5}, Uint8, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.CreateDataset("/ds/", other), ErrDatasetAlreadyExists)

	// The first attributes survive.
	got, err = s.DatasetAttributes("ds")
	require.NoError(t, err)
	assert.Equal(t, Float64, got.DataType())
}

func TestCreateDatasetIsExclusive(t *testing.T) {
	root := testRoot(t)

	const creators = 8
	var wg sync.WaitGroup
	errs := make([]error, creators)
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := OpenOrCreate(root, WithLogger(quietLogger()))
			if err != nil {
				errs[i] = err
				return
			}
			defer s.Close()
			attrs, _ := NewDatasetAttributes([]int64{int64(i + 1)}, []int32{1}, Uint8, nil)
			errs[i] = s.CreateDataset("race", attrs)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrDatasetAlreadyExists)
	}
	assert.Equal(t, 1, succeeded)
}

func TestDatasetNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.DatasetAttributes("missing")
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	require.NoError(t, s.CreateGroup("group"))
	_, err = s.DatasetAttributes("group")
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	ok, err := s.Exists("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.OpenDataset("missing")
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestMalformedAttributes(t *testing.T) {
	s := testStore(t)
	dir := filepath.Join(s.Root(), "broken")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "attributes.json"), []byte("{not json"), 0o644))

	_, err := s.DatasetAttributes("broken")
	assert.ErrorIs(t, err, ErrAttributeParse)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "attributes.json"),
		[]byte(`{"dimensions":[4],"blockSize":[2],"dataType":"bool","compression":{"type":"raw"}}`), 0o644))
	_, err = s.DatasetAttributes("broken")
	assert.ErrorIs(t, err, ErrAttributeParse)
	var dtErr *UnsupportedDataTypeError
	assert.True(t, errors.As(err, &dtErr))
}

func TestInvalidPaths(t *testing.T) {
	s := testStore(t)
	attrs, err := NewDatasetAttributes([]int64{1}, []int32{1}, Uint8, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.CreateDataset("", attrs), ErrInvalidPath)
	assert.ErrorIs(t, s.CreateDataset("../outside", attrs), ErrInvalidPath)
	assert.ErrorIs(t, s.Remove(""), ErrInvalidPath)
	_, err = s.Exists("a/../../b")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestGroupsAndList(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.CreateGroup("a/b"))
	testDataset(t, s, "a/ds", []int64{4}, []int32{2}, Uint8, nil)
	testDataset(t, s, "c", []int64{4}, []int32{2}, Uint8, nil)

	ok, err := s.GroupExists("a/b")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.GroupExists("a/ds")
	require.NoError(t, err)
	assert.False(t, ok, "a dataset is not a group")

	ok, err = s.GroupExists("nope")
	require.NoError(t, err)
	assert.False(t, ok)

	names, err := s.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, names)

	names, err = s.List("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "ds"}, names)

	assert.ErrorIs(t, s.CreateGroup("c"), ErrDatasetAlreadyExists)
}

func TestDatasetInExistingGroupKeepsAttributes(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.CreateGroup("labels"))
	require.NoError(t, s.SetAttributes("labels", map[string]interface{}{"resolution": []int{4, 4}}))

	testDataset(t, s, "labels", []int64{8, 8}, []int32{4, 4}, Uint64, nil)

	attrs, err := s.Attributes("labels")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{4.0, 4.0}, attrs["resolution"])
	assert.Equal(t, "uint64", attrs["dataType"])

	assert.ErrorIs(t, s.CreateDataset("labels", mustAttrs(t)), ErrDatasetAlreadyExists)
}

func mustAttrs(t *testing.T) *DatasetAttributes {
	attrs, err := NewDatasetAttributes([]int64{1}, []int32{1}, Uint8, nil)
	require.NoError(t, err)
	return attrs
}

func TestUserAttributes(t *testing.T) {
	s := testStore(t)
	testDataset(t, s, "ds", []int64{4}, []int32{2}, Int8, nil)

	require.NoError(t, s.SetAttributes("ds", map[string]interface{}{
		"units":  "nm",
		"offset": 1.5,
	}))
	attrs, err := s.Attributes("ds")
	require.NoError(t, err)
	assert.Equal(t, "nm", attrs["units"])
	assert.Equal(t, 1.5, attrs["offset"])

	err = s.SetAttributes("ds", map[string]interface{}{"dataType": "float32"})
	assert.ErrorIs(t, err, ErrInvalidPath)
	err = s.SetAttributes("", map[string]interface{}{"n5": "9.9.9"})
	assert.ErrorIs(t, err, ErrInvalidPath)

	require.NoError(t, s.RemoveAttributes("ds", "units", "missing"))
	attrs, err = s.Attributes("ds")
	require.NoError(t, err)
	assert.NotContains(t, attrs, "units")
	assert.Contains(t, attrs, "offset")
	assert.ErrorIs(t, s.RemoveAttributes("ds", "dimensions"), ErrInvalidPath)

	// Dataset keys are untouched by user attribute edits.
	got, err := s.DatasetAttributes("ds")
	require.NoError(t, err)
	assert.Equal(t, Int8, got.DataType())

	empty, err := s.Attributes("nothing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRemove(t *testing.T) {
	s := testStore(t)
	ds := testDataset(t, s, "g/ds", []int64{4}, []int32{2}, Uint8, nil)
	require.NoError(t, ds.WriteBlock([]int64{0}, []byte{1, 2}))

	require.NoError(t, s.Remove("g/ds"))
	ok, err := s.Exists("g/ds")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remove("g/ds"), "removing a missing path is not an error")

	testDataset(t, s, "g/ds", []int64{4}, []int32{2}, Uint8, nil)
}

func TestReadOnlyStore(t *testing.T) {
	root := testRoot(t)
	rw, err := OpenOrCreate(root, WithLogger(quietLogger()))
	require.NoError(t, err)
	testDataset(t, rw, "ds", []int64{4}, []int32{2}, Uint8, nil)
	require.NoError(t, rw.Close())

	ro, err := Open(root, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer ro.Close()

	attrs, err := ro.DatasetAttributes("ds")
	require.NoError(t, err)

	assert.ErrorIs(t, ro.CreateDataset("other", attrs), ErrReadOnly)
	assert.ErrorIs(t, ro.CreateGroup("g"), ErrReadOnly)
	assert.ErrorIs(t, ro.WriteBlock("ds", attrs, &Block{GridPosition: []int64{0}, Data: []byte{1, 2}}), ErrReadOnly)
	assert.ErrorIs(t, ro.SetAttributes("ds", map[string]interface{}{"a": 1}), ErrReadOnly)
	assert.ErrorIs(t, ro.Remove("ds"), ErrReadOnly)

	ds, err := ro.OpenDataset("ds")
	require.NoError(t, err)
	assert.True(t, ds.ReadOnly())
	assert.ErrorIs(t, ds.WriteBlock([]int64{0}, []byte{1, 2}), ErrReadOnly)
	assert.ErrorIs(t, WriteNdarray(ds, []int64{0}, &Array[uint8]{Shape: []int64{1}, Data: []uint8{1}}, 0), ErrReadOnly)
}

func TestClosedStore(t *testing.T) {
	s, err := OpenOrCreate(testRoot(t), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Close(), ErrClosed)
	_, err = s.Exists("ds")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.DatasetAttributes("ds")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.CreateGroup("g"), ErrClosed)
}

func TestWalkAndStats(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.CreateGroup("a/empty"))
	ds := testDataset(t, s, "a/ds", []int64{4, 4}, []int32{2, 2}, Uint16, &RawCompression{})
	testDataset(t, s, "b", []int64{1}, []int32{1}, Float32, nil)

	require.NoError(t, WriteBlock(ds, []int64{0, 0}, []uint16{1, 2, 3, 4}))
	require.NoError(t, WriteBlock(ds, []int64{1, 1}, []uint16{5, 6, 7, 8}))

	var groups, datasets []string
	err := s.Walk("", func(path string, attrs *DatasetAttributes, err error) error {
		require.NoError(t, err)
		if attrs == nil {
			groups = append(groups, path)
		} else {
			datasets = append(datasets, path)
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(groups)
	assert.Equal(t, []string{"", "a", "a/empty"}, groups)
	assert.Equal(t, []string{"a/ds", "b"}, datasets)

	stop := errors.New("stop")
	visited := 0
	err = s.Walk("", func(string, *DatasetAttributes, error) error {
		visited++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, visited)

	stats, err := s.Stats("a/ds")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Blocks)
	// Raw blocks: 4 header + 2*4 size + 4*2 payload bytes.
	assert.Equal(t, int64(2*(4+8+8)), stats.Bytes)

	_, err = s.Stats("a/empty")
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestStoredBlocks(t *testing.T) {
	s := testStore(t)
	ds := testDataset(t, s, "ds", []int64{6, 6}, []int32{2, 2}, Uint8, nil)

	for _, coord := range [][]int64{{2, 1}, {0, 0}, {1, 2}, {0, 2}} {
		require.NoError(t, ds.WriteBlock(coord, make([]byte, 4)))
	}
	// Stray files under the dataset are not blocks.
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "ds", "0", "notes.txt"), []byte("x"), 0o644))

	coords, err := s.StoredBlocks("ds")
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{0, 0}, {0, 2}, {1, 2}, {2, 1}}, coords)

	require.NoError(t, ds.RemoveBlock([]int64{0, 2}))
	coords, err = s.StoredBlocks("ds")
	require.NoError(t, err)
	assert.Len(t, coords, 3)

	_, err = s.StoredBlocks("missing")
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}
