package n5

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testRoot(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "root.n5")
}

func testStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := OpenOrCreate(testRoot(t), append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testDataset(t *testing.T, s *Store, path string, dims []int64, block []int32, dt DataType, c Compression) *Dataset {
	t.Helper()
	attrs, err := NewDatasetAttributes(dims, block, dt, c)
	require.NoError(t, err)
	ds, err := s.NewDataset(path, attrs)
	require.NoError(t, err)
	return ds
}
