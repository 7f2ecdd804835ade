package n5

import (
	"slices"
	"strconv"
	"strings"
)

// WalkFunc is called for each group and dataset during traversal.
// path is relative to the root ("" for the root itself).
// attrs is nil for groups and the dataset attributes for datasets.
// err is any error encountered loading the node.
// Return nil to continue walking, or an error to stop.
type WalkFunc func(path string, attrs *DatasetAttributes, err error) error

// Walk traverses all groups and datasets below path, including path
// itself, in lexical order. Datasets are leaves: their block directories
// are not visited.
//
// Example:
//
//	store.Walk("", func(path string, attrs *n5.DatasetAttributes, err error) error {
//	    if err != nil {
//	        return err // or skip: return nil
//	    }
//	    if attrs == nil {
//	        fmt.Println("Group:", path)
//	    } else {
//	        fmt.Println("Dataset:", path, "shape:", attrs.Dimensions())
//	    }
//	    return nil
//	})
func (s *Store) Walk(path string, fn WalkFunc) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	return s.walk(p, fn)
}

func (s *Store) walk(path string, fn WalkFunc) error {
	fields, err := s.readAttributes(path)
	if err != nil {
		return fn(path, nil, err)
	}
	if hasDatasetKeys(fields) {
		attrs, err := decodeDatasetAttributes(fields)
		return fn(path, attrs, err)
	}

	if err := fn(path, nil, nil); err != nil {
		return err
	}

	children, err := s.List(path)
	if err != nil {
		return fn(path, nil, err)
	}
	for _, name := range children {
		if err := s.walk(JoinPath(path, name), fn); err != nil {
			return err
		}
	}
	return nil
}

// DatasetStats summarizes the blocks stored for a dataset.
type DatasetStats struct {
	Blocks int
	Bytes  int64
}

// Stats counts the stored blocks of the dataset at path and their
// compressed size.
func (s *Store) Stats(path string) (*DatasetStats, error) {
	p, err := s.requireDataset(path)
	if err != nil {
		return nil, err
	}

	stats := &DatasetStats{}
	err = s.fs.WalkFiles(p, func(key string, size int64) error {
		if strings.HasSuffix(key, "/"+attributesFile) {
			return nil
		}
		stats.Blocks++
		stats.Bytes += size
		return nil
	})
	if err != nil {
		return nil, ioFailure("walking", p, err)
	}
	return stats, nil
}

// StoredBlocks returns the grid coordinates of every block file stored for
// the dataset at path, sorted row-major. Files whose key is not a grid
// coordinate of the dataset's rank are ignored.
func (s *Store) StoredBlocks(path string) ([][]int64, error) {
	p, err := s.requireDataset(path)
	if err != nil {
		return nil, err
	}
	attrs, err := s.DatasetAttributes(p)
	if err != nil {
		return nil, err
	}

	var coords [][]int64
	err = s.fs.WalkFiles(p, func(key string, _ int64) error {
		if coord, ok := parseBlockKey(strings.TrimPrefix(key, p+"/"), attrs.Rank()); ok {
			coords = append(coords, coord)
		}
		return nil
	})
	if err != nil {
		return nil, ioFailure("walking", p, err)
	}
	slices.SortFunc(coords, func(a, b []int64) int { return slices.Compare(a, b) })
	return coords, nil
}

func parseBlockKey(rel string, rank int) ([]int64, bool) {
	parts := strings.Split(rel, "/")
	if len(parts) != rank {
		return nil, false
	}
	coord := make([]int64, rank)
	for i, part := range parts {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil || v < 0 {
			return nil, false
		}
		coord[i] = v
	}
	return coord, true
}
