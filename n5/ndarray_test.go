package n5

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadNdarrayScenario(t *testing.T) {
	s := testStore(t)
	ds := testDataset(t, s, "ds", []int64{10, 10}, []int32{4, 4}, Uint8, nil)

	block := make([]uint8, 16)
	for i := range block {
		block[i] = 7
	}
	require.NoError(t, WriteBlock(ds, []int64{0, 0}, block))

	const fill = 255
	arr, err := ReadNdarray[uint8](ds, NewBoundingBox([]int64{2, 2}, []int64{4, 4}), fill)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 4}, arr.Shape)
	require.Len(t, arr.Data, 16)

	for y := int64(0); y < 4; y++ {
		for x := int64(0); x < 4; x++ {
			want := uint8(fill)
			if x < 2 && y < 2 {
				want = 7
			}
			assert.Equal(t, want, arr.At(x, y), "element (%d,%d)", x, y)
		}
	}
}

func TestReadNdarrayAbsentBlocksFill(t *testing.T) {
	s := testStore(t)
	ds := testDataset(t, s, "ds", []int64{9, 9, 9}, []int32{3, 3, 3}, Float64, nil)

	arr, err := ReadNdarray[float64](ds, NewBoundingBox([]int64{1, 2, 3}, []int64{5, 5, 5}), math.Pi)
	require.NoError(t, err)
	for i, v := range arr.Data {
		require.Equal(t, math.Pi, v, "element %d", i)
	}

	raw, err := ds.ReadNdarray(NewBoundingBox([]int64{0, 0, 0}, []int64{1, 1, 2}), nil)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), raw, "nil fill means zero")
}

func TestReadNdarrayDeterministic(t *testing.T) {
	s := testStore(t)
	ds := testDataset(t, s, "ds", []int64{20, 20}, []int32{3, 7}, Int32, nil)

	arr := NewArray[int32](20, 20)
	for i := range arr.Data {
		arr.Data[i] = int32(i*31 - 200)
	}
	require.NoError(t, WriteNdarray(ds, []int64{0, 0}, arr, 0))

	box := NewBoundingBox([]int64{1, 5}, []int64{17, 11})
	first, err := ReadNdarray[int32](ds, box, 0)
	require.NoError(t, err)
	second, err := ReadNdarray[int32](ds, box, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for y := int64(0); y < 11; y++ {
		for x := int64(0); x < 17; x++ {
			assert.Equal(t, arr.At(x+1, y+5), first.At(x, y))
		}
	}
}

func roundTrip[T Element](t *testing.T, dt DataType, value func(i int) T) {
	t.Helper()
	s := testStore(t)
	ds := testDataset(t, s, "ds", []int64{13, 11, 5}, []int32{4, 3, 2}, dt, nil)

	boxes := []BoundingBox{
		NewBoundingBox([]int64{0, 0, 0}, []int64{13, 11, 5}), // whole dataset
		NewBoundingBox([]int64{4, 3, 2}, []int64{8, 6, 2}),   // block aligned
		NewBoundingBox([]int64{1, 2, 1}, []int64{10, 7, 3}),  // misaligned
		NewBoundingBox([]int64{12, 10, 4}, []int64{1, 1, 1}), // single edge element
	}

	for n, box := range boxes {
		arr := NewArray[T](box.Dimensions...)
		for i := range arr.Data {
			arr.Data[i] = value(i + n*1000)
		}
		require.NoError(t, WriteNdarray(ds, box.Translation, arr, value(-1)))

		got, err := ReadNdarray[T](ds, box, value(-1))
		require.NoError(t, err)
		require.Equal(t, arr.Shape, got.Shape)
		require.Equal(t, arr.Data, got.Data, "box %v", box)
	}
}

func TestNdarrayRoundTripAllTypes(t *testing.T) {
	t.Run("UINT8", func(t *testing.T) { roundTrip(t, Uint8, func(i int) uint8 { return uint8(i) }) })
	t.Run("UINT16", func(t *testing.T) { roundTrip(t, Uint16, func(i int) uint16 { return uint16(i * 7) }) })
	t.Run("UINT32", func(t *testing.T) { roundTrip(t, Uint32, func(i int) uint32 { return uint32(i) * 100003 }) })
	t.Run("UINT64", func(t *testing.T) { roundTrip(t, Uint64, func(i int) uint64 { return uint64(i) << 40 }) })
	t.Run("INT8", func(t *testing.T) { roundTrip(t, Int8, func(i int) int8 { return int8(i) }) })
	t.Run("INT16", func(t *testing.T) { roundTrip(t, Int16, func(i int) int16 { return int16(-i * 3) }) })
	t.Run("INT32", func(t *testing.T) { roundTrip(t, Int32, func(i int) int32 { return int32(-i * 65537) }) })
	t.Run("INT64", func(t *testing.T) { roundTrip(t, Int64, func(i int) int64 { return int64(-i) << 33 }) })
	t.Run("FLOAT32", func(t *testing.T) { roundTrip(t, Float32, func(i int) float32 { return float32(i) / 3 }) })
	t.Run("FLOAT64", func(t *testing.T) { roundTrip(t, Float64, func(i int) float64 { return float64(i) * -1.25e-3 }) })
}

func TestNdarrayRoundTripAllCodecs(t *testing.T) {
	codecs := []Compression{
		&RawCompression{},
		&GzipCompression{Level: -1},
		&GzipCompression{Level: 6, UseZlib: true},
		&Bzip2Compression{BlockSize: 9},
		&XzCompression{Preset: 6},
		&ZstdCompression{Level: 3},
		&SnappyCompression{},
	}
	for _, c := range codecs {
		t.Run(c.Type(), func(t *testing.T) {
			s := testStore(t)
			ds := testDataset(t, s, "ds", []int64{30, 20}, []int32{8, 8}, Uint16, c)

			arr := NewArray[uint16](25, 17)
			for i := range arr.Data {
				arr.Data[i] = uint16(i % 97)
			}
			require.NoError(t, WriteNdarray(ds, []int64{3, 2}, arr, 0))

			got, err := ReadNdarray[uint16](ds, NewBoundingBox([]int64{3, 2}, []int64{25, 17}), 0)
			require.NoError(t, err)
			assert.Equal(t, arr.Data, got.Data)

			reopened, err := s.OpenDataset("ds")
			require.NoError(t, err)
			assert.Equal(t, c.Type(), reopened.Attributes().Compression().Type())
		})
	}
}

func TestWriteNdarrayPreservesBoundary(t *testing.T) {
	s := testStore(t)
	ds := testDataset(t, s, "ds", []int64{10, 10}, []int32{4, 4}, Int16, nil)
	full := NewBoundingBox([]int64{0, 0}, []int64{10, 10})

	base := NewArray[int16](10, 10)
	for i := range base.Data {
		base.Data[i] = int16(i)
	}
	require.NoError(t, WriteNdarray(ds, []int64{0, 0}, base, 0))

	before, err := ReadNdarray[int16](ds, full, 0)
	require.NoError(t, err)

	patch := &Array[int16]{Shape: []int64{2, 3}, Data: []int16{-1, -2, -3, -4, -5, -6}}
	require.NoError(t, WriteNdarray(ds, []int64{3, 3}, patch, 0))

	after, err := ReadNdarray[int16](ds, full, 0)
	require.NoError(t, err)

	for y := int64(0); y < 10; y++ {
		for x := int64(0); x < 10; x++ {
			if x >= 3 && x < 5 && y >= 3 && y < 6 {
				assert.Equal(t, patch.At(x-3, y-3), after.At(x, y))
				continue
			}
			assert.Equal(t, before.At(x, y), after.At(x, y), "untouched element (%d,%d)", x, y)
		}
	}
}

func TestWriteNdarrayFillsNewBlocks(t *testing.T) {
	s := testStore(t)
	ds := testDataset(t, s, "ds", []int64{10, 10}, []int32{4, 4}, Uint8, nil)

	require.NoError(t, WriteNdarray(ds, []int64{5, 5}, &Array[uint8]{Shape: []int64{1, 1}, Data: []uint8{1}}, 9))

	b, err := ReadBlock[uint8](ds, []int64{1, 1})
	require.NoError(t, err)
	require.NotNil(t, b)
	for i, v := range b.Data {
		if i == 1+4*1 {
			assert.Equal(t, uint8(1), v)
		} else {
			assert.Equal(t, uint8(9), v, "element %d", i)
		}
	}

	for _, coord := range [][]int64{{0, 0}, {1, 0}, {2, 2}} {
		ok, err := ds.BlockExists(coord)
		require.NoError(t, err)
		assert.False(t, ok, "block %v must not be written", coord)
	}
}

func TestWriteNdarrayEdgeBlocksAreFullSize(t *testing.T) {
	s := testStore(t)
	ds := testDataset(t, s, "ds", []int64{10, 10}, []int32{4, 4}, Uint8, nil)

	arr := NewArray[uint8](10, 10)
	for i := range arr.Data {
		arr.Data[i] = 1
	}
	require.NoError(t, WriteNdarray(ds, []int64{0, 0}, arr, 3))

	b, err := ReadBlock[uint8](ds, []int64{2, 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 4}, b.Shape)
	assert.Equal(t, uint8(1), b.At(1, 1))
	assert.Equal(t, uint8(3), b.At(2, 0), "tail beyond the dataset holds the fill value")
	assert.Equal(t, uint8(3), b.At(0, 3))
}

func TestNdarrayInvalidBoxes(t *testing.T) {
	s := testStore(t)
	ds := testDataset(t, s, "ds", []int64{10, 10}, []int32{4, 4}, Uint8, nil)

	bad := []BoundingBox{
		NewBoundingBox([]int64{-1, 0}, []int64{2, 2}),
		NewBoundingBox([]int64{9, 0}, []int64{2, 2}),
		NewBoundingBox([]int64{0}, []int64{2}),
		NewBoundingBox([]int64{0, 0}, []int64{-1, 2}),
	}
	for _, box := range bad {
		_, err := ds.ReadNdarray(box, nil)
		assert.ErrorIs(t, err, ErrInvalidShape, "read %v", box)
		if box.Rank() == 2 && box.Dimensions[0] >= 0 {
			err = ds.WriteNdarray(box.Translation, box.Dimensions, make([]byte, box.NumElements()), nil)
			assert.ErrorIs(t, err, ErrInvalidShape, "write %v", box)
		}
	}

	err := ds.WriteNdarray([]int64{0, 0}, []int64{2, 2}, make([]byte, 3), nil)
	assert.ErrorIs(t, err, ErrInvalidShape)

	err = WriteNdarray(ds, []int64{0, 0}, &Array[uint8]{Shape: []int64{2, 2}, Data: []uint8{1}}, 0)
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = ds.ReadNdarray(NewBoundingBox([]int64{0, 0}, []int64{1, 1}), []byte{1, 2})
	assert.ErrorIs(t, err, ErrInvalidShape, "fill must be one element")

	empty, err := ReadNdarray[uint8](ds, NewBoundingBox([]int64{3, 3}, []int64{0, 4}), 0)
	require.NoError(t, err)
	assert.Empty(t, empty.Data)
}

func TestNdarrayParallelismIndependent(t *testing.T) {
	for _, p := range []int{1, 3, 64} {
		t.Run(fmt.Sprintf("parallelism=%d", p), func(t *testing.T) {
			s := testStore(t, WithParallelism(p))
			ds := testDataset(t, s, "ds", []int64{33, 17}, []int32{5, 4}, Float32, &SnappyCompression{})

			arr := NewArray[float32](30, 15)
			for i := range arr.Data {
				arr.Data[i] = float32(i) * 0.5
			}
			require.NoError(t, WriteNdarray(ds, []int64{2, 1}, arr, -1))

			got, err := ReadNdarray[float32](ds, NewBoundingBox([]int64{0, 0}, []int64{33, 17}), -1)
			require.NoError(t, err)
			for y := int64(0); y < 17; y++ {
				for x := int64(0); x < 33; x++ {
					want := float32(-1)
					if x >= 2 && x < 32 && y >= 1 && y < 16 {
						want = arr.At(x-2, y-1)
					}
					require.Equal(t, want, got.At(x, y), "element (%d,%d)", x, y)
				}
			}
		})
	}
}

func TestConcurrentDisjointWrites(t *testing.T) {
	s := testStore(t)
	ds := testDataset(t, s, "ds", []int64{16, 16}, []int32{4, 4}, Uint32, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for by := int64(0); by < 4; by++ {
		for bx := int64(0); bx < 4; bx++ {
			wg.Add(1)
			go func(bx, by int64) {
				defer wg.Done()
				arr := NewArray[uint32](4, 4)
				for i := range arr.Data {
					arr.Data[i] = uint32(bx*10 + by)
				}
				errs <- WriteNdarray(ds, []int64{bx * 4, by * 4}, arr, 0)
			}(bx, by)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := ReadNdarray[uint32](ds, NewBoundingBox([]int64{0, 0}, []int64{16, 16}), 0)
	require.NoError(t, err)
	for y := int64(0); y < 16; y++ {
		for x := int64(0); x < 16; x++ {
			assert.Equal(t, uint32((x/4)*10+y/4), got.At(x, y))
		}
	}
}
