package loader

import (
	"io"
	"sort"
	"testing"

	"github.com/Noofbiz/dataloader/datasets"
	"github.com/Noofbiz/dataloader/ndarray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// indexDataset returns an unlabeled dataset whose sample i is the value i, so
// fetched batches reveal the indices the loader asked for.
func indexDataset(t *testing.T, n int) *datasets.NDArrayDataset {
	t.Helper()
	values := make([]int, n)
	for i := range values {
		values[i] = i
	}
	arr, err := ndarray.New(values, n)
	require.NoError(t, err)
	ds, err := datasets.NewNDArrayDataset(arr)
	require.NoError(t, err)
	return ds
}

// drain runs the remainder of a traversal and returns the index batches.
func drain(t *testing.T, l *DataLoader) [][]int {
	t.Helper()
	var batches [][]int
	for {
		sample, err := l.NextSample()
		if err == io.EOF {
			return batches
		}
		require.NoError(t, err)
		var idx []int
		for _, v := range sample.Data().Float32s() {
			idx = append(idx, int(v))
		}
		batches = append(batches, idx)
	}
}

func TestSequentialBatches(t *testing.T) {
	for _, n := range []int{0, 1, 5, 12, 13} {
		for _, b := range []int{1, 3, 4, 20} {
			l, err := New(indexDataset(t, n), WithBatchSize(b))
			require.NoError(t, err)

			batches := drain(t, l)
			wantBatches := (n + b - 1) / b
			require.Len(t, batches, wantBatches, "n=%d b=%d", n, b)

			var all []int
			for i, batch := range batches {
				if i < len(batches)-1 {
					assert.Len(t, batch, b)
				}
				all = append(all, batch...)
			}
			if n > 0 {
				last := n % b
				if last == 0 {
					last = b
				}
				assert.Len(t, batches[len(batches)-1], last, "n=%d b=%d", n, b)
			}
			for i, v := range all {
				assert.Equal(t, i, v)
			}
			assert.Len(t, all, n)
		}
	}
}

func TestSequentialTraversalsRepeat(t *testing.T) {
	l, err := New(indexDataset(t, 7), WithBatchSize(3))
	require.NoError(t, err)

	first := drain(t, l)
	l.Reset()
	second := drain(t, l)
	assert.Equal(t, first, second)
}

func TestShuffledBatchesArePermutations(t *testing.T) {
	const n, b = 50, 8
	l, err := New(indexDataset(t, n), WithBatchSize(b), WithShuffle(true), WithSeed(42))
	require.NoError(t, err)

	var traversals [][]int
	for range 3 {
		l.Reset()
		batches := drain(t, l)
		require.Len(t, batches, (n+b-1)/b)
		var all []int
		for _, batch := range batches {
			assert.LessOrEqual(t, len(batch), b)
			all = append(all, batch...)
		}
		traversals = append(traversals, append([]int(nil), all...))

		sort.Ints(all)
		for i, v := range all {
			require.Equal(t, i, v)
		}
	}
	assert.NotEqual(t, traversals[0], traversals[1])
	assert.NotEqual(t, traversals[1], traversals[2])
}

func TestEndOfTraversal(t *testing.T) {
	l, err := New(indexDataset(t, 2), WithBatchSize(2))
	require.NoError(t, err)

	_, err = l.Next()
	require.NoError(t, err)
	for range 3 {
		_, err = l.Next()
		require.ErrorIs(t, err, io.EOF)
	}
	_, _, _, err = l.Yield()
	require.ErrorIs(t, err, io.EOF)

	l.Reset()
	_, err = l.Next()
	require.NoError(t, err)
}

func TestLabeledBatchesYieldTwoTensors(t *testing.T) {
	x, err := ndarray.New([]float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 5, 2)
	require.NoError(t, err)
	y, err := ndarray.New([]uint8{0, 1, 0, 1, 0}, 5)
	require.NoError(t, err)
	ds, err := datasets.NewNDArrayDataset(x, y)
	require.NoError(t, err)

	l, err := New(ds, WithBatchSize(2), WithName("pairs"))
	require.NoError(t, err)
	assert.Equal(t, "pairs", l.Name())
	assert.Equal(t, 3, l.NumBatches())

	batch, err := l.Next()
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, []int{2, 2}, batch[0].Shape().Dimensions)
	assert.Equal(t, []int{2}, batch[1].Shape().Dimensions)

	spec, inputs, labels, err := l.Yield()
	require.NoError(t, err)
	assert.Equal(t, l, spec)
	require.Len(t, inputs, 1)
	require.Len(t, labels, 1)
	assert.Equal(t, [][]float32{{4, 5}, {6, 7}}, inputs[0].Value())

	unlabeled, err := New(indexDataset(t, 3), WithBatchSize(2))
	require.NoError(t, err)
	batch, err = unlabeled.Next()
	require.NoError(t, err)
	assert.Len(t, batch, 1)
	_, inputs, labels, err = unlabeled.Yield()
	require.NoError(t, err)
	assert.Len(t, inputs, 1)
	assert.Empty(t, labels)
}

func TestBatchesIterator(t *testing.T) {
	l, err := New(indexDataset(t, 10), WithBatchSize(4))
	require.NoError(t, err)

	for range 2 {
		count := 0
		for batch, err := range l.Batches() {
			require.NoError(t, err)
			require.Len(t, batch, 1)
			count++
		}
		assert.Equal(t, 3, count)
	}
}

func TestInvalidOptions(t *testing.T) {
	_, err := New(indexDataset(t, 3), WithBatchSize(0))
	require.Error(t, err)
	_, err = New(nil)
	require.Error(t, err)
}

func TestOrderingIsACopy(t *testing.T) {
	l, err := New(indexDataset(t, 4), WithBatchSize(2))
	require.NoError(t, err)
	ordering := l.Ordering()
	ordering[0][0] = 99
	assert.Equal(t, [][]int{{0, 1}, {2, 3}}, l.Ordering())
}
