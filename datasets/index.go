package datasets

import (
	"fmt"

	"github.com/Noofbiz/dataloader/ndarray"
	"github.com/pkg/errors"
)

type indexKind int

const (
	singleIndex indexKind = iota
	batchIndex
	rangeIndex
)

// Index selects samples from a Dataset: one sample, an explicit list of
// samples, or a contiguous range.
type Index struct {
	kind        indexKind
	i           int
	indices     []int
	start, stop int
}

// Single selects sample i. Datasets return it without a sample axis.
func Single(i int) Index {
	return Index{kind: singleIndex, i: i}
}

// Batch selects the given samples, in order.
func Batch(indices ...int) Index {
	return Index{kind: batchIndex, indices: indices}
}

// Range selects samples [start, stop). stop is clamped to the dataset length.
func Range(start, stop int) Index {
	return Index{kind: rangeIndex, start: start, stop: stop}
}

// IsSingle reports whether the index selects one sample with the sample axis
// dropped.
func (ix Index) IsSingle() bool {
	return ix.kind == singleIndex
}

// Resolve expands the index into explicit positions for a dataset of length n.
func (ix Index) Resolve(n int) ([]int, error) {
	switch ix.kind {
	case singleIndex:
		if ix.i < 0 || ix.i >= n {
			return nil, errors.Wrapf(ndarray.ErrIndexOutOfRange, "index %d for dataset of length %d", ix.i, n)
		}
		return []int{ix.i}, nil
	case batchIndex:
		for _, i := range ix.indices {
			if i < 0 || i >= n {
				return nil, errors.Wrapf(ndarray.ErrIndexOutOfRange, "index %d for dataset of length %d", i, n)
			}
		}
		return ix.indices, nil
	case rangeIndex:
		if ix.start < 0 || ix.stop < ix.start {
			return nil, errors.Wrapf(ndarray.ErrIndexOutOfRange, "range [%d, %d) for dataset of length %d", ix.start, ix.stop, n)
		}
		stop := min(ix.stop, n)
		out := make([]int, 0, max(stop-ix.start, 0))
		for i := ix.start; i < stop; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	return nil, errors.Errorf("datasets: unknown index kind %d", ix.kind)
}

func (ix Index) String() string {
	switch ix.kind {
	case singleIndex:
		return fmt.Sprintf("Single(%d)", ix.i)
	case batchIndex:
		return fmt.Sprintf("Batch(%v)", ix.indices)
	default:
		return fmt.Sprintf("Range(%d, %d)", ix.start, ix.stop)
	}
}

// selectFields picks the same positions out of every field.
func selectFields(fields []ndarray.Field, index Index) (Sample, error) {
	n := 0
	if len(fields) > 0 {
		n = fields[0].Len()
	}
	positions, err := index.Resolve(n)
	if err != nil {
		return nil, err
	}
	out := make(Sample, len(fields))
	for i, f := range fields {
		if out[i], err = f.Select(positions, index.IsSingle()); err != nil {
			return nil, err
		}
	}
	return out, nil
}
