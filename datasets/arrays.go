package datasets

import (
	"github.com/Noofbiz/dataloader/ndarray"
	"github.com/pkg/errors"
)

// NDArrayDataset is a tuple of arrays indexed together along axis 0. With one
// array the samples are unlabeled; with more, the first is the data and the
// rest are labels (or anything else that travels with it).
type NDArrayDataset struct {
	arrays []ndarray.Field
}

// NewNDArrayDataset groups arrays that all have the same length.
func NewNDArrayDataset(arrays ...ndarray.Field) (*NDArrayDataset, error) {
	if len(arrays) == 0 {
		return nil, errors.New("datasets: NDArrayDataset needs at least one array")
	}
	n := arrays[0].Len()
	for i, a := range arrays[1:] {
		if a.Len() != n {
			return nil, errors.Wrapf(ndarray.ErrShapeMismatch, "array %d has length %d, expected %d", i+1, a.Len(), n)
		}
	}
	return &NDArrayDataset{arrays: arrays}, nil
}

// Len is the length of the first array.
func (d *NDArrayDataset) Len() int {
	return d.arrays[0].Len()
}

// Get selects index from every array.
func (d *NDArrayDataset) Get(index Index) (Sample, error) {
	return selectFields(d.arrays, index)
}

// SubsetDataset exposes a prefix of another dataset.
type SubsetDataset struct {
	base  Dataset
	limit int
}

// Subset wraps ds so that only its first limit samples are visible. A limit
// larger than the dataset is clamped.
func Subset(ds Dataset, limit int) (*SubsetDataset, error) {
	if limit < 0 {
		return nil, errors.Errorf("datasets: negative subset limit %d", limit)
	}
	return &SubsetDataset{base: ds, limit: min(limit, ds.Len())}, nil
}

// Len returns the subset size.
func (s *SubsetDataset) Len() int {
	return s.limit
}

// Get checks index against the subset bounds and forwards to the wrapped
// dataset.
func (s *SubsetDataset) Get(index Index) (Sample, error) {
	positions, err := index.Resolve(s.limit)
	if err != nil {
		return nil, err
	}
	if index.IsSingle() {
		return s.base.Get(Single(positions[0]))
	}
	return s.base.Get(Batch(positions...))
}
