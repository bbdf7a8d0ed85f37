package text

import (
	"io"

	"github.com/Noofbiz/dataloader/ndarray"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Batchify arranges a token sequence into batchSize independent columns.
// With the alphabet and a batch size of 4:
//
//	┌ a g m s ┐
//	│ b h n t │
//	│ c i o u │
//	│ d j p v │
//	│ e k q w │
//	└ f l r x ┘
//
// Trailing ids that do not fill a whole row are dropped. The result has shape
// (len(data)/batchSize, batchSize).
func Batchify[T ndarray.Dtype](data []int, batchSize int) (*ndarray.Array[T], error) {
	if batchSize < 1 {
		return nil, errors.Errorf("text: batch size must be positive, got %d", batchSize)
	}
	steps := len(data) / batchSize
	if steps == 0 {
		return ndarray.Zeros[T](0, batchSize), nil
	}

	flat := make([]float64, steps*batchSize)
	for i := range flat {
		flat[i] = float64(data[i])
	}
	// batchSize rows of consecutive ids, read back transposed.
	cols := mat.NewDense(batchSize, steps, flat).T()

	out := ndarray.Zeros[T](steps, batchSize)
	dst := out.Data()
	for i := range steps {
		for j := range batchSize {
			dst[i*batchSize+j] = T(cols.At(i, j))
		}
	}
	return out, nil
}

// Window cuts bptt rows out of a batchified matrix starting at row i, along
// with the targets: the same window shifted by one row and flattened.
// Windows running past the end come back shorter, or empty.
func Window[T ndarray.Dtype](batches *ndarray.Array[T], i, bptt int) (data, target *ndarray.Array[T]) {
	data = batches.Slice(i, i+bptt)
	target = batches.Slice(i+1, i+bptt+1).Flatten()
	return data, target
}

// GetBatch is Window with both results wrapped as gomlx tensors: data shaped
// (bptt, batchSize) and target shaped (bptt*batchSize).
func GetBatch[T ndarray.Dtype](batches *ndarray.Array[T], i, bptt int) (data, target *tensors.Tensor) {
	d, t := Window(batches, i, bptt)
	return d.Tensor(), t.Tensor()
}

// SequenceLoader walks a batchified matrix bptt rows at a time, yielding
// (data, target) pairs. It implements gomlx's train.Dataset.
type SequenceLoader[T ndarray.Dtype] struct {
	batches *ndarray.Array[T]
	bptt    int
	name    string
	pos     int
}

var _ train.Dataset = (*SequenceLoader[float32])(nil)

// NewSequenceLoader creates a loader over a (steps, batchSize) matrix from
// Batchify.
func NewSequenceLoader[T ndarray.Dtype](name string, batches *ndarray.Array[T], bptt int) (*SequenceLoader[T], error) {
	if bptt < 1 {
		return nil, errors.Errorf("text: bptt must be positive, got %d", bptt)
	}
	if batches.Rank() != 2 || batches.Shape()[1] == 0 {
		return nil, errors.Wrapf(ndarray.ErrShapeMismatch, "batchified data has shape %v", batches.Shape())
	}
	return &SequenceLoader[T]{batches: batches, bptt: bptt, name: name}, nil
}

// Name implements train.Dataset.
func (s *SequenceLoader[T]) Name() string {
	return s.name
}

// Reset implements train.Dataset.
func (s *SequenceLoader[T]) Reset() {
	s.pos = 0
}

// Next returns the next window. Every row but the last can start a window,
// since the targets need one row more. It returns io.EOF past the end.
func (s *SequenceLoader[T]) Next() (data, target *ndarray.Array[T], err error) {
	if s.pos >= s.batches.Len()-1 {
		return nil, nil, io.EOF
	}
	data, target = Window(s.batches, s.pos, s.bptt)
	// the final window may be shorter than bptt on both sides
	data = data.Slice(0, target.Size()/s.batches.Shape()[1])
	s.pos += s.bptt
	return data, target, nil
}

// Yield implements train.Dataset.
func (s *SequenceLoader[T]) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	data, target, err := s.Next()
	if err != nil {
		return nil, nil, nil, err
	}
	return s, []*tensors.Tensor{data.Tensor()}, []*tensors.Tensor{target.Tensor()}, nil
}
