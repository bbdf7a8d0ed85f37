// Package ndarray holds the dense, row-major arrays that datasets produce and
// that get wrapped into gomlx tensors for training.
//
// Axis 0 is always the sample axis: selecting, slicing and concatenating work
// on whole rows, the same way the datasets index their examples.
package ndarray

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

var (
	ErrIndexOutOfRange = errors.New("ndarray: index out of range")
	ErrShapeMismatch   = errors.New("ndarray: shape mismatch")
)

// Dtype lists the element types an Array can hold. All of them are accepted
// by gomlx tensors.
type Dtype interface {
	float32 | float64 | int | int32 | int64 | uint8
}

// Array is a dense n-dimensional array stored in row-major order.
type Array[T Dtype] struct {
	shape []int
	data  []T
}

// New wraps data with the given shape. One dimension may be -1, in which case
// it is inferred from len(data).
func New[T Dtype](data []T, shape ...int) (*Array[T], error) {
	resolved, err := resolveShape(len(data), shape)
	if err != nil {
		return nil, err
	}
	return &Array[T]{shape: resolved, data: data}, nil
}

// Zeros allocates a zero-filled array.
func Zeros[T Dtype](shape ...int) *Array[T] {
	s := append([]int(nil), shape...)
	return &Array[T]{shape: s, data: make([]T, product(s))}
}

// FromRows stacks equally sized rows into a (len(rows), rowLen) array.
func FromRows[T Dtype](rows [][]T) (*Array[T], error) {
	if len(rows) == 0 {
		return &Array[T]{shape: []int{0, 0}}, nil
	}
	width := len(rows[0])
	data := make([]T, 0, len(rows)*width)
	for i, r := range rows {
		if len(r) != width {
			return nil, errors.Wrapf(ErrShapeMismatch, "row %d has %d elements, expected %d", i, len(r), width)
		}
		data = append(data, r...)
	}
	return &Array[T]{shape: []int{len(rows), width}, data: data}, nil
}

// Cast converts every element of a to U.
func Cast[U, T Dtype](a *Array[T]) *Array[U] {
	out := make([]U, len(a.data))
	for i, v := range a.data {
		out[i] = U(v)
	}
	return &Array[U]{shape: a.Shape(), data: out}
}

func resolveShape(size int, shape []int) ([]int, error) {
	out := append([]int(nil), shape...)
	infer := -1
	known := 1
	for i, d := range out {
		switch {
		case d == -1:
			if infer >= 0 {
				return nil, errors.Wrapf(ErrShapeMismatch, "more than one inferred dimension in %v", shape)
			}
			infer = i
		case d < 0:
			return nil, errors.Wrapf(ErrShapeMismatch, "negative dimension in %v", shape)
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || size%known != 0 {
			return nil, errors.Wrapf(ErrShapeMismatch, "cannot reshape %d elements into %v", size, shape)
		}
		out[infer] = size / known
		known *= out[infer]
	}
	if known != size {
		return nil, errors.Wrapf(ErrShapeMismatch, "cannot reshape %d elements into %v", size, shape)
	}
	return out, nil
}

func product(shape []int) int {
	p := 1
	for _, d := range shape {
		p *= d
	}
	return p
}

// Shape returns a copy of the dimensions.
func (a *Array[T]) Shape() []int {
	return append([]int(nil), a.shape...)
}

// Rank is the number of dimensions.
func (a *Array[T]) Rank() int {
	return len(a.shape)
}

// Data returns the flat backing slice. It is shared, not copied.
func (a *Array[T]) Data() []T {
	return a.data
}

// Size is the total number of elements.
func (a *Array[T]) Size() int {
	return len(a.data)
}

// Len is the size of axis 0, or 1 for a scalar.
func (a *Array[T]) Len() int {
	if len(a.shape) == 0 {
		return 1
	}
	return a.shape[0]
}

// rowSize is the number of elements in one slice along axis 0.
func (a *Array[T]) rowSize() int {
	if len(a.shape) == 0 {
		return 1
	}
	return product(a.shape[1:])
}

// Reshape returns a view of the same data with a new shape.
func (a *Array[T]) Reshape(shape ...int) (*Array[T], error) {
	return New(a.data, shape...)
}

// Flatten returns a 1D view of the array.
func (a *Array[T]) Flatten() *Array[T] {
	return &Array[T]{shape: []int{len(a.data)}, data: a.data}
}

// Clone deep-copies the array.
func (a *Array[T]) Clone() *Array[T] {
	return &Array[T]{shape: a.Shape(), data: append([]T(nil), a.data...)}
}

// Row returns the i-th slice along axis 0 with that axis dropped. The result
// shares memory with a.
func (a *Array[T]) Row(i int) (*Array[T], error) {
	if len(a.shape) == 0 {
		return nil, errors.Wrap(ErrShapeMismatch, "cannot index a scalar")
	}
	if i < 0 || i >= a.shape[0] {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d for axis of size %d", i, a.shape[0])
	}
	rs := a.rowSize()
	return &Array[T]{shape: append([]int(nil), a.shape[1:]...), data: a.data[i*rs : (i+1)*rs]}, nil
}

// Take gathers the given rows, in order, into a new array of shape
// (len(indices), ...).
func (a *Array[T]) Take(indices []int) (*Array[T], error) {
	if len(a.shape) == 0 {
		return nil, errors.Wrap(ErrShapeMismatch, "cannot index a scalar")
	}
	rs := a.rowSize()
	out := make([]T, 0, len(indices)*rs)
	for _, i := range indices {
		if i < 0 || i >= a.shape[0] {
			return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d for axis of size %d", i, a.shape[0])
		}
		out = append(out, a.data[i*rs:(i+1)*rs]...)
	}
	shape := append([]int{len(indices)}, a.shape[1:]...)
	return &Array[T]{shape: shape, data: out}, nil
}

// Slice returns rows [start, stop). Bounds are clamped to the array the same
// way Python slicing does, so an out-of-range window yields a shorter (maybe
// empty) array instead of an error. The result shares memory with a.
func (a *Array[T]) Slice(start, stop int) *Array[T] {
	n := a.Len()
	start = clamp(start, 0, n)
	stop = clamp(stop, start, n)
	rs := a.rowSize()
	shape := a.Shape()
	if len(shape) == 0 {
		shape = []int{1}
	}
	shape[0] = stop - start
	return &Array[T]{shape: shape, data: a.data[start*rs : stop*rs]}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Concat stacks arrays along axis 0. All arrays must agree on the trailing
// dimensions.
func Concat[T Dtype](arrays ...*Array[T]) (*Array[T], error) {
	if len(arrays) == 0 {
		return nil, errors.Wrap(ErrShapeMismatch, "nothing to concatenate")
	}
	trailing := arrays[0].shape[1:]
	rows, size := 0, 0
	for i, a := range arrays {
		if a.Rank() != len(trailing)+1 || !equalInts(a.shape[1:], trailing) {
			return nil, errors.Wrapf(ErrShapeMismatch, "array %d has shape %v, expected (*, %v)", i, a.shape, trailing)
		}
		rows += a.shape[0]
		size += len(a.data)
	}
	data := make([]T, 0, size)
	for _, a := range arrays {
		data = append(data, a.data...)
	}
	return &Array[T]{shape: append([]int{rows}, trailing...), data: data}, nil
}

func equalInts(a, b []int) bool {
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

// Transpose permutes the axes: output axis k is input axis perm[k]. The result
// is a new contiguous array.
func (a *Array[T]) Transpose(perm ...int) (*Array[T], error) {
	rank := len(a.shape)
	if len(perm) != rank {
		return nil, errors.Wrapf(ErrShapeMismatch, "permutation %v for rank %d", perm, rank)
	}
	seen := make([]bool, rank)
	outShape := make([]int, rank)
	for k, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			return nil, errors.Wrapf(ErrShapeMismatch, "invalid permutation %v", perm)
		}
		seen[p] = true
		outShape[k] = a.shape[p]
	}

	inStrides := strides(a.shape)
	out := make([]T, len(a.data))
	idx := make([]int, rank)
	for flat := range out {
		src := 0
		for k := range rank {
			src += idx[k] * inStrides[perm[k]]
		}
		out[flat] = a.data[src]
		// advance the output multi-index
		for k := rank - 1; k >= 0; k-- {
			idx[k]++
			if idx[k] < outShape[k] {
				break
			}
			idx[k] = 0
		}
	}
	return &Array[T]{shape: outShape, data: out}, nil
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

// At returns the element at the given multi-index.
func (a *Array[T]) At(idx ...int) (T, error) {
	var zero T
	if len(idx) != len(a.shape) {
		return zero, errors.Wrapf(ErrShapeMismatch, "index %v for shape %v", idx, a.shape)
	}
	flat := 0
	for k, i := range idx {
		if i < 0 || i >= a.shape[k] {
			return zero, errors.Wrapf(ErrIndexOutOfRange, "index %v for shape %v", idx, a.shape)
		}
		flat = flat*a.shape[k] + i
	}
	return a.data[flat], nil
}

// Tensor wraps the array as a gomlx tensor with the same shape. The dtype is
// the one of T.
func (a *Array[T]) Tensor() *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(a.data, a.shape...)
}

func (a *Array[T]) String() string {
	var zero T
	return fmt.Sprintf("Array[%T]%v", zero, a.shape)
}
