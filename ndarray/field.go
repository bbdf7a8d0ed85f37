package ndarray

import "github.com/gomlx/gomlx/pkg/core/tensors"

// Field is an Array with its element type erased, so that one sample can hold
// arrays of different dtypes (float32 images next to uint8 labels, for
// instance).
type Field interface {
	Shape() []int
	Len() int
	// Select gathers rows by index. With squeeze set, exactly one index must
	// be given and axis 0 is dropped from the result.
	Select(indices []int, squeeze bool) (Field, error)
	// Float32s returns a copy of the flat data converted to float32.
	Float32s() []float32
	Tensor() *tensors.Tensor
}

var (
	_ Field = (*Array[float32])(nil)
	_ Field = (*Array[uint8])(nil)
	_ Field = (*Array[int])(nil)
)

// Select implements Field.
func (a *Array[T]) Select(indices []int, squeeze bool) (Field, error) {
	var (
		out *Array[T]
		err error
	)
	if squeeze {
		if len(indices) != 1 {
			return nil, ErrShapeMismatch
		}
		out, err = a.Row(indices[0])
	} else {
		out, err = a.Take(indices)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Float32s implements Field.
func (a *Array[T]) Float32s() []float32 {
	out := make([]float32, len(a.data))
	for i, v := range a.data {
		out[i] = float32(v)
	}
	return out
}

// AsFloat32 returns f as a float32 array, converting if it holds another
// dtype.
func AsFloat32(f Field) *Array[float32] {
	if a, ok := f.(*Array[float32]); ok {
		return a
	}
	return &Array[float32]{shape: f.Shape(), data: f.Float32s()}
}
