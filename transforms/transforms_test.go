package transforms

import (
	"testing"

	"github.com/Noofbiz/dataloader/ndarray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// image builds a 2 x 3 x 1 image holding 1..6.
func image(t *testing.T) *ndarray.Array[float32] {
	t.Helper()
	img, err := ndarray.New([]float32{1, 2, 3, 4, 5, 6}, 2, 3, 1)
	require.NoError(t, err)
	return img
}

func TestRandomFlipHorizontal(t *testing.T) {
	img := image(t)

	always := NewRandomFlipHorizontal(1, 7)
	out, err := always.Apply(img)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 2, 1, 6, 5, 4}, out.Data())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, img.Data(), "input must be left untouched")

	never := NewRandomFlipHorizontal(0, 7)
	out, err = never.Apply(img)
	require.NoError(t, err)
	assert.Equal(t, img.Data(), out.Data())
}

func TestFlipKeepsChannelsTogether(t *testing.T) {
	img, err := ndarray.New([]float32{1, 10, 2, 20}, 1, 2, 2)
	require.NoError(t, err)
	out, err := NewRandomFlipHorizontal(1, 1).Apply(img)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 20, 1, 10}, out.Data())
}

func TestShift(t *testing.T) {
	img := image(t)

	down, err := Shift(img, -1, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 1, 2, 3}, down.Data())

	left, err := Shift(img, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3, 0, 5, 6, 0}, left.Data())
}

func TestRandomCrop(t *testing.T) {
	img := image(t)

	out, err := NewRandomCrop(0, 3).Apply(img)
	require.NoError(t, err)
	assert.Equal(t, img.Data(), out.Data())

	crop := NewRandomCrop(1, 3)
	for range 20 {
		out, err := crop.Apply(img)
		require.NoError(t, err)
		assert.Equal(t, img.Shape(), out.Shape())
		var sum float32
		for _, v := range out.Data() {
			sum += v
		}
		assert.LessOrEqual(t, sum, float32(21))
	}
}

func TestRejectsNonImages(t *testing.T) {
	flat, err := ndarray.New([]float32{1, 2, 3}, 3)
	require.NoError(t, err)

	_, err = NewRandomFlipHorizontal(1, 1).Apply(flat)
	require.ErrorIs(t, err, ErrNotImplemented)
	_, err = NewRandomCrop(2, 1).Apply(flat)
	require.ErrorIs(t, err, ErrNotImplemented)
}

func TestCompose(t *testing.T) {
	img := image(t)
	pipeline := Compose(NewRandomFlipHorizontal(1, 1), NewRandomFlipHorizontal(1, 2))
	out, err := pipeline.Apply(img)
	require.NoError(t, err)
	assert.Equal(t, img.Data(), out.Data())
}
