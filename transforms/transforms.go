// Package transforms holds per-sample image augmentations. Images are H x W x C
// float32 arrays; every transform returns a new array and leaves its input
// untouched.
package transforms

import (
	"math/rand"
	"time"

	"github.com/Noofbiz/dataloader/ndarray"
	"github.com/pkg/errors"
)

// ErrNotImplemented is returned for inputs a transform has no implementation
// for. It is fatal for the sample.
var ErrNotImplemented = errors.New("transforms: not implemented")

// Transform is a stateless per-sample function over one H x W x C image.
type Transform interface {
	Apply(img *ndarray.Array[float32]) (*ndarray.Array[float32], error)
}

// Func adapts a plain function to Transform.
type Func func(img *ndarray.Array[float32]) (*ndarray.Array[float32], error)

// Apply implements Transform.
func (f Func) Apply(img *ndarray.Array[float32]) (*ndarray.Array[float32], error) {
	return f(img)
}

// Compose applies ts in order, stopping at the first error.
func Compose(ts ...Transform) Transform {
	return Func(func(img *ndarray.Array[float32]) (*ndarray.Array[float32], error) {
		var err error
		for _, t := range ts {
			if img, err = t.Apply(img); err != nil {
				return nil, err
			}
		}
		return img, nil
	})
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func checkHWC(img *ndarray.Array[float32]) (h, w, c int, err error) {
	if img.Rank() != 3 {
		return 0, 0, 0, errors.Wrapf(ErrNotImplemented, "image of shape %v, want H x W x C", img.Shape())
	}
	s := img.Shape()
	return s[0], s[1], s[2], nil
}

// RandomFlipHorizontal mirrors an image along its width with probability P.
type RandomFlipHorizontal struct {
	P   float64
	rng *rand.Rand
}

// NewRandomFlipHorizontal creates the transform. A zero seed picks a
// time-based one.
func NewRandomFlipHorizontal(p float64, seed int64) *RandomFlipHorizontal {
	return &RandomFlipHorizontal{P: p, rng: newRand(seed)}
}

// Apply implements Transform.
func (f *RandomFlipHorizontal) Apply(img *ndarray.Array[float32]) (*ndarray.Array[float32], error) {
	h, w, c, err := checkHWC(img)
	if err != nil {
		return nil, err
	}
	if f.rng == nil {
		f.rng = newRand(0)
	}
	out := img.Clone()
	if f.rng.Float64() >= f.P {
		return out, nil
	}
	src, dst := img.Data(), out.Data()
	for y := range h {
		for x := range w {
			from := (y*w + (w - 1 - x)) * c
			to := (y*w + x) * c
			copy(dst[to:to+c], src[from:from+c])
		}
	}
	return out, nil
}

// RandomCrop zero-pads an image by Padding pixels on each side of H and W and
// crops an H x W window back out of it, shifted by an offset drawn uniformly
// from [-Padding, Padding] on each axis.
type RandomCrop struct {
	Padding int
	rng     *rand.Rand
}

// NewRandomCrop creates the transform. A zero seed picks a time-based one.
func NewRandomCrop(padding int, seed int64) *RandomCrop {
	return &RandomCrop{Padding: padding, rng: newRand(seed)}
}

// Apply implements Transform.
func (r *RandomCrop) Apply(img *ndarray.Array[float32]) (*ndarray.Array[float32], error) {
	if _, _, _, err := checkHWC(img); err != nil {
		return nil, err
	}
	if r.rng == nil {
		r.rng = newRand(0)
	}
	shiftX := r.rng.Intn(2*r.Padding+1) - r.Padding
	shiftY := r.rng.Intn(2*r.Padding+1) - r.Padding
	return Shift(img, shiftY, shiftX)
}

// Shift moves the content of an H x W x C image so that output pixel (y, x)
// reads input pixel (y+dy, x+dx). Pixels that fall outside are zero.
func Shift(img *ndarray.Array[float32], dy, dx int) (*ndarray.Array[float32], error) {
	h, w, c, err := checkHWC(img)
	if err != nil {
		return nil, err
	}
	out := ndarray.Zeros[float32](h, w, c)
	src, dst := img.Data(), out.Data()
	for y := range h {
		sy := y + dy
		if sy < 0 || sy >= h {
			continue
		}
		for x := range w {
			sx := x + dx
			if sx < 0 || sx >= w {
				continue
			}
			copy(dst[(y*w+x)*c:(y*w+x+1)*c], src[(sy*w+sx)*c:(sy*w+sx+1)*c])
		}
	}
	return out, nil
}
