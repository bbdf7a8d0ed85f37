package datasets

import (
	"errors"
	"testing"

	"github.com/Noofbiz/dataloader/ndarray"
)

func newArrays(t *testing.T) (*ndarray.Array[float32], *ndarray.Array[int]) {
	t.Helper()
	x, err := ndarray.New([]float32{0, 1, 10, 11, 20, 21, 30, 31}, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	y, err := ndarray.New([]int{0, 1, 2, 3}, 4)
	if err != nil {
		t.Fatal(err)
	}
	return x, y
}

func TestNDArrayDataset_Get(t *testing.T) {
	x, y := newArrays(t)
	ds, err := NewNDArrayDataset(x, y)
	if err != nil {
		t.Fatalf("NewNDArrayDataset failed: %v", err)
	}
	if ds.Len() != 4 {
		t.Fatalf("expected len 4, got %d", ds.Len())
	}

	s, err := ds.Get(Single(2))
	if err != nil {
		t.Fatalf("Get(Single) failed: %v", err)
	}
	if got := s[0].Float32s(); len(got) != 2 || got[0] != 20 || got[1] != 21 {
		t.Fatalf("unexpected data %v", got)
	}
	if got := s[1].Float32s(); got[0] != 2 {
		t.Fatalf("unexpected label %v", got)
	}

	b, err := ds.Get(Batch(3, 1))
	if err != nil {
		t.Fatalf("Get(Batch) failed: %v", err)
	}
	if got := b[0].Float32s(); got[0] != 30 || got[2] != 10 {
		t.Fatalf("unexpected batch data %v", got)
	}

	r, err := ds.Get(Range(1, 3))
	if err != nil {
		t.Fatalf("Get(Range) failed: %v", err)
	}
	if shape := r[0].Shape(); shape[0] != 2 || shape[1] != 2 {
		t.Fatalf("unexpected range shape %v", shape)
	}

	if _, err := ds.Get(Range(3, 1)); !errors.Is(err, ndarray.ErrIndexOutOfRange) {
		t.Fatalf("expected an out of range error for a reversed range, got %v", err)
	}
}

func TestNDArrayDataset_Unlabeled(t *testing.T) {
	x, _ := newArrays(t)
	ds, err := NewNDArrayDataset(x)
	if err != nil {
		t.Fatal(err)
	}
	s, err := ds.Get(Batch(0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 1 || s.Labeled() {
		t.Fatalf("expected a single data field, got %d", len(s))
	}
}

func TestNDArrayDataset_LengthMismatch(t *testing.T) {
	x, _ := newArrays(t)
	short, _ := ndarray.New([]int{1, 2}, 2)
	if _, err := NewNDArrayDataset(x, short); !errors.Is(err, ndarray.ErrShapeMismatch) {
		t.Fatalf("expected a shape mismatch, got %v", err)
	}
	if _, err := NewNDArrayDataset(); err == nil {
		t.Fatalf("expected an error without arrays")
	}
}

func TestSubset(t *testing.T) {
	x, y := newArrays(t)
	ds, _ := NewNDArrayDataset(x, y)

	sub, err := Subset(ds, 2)
	if err != nil {
		t.Fatalf("Subset failed: %v", err)
	}
	if sub.Len() != 2 {
		t.Fatalf("expected len 2, got %d", sub.Len())
	}
	if _, err := sub.Get(Single(3)); !errors.Is(err, ndarray.ErrIndexOutOfRange) {
		t.Fatalf("expected subset bounds to apply, got %v", err)
	}
	s, err := sub.Get(Range(0, 10))
	if err != nil {
		t.Fatal(err)
	}
	if s[1].Len() != 2 {
		t.Fatalf("expected 2 labels, got %d", s[1].Len())
	}

	big, _ := Subset(ds, 100)
	if big.Len() != 4 {
		t.Fatalf("expected limit clamped to 4, got %d", big.Len())
	}
}
