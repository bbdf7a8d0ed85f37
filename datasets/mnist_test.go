package datasets

import (
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/dataloader/ndarray"
	"github.com/Noofbiz/dataloader/transforms"
)

// writeGzip writes header followed by payload, gzipped, to path.
func writeGzip(t *testing.T, path string, header, payload []byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(header); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// writeMNIST writes n synthetic images (image i is filled with byte i*10) and
// labels i%10, returning the two paths.
func writeMNIST(t *testing.T, dir string, n int) (string, string) {
	t.Helper()
	pixels := make([]byte, 0, n*MNISTPixels)
	labels := make([]byte, n)
	for i := 0; i < n; i++ {
		pixels = append(pixels, bytes.Repeat([]byte{byte(i * 10)}, MNISTPixels)...)
		labels[i] = byte(i % 10)
	}
	imgPath := filepath.Join(dir, "images-idx3-ubyte.gz")
	lblPath := filepath.Join(dir, "labels-idx1-ubyte.gz")
	writeGzip(t, imgPath, make([]byte, mnistImageHeader), pixels)
	writeGzip(t, lblPath, make([]byte, mnistLabelHeader), labels)
	return imgPath, lblPath
}

func TestParseMNIST_SingleImage(t *testing.T) {
	tmp := t.TempDir()

	pixels := make([]byte, MNISTPixels)
	for i := range pixels {
		pixels[i] = byte(i % 256)
	}
	imgPath := filepath.Join(tmp, "img.gz")
	lblPath := filepath.Join(tmp, "lbl.gz")
	writeGzip(t, imgPath, make([]byte, mnistImageHeader), pixels)
	writeGzip(t, lblPath, make([]byte, mnistLabelHeader), []byte{7})

	images, labels, err := ParseMNIST(imgPath, lblPath)
	if err != nil {
		t.Fatalf("ParseMNIST failed: %v", err)
	}
	if got := images.Shape(); len(got) != 2 || got[0] != 1 || got[1] != 784 {
		t.Fatalf("unexpected image shape %v", got)
	}
	for i, v := range images.Data() {
		if v < 0 || v > 1 {
			t.Fatalf("pixel %d out of [0,1]: %v", i, v)
		}
	}
	if images.Data()[255] != 1 || images.Data()[0] != 0 {
		t.Fatalf("unexpected normalisation: first=%v 255th=%v", images.Data()[0], images.Data()[255])
	}
	if labels.Len() != 1 || labels.Data()[0] != 7 {
		t.Fatalf("unexpected labels %v", labels.Data())
	}
}

func TestParseMNIST_Malformed(t *testing.T) {
	tmp := t.TempDir()
	imgPath := filepath.Join(tmp, "img.gz")
	lblPath := filepath.Join(tmp, "lbl.gz")

	// 100 pixels cannot be reshaped into rows of 784.
	writeGzip(t, imgPath, make([]byte, mnistImageHeader), make([]byte, 100))
	writeGzip(t, lblPath, make([]byte, mnistLabelHeader), []byte{1})
	if _, _, err := ParseMNIST(imgPath, lblPath); !errors.Is(err, ndarray.ErrShapeMismatch) {
		t.Fatalf("expected a shape mismatch, got %v", err)
	}

	// Truncated header.
	writeGzip(t, imgPath, make([]byte, 4), nil)
	if _, _, err := ParseMNIST(imgPath, lblPath); err == nil {
		t.Fatalf("expected an error for a truncated header")
	}

	// Not gzip at all.
	if err := os.WriteFile(imgPath, []byte("plain"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ParseMNIST(imgPath, lblPath); err == nil {
		t.Fatalf("expected a decode error for a non-gzip file")
	}
}

func TestMNISTDataset_Get(t *testing.T) {
	imgPath, lblPath := writeMNIST(t, t.TempDir(), 5)

	ds, err := NewMNISTDataset(imgPath, lblPath)
	if err != nil {
		t.Fatalf("NewMNISTDataset failed: %v", err)
	}
	if ds.Len() != 5 {
		t.Fatalf("expected 5 examples, got %d", ds.Len())
	}

	single, err := ds.Get(Single(3))
	if err != nil {
		t.Fatalf("Get(Single) failed: %v", err)
	}
	if len(single) != 2 || !single.Labeled() {
		t.Fatalf("expected (image, label), got %d fields", len(single))
	}
	if s := single[0].Shape(); len(s) != 1 || s[0] != MNISTPixels {
		t.Fatalf("unexpected single image shape %v", s)
	}
	if s := single[1].Shape(); len(s) != 0 {
		t.Fatalf("expected a scalar label, got shape %v", s)
	}
	if got := single[1].Float32s()[0]; got != 3 {
		t.Fatalf("unexpected label %v", got)
	}

	batch, err := ds.Get(Batch(4, 0))
	if err != nil {
		t.Fatalf("Get(Batch) failed: %v", err)
	}
	if s := batch[0].Shape(); len(s) != 2 || s[0] != 2 || s[1] != MNISTPixels {
		t.Fatalf("unexpected batch image shape %v", s)
	}
	if labels := batch[1].Float32s(); labels[0] != 4 || labels[1] != 0 {
		t.Fatalf("unexpected batch labels %v", labels)
	}

	rng, err := ds.Get(Range(3, 10))
	if err != nil {
		t.Fatalf("Get(Range) failed: %v", err)
	}
	if rng[0].Len() != 2 {
		t.Fatalf("expected Range(3, 10) to be clamped to 2 examples, got %d", rng[0].Len())
	}

	if _, err := ds.Get(Single(5)); !errors.Is(err, ndarray.ErrIndexOutOfRange) {
		t.Fatalf("expected index out of range, got %v", err)
	}
	if _, err := ds.Get(Batch(0, 9)); !errors.Is(err, ndarray.ErrIndexOutOfRange) {
		t.Fatalf("expected index out of range, got %v", err)
	}
}

func TestMNISTDataset_TransformsSkipLabels(t *testing.T) {
	imgPath, lblPath := writeMNIST(t, t.TempDir(), 3)

	// Shifting every image down by 28 rows blanks it entirely.
	blank := transforms.Func(func(img *ndarray.Array[float32]) (*ndarray.Array[float32], error) {
		return transforms.Shift(img, -MNISTImageSide, 0)
	})
	ds, err := NewMNISTDataset(imgPath, lblPath, blank)
	if err != nil {
		t.Fatalf("NewMNISTDataset failed: %v", err)
	}

	sample, err := ds.Get(Batch(1, 2))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	for i, v := range sample[0].Float32s() {
		if v != 0 {
			t.Fatalf("pixel %d not blanked: %v", i, v)
		}
	}
	if labels := sample[1].Float32s(); labels[0] != 1 || labels[1] != 2 {
		t.Fatalf("labels must not be transformed, got %v", labels)
	}

	// The stored images are left untouched.
	raw, err := ds.images.Row(2)
	if err != nil {
		t.Fatal(err)
	}
	if raw.Data()[0] == 0 {
		t.Fatalf("transform leaked into the stored images")
	}
}
