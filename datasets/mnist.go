package datasets

import (
	"compress/gzip"
	"io"
	"os"

	"github.com/Noofbiz/dataloader/ndarray"
	"github.com/Noofbiz/dataloader/transforms"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// MNISTImageSide is the height and width of an MNIST digit.
	MNISTImageSide = 28
	// MNISTPixels is the length of a flattened MNIST image.
	MNISTPixels = MNISTImageSide * MNISTImageSide

	// magic number, count, rows, cols
	mnistImageHeader = 16
	// magic number, count
	mnistLabelHeader = 8
)

// MNISTDataset holds a parsed MNIST image/label file pair in memory.
type MNISTDataset struct {
	// Transforms are applied, in order, to each image viewed as 28 x 28 x 1.
	Transforms []transforms.Transform

	images *ndarray.Array[float32] // (N, 784)
	labels *ndarray.Array[uint8]   // (N)
}

// NewMNISTDataset parses the gzipped image and label files.
func NewMNISTDataset(imagePath, labelPath string, ts ...transforms.Transform) (*MNISTDataset, error) {
	images, labels, err := ParseMNIST(imagePath, labelPath)
	if err != nil {
		return nil, err
	}
	if images.Len() != labels.Len() {
		return nil, errors.Wrapf(ndarray.ErrShapeMismatch, "%d images but %d labels", images.Len(), labels.Len())
	}
	klog.V(1).Infof("loaded %d MNIST examples from %s", images.Len(), imagePath)
	return &MNISTDataset{Transforms: ts, images: images, labels: labels}, nil
}

// ParseMNIST reads an image and a label file in the gzipped MNIST format
// (http://yann.lecun.com/exdb/mnist/). Images come back as (N, 784) float32
// in [0, 1], labels as (N) uint8.
//
// Headers are skipped, not validated: a malformed file shows up as a reshape
// error.
func ParseMNIST(imagePath, labelPath string) (*ndarray.Array[float32], *ndarray.Array[uint8], error) {
	imgFile, err := os.Open(imagePath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open MNIST images")
	}
	defer imgFile.Close()

	lblFile, err := os.Open(labelPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open MNIST labels")
	}
	defer lblFile.Close()

	return ParseMNISTReader(imgFile, lblFile)
}

// ParseMNISTReader is ParseMNIST over already opened gzip streams.
func ParseMNISTReader(imageR, labelR io.Reader) (*ndarray.Array[float32], *ndarray.Array[uint8], error) {
	raw, err := readGzip(imageR)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to decompress MNIST images")
	}
	if len(raw) < mnistImageHeader {
		return nil, nil, errors.Errorf("MNIST image stream has %d bytes, shorter than its header", len(raw))
	}
	pixels := make([]float32, len(raw)-mnistImageHeader)
	for i, b := range raw[mnistImageHeader:] {
		pixels[i] = float32(b) / 255
	}
	images, err := ndarray.New(pixels, -1, MNISTPixels)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to reshape MNIST images")
	}

	raw, err = readGzip(labelR)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to decompress MNIST labels")
	}
	if len(raw) < mnistLabelHeader {
		return nil, nil, errors.Errorf("MNIST label stream has %d bytes, shorter than its header", len(raw))
	}
	labels, err := ndarray.New(raw[mnistLabelHeader:], -1)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to reshape MNIST labels")
	}
	return images, labels, nil
}

func readGzip(r io.Reader) ([]byte, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// Len returns the number of examples.
func (d *MNISTDataset) Len() int {
	return d.images.Len()
}

// Get returns (image, label). Images are (784) for a Single index and (k, 784)
// otherwise; labels are scalars or (k).
func (d *MNISTDataset) Get(index Index) (Sample, error) {
	positions, err := index.Resolve(d.Len())
	if err != nil {
		return nil, err
	}
	images, err := d.images.Take(positions)
	if err != nil {
		return nil, err
	}
	images, err = transformRows(d.Transforms, images, mnistView, flattenView)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to transform MNIST %s", index)
	}
	labels, err := d.labels.Take(positions)
	if err != nil {
		return nil, err
	}
	return squeeze(index, images, labels)
}

func mnistView(row *ndarray.Array[float32]) (*ndarray.Array[float32], error) {
	return row.Reshape(MNISTImageSide, MNISTImageSide, 1)
}

func flattenView(view *ndarray.Array[float32]) (*ndarray.Array[float32], error) {
	return view.Flatten(), nil
}

// squeeze turns batched fields into a Sample, dropping the sample axis when
// index selects a single element.
func squeeze(index Index, fields ...ndarray.Field) (Sample, error) {
	out := make(Sample, len(fields))
	for i, f := range fields {
		if !index.IsSingle() {
			out[i] = f
			continue
		}
		row, err := f.Select([]int{0}, true)
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}
