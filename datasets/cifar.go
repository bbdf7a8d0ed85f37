package datasets

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Noofbiz/dataloader/ndarray"
	"github.com/Noofbiz/dataloader/transforms"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	CIFARChannels = 3
	CIFARSide     = 32
	// CIFARPixels is the length of one flattened C x H x W image.
	CIFARPixels = CIFARChannels * CIFARSide * CIFARSide

	// CIFARTrainBatches is the number of data_batch_N files in the training split.
	CIFARTrainBatches = 5
)

// CIFAR10Dataset holds the CIFAR-10 train or test split in memory.
type CIFAR10Dataset struct {
	// Transforms are applied, in order, to each image viewed as 32 x 32 x 3.
	Transforms []transforms.Transform

	images *ndarray.Array[float32] // (N, 3072), C x H x W per row
	labels *ndarray.Array[float32] // (N)
}

// NewCIFAR10Dataset loads the split found in baseFolder (the
// cifar-10-batches-py or cifar-10-batches-bin directory).
func NewCIFAR10Dataset(baseFolder string, train bool, ts ...transforms.Transform) (*CIFAR10Dataset, error) {
	images, labels, err := ParseCIFAR10(baseFolder, train)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("loaded %d CIFAR-10 examples from %s (train=%v)", images.Len(), baseFolder, train)
	return &CIFAR10Dataset{Transforms: ts, images: images, labels: labels}, nil
}

// CIFARBatchFiles lists the batch files for a split, in load order. Pickled
// batches are preferred; the .bin distribution is used when they are absent.
func CIFARBatchFiles(baseFolder string, train bool) (paths []string, binary bool, err error) {
	names := []string{"test_batch"}
	if train {
		names = make([]string, CIFARTrainBatches)
		for i := range names {
			names[i] = fmt.Sprintf("data_batch_%d", i+1)
		}
	}
	for _, suffix := range []string{"", ".bin"} {
		paths = paths[:0]
		for _, name := range names {
			paths = append(paths, filepath.Join(baseFolder, name+suffix))
		}
		if allExist(paths) {
			return paths, suffix == ".bin", nil
		}
	}
	return nil, false, errors.Errorf("no CIFAR-10 batch files for train=%v found in %s", train, baseFolder)
}

// ParseCIFAR10 reads a CIFAR-10 split. Training mode concatenates
// data_batch_1..5 in order; test mode reads test_batch. Pixels are divided by
// 255 and come back as (N, 3072) float32 rows; labels as (N) float32.
func ParseCIFAR10(baseFolder string, train bool) (*ndarray.Array[float32], *ndarray.Array[float32], error) {
	paths, binary, err := CIFARBatchFiles(baseFolder, train)
	if err != nil {
		return nil, nil, err
	}
	var images, labels []*ndarray.Array[float32]
	for _, path := range paths {
		var x, y *ndarray.Array[float32]
		if binary {
			x, y, err = ParseCIFARBinaryBatch(path)
		} else {
			x, y, err = ParseCIFARPickleBatch(path)
		}
		if err != nil {
			return nil, nil, err
		}
		images = append(images, x)
		labels = append(labels, y)
	}
	x, err := ndarray.Concat(images...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to stack CIFAR-10 images")
	}
	y, err := ndarray.Concat(labels...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to stack CIFAR-10 labels")
	}
	return x, y, nil
}

// ParseCIFARPickleBatch reads one pickled batch: a dict with a uint8 "data"
// ndarray of shape (n, 3072) and a "labels" list.
func ParseCIFARPickleBatch(path string) (*ndarray.Array[float32], *ndarray.Array[float32], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open CIFAR-10 batch")
	}
	defer f.Close()

	batch, err := unpickleBatch(bufio.NewReader(f))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to unpickle %s", path)
	}
	if len(batch.data)%CIFARPixels != 0 {
		return nil, nil, errors.Wrapf(ndarray.ErrShapeMismatch, "%s: %d pixel bytes is not a whole number of images", path, len(batch.data))
	}
	return cifarArrays(path, batch.data, batch.labels)
}

// ParseCIFARBinaryBatch reads one batch of the binary distribution: records
// of 1 label byte followed by 3072 pixel bytes.
func ParseCIFARBinaryBatch(path string) (*ndarray.Array[float32], *ndarray.Array[float32], error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read CIFAR-10 batch")
	}
	const record = 1 + CIFARPixels
	if len(raw)%record != 0 {
		return nil, nil, errors.Wrapf(ndarray.ErrShapeMismatch, "%s: %d bytes is not a whole number of records", path, len(raw))
	}
	n := len(raw) / record
	pixels := make([]byte, 0, n*CIFARPixels)
	labels := make([]int, n)
	for i := range n {
		rec := raw[i*record : (i+1)*record]
		labels[i] = int(rec[0])
		pixels = append(pixels, rec[1:]...)
	}
	return cifarArrays(path, pixels, labels)
}

func cifarArrays(path string, pixels []byte, labels []int) (*ndarray.Array[float32], *ndarray.Array[float32], error) {
	data := make([]float32, len(pixels))
	for i, b := range pixels {
		data[i] = float32(b) / 255
	}
	x, err := ndarray.New(data, -1, CIFARPixels)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to reshape %s", path)
	}
	if x.Len() != len(labels) {
		return nil, nil, errors.Wrapf(ndarray.ErrShapeMismatch, "%s: %d images but %d labels", path, x.Len(), len(labels))
	}
	y := make([]float32, len(labels))
	for i, l := range labels {
		y[i] = float32(l)
	}
	ya, err := ndarray.New(y, len(y))
	if err != nil {
		return nil, nil, err
	}
	return x, ya, nil
}

// Len returns the number of examples.
func (d *CIFAR10Dataset) Len() int {
	return d.images.Len()
}

// Get returns (image, label). Images are (3, 32, 32) for a Single index and
// (k, 3, 32, 32) otherwise; labels are scalars or (k).
func (d *CIFAR10Dataset) Get(index Index) (Sample, error) {
	positions, err := index.Resolve(d.Len())
	if err != nil {
		return nil, err
	}
	images, err := d.images.Take(positions)
	if err != nil {
		return nil, err
	}
	images, err = transformRows(d.Transforms, images, cifarView, cifarRow)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to transform CIFAR-10 %s", index)
	}
	images, err = images.Reshape(-1, CIFARChannels, CIFARSide, CIFARSide)
	if err != nil {
		return nil, err
	}
	labels, err := d.labels.Take(positions)
	if err != nil {
		return nil, err
	}
	return squeeze(index, images, labels)
}

// cifarView turns a C x H x W row into H x W x C.
func cifarView(row *ndarray.Array[float32]) (*ndarray.Array[float32], error) {
	chw, err := row.Reshape(CIFARChannels, CIFARSide, CIFARSide)
	if err != nil {
		return nil, err
	}
	return chw.Transpose(1, 2, 0)
}

// cifarRow turns an H x W x C view back into a flat C x H x W row.
func cifarRow(view *ndarray.Array[float32]) (*ndarray.Array[float32], error) {
	chw, err := view.Transpose(2, 0, 1)
	if err != nil {
		return nil, err
	}
	return chw.Flatten(), nil
}
