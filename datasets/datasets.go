package datasets

import (
	"github.com/Noofbiz/dataloader/ndarray"
	"github.com/Noofbiz/dataloader/transforms"
)

// This file provides the dataset abstraction shared by every loader in the
// module.
//
// Datasets parse their source files into in-memory arrays and hand back
// samples as ndarray fields: the data first, then the label if there is one.
// Converting a sample into gomlx tensors is left to the caller (see
// loader.DataLoader), which only needs Field.Tensor().
//
// Layout and intended usage:
//
// MNISTDataset
//   - Parses gzipped MNIST image and label files
//   - Images: float32 vectors of 784 pixels in [0, 1]
//   - Labels: uint8 digits
//
// CIFAR10Dataset
//   - Parses the pickled (or binary) CIFAR-10 batches
//   - Images: float32 3 x 32 x 32 in [0, 1]
//   - Labels: float32 class ids
//
// NDArrayDataset
//   - A tuple of arrays indexed together along axis 0
type Dataset interface {
	Len() int
	// Get returns the sample(s) at index. A Single index returns one sample
	// with the sample axis dropped; Batch and Range keep it.
	Get(index Index) (Sample, error)
}

// Sample is one dataset element, or a batch of them: data first, labels
// after. Unlabeled datasets return a single field.
type Sample []ndarray.Field

// Data is the first field of the sample.
func (s Sample) Data() ndarray.Field {
	if len(s) == 0 {
		return nil
	}
	return s[0]
}

// Labeled reports whether the sample carries more than the data field.
func (s Sample) Labeled() bool {
	return len(s) > 1
}

// applyTransforms runs ts over a single H x W x C image.
func applyTransforms(ts []transforms.Transform, img *ndarray.Array[float32]) (*ndarray.Array[float32], error) {
	var err error
	for _, t := range ts {
		if img, err = t.Apply(img); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// transformRows applies ts to every image in images. fromRow turns a row into
// its H x W x C view and toRow turns the transformed view back into the row
// layout.
func transformRows(
	ts []transforms.Transform,
	images *ndarray.Array[float32],
	fromRow func(*ndarray.Array[float32]) (*ndarray.Array[float32], error),
	toRow func(*ndarray.Array[float32]) (*ndarray.Array[float32], error),
) (*ndarray.Array[float32], error) {
	if len(ts) == 0 || images.Len() == 0 {
		return images, nil
	}
	out := images.Clone()
	rowSize := images.Size() / images.Len()
	for i := range images.Len() {
		row, err := images.Row(i)
		if err != nil {
			return nil, err
		}
		view, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		view, err = applyTransforms(ts, view)
		if err != nil {
			return nil, err
		}
		back, err := toRow(view)
		if err != nil {
			return nil, err
		}
		copy(out.Data()[i*rowSize:(i+1)*rowSize], back.Data())
	}
	return out, nil
}
