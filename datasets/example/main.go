package main

// Example command that demonstrates loading MNIST (and, when present,
// CIFAR-10) with augmentation transforms, batching it with a shuffling
// DataLoader and inspecting the resulting gomlx tensors.
//
// Usage:
//   go run ./datasets/example -mnist data/mnist -cifar data/cifar-10-batches-py
//
// MNIST is expected in its gzipped distribution form (train-images-idx3-ubyte.gz
// and friends). If the files are not found the example prints an error and
// exits.

import (
	"flag"
	"fmt"

	"github.com/Noofbiz/dataloader/datasets"
	"github.com/Noofbiz/dataloader/loader"
	"github.com/Noofbiz/dataloader/transforms"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	mnistDir := flag.String("mnist", "data/mnist", "directory with the gzipped MNIST files")
	cifarDir := flag.String("cifar", "", "optional cifar-10-batches-py (or -bin) directory")
	flag.Parse()
	defer klog.Flush()

	imgPath, lblPath, err := datasets.FindMNISTFiles(*mnistDir, true)
	if err != nil {
		klog.Exitf("failed to find MNIST: %v", err)
	}
	mnist, err := datasets.NewMNISTDataset(imgPath, lblPath,
		transforms.NewRandomCrop(2, 1),
		transforms.NewRandomFlipHorizontal(0.5, 1))
	if err != nil {
		klog.Exitf("failed to load MNIST: %v", err)
	}
	fmt.Printf("Total MNIST examples available: %d\n", mnist.Len())

	// Single index: sample axis dropped.
	one, err := mnist.Get(datasets.Single(0))
	if err != nil {
		klog.Exitf("failed to read example 0: %v", err)
	}
	fmt.Printf("  Example 0: image shape %v, label %v\n", one[0].Shape(), one[1].Float32s())

	l, err := loader.New(mnist, loader.WithBatchSize(8), loader.WithShuffle(true), loader.WithName("mnist"))
	if err != nil {
		klog.Exitf("failed to create loader: %v", err)
	}
	fmt.Printf("Loading %d batches of up to %d examples...\n", l.NumBatches(), l.BatchSize())

	_, inputs, labels, err := l.Yield()
	if err != nil {
		klog.Exitf("failed to fetch a batch: %v", err)
	}
	fmt.Printf("Created tensors: input=%s label=%s\n", inputs[0].Shape(), labels[0].Shape())
	fmt.Printf("  First batch labels: %v\n", labels[0].Value())

	if *cifarDir == "" {
		return
	}
	fmt.Println()

	cifar, err := datasets.NewCIFAR10Dataset(*cifarDir, false)
	if err != nil {
		// CIFAR is optional for this example
		fmt.Printf("Note: Could not load CIFAR-10: %v\n", err)
		return
	}
	batch, err := cifar.Get(datasets.Range(0, 4))
	if err != nil {
		klog.Exitf("failed to read CIFAR range: %v", err)
	}
	fmt.Printf("CIFAR-10 test examples: %d\n", cifar.Len())
	fmt.Printf("  Range [0, 4): images %v, labels %v\n", batch[0].Shape(), batch[1].Float32s())
}
