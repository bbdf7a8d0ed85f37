// Package loader turns a datasets.Dataset into a stream of batches.
//
// DataLoader partitions [0, N) into chunks of at most BatchSize indices, in
// order or reshuffled every epoch, fetches each chunk from the dataset and
// hands it over as gomlx tensors. It implements gomlx's train.Dataset, so it
// can be given directly to a training loop: Yield returns io.EOF at the end
// of an epoch and Reset starts the next one.
package loader

import (
	"io"
	"iter"
	"math/rand"
	"time"

	"github.com/Noofbiz/dataloader/datasets"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DataLoader iterates over a dataset in batches. It is not safe for
// concurrent use.
type DataLoader struct {
	ds        datasets.Dataset
	name      string
	batchSize int
	shuffle   bool
	seed      int64
	rng       *rand.Rand

	ordering   [][]int
	cursor     int
	traversals int
}

var _ train.Dataset = (*DataLoader)(nil)

// Option configures a DataLoader.
type Option func(*DataLoader)

// WithBatchSize sets how many samples go in a batch. Defaults to 1.
func WithBatchSize(n int) Option {
	return func(l *DataLoader) { l.batchSize = n }
}

// WithShuffle reshuffles the samples at the start of every traversal.
func WithShuffle(shuffle bool) Option {
	return func(l *DataLoader) { l.shuffle = shuffle }
}

// WithSeed fixes the shuffling seed. If zero, a time-based seed is used.
func WithSeed(seed int64) Option {
	return func(l *DataLoader) { l.seed = seed }
}

// WithName sets the name reported to gomlx.
func WithName(name string) Option {
	return func(l *DataLoader) { l.name = name }
}

// New creates a loader over ds. The first traversal is ready to go without a
// call to Reset.
func New(ds datasets.Dataset, opts ...Option) (*DataLoader, error) {
	if ds == nil {
		return nil, errors.New("loader: dataset is nil")
	}
	l := &DataLoader{ds: ds, name: "DataLoader", batchSize: 1}
	for _, opt := range opts {
		opt(l)
	}
	if l.batchSize < 1 {
		return nil, errors.Errorf("loader: batch size must be positive, got %d", l.batchSize)
	}
	if l.seed == 0 {
		l.seed = time.Now().UnixNano()
	}
	l.rng = rand.New(rand.NewSource(l.seed))

	if !l.shuffle {
		l.ordering = partition(identity(ds.Len()), l.batchSize)
	}
	l.Reset()
	return l, nil
}

func identity(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// partition splits order into consecutive chunks of size batchSize; the last
// one is shorter when len(order) is not a multiple of batchSize.
func partition(order []int, batchSize int) [][]int {
	chunks := make([][]int, 0, (len(order)+batchSize-1)/batchSize)
	for start := 0; start < len(order); start += batchSize {
		end := min(start+batchSize, len(order))
		chunks = append(chunks, order[start:end])
	}
	return chunks
}

// Reset starts a new traversal: the cursor goes back to the first batch and,
// when shuffling, a fresh permutation is drawn.
func (l *DataLoader) Reset() {
	if l.shuffle {
		l.ordering = partition(l.rng.Perm(l.ds.Len()), l.batchSize)
	}
	l.cursor = 0
	l.traversals++
	klog.V(2).Infof("%s: traversal %d, %d samples in %d batches (shuffle=%v)",
		l.name, l.traversals, l.ds.Len(), len(l.ordering), l.shuffle)
}

// NextSample fetches the next batch as raw arrays. It returns io.EOF once the
// traversal is exhausted.
func (l *DataLoader) NextSample() (datasets.Sample, error) {
	if l.cursor >= len(l.ordering) {
		return nil, io.EOF
	}
	indices := l.ordering[l.cursor]
	sample, err := l.ds.Get(datasets.Batch(indices...))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: failed to fetch batch %d", l.name, l.cursor)
	}
	l.cursor++
	return sample, nil
}

// Next fetches the next batch and wraps each of its fields as a tensor: one
// tensor for unlabeled data, data and label(s) otherwise. It returns io.EOF
// once the traversal is exhausted.
func (l *DataLoader) Next() ([]*tensors.Tensor, error) {
	sample, err := l.NextSample()
	if err != nil {
		return nil, err
	}
	out := make([]*tensors.Tensor, len(sample))
	for i, field := range sample {
		out[i] = field.Tensor()
	}
	return out, nil
}

// Yield implements train.Dataset. The first field of each batch is the input,
// the remaining ones are labels.
func (l *DataLoader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch, err := l.Next()
	if err != nil {
		return nil, nil, nil, err
	}
	return l, batch[:1], batch[1:], nil
}

// Name implements train.Dataset.
func (l *DataLoader) Name() string {
	return l.name
}

// Batches runs one full traversal, starting with a Reset.
func (l *DataLoader) Batches() iter.Seq2[[]*tensors.Tensor, error] {
	return func(yield func([]*tensors.Tensor, error) bool) {
		l.Reset()
		for {
			batch, err := l.Next()
			if err == io.EOF {
				return
			}
			if !yield(batch, err) || err != nil {
				return
			}
		}
	}
}

// Len is the number of samples in the dataset.
func (l *DataLoader) Len() int {
	return l.ds.Len()
}

// BatchSize is the configured batch size.
func (l *DataLoader) BatchSize() int {
	return l.batchSize
}

// NumBatches is the number of batches in one traversal.
func (l *DataLoader) NumBatches() int {
	return len(l.ordering)
}

// Ordering returns a copy of the current traversal's index chunks.
func (l *DataLoader) Ordering() [][]int {
	out := make([][]int, len(l.ordering))
	for i, chunk := range l.ordering {
		out[i] = append([]int(nil), chunk...)
	}
	return out
}
