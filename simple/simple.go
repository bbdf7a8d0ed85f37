// Package simple is a small pure-Go MLP classifier trained from DataLoader
// batches. It exists to exercise the loading pipeline end to end (MNIST or
// CIFAR samples in, class scores out) without a deep-learning backend.
package simple

import (
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/Noofbiz/dataloader/datasets"
	"github.com/Noofbiz/dataloader/ndarray"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"
)

// Config holds configurable hyperparameters for the MLP model and training.
type Config struct {
	// HiddenSizes is the list of hidden layer sizes. Example: []int{64, 32}
	// If empty, a single hidden layer of size 64 will be used.
	HiddenSizes []int

	// InputDim is the number of features of one flattened sample. Required.
	InputDim int

	// NumClasses is the number of output classes. Default: 10.
	NumClasses int

	// LearningRate used by SGD. Default: 0.05.
	LearningRate float64

	// Epochs to train for (default if 0 will be set by NewModel to 10).
	Epochs int

	// Seed controls RNG for weight init. If zero, time-based seed is used.
	Seed int64
}

// Batches is the part of loader.DataLoader the trainer drives: one traversal
// per epoch, each batch a (data, labels) sample.
type Batches interface {
	Reset()
	NextSample() (datasets.Sample, error)
}

// Model is a small configurable MLP classifier with ReLU hidden layers and a
// softmax output.
type Model struct {
	// Config used for training / initialization.
	Config Config

	// layerSizes includes input size, hidden sizes, then output size.
	layerSizes []int

	// weights[l] is a matrix of shape [out][in] for layer l -> l+1
	weights [][][]float32

	// biases[l] is a vector of length out for layer l -> l+1
	biases [][]float32

	rng *rand.Rand
}

// NewModel creates a new Model instance with the provided configuration.
// It initializes weights (small random values) and is ready to train.
func NewModel(cfg Config) (*Model, error) {
	if cfg.InputDim <= 0 {
		return nil, errors.Errorf("simple: input dimension must be positive, got %d", cfg.InputDim)
	}
	if len(cfg.HiddenSizes) == 0 {
		cfg.HiddenSizes = []int{64}
	}
	if cfg.NumClasses == 0 {
		cfg.NumClasses = 10
	}
	if cfg.NumClasses < 2 {
		return nil, errors.Errorf("simple: need at least 2 classes, got %d", cfg.NumClasses)
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.05
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 10
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	m := &Model{
		Config: cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}

	sizes := make([]int, 0, 2+len(cfg.HiddenSizes))
	sizes = append(sizes, cfg.InputDim)
	sizes = append(sizes, cfg.HiddenSizes...)
	sizes = append(sizes, cfg.NumClasses)
	m.layerSizes = sizes

	L := len(sizes) - 1
	m.weights = make([][][]float32, L)
	m.biases = make([][]float32, L)
	for l := 0; l < L; l++ {
		in, out := sizes[l], sizes[l+1]
		// Xavier/Glorot uniform
		limit := float32(math.Sqrt(6.0 / float64(in+out)))
		w := make([][]float32, out)
		for j := range w {
			row := make([]float32, in)
			for i := range row {
				row[i] = (m.rng.Float32()*2.0 - 1.0) * limit
			}
			w[j] = row
		}
		m.weights[l] = w
		m.biases[l] = make([]float32, out)
	}
	return m, nil
}

// activationReLU applies ReLU in-place over the slice.
func activationReLU(x []float32) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

// forwardSingle performs a forward pass for a single input vector, returning:
// - preActivations: list of pre-activation vectors per layer (len = L)
// - activations: list of activation vectors per layer (len = L+1, activations[0] = input)
// The last activation holds the raw logits.
func (m *Model) forwardSingle(input []float32) (preActs [][]float32, acts [][]float32, err error) {
	if len(input) != m.layerSizes[0] {
		return nil, nil, errors.Errorf("simple: input has dimension %d, want %d", len(input), m.layerSizes[0])
	}
	L := len(m.weights)
	acts = make([][]float32, L+1)
	acts[0] = input

	preActs = make([][]float32, L)
	for l := 0; l < L; l++ {
		inVec := acts[l]
		W, b := m.weights[l], m.biases[l]
		pre := make([]float32, len(b))
		for j := range pre {
			sum := b[j]
			for i, w := range W[j] {
				sum += w * inVec[i]
			}
			pre[j] = sum
		}
		preActs[l] = pre

		act := append([]float32(nil), pre...)
		if l < L-1 {
			activationReLU(act)
		}
		acts[l+1] = act
	}
	return preActs, acts, nil
}

// softmax turns logits into probabilities.
func softmax(logits []float32) []float64 {
	p := make([]float64, len(logits))
	for i, v := range logits {
		p[i] = float64(v)
	}
	lse := floats.LogSumExp(p)
	for i := range p {
		p[i] = math.Exp(p[i] - lse)
	}
	return p
}

// rows splits a batch array of shape (N, ...) into N flattened sample vectors.
func rows(a *ndarray.Array[float32]) [][]float32 {
	n := a.Len()
	out := make([][]float32, n)
	if n == 0 {
		return out
	}
	data := a.Data()
	size := len(data) / n
	for i := range out {
		out[i] = data[i*size : (i+1)*size]
	}
	return out
}

// PredictBatch returns the class probabilities for every sample of a batch
// of shape (N, ...). The result has shape [N][NumClasses].
func (m *Model) PredictBatch(batch ndarray.Field) ([][]float64, error) {
	inputs := rows(ndarray.AsFloat32(batch))
	out := make([][]float64, len(inputs))
	for i, in := range inputs {
		_, acts, err := m.forwardSingle(in)
		if err != nil {
			return nil, err
		}
		out[i] = softmax(acts[len(acts)-1])
	}
	return out, nil
}

// Classify returns the most likely class of every sample of a batch.
func (m *Model) Classify(batch ndarray.Field) ([]int, error) {
	probs, err := m.PredictBatch(batch)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probs))
	for i, p := range probs {
		out[i] = floats.MaxIdx(p)
	}
	return out, nil
}

// labelsOf reads class ids out of a label field.
func (m *Model) labelsOf(field ndarray.Field) ([]int, error) {
	values := field.Float32s()
	out := make([]int, len(values))
	for i, v := range values {
		c := int(v)
		if c < 0 || c >= m.Config.NumClasses {
			return nil, errors.Wrapf(ndarray.ErrIndexOutOfRange, "label %v for %d classes", v, m.Config.NumClasses)
		}
		out[i] = c
	}
	return out, nil
}

// TrainWithLoader runs Config.Epochs traversals of b, applying one averaged
// SGD step per batch with a softmax cross-entropy loss. It returns the mean
// loss of the last epoch.
func (m *Model) TrainWithLoader(b Batches) (float64, error) {
	if b == nil {
		return 0, errors.New("simple: loader is nil")
	}
	lr := float32(m.Config.LearningRate)

	var epochLoss float64
	for ep := 0; ep < m.Config.Epochs; ep++ {
		b.Reset()
		var lossSum float64
		var seen int
		for {
			sample, err := b.NextSample()
			if err == io.EOF {
				break
			}
			if err != nil {
				return 0, err
			}
			if !sample.Labeled() {
				return 0, errors.New("simple: training needs labeled samples")
			}
			loss, n, err := m.step(sample, lr)
			if err != nil {
				return 0, err
			}
			lossSum += loss
			seen += n
		}
		if seen == 0 {
			return 0, errors.New("simple: loader produced no samples")
		}
		epochLoss = lossSum / float64(seen)
		klog.V(1).Infof("epoch %d/%d: loss=%.4f over %d samples", ep+1, m.Config.Epochs, epochLoss, seen)
	}
	return epochLoss, nil
}

// step does forward and backward passes over one batch and applies the
// averaged gradients. It returns the summed loss and the batch size.
func (m *Model) step(sample datasets.Sample, lr float32) (float64, int, error) {
	inputs := rows(ndarray.AsFloat32(sample[0]))
	labels, err := m.labelsOf(sample[1])
	if err != nil {
		return 0, 0, err
	}
	if len(labels) != len(inputs) {
		return 0, 0, errors.Wrapf(ndarray.ErrShapeMismatch, "%d inputs with %d labels", len(inputs), len(labels))
	}
	batchN := len(inputs)
	if batchN == 0 {
		return 0, 0, nil
	}

	L := len(m.weights)
	gradW := make([][][]float32, L)
	gradB := make([][]float32, L)
	for l := 0; l < L; l++ {
		gradW[l] = make([][]float32, len(m.biases[l]))
		for j := range gradW[l] {
			gradW[l][j] = make([]float32, len(m.weights[l][j]))
		}
		gradB[l] = make([]float32, len(m.biases[l]))
	}

	var loss float64
	for ex, in := range inputs {
		preacts, acts, err := m.forwardSingle(in)
		if err != nil {
			return 0, 0, err
		}

		// dLoss/dLogits = softmax - onehot
		probs := softmax(acts[len(acts)-1])
		loss -= math.Log(math.Max(probs[labels[ex]], 1e-12))
		delta := make([]float32, len(probs))
		for j, p := range probs {
			delta[j] = float32(p)
		}
		delta[labels[ex]] -= 1

		for l := L - 1; l >= 0; l-- {
			inAct := acts[l]
			for j, d := range delta {
				gradB[l][j] += d
				for i, a := range inAct {
					gradW[l][j][i] += d * a
				}
			}
			if l == 0 {
				break
			}
			prev := make([]float32, len(inAct))
			for i := range prev {
				if preacts[l-1][i] <= 0 {
					continue
				}
				var sum float32
				for j, d := range delta {
					sum += m.weights[l][j][i] * d
				}
				prev[i] = sum
			}
			delta = prev
		}
	}

	scale := lr / float32(batchN)
	for l := 0; l < L; l++ {
		for j := range m.biases[l] {
			m.biases[l][j] -= scale * gradB[l][j]
			for i := range m.weights[l][j] {
				m.weights[l][j][i] -= scale * gradW[l][j][i]
			}
		}
	}
	return loss, batchN, nil
}

// Accuracy classifies one full traversal of b and returns the fraction of
// samples whose predicted class matches the label.
func (m *Model) Accuracy(b Batches) (float64, error) {
	b.Reset()
	var correct, total int
	for {
		sample, err := b.NextSample()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if !sample.Labeled() {
			return 0, errors.New("simple: accuracy needs labeled samples")
		}
		preds, err := m.Classify(sample[0])
		if err != nil {
			return 0, err
		}
		labels, err := m.labelsOf(sample[1])
		if err != nil {
			return 0, err
		}
		for i, p := range preds {
			if p == labels[i] {
				correct++
			}
		}
		total += len(preds)
	}
	if total == 0 {
		return 0, errors.New("simple: loader produced no samples")
	}
	return float64(correct) / float64(total), nil
}
