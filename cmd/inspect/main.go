// Command inspect loads an MNIST, CIFAR-10 or text corpus dataset, walks one
// traversal of it through the batch loaders and reports what it saw: sample
// and batch counts, a label (or word frequency) histogram plot and,
// optionally, the accuracy of a small MLP trained on the batches.
//
// Settings come from flags, optionally merged with a YAML file given by
// -config; explicit flags win over the file.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/Noofbiz/dataloader/datasets"
	"github.com/Noofbiz/dataloader/loader"
	"github.com/Noofbiz/dataloader/simple"
	"github.com/Noofbiz/dataloader/text"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	opts, err := parseOptions(flag.CommandLine, os.Args[1:])
	if err != nil {
		klog.Exitf("invalid options: %v", err)
	}

	switch opts.Dataset {
	case "mnist", "cifar10":
		err = inspectImages(opts)
	case "corpus":
		err = inspectCorpus(opts)
	default:
		err = errors.Errorf("unknown dataset %q", opts.Dataset)
	}
	if err != nil {
		klog.Exitf("%s: %+v", opts.Dataset, err)
	}
}

// loadImages opens the image dataset named by opts and returns it with the
// size of one flattened sample.
func loadImages(opts *options) (ds datasets.Dataset, inputDim int, err error) {
	var paths []string
	switch opts.Dataset {
	case "mnist":
		img, lbl, err := datasets.FindMNISTFiles(opts.Data, !opts.Test)
		if err != nil {
			return nil, 0, err
		}
		paths = []string{img, lbl}
		if ds, err = datasets.NewMNISTDataset(img, lbl); err != nil {
			return nil, 0, err
		}
		inputDim = datasets.MNISTPixels
	default:
		if paths, _, err = datasets.CIFARBatchFiles(opts.Data, !opts.Test); err != nil {
			return nil, 0, err
		}
		if ds, err = datasets.NewCIFAR10Dataset(opts.Data, !opts.Test); err != nil {
			return nil, 0, err
		}
		inputDim = datasets.CIFARPixels
	}
	if size, err := datasets.FilesSize(paths...); err == nil {
		klog.Infof("read %s of %s files: %s samples",
			humanize.Bytes(size), opts.Dataset, humanize.Comma(int64(ds.Len())))
	}
	if opts.Limit > 0 {
		if ds, err = datasets.Subset(ds, opts.Limit); err != nil {
			return nil, 0, err
		}
	}
	return ds, inputDim, nil
}

func inspectImages(opts *options) error {
	ds, inputDim, err := loadImages(opts)
	if err != nil {
		return err
	}
	l, err := loader.New(ds,
		loader.WithName(opts.Dataset),
		loader.WithBatchSize(opts.BatchSize),
		loader.WithShuffle(opts.Shuffle),
		loader.WithSeed(opts.Seed))
	if err != nil {
		return err
	}

	// One traversal, tallying labels.
	counts := make(map[int]int)
	bar := progressbar.Default(int64(l.NumBatches()), "batches")
	for {
		sample, err := l.NextSample()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		for _, v := range sample[1].Float32s() {
			counts[int(v)]++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	klog.Infof("%s samples in %s batches of up to %d",
		humanize.Comma(int64(l.Len())), humanize.Comma(int64(l.NumBatches())), l.BatchSize())

	classes := sortedKeys(counts)
	if opts.Out != "" {
		names := make([]string, len(classes))
		values := make(plotter.Values, len(classes))
		for i, c := range classes {
			names[i] = strconv.Itoa(c)
			values[i] = float64(counts[c])
		}
		path := filepath.Join(opts.Out, opts.Dataset+"_labels.png")
		if err := plotBars(path, "Samples per label", names, values); err != nil {
			return errors.Wrap(err, "failed to generate plot")
		}
		klog.Infof("label histogram written to %s", path)
	}

	if !opts.Fit {
		return nil
	}
	numClasses := 10
	if n := len(classes); n > 0 && classes[n-1]+1 > numClasses {
		numClasses = classes[n-1] + 1
	}
	model, err := simple.NewModel(simple.Config{
		InputDim:     inputDim,
		NumClasses:   numClasses,
		HiddenSizes:  []int{opts.Hidden},
		LearningRate: opts.LearningRate,
		Epochs:       opts.Epochs,
		Seed:         opts.Seed,
	})
	if err != nil {
		return err
	}
	loss, err := model.TrainWithLoader(l)
	if err != nil {
		return err
	}
	acc, err := model.Accuracy(l)
	if err != nil {
		return err
	}
	fmt.Printf("Training over %d epochs: final loss = %f, accuracy = %.2f%%\n", opts.Epochs, loss, 100*acc)
	return nil
}

func inspectCorpus(opts *options) error {
	corpus, err := text.NewCorpus(opts.Data, opts.MaxLines)
	if err != nil {
		return err
	}
	ids := corpus.Train
	if opts.Test {
		ids = corpus.Test
	}
	klog.Infof("%s tokens, vocabulary of %s words",
		humanize.Comma(int64(len(ids))), humanize.Comma(int64(corpus.Dictionary.Len())))

	batches, err := text.Batchify[int64](ids, opts.BatchSize)
	if err != nil {
		return err
	}
	seq, err := text.NewSequenceLoader("corpus", batches, opts.BPTT)
	if err != nil {
		return err
	}

	steps := max(batches.Len()-1, 0)
	bar := progressbar.Default(int64((steps+opts.BPTT-1)/opts.BPTT), "windows")
	windows, targets := 0, 0
	for {
		_, target, err := seq.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		windows++
		targets += target.Size()
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	klog.Infof("%s windows of %d x %d, %s target tokens",
		humanize.Comma(int64(windows)), opts.BPTT, opts.BatchSize, humanize.Comma(int64(targets)))

	if opts.Out == "" {
		return nil
	}
	freq := make(map[int]int)
	for _, id := range ids {
		freq[id]++
	}
	top := sortedKeys(freq)
	sort.SliceStable(top, func(i, j int) bool { return freq[top[i]] > freq[top[j]] })
	if len(top) > opts.TopWords {
		top = top[:opts.TopWords]
	}
	names := make([]string, len(top))
	values := make(plotter.Values, len(top))
	for i, id := range top {
		if names[i], err = corpus.Dictionary.Word(id); err != nil {
			return err
		}
		values[i] = float64(freq[id])
	}
	path := filepath.Join(opts.Out, "corpus_words.png")
	if err := plotBars(path, fmt.Sprintf("Top %d words", len(top)), names, values); err != nil {
		return errors.Wrap(err, "failed to generate plot")
	}
	klog.Infof("word frequencies written to %s", path)
	return nil
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// plotBars writes a PNG bar chart with one named bar per value.
func plotBars(path, title string, names []string, values plotter.Values) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "count"

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return err
	}
	bars.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.Add(plotter.NewGrid())
	p.NominalX(names...)

	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

func ensureDir(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
