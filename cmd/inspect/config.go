package main

import (
	"flag"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// options is the effective configuration of a run.
type options struct {
	Dataset   string
	Data      string
	Test      bool
	BatchSize int
	Shuffle   bool
	Seed      int64
	Limit     int
	MaxLines  int
	BPTT      int
	Out       string
	TopWords  int

	Fit          bool
	Epochs       int
	LearningRate float64
	Hidden       int
}

// fileConfig mirrors the YAML config file. Pointers tell absent keys apart
// from zero values.
type fileConfig struct {
	Dataset   *string `yaml:"dataset"`
	Data      *string `yaml:"data"`
	Test      *bool   `yaml:"test"`
	BatchSize *int    `yaml:"batch_size"`
	Shuffle   *bool   `yaml:"shuffle"`
	Seed      *int64  `yaml:"seed"`
	Limit     *int    `yaml:"limit"`
	MaxLines  *int    `yaml:"max_lines"`
	BPTT      *int    `yaml:"bptt"`
	Out       *string `yaml:"out"`
	TopWords  *int    `yaml:"top_words"`
	Training  *struct {
		Enabled      *bool    `yaml:"enabled"`
		Epochs       *int     `yaml:"epochs"`
		LearningRate *float64 `yaml:"learning_rate"`
		Hidden       *int     `yaml:"hidden"`
	} `yaml:"training"`
}

// registerFlags binds opts to fs, with the defaults of a bare run.
func registerFlags(fs *flag.FlagSet, opts *options) {
	fs.StringVar(&opts.Dataset, "dataset", "mnist", "dataset kind: mnist, cifar10 or corpus")
	fs.StringVar(&opts.Data, "data", "data", "directory holding the dataset files")
	fs.BoolVar(&opts.Test, "test", false, "read the test split instead of the training one")
	fs.IntVar(&opts.BatchSize, "batch-size", 64, "samples per batch (columns per step for corpus)")
	fs.BoolVar(&opts.Shuffle, "shuffle", false, "reshuffle samples every traversal")
	fs.Int64Var(&opts.Seed, "seed", 0, "shuffling and training seed (0 = time based)")
	fs.IntVar(&opts.Limit, "limit", 0, "only use the first N samples (0 = all)")
	fs.IntVar(&opts.MaxLines, "max-lines", 0, "lines read from each corpus file (0 = all)")
	fs.IntVar(&opts.BPTT, "bptt", 35, "sequence window length for corpus")
	fs.StringVar(&opts.Out, "out", "plots", "output directory for generated plots (empty disables plotting)")
	fs.IntVar(&opts.TopWords, "top-words", 20, "number of most frequent words to plot for corpus")
	fs.BoolVar(&opts.Fit, "fit", false, "train a small MLP on the batches and report accuracy")
	fs.IntVar(&opts.Epochs, "epochs", 3, "training epochs with -fit")
	fs.Float64Var(&opts.LearningRate, "learning-rate", 0.05, "learning rate with -fit")
	fs.IntVar(&opts.Hidden, "hidden", 64, "hidden layer size with -fit")
}

// applyFile loads the YAML file at path into opts. Values only apply to flags
// that were not set explicitly on the command line.
func applyFile(path string, opts *options, explicit map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config")
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return errors.Wrapf(err, "failed to parse config %s", path)
	}

	setString(&opts.Dataset, cfg.Dataset, !explicit["dataset"])
	setString(&opts.Data, cfg.Data, !explicit["data"])
	setString(&opts.Out, cfg.Out, !explicit["out"])
	setBool(&opts.Test, cfg.Test, !explicit["test"])
	setBool(&opts.Shuffle, cfg.Shuffle, !explicit["shuffle"])
	setInt(&opts.BatchSize, cfg.BatchSize, !explicit["batch-size"])
	setInt(&opts.Limit, cfg.Limit, !explicit["limit"])
	setInt(&opts.MaxLines, cfg.MaxLines, !explicit["max-lines"])
	setInt(&opts.BPTT, cfg.BPTT, !explicit["bptt"])
	setInt(&opts.TopWords, cfg.TopWords, !explicit["top-words"])
	if cfg.Seed != nil && !explicit["seed"] {
		opts.Seed = *cfg.Seed
	}
	if t := cfg.Training; t != nil {
		setBool(&opts.Fit, t.Enabled, !explicit["fit"])
		setInt(&opts.Epochs, t.Epochs, !explicit["epochs"])
		setInt(&opts.Hidden, t.Hidden, !explicit["hidden"])
		if t.LearningRate != nil && !explicit["learning-rate"] {
			opts.LearningRate = *t.LearningRate
		}
	}
	return nil
}

func setString(dst *string, v *string, ok bool) {
	if v != nil && ok {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool, ok bool) {
	if v != nil && ok {
		*dst = *v
	}
}

func setInt(dst *int, v *int, ok bool) {
	if v != nil && ok {
		*dst = *v
	}
}

// parseOptions parses args, then merges in the -config file if one is given.
func parseOptions(fs *flag.FlagSet, args []string) (*options, error) {
	opts := &options{}
	registerFlags(fs, opts)
	configPath := fs.String("config", "", "path to a YAML config file; explicit flags take precedence")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *configPath == "" {
		return opts, nil
	}
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if err := applyFile(*configPath, opts, explicit); err != nil {
		return nil, err
	}
	return opts, nil
}
