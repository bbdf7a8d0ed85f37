// Package text tokenizes plain-text corpora for sequence models and lays the
// resulting token ids out in the column-major batches those models train on.
package text

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// EOS marks the end of every line of a tokenized corpus.
const EOS = "<eos>"

// Dictionary maps words to ids, assigned in first-seen order.
type Dictionary struct {
	word2idx map[string]int
	idx2word []string
}

// NewDictionary returns an empty Dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{word2idx: make(map[string]int)}
}

// AddWord returns the id of w, registering it with the next free id if it is
// new.
func (d *Dictionary) AddWord(w string) int {
	if id, ok := d.word2idx[w]; ok {
		return id
	}
	id := len(d.idx2word)
	d.idx2word = append(d.idx2word, w)
	d.word2idx[w] = id
	return id
}

// ID looks up a word without adding it.
func (d *Dictionary) ID(w string) (int, bool) {
	id, ok := d.word2idx[w]
	return id, ok
}

// Word returns the word registered under id.
func (d *Dictionary) Word(id int) (string, error) {
	if id < 0 || id >= len(d.idx2word) {
		return "", errors.Errorf("text: word id %d out of range [0, %d)", id, len(d.idx2word))
	}
	return d.idx2word[id], nil
}

// Words returns the vocabulary in id order.
func (d *Dictionary) Words() []string {
	return append([]string(nil), d.idx2word...)
}

// Len returns the number of unique words.
func (d *Dictionary) Len() int {
	return len(d.idx2word)
}

// Tokenize reads r line by line, appends EOS to each line, splits it on
// whitespace and registers every word in d. It stops after maxLines lines
// when maxLines > 0. The ids are returned in reading order.
func Tokenize(r io.Reader, d *Dictionary, maxLines int) ([]int, error) {
	var ids []int
	br := bufio.NewReader(r)
	for lines := 0; maxLines <= 0 || lines < maxLines; lines++ {
		line, err := br.ReadString('\n')
		if line == "" && err == io.EOF {
			break
		}
		if err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "failed to read line %d", lines+1)
		}
		for _, w := range strings.Fields(line + " " + EOS) {
			ids = append(ids, d.AddWord(w))
		}
		if err == io.EOF {
			break
		}
	}
	return ids, nil
}

// Corpus holds the train and test splits of a text dataset, tokenized against
// one shared Dictionary.
type Corpus struct {
	Dictionary *Dictionary
	Train      []int
	Test       []int
}

// NewCorpus tokenizes baseDir/train.txt and then baseDir/test.txt. maxLines
// limits the lines read from each file; zero or less reads everything.
func NewCorpus(baseDir string, maxLines int) (*Corpus, error) {
	c := &Corpus{Dictionary: NewDictionary()}
	var err error
	if c.Train, err = c.Tokenize(filepath.Join(baseDir, "train.txt"), maxLines); err != nil {
		return nil, err
	}
	if c.Test, err = c.Tokenize(filepath.Join(baseDir, "test.txt"), maxLines); err != nil {
		return nil, err
	}
	klog.V(1).Infof("tokenized %s: %d train ids, %d test ids, vocabulary of %d",
		baseDir, len(c.Train), len(c.Test), c.Dictionary.Len())
	return c, nil
}

// Tokenize reads the file at path into ids using the corpus dictionary.
func (c *Corpus) Tokenize(path string, maxLines int) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open corpus file")
	}
	defer f.Close()

	ids, err := Tokenize(f, c.Dictionary, maxLines)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to tokenize %s", path)
	}
	return ids, nil
}
