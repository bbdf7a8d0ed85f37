package datasets

import (
	"io"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"
	"github.com/pkg/errors"
)

// CIFAR-10's python batches are pickled dicts holding a numpy uint8 array.
// gopickle handles the pickle opcodes; the few numpy globals such a file
// references are rebuilt here.

type cifarBatch struct {
	data   []byte
	labels []int
}

func unpickleBatch(r io.Reader) (*cifarBatch, error) {
	u := pickle.NewUnpickler(r)
	u.FindClass = findNumpyClass
	obj, err := u.Load()
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*types.Dict)
	if !ok {
		return nil, errors.Errorf("expected a dict, got %T", obj)
	}

	dataObj, ok := dict.Get("data")
	if !ok {
		return nil, errors.New(`missing "data" key`)
	}
	arr, ok := dataObj.(*numpyArray)
	if !ok {
		return nil, errors.Errorf(`"data" is %T, not a numpy array`, dataObj)
	}
	if arr.dtype != "u1" {
		return nil, errors.Errorf(`"data" has dtype %q, want u1`, arr.dtype)
	}

	labelsObj, ok := dict.Get("labels")
	if !ok {
		return nil, errors.New(`missing "labels" key`)
	}
	labels, err := toInts(labelsObj)
	if err != nil {
		return nil, errors.Wrap(err, `bad "labels"`)
	}
	return &cifarBatch{data: arr.data, labels: labels}, nil
}

func findNumpyClass(module, name string) (interface{}, error) {
	switch module + "." + name {
	case "numpy.core.multiarray._reconstruct", "numpy._core.multiarray._reconstruct":
		return numpyReconstruct{}, nil
	case "numpy.ndarray":
		return numpyNdarrayClass{}, nil
	case "numpy.dtype":
		return numpyDtypeClass{}, nil
	}
	return nil, errors.Errorf("unsupported pickled class %s.%s", module, name)
}

// numpyReconstruct stands for numpy.core.multiarray._reconstruct. The array
// contents arrive afterwards through __setstate__.
type numpyReconstruct struct{}

func (numpyReconstruct) Call(args ...interface{}) (interface{}, error) {
	return &numpyArray{}, nil
}

type numpyNdarrayClass struct{}

type numpyDtypeClass struct{}

func (numpyDtypeClass) Call(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, errors.New("numpy.dtype called without arguments")
	}
	name, err := toBytes(args[0])
	if err != nil {
		return nil, err
	}
	return &numpyDtype{name: string(name)}, nil
}

type numpyDtype struct {
	name string
}

// PySetState receives (version, byteorder, subarray, names, fields, elsize,
// alignment, flags). Only single-byte types are read so the byte order does
// not matter.
func (d *numpyDtype) PySetState(state interface{}) error {
	return nil
}

type numpyArray struct {
	shape []int
	dtype string
	data  []byte
}

// PySetState receives (version, shape, dtype, is_fortran, raw_data).
func (a *numpyArray) PySetState(state interface{}) error {
	items, err := toSlice(state)
	if err != nil {
		return err
	}
	if len(items) != 5 {
		return errors.Errorf("ndarray state has %d items, want 5", len(items))
	}
	if a.shape, err = toInts(items[1]); err != nil {
		return errors.Wrap(err, "bad ndarray shape")
	}
	dtype, ok := items[2].(*numpyDtype)
	if !ok {
		return errors.Errorf("ndarray dtype is %T", items[2])
	}
	a.dtype = dtype.name
	if fortran, _ := items[3].(bool); fortran {
		return errors.New("fortran-ordered arrays are not supported")
	}
	if a.data, err = toBytes(items[4]); err != nil {
		return err
	}
	size := 1
	for _, d := range a.shape {
		size *= d
	}
	if size != len(a.data) {
		return errors.Errorf("ndarray of shape %v holds %d bytes", a.shape, len(a.data))
	}
	return nil
}

func toSlice(obj interface{}) ([]interface{}, error) {
	switch v := obj.(type) {
	case *types.Tuple:
		return *v, nil
	case types.Tuple:
		return v, nil
	case *types.List:
		return *v, nil
	case types.List:
		return v, nil
	}
	return nil, errors.Errorf("expected a tuple or list, got %T", obj)
}

func toInts(obj interface{}) ([]int, error) {
	items, err := toSlice(obj)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(items))
	for i, item := range items {
		n, ok := item.(int)
		if !ok {
			return nil, errors.Errorf("item %d is %T, not an int", i, item)
		}
		out[i] = n
	}
	return out, nil
}

// toBytes accepts python 2 strings (read as Go strings) as well as python 3
// bytes.
func toBytes(obj interface{}) ([]byte, error) {
	switch v := obj.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	return nil, errors.Errorf("expected bytes, got %T", obj)
}
