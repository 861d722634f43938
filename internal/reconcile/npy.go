package reconcile

import (
	"archive/zip"
	"fmt"
	"io"
	"os"

	"github.com/sbinet/npyio"
	"gorgonia.org/tensor"
)

// readArray decodes a single NumPy array from the reader provided in to
// a float64 tensor with the arrays shape. Only C-ordered float32/float64
// arrays are supported; these are the only types found in the AMASS and
// MANO distributions. Zero-dimensional arrays produce a tensor of shape (1).
func readArray(r io.Reader) (*tensor.Dense, error) {
	npy, err := npyio.NewReader(r)
	if err != nil {
		return nil, err
	}

	header := npy.Header
	if header.Descr.Fortran {
		return nil, fmt.Errorf("fortran ordered arrays are not supported")
	}

	var data []float64
	switch header.Descr.Type {
	case "<f8", "f8", "float64":
		if err := npy.Read(&data); err != nil {
			return nil, err
		}
	case "<f4", "f4", "float32":
		var narrow []float32
		if err := npy.Read(&narrow); err != nil {
			return nil, err
		}

		data = make([]float64, len(narrow))
		for i, v := range narrow {
			data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("unsupported array dtype %q", header.Descr.Type)
	}

	shape := append([]int(nil), header.Descr.Shape...)
	if len(shape) == 0 {
		shape = []int{1}
	}

	size := 1
	for _, dim := range shape {
		size *= dim
	}
	if size != len(data) {
		return nil, fmt.Errorf("array shape %v does not match %d decoded values", shape, len(data))
	}
	if size == 0 {
		return nil, fmt.Errorf("array with shape %v is empty", shape)
	}

	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data)), nil
}

// loadNpy decodes the .npy file at the path provided.
func loadNpy(path string) (*tensor.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	arr, err := readArray(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return arr, nil
}

// loadNpz decodes the named members of the .npz archive at the path
// provided. Member names are given without their '.npy' extension, as
// they are when saved by NumPy.
func loadNpz(path string, names ...string) (map[string]*tensor.Dense, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	members := make(map[string]*zip.File, len(archive.File))
	for _, f := range archive.File {
		members[f.Name] = f
	}

	out := make(map[string]*tensor.Dense, len(names))
	for _, name := range names {
		member, ok := members[name+".npy"]
		if !ok {
			return nil, fmt.Errorf("%s has no member %q", path, name)
		}

		arr, err := readMember(member)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s[%s]: %w", path, name, err)
		}

		out[name] = arr
	}

	return out, nil
}

func readMember(member *zip.File) (*tensor.Dense, error) {
	rc, err := member.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return readArray(rc)
}
