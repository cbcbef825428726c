// Package visualize draws rendered radar arrays with their annotation boxes
// so a person can check that the boxes sit on the roosts.
package visualize

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio/npy"
)

// Array is a rendered scan: channels x dim x dim, row-major.
type Array struct {
	Shape [3]int
	Data  []float64
}

// Channel returns the dim x dim plane at index c.
func (a Array) Channel(c int) ([]float64, error) {
	if c < 0 || c >= a.Shape[0] {
		return nil, fmt.Errorf("channel %d out of range [0, %d)", c, a.Shape[0])
	}
	n := a.Shape[1] * a.Shape[2]
	return a.Data[c*n : (c+1)*n], nil
}

// LoadArray reads a .npy file of float32 or float64 values. The file's own
// shape may be flattened; only its element count must match shape.
func LoadArray(path string, shape [3]int) (Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return Array{}, err
	}
	defer f.Close()

	r, err := npy.NewReader(f)
	if err != nil {
		return Array{}, fmt.Errorf("read npy header %s: %w", path, err)
	}

	var data []float64
	switch r.Header.Descr.Type {
	case "<f8", "|f8":
		if err := r.Read(&data); err != nil {
			return Array{}, fmt.Errorf("read %s: %w", path, err)
		}
	case "<f4", "|f4":
		var f32 []float32
		if err := r.Read(&f32); err != nil {
			return Array{}, fmt.Errorf("read %s: %w", path, err)
		}
		data = make([]float64, len(f32))
		for i, v := range f32 {
			data[i] = float64(v)
		}
	default:
		return Array{}, fmt.Errorf("%s: unsupported dtype %q", path, r.Header.Descr.Type)
	}

	if want := shape[0] * shape[1] * shape[2]; len(data) != want {
		return Array{}, fmt.Errorf("%s: %d values, want %v", path, len(data), shape)
	}
	return Array{Shape: shape, Data: data}, nil
}
