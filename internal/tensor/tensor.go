package tensor

import (
	"fmt"
)

// Devices a tensor can be tagged with. Data always lives in process
// memory; the tag records where the training framework considers the
// canonical copy to be.
const (
	CPU  = "cpu"
	CUDA = "cuda"
)

// Tensor is a dense row-major float64 tensor.
type Tensor struct {
	Shape  []int
	Data   []float64
	Device string
}

// New builds a tensor from data with the given shape.
func New(data []float64, shape ...int) (*Tensor, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension %d in shape %v", d, shape)
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, got %d", shape, n, len(data))
	}
	return &Tensor{Shape: shape, Data: data, Device: CPU}, nil
}

// Zeros returns a zero-filled tensor with the given shape.
func Zeros(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Tensor{Shape: shape, Data: make([]float64, n), Device: CPU}
}

// Dims returns the number of dimensions.
func (t *Tensor) Dims() int { return len(t.Shape) }

// NumEl returns the total number of elements.
func (t *Tensor) NumEl() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

func (t *Tensor) offset(idx []int) int {
	off := 0
	for i, x := range idx {
		off = off*t.Shape[i] + x
	}
	return off
}

// At returns the element at the given multi-index.
func (t *Tensor) At(idx ...int) float64 {
	return t.Data[t.offset(idx)]
}

// Set assigns the element at the given multi-index.
func (t *Tensor) Set(v float64, idx ...int) {
	t.Data[t.offset(idx)] = v
}

// MinMax returns the smallest and largest element. Zero-sized tensors
// report (0, 0).
func (t *Tensor) MinMax() (float64, float64) {
	if len(t.Data) == 0 {
		return 0, 0
	}
	min, max := t.Data[0], t.Data[0]
	for _, v := range t.Data[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// Flatten returns the elements as a 1-D slice. The slice aliases the
// tensor's storage.
func (t *Tensor) Flatten() []float64 { return t.Data }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	shape := make([]int, len(t.Shape))
	copy(shape, t.Shape)
	data := make([]float64, len(t.Data))
	copy(data, t.Data)
	return &Tensor{Shape: shape, Data: data, Device: t.Device}
}

// CPU returns a host copy of the tensor. Tensors already on the host
// are still copied so checkpoints never alias live training state.
func (t *Tensor) CPU() *Tensor {
	c := t.Clone()
	c.Device = CPU
	return c
}
