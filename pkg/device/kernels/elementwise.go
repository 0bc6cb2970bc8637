package kernels

import (
	"fmt"

	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

// Elementwise handles ADD and MUL with numpy-style broadcasting.
func Elementwise(inputs []*device.Tensor, outputs []*device.Tensor, a device.Attr) error {
	attr, ok := a.(*device.ElementwiseAttr)
	if !ok {
		return fmt.Errorf("expected elementwise attributes, got %T", a)
	}
	if len(inputs) != 2 || len(outputs) != 1 {
		return fmt.Errorf("expected 2 inputs and 1 output, got %d and %d", len(inputs), len(outputs))
	}

	var fn func(x, y float32) float32
	switch attr.Type {
	case device.OperatorAdd:
		fn = func(x, y float32) float32 { return x + y }
	case device.OperatorMul:
		fn = func(x, y float32) float32 { return x * y }
	default:
		return fmt.Errorf("unsupported elementwise operator %v", attr.Type)
	}

	shape, err := broadcastShape(inputs[0].Attr.Shape, inputs[1].Attr.Shape)
	if err != nil {
		return err
	}
	x, err := decode(inputs[0])
	if err != nil {
		return err
	}
	y, err := decode(inputs[1])
	if err != nil {
		return err
	}

	xStrides := broadcastStrides(inputs[0].Attr.Shape, len(shape))
	yStrides := broadcastStrides(inputs[1].Attr.Shape, len(shape))
	z := make([]float32, device.Volume(shape))
	index := make([]int, len(shape))
	for i := range z {
		xi, yi := 0, 0
		for d, v := range index {
			xi += v * xStrides[d]
			yi += v * yStrides[d]
		}
		z[i] = fn(x[xi], y[yi])

		for d := len(index) - 1; d >= 0; d-- {
			index[d]++
			if index[d] < int(shape[d]) {
				break
			}
			index[d] = 0
		}
	}

	if err := applyFuse(z, attr.Fuse); err != nil {
		return err
	}
	return store(outputs[0], shape, z)
}

func broadcastShape(a, b []int32) ([]int32, error) {
	rank := max(len(a), len(b))
	shape := make([]int32, rank)
	for i := 0; i < rank; i++ {
		da, db := int32(1), int32(1)
		if j := len(a) - rank + i; j >= 0 {
			da = a[j]
		}
		if j := len(b) - rank + i; j >= 0 {
			db = b[j]
		}
		switch {
		case da == db:
			shape[i] = da
		case da == 1:
			shape[i] = db
		case db == 1:
			shape[i] = da
		default:
			return nil, fmt.Errorf("shapes %v and %v cannot be broadcast", a, b)
		}
	}
	return shape, nil
}

// broadcastStrides returns element strides for shape aligned to rank
// dimensions, with 0 for broadcast dimensions.
func broadcastStrides(shape []int32, rank int) []int {
	strides := make([]int, rank)
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		d := rank - len(shape) + i
		if shape[i] != 1 {
			strides[d] = stride
		}
		stride *= int(shape[i])
	}
	return strides
}
