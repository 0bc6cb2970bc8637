package kernels

import (
	"fmt"
	"math"

	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

func Softmax(inputs []*device.Tensor, outputs []*device.Tensor, a device.Attr) error {
	attr, ok := a.(*device.SoftmaxAttr)
	if !ok {
		return fmt.Errorf("expected softmax attributes, got %T", a)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	shape := inputs[0].Attr.Shape
	axis := int(attr.Axis)
	if axis < 0 {
		axis += len(shape)
	}
	if axis < 0 || axis >= len(shape) {
		return fmt.Errorf("axis %d out of range for shape %v", attr.Axis, shape)
	}

	x, err := decode(inputs[0])
	if err != nil {
		return err
	}
	outer := device.Volume(shape[:axis])
	n := int(shape[axis])
	inner := device.Volume(shape[axis+1:])
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*n*inner + i
			maxValue := float32(math.Inf(-1))
			for j := 0; j < n; j++ {
				maxValue = max(maxValue, x[base+j*inner])
			}
			sum := float32(0)
			for j := 0; j < n; j++ {
				e := float32(math.Exp(float64(x[base+j*inner] - maxValue)))
				x[base+j*inner] = e
				sum += e
			}
			for j := 0; j < n; j++ {
				x[base+j*inner] /= sum
			}
		}
	}
	return store(outputs[0], shape, x)
}
