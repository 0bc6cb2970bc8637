package kernels

import (
	"fmt"

	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

// FullyConnected computes input [M, K] x weight [N, K]^T + bias [N].
func FullyConnected(inputs []*device.Tensor, outputs []*device.Tensor, a device.Attr) error {
	attr, ok := a.(*device.FullyConnectedAttr)
	if !ok {
		return fmt.Errorf("expected fully connected attributes, got %T", a)
	}
	if len(inputs) < 2 || len(inputs) > 3 || len(outputs) != 1 {
		return fmt.Errorf("expected 2 or 3 inputs and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	input, weight, output := inputs[0], inputs[1], outputs[0]
	if input.Rank() != 2 || weight.Rank() != 2 {
		return fmt.Errorf("expected rank 2 input and weight, got %v and %v", input.Attr.Shape, weight.Attr.Shape)
	}
	m, k := int(input.Attr.Shape[0]), int(input.Attr.Shape[1])
	n := int(weight.Attr.Shape[0])
	if int(weight.Attr.Shape[1]) != k {
		return fmt.Errorf("weight %v does not match input %v", weight.Attr.Shape, input.Attr.Shape)
	}

	x, err := decode(input)
	if err != nil {
		return err
	}
	w, err := decode(weight)
	if err != nil {
		return err
	}
	var bias []float32
	if len(inputs) == 3 && inputs[2] != nil {
		bias, err = decode(inputs[2])
		if err != nil {
			return err
		}
		if len(bias) != n {
			return fmt.Errorf("bias has %d values, expected %d", len(bias), n)
		}
	}

	y := make([]float32, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := float32(0)
			if bias != nil {
				sum = bias[j]
			}
			for l := 0; l < k; l++ {
				sum += x[i*k+l] * w[j*k+l]
			}
			y[i*n+j] = sum
		}
	}

	if err := applyFuse(y, attr.Fuse); err != nil {
		return err
	}
	return store(output, []int32{int32(m), int32(n)}, y)
}
