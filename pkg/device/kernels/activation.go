package kernels

import (
	"fmt"

	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

func Activation(inputs []*device.Tensor, outputs []*device.Tensor, a device.Attr) error {
	attr, ok := a.(*device.ActivationAttr)
	if !ok {
		return fmt.Errorf("expected activation attributes, got %T", a)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	x, err := decode(inputs[0])
	if err != nil {
		return err
	}
	if err := applyFuse(x, attr.Fuse); err != nil {
		return err
	}
	return store(outputs[0], inputs[0].Attr.Shape, x)
}
