package kernels

import (
	"fmt"

	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

// Reshape copies its input into a tensor of the requested shape. A 0 keeps
// the input dimension at that position and a single -1 is inferred.
func Reshape(inputs []*device.Tensor, outputs []*device.Tensor, a device.Attr) error {
	attr, ok := a.(*device.ReshapeAttr)
	if !ok {
		return fmt.Errorf("expected reshape attributes, got %T", a)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	input, output := inputs[0], outputs[0]
	shape, err := ResolveReshape(input.Attr.Shape, attr.Shape)
	if err != nil {
		return err
	}

	if input.Attr.Precision == output.Attr.Precision && quantEqual(&input.Attr.QuantParams, &output.Attr.QuantParams) {
		output.Resize(shape)
		if len(input.Buffer) < output.Length {
			return fmt.Errorf("input buffer has %d bytes, need %d", len(input.Buffer), output.Length)
		}
		copy(output.Buffer, input.Buffer[:output.Length])
		return nil
	}

	x, err := decode(input)
	if err != nil {
		return err
	}
	return store(output, shape, x)
}

// ResolveReshape computes the concrete output shape of a reshape.
func ResolveReshape(in []int32, target []int32) ([]int32, error) {
	shape := make([]int32, len(target))
	infer := -1
	known := 1
	for i, dim := range target {
		switch {
		case dim == 0:
			if i >= len(in) {
				return nil, fmt.Errorf("reshape %v copies dimension %d of %v", target, i, in)
			}
			shape[i] = in[i]
		case dim == -1:
			if infer >= 0 {
				return nil, fmt.Errorf("reshape %v has more than one inferred dimension", target)
			}
			infer = i
			continue
		case dim < 0:
			return nil, fmt.Errorf("reshape %v has invalid dimension %d", target, dim)
		default:
			shape[i] = dim
		}
		known *= int(shape[i])
	}

	volume := device.Volume(in)
	if infer >= 0 {
		if known == 0 || volume%known != 0 {
			return nil, fmt.Errorf("cannot reshape %v to %v", in, target)
		}
		shape[infer] = int32(volume / known)
	} else if known != volume {
		return nil, fmt.Errorf("cannot reshape %v to %v", in, target)
	}
	return shape, nil
}

func quantEqual(a, b *device.QuantParams) bool {
	if len(a.Scales) != len(b.Scales) || len(a.ZeroPoints) != len(b.ZeroPoints) {
		return false
	}
	for i := range a.Scales {
		if a.Scales[i] != b.Scales[i] {
			return false
		}
	}
	for i := range a.ZeroPoints {
		if a.ZeroPoints[i] != b.ZeroPoints[i] {
			return false
		}
	}
	return len(a.Scales) == 0 || a.ChannelDim == b.ChannelDim
}
