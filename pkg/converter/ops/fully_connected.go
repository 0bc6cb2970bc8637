package ops

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/examples/AI/lyfnpu/pkg/converter"
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

// FULLY_CONNECTED inputs: input, weight [N, K], bias [N] and fuse code.
type fullyConnectedParams struct {
	input, weight, bias, output *core.Operand
	fuse                        device.FuseType
}

func parseFullyConnected(operation *core.Operation) (*fullyConnectedParams, error) {
	if err := checkCounts(operation, 2, 4, 1); err != nil {
		return nil, err
	}
	p := &fullyConnectedParams{
		input:  operation.Inputs[0],
		weight: operation.Inputs[1],
		bias:   optionalInput(operation, 2),
		output: operation.Outputs[0],
	}
	if p.input == nil || p.weight == nil {
		return nil, fmt.Errorf("input and weight are required")
	}
	if rank(p.weight) != 2 || p.weight.Type.Dimensions.Values()[1] <= 0 {
		return nil, fmt.Errorf("expected rank 2 weight with known K, got %v", p.weight.Type.Dimensions.Values())
	}
	if rank(p.input) < 2 {
		return nil, fmt.Errorf("expected input of rank 2 or more, got %d", rank(p.input))
	}
	// Flattening moves the channel dimension of per-channel quantization.
	if perChannel(p.input) {
		return nil, status.Errorf(codes.Unimplemented, "per-channel quantized input is not supported")
	}
	var err error
	p.fuse, err = fuseType(optionalInput(operation, 3))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func ValidateFullyConnected(operation *core.Operation) bool {
	p, err := parseFullyConnected(operation)
	if err != nil {
		return false
	}
	return lowerable(p.input, p.weight, p.bias, p.output)
}

// ConvertFullyConnected lowers to FULLY_CONNECTED, flattening inputs of rank
// other than 2 to [-1, K] with a RESHAPE first.
func ConvertFullyConnected(c *converter.Converter, operation *core.Operation) error {
	p, err := parseFullyConnected(operation)
	if err != nil {
		return invalidOperation(operation, err)
	}

	inputTensor, err := c.GetOrConvert(p.input)
	if err != nil {
		return err
	}
	if inputTensor.Rank() != 2 {
		k := p.weight.Type.Dimensions.Values()[1]
		flattened, err := flatten(c, inputTensor, k)
		if err != nil {
			return err
		}
		inputTensor = flattened
	}

	weightTensor, err := c.GetOrConvert(p.weight)
	if err != nil {
		return err
	}
	inputs := []*device.Tensor{inputTensor, weightTensor}
	if p.bias != nil {
		biasTensor, err := c.GetOrConvert(p.bias)
		if err != nil {
			return err
		}
		inputs = append(inputs, biasTensor)
	}
	outputTensor, err := c.ConvertOperand(p.output)
	if err != nil {
		return err
	}

	_, err = c.AddOperator(device.OperatorFullyConnected, inputs, []*device.Tensor{outputTensor}, &device.FullyConnectedAttr{Fuse: p.fuse})
	return err
}

// flatten adds a RESHAPE of t to [-1, k] and returns the reshaped tensor.
func flatten(c *converter.Converter, t *device.Tensor, k int32) (*device.Tensor, error) {
	shape := []int32{-1, k}
	if volume := device.Volume(t.Attr.Shape); volume > 0 && k > 0 && volume%int(k) == 0 {
		shape[0] = int32(volume / int(k))
	}
	q := t.Attr.QuantParams
	reshaped, err := c.AddTensor(converter.TensorSpec{
		Shape:      shape,
		Precision:  t.Attr.Precision,
		Layout:     t.Attr.Layout,
		Scales:     q.Scales,
		ZeroPoints: q.ZeroPoints,
		ChannelDim: q.ChannelDim,
	})
	if err != nil {
		return nil, err
	}
	attr := &device.ReshapeAttr{Shape: []int32{-1, k}}
	if _, err := c.AddOperator(device.OperatorReshape, []*device.Tensor{t}, []*device.Tensor{reshaped}, attr); err != nil {
		return nil, err
	}
	return reshaped, nil
}
