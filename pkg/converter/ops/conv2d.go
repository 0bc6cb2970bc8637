package ops

import (
	"fmt"

	"k8s.io/examples/AI/lyfnpu/pkg/converter"
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

// CONV_2D inputs: input, filter, bias, pads [top, bottom, left, right],
// strides [h, w], group, fuse code and optionally dilations [h, w].
const (
	conv2DInput = iota
	conv2DFilter
	conv2DBias
	conv2DPads
	conv2DStrides
	conv2DGroup
	conv2DFuse
	conv2DDilations
)

type conv2DParams struct {
	input, filter, bias, output *core.Operand
	attr                        device.Conv2DAttr
}

func parseConv2D(operation *core.Operation) (*conv2DParams, error) {
	if err := checkCounts(operation, conv2DFuse+1, conv2DDilations+1, 1); err != nil {
		return nil, err
	}
	p := &conv2DParams{
		input:  operation.Inputs[conv2DInput],
		filter: operation.Inputs[conv2DFilter],
		bias:   operation.Inputs[conv2DBias],
		output: operation.Outputs[0],
	}
	if p.input == nil || p.filter == nil {
		return nil, fmt.Errorf("input and filter are required")
	}
	if rank(p.input) != 4 || rank(p.filter) != 4 {
		return nil, fmt.Errorf("expected rank 4 input and filter, got %d and %d", rank(p.input), rank(p.filter))
	}
	if p.input.Type.Layout != core.LayoutNCHW {
		return nil, fmt.Errorf("unsupported input layout %v", p.input.Type.Layout)
	}

	pads, err := int32Array(operation.Inputs[conv2DPads], 4)
	if err != nil {
		return nil, fmt.Errorf("reading pads: %w", err)
	}
	strides, err := int32Array(operation.Inputs[conv2DStrides], 2)
	if err != nil {
		return nil, fmt.Errorf("reading strides: %w", err)
	}
	group, err := core.Int32Value(operation.Inputs[conv2DGroup])
	if err != nil {
		return nil, fmt.Errorf("reading group: %w", err)
	}
	fuse, err := fuseType(operation.Inputs[conv2DFuse])
	if err != nil {
		return nil, err
	}
	dilations := []int32{1, 1}
	if operand := optionalInput(operation, conv2DDilations); operand != nil {
		if dilations, err = int32Array(operand, 2); err != nil {
			return nil, fmt.Errorf("reading dilations: %w", err)
		}
	}
	if group <= 0 || strides[0] <= 0 || strides[1] <= 0 || dilations[0] <= 0 || dilations[1] <= 0 {
		return nil, fmt.Errorf("group %d, strides %v and dilations %v must be positive", group, strides, dilations)
	}

	copy(p.attr.Pads[:], pads)
	copy(p.attr.Strides[:], strides)
	copy(p.attr.Dilations[:], dilations)
	p.attr.Group = group
	p.attr.Fuse = fuse
	return p, nil
}

func ValidateConv2D(operation *core.Operation) bool {
	p, err := parseConv2D(operation)
	if err != nil {
		return false
	}
	return lowerable(p.input, p.filter, p.bias, p.output)
}

func ConvertConv2D(c *converter.Converter, operation *core.Operation) error {
	p, err := parseConv2D(operation)
	if err != nil {
		return invalidOperation(operation, err)
	}

	inputTensor, err := c.GetOrConvert(p.input)
	if err != nil {
		return err
	}
	filterTensor, err := c.GetOrConvert(p.filter)
	if err != nil {
		return err
	}
	inputs := []*device.Tensor{inputTensor, filterTensor}
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

	attr := p.attr
	_, err = c.AddOperator(device.OperatorConv2D, inputs, []*device.Tensor{outputTensor}, &attr)
	return err
}
