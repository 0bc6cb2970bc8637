package ops

import (
	"fmt"

	"k8s.io/examples/AI/lyfnpu/pkg/converter"
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

// RESHAPE inputs: input and a constant INT32 shape.
func parseReshape(operation *core.Operation) ([]int32, error) {
	if err := checkCounts(operation, 2, 2, 1); err != nil {
		return nil, err
	}
	if operation.Inputs[0] == nil {
		return nil, fmt.Errorf("input is required")
	}
	shape, err := core.Int32Values(operation.Inputs[1])
	if err != nil {
		return nil, fmt.Errorf("reading shape: %w", err)
	}
	inferred := 0
	for _, dim := range shape {
		if dim == -1 {
			inferred++
		} else if dim < 0 {
			return nil, fmt.Errorf("invalid shape %v", shape)
		}
	}
	if inferred > 1 {
		return nil, fmt.Errorf("shape %v infers more than one dimension", shape)
	}
	return shape, nil
}

func ValidateReshape(operation *core.Operation) bool {
	if _, err := parseReshape(operation); err != nil {
		return false
	}
	return lowerable(operation.Inputs[0], operation.Outputs[0])
}

func ConvertReshape(c *converter.Converter, operation *core.Operation) error {
	shape, err := parseReshape(operation)
	if err != nil {
		return invalidOperation(operation, err)
	}
	inputTensor, err := c.GetOrConvert(operation.Inputs[0])
	if err != nil {
		return err
	}
	outputTensor, err := c.ConvertOperand(operation.Outputs[0])
	if err != nil {
		return err
	}
	attr := &device.ReshapeAttr{Shape: shape}
	_, err = c.AddOperator(device.OperatorReshape, []*device.Tensor{inputTensor}, []*device.Tensor{outputTensor}, attr)
	return err
}
