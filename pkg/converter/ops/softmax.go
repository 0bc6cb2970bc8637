package ops

import (
	"fmt"

	"k8s.io/examples/AI/lyfnpu/pkg/converter"
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

// SOFTMAX inputs: input and a constant INT32 axis, which may be negative.
func parseSoftmax(operation *core.Operation) (int32, error) {
	if err := checkCounts(operation, 1, 2, 1); err != nil {
		return 0, err
	}
	input := operation.Inputs[0]
	if input == nil {
		return 0, fmt.Errorf("input is required")
	}
	axis := int32(-1)
	if operand := optionalInput(operation, 1); operand != nil {
		var err error
		if axis, err = core.Int32Value(operand); err != nil {
			return 0, fmt.Errorf("reading axis: %w", err)
		}
	}
	if r := int32(rank(input)); axis < -r || axis >= r {
		return 0, fmt.Errorf("axis %d out of range for rank %d", axis, r)
	}
	return axis, nil
}

func ValidateSoftmax(operation *core.Operation) bool {
	if _, err := parseSoftmax(operation); err != nil {
		return false
	}
	return lowerable(operation.Inputs[0], operation.Outputs[0])
}

func ConvertSoftmax(c *converter.Converter, operation *core.Operation) error {
	axis, err := parseSoftmax(operation)
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
	_, err = c.AddOperator(device.OperatorSoftmax, []*device.Tensor{inputTensor}, []*device.Tensor{outputTensor}, &device.SoftmaxAttr{Axis: axis})
	return err
}
