package ops

import (
	"fmt"

	"k8s.io/examples/AI/lyfnpu/pkg/converter"
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

var activationFuses = map[core.OperationType]device.FuseType{
	core.OperationRelu:  device.FuseRelu,
	core.OperationRelu6: device.FuseRelu6,
}

func checkActivation(operation *core.Operation) error {
	if _, found := activationFuses[operation.Type]; !found {
		return fmt.Errorf("%v is not an activation", operation.Type)
	}
	if err := checkCounts(operation, 1, 1, 1); err != nil {
		return err
	}
	if operation.Inputs[0] == nil {
		return fmt.Errorf("input is required")
	}
	return nil
}

func ValidateActivation(operation *core.Operation) bool {
	if checkActivation(operation) != nil {
		return false
	}
	return lowerable(operation.Inputs[0], operation.Outputs[0])
}

// ConvertActivation lowers RELU and RELU6 to ACTIVATION.
func ConvertActivation(c *converter.Converter, operation *core.Operation) error {
	if err := checkActivation(operation); err != nil {
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
	attr := &device.ActivationAttr{Fuse: activationFuses[operation.Type]}
	_, err = c.AddOperator(device.OperatorActivation, []*device.Tensor{inputTensor}, []*device.Tensor{outputTensor}, attr)
	return err
}
