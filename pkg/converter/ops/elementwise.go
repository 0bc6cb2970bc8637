package ops

import (
	"fmt"

	"k8s.io/examples/AI/lyfnpu/pkg/converter"
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

// ADD and MUL inputs: input0, input1 and fuse code.

var elementwiseOperators = map[core.OperationType]device.OperatorType{
	core.OperationAdd: device.OperatorAdd,
	core.OperationMul: device.OperatorMul,
}

func checkElementwise(operation *core.Operation) error {
	if _, found := elementwiseOperators[operation.Type]; !found {
		return fmt.Errorf("%v is not an elementwise operation", operation.Type)
	}
	if err := checkCounts(operation, 2, 3, 1); err != nil {
		return err
	}
	if operation.Inputs[0] == nil || operation.Inputs[1] == nil {
		return fmt.Errorf("both inputs are required")
	}
	_, err := fuseType(optionalInput(operation, 2))
	return err
}

func ValidateElementwise(operation *core.Operation) bool {
	if checkElementwise(operation) != nil {
		return false
	}
	return lowerable(operation.Inputs[0], operation.Inputs[1], operation.Outputs[0])
}

// ConvertElementwise lowers ADD and MUL. A constant operand of lower rank
// than the other operand is lowered again with leading 1 dimensions so both
// inputs have the same rank.
func ConvertElementwise(c *converter.Converter, operation *core.Operation) error {
	if err := checkElementwise(operation); err != nil {
		return invalidOperation(operation, err)
	}
	typ := elementwiseOperators[operation.Type]
	x, y := operation.Inputs[0], operation.Inputs[1]
	fuse, err := fuseType(optionalInput(operation, 2))
	if err != nil {
		return err
	}

	xTensor, err := broadcastOperand(c, x, rank(y))
	if err != nil {
		return err
	}
	yTensor, err := broadcastOperand(c, y, rank(x))
	if err != nil {
		return err
	}
	outputTensor, err := c.ConvertOperand(operation.Outputs[0])
	if err != nil {
		return err
	}

	attr := &device.ElementwiseAttr{Type: typ, Fuse: fuse}
	_, err = c.AddOperator(typ, []*device.Tensor{xTensor, yTensor}, []*device.Tensor{outputTensor}, attr)
	return err
}

func broadcastOperand(c *converter.Converter, operand *core.Operand, targetRank int) (*device.Tensor, error) {
	dims := operand.Type.Dimensions.Values()
	if !operand.IsConstant() || perChannel(operand) || len(dims) >= targetRank {
		return c.GetOrConvert(operand)
	}
	expanded := make([]int32, targetRank)
	for i := range expanded {
		expanded[i] = 1
	}
	copy(expanded[targetRank-len(dims):], dims)
	return c.ConvertOperand(operand, expanded...)
}
