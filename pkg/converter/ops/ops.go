// Package ops holds the lowering of each supported operation kind.
package ops

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/examples/AI/lyfnpu/pkg/converter"
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

// Default returns the registry of every operation kind the lyf device
// supports.
func Default() converter.Registry {
	return converter.Registry{
		core.OperationConv2D:         {Validate: ValidateConv2D, Convert: ConvertConv2D},
		core.OperationFullyConnected: {Validate: ValidateFullyConnected, Convert: ConvertFullyConnected},
		core.OperationAdd:            {Validate: ValidateElementwise, Convert: ConvertElementwise},
		core.OperationMul:            {Validate: ValidateElementwise, Convert: ConvertElementwise},
		core.OperationRelu:           {Validate: ValidateActivation, Convert: ConvertActivation},
		core.OperationRelu6:          {Validate: ValidateActivation, Convert: ConvertActivation},
		core.OperationReshape:        {Validate: ValidateReshape, Convert: ConvertReshape},
		core.OperationSoftmax:        {Validate: ValidateSoftmax, Convert: ConvertSoftmax},
	}
}

func checkCounts(operation *core.Operation, minInputs, maxInputs, outputs int) error {
	if n := len(operation.Inputs); n < minInputs || n > maxInputs {
		return fmt.Errorf("%v has %d inputs, expected %d to %d", operation.Type, n, minInputs, maxInputs)
	}
	if n := len(operation.Outputs); n != outputs {
		return fmt.Errorf("%v has %d outputs, expected %d", operation.Type, n, outputs)
	}
	for i, output := range operation.Outputs {
		if output == nil {
			return fmt.Errorf("%v output %d is nil", operation.Type, i)
		}
	}
	return nil
}

// lowerable reports whether every operand has a type the device can hold.
// nil operands are optional inputs and are skipped.
func lowerable(operands ...*core.Operand) bool {
	for _, operand := range operands {
		if operand == nil {
			continue
		}
		if _, err := converter.ConvertToDevicePrecisionType(operand.Type.Precision); err != nil {
			return false
		}
		if _, err := converter.ConvertToDeviceDataLayoutType(operand.Type.Layout); err != nil {
			return false
		}
		if _, _, _, err := converter.ExtractQuantParams(operand.Type); err != nil {
			return false
		}
	}
	return true
}

func rank(operand *core.Operand) int {
	return len(operand.Type.Dimensions.Values())
}

// fuseType reads an optional fuse code operand.
func fuseType(operand *core.Operand) (device.FuseType, error) {
	if operand == nil {
		return device.FuseNone, nil
	}
	code, err := core.Int32Value(operand)
	if err != nil {
		return 0, fmt.Errorf("reading fuse code: %w", err)
	}
	return converter.ConvertFuseCodeToDeviceFuseType(core.FuseCode(code))
}

// int32Array reads a constant operand holding exactly n values.
func int32Array(operand *core.Operand, n int) ([]int32, error) {
	values, err := core.Int32Values(operand)
	if err != nil {
		return nil, err
	}
	if len(values) != n {
		return nil, fmt.Errorf("operand %v has %d values, expected %d", operand, len(values), n)
	}
	return values, nil
}

// optionalInput returns input i, or nil if the operation has fewer inputs.
func optionalInput(operation *core.Operation, i int) *core.Operand {
	if i < len(operation.Inputs) {
		return operation.Inputs[i]
	}
	return nil
}

func perChannel(operand *core.Operand) bool {
	return operand.Type.Precision == core.QuantInt8SymmPerChannel || operand.Type.Precision == core.QuantInt32SymmPerChannel
}

// invalidOperation reports a malformed operation as codes.InvalidArgument,
// keeping the code of errors that already carry one.
func invalidOperation(operation *core.Operation, err error) error {
	if status.Code(err) != codes.Unknown {
		return err
	}
	return status.Errorf(codes.InvalidArgument, "invalid %v operation: %v", operation.Type, err)
}
