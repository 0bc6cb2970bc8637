package core

import (
	"fmt"
	"strings"
)

// PrecisionCode is the element type of an operand.
type PrecisionCode int32

const (
	Bool8 PrecisionCode = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float16
	Float32
	Float64
	QuantInt8SymmPerLayer
	QuantInt8SymmPerChannel
	QuantUint8AsymmPerLayer
	QuantInt16SymmPerLayer
	QuantInt16SymmPerChannel
	QuantUint16AsymmPerLayer
	QuantInt32SymmPerLayer
	QuantInt32SymmPerChannel
)

var precisionNames = map[PrecisionCode]string{
	Bool8:                    "BOOL8",
	Int8:                     "INT8",
	Uint8:                    "UINT8",
	Int16:                    "INT16",
	Uint16:                   "UINT16",
	Int32:                    "INT32",
	Uint32:                   "UINT32",
	Int64:                    "INT64",
	Uint64:                   "UINT64",
	Float16:                  "FLOAT16",
	Float32:                  "FLOAT32",
	Float64:                  "FLOAT64",
	QuantInt8SymmPerLayer:    "QUANT_INT8_SYMM_PER_LAYER",
	QuantInt8SymmPerChannel:  "QUANT_INT8_SYMM_PER_CHANNEL",
	QuantUint8AsymmPerLayer:  "QUANT_UINT8_ASYMM_PER_LAYER",
	QuantInt16SymmPerLayer:   "QUANT_INT16_SYMM_PER_LAYER",
	QuantInt16SymmPerChannel: "QUANT_INT16_SYMM_PER_CHANNEL",
	QuantUint16AsymmPerLayer: "QUANT_UINT16_ASYMM_PER_LAYER",
	QuantInt32SymmPerLayer:   "QUANT_INT32_SYMM_PER_LAYER",
	QuantInt32SymmPerChannel: "QUANT_INT32_SYMM_PER_CHANNEL",
}

func (p PrecisionCode) String() string {
	if name, ok := precisionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PrecisionCode(%d)", int32(p))
}

// IsQuantized reports whether the precision carries quantization parameters.
func (p PrecisionCode) IsQuantized() bool {
	return p >= QuantInt8SymmPerLayer && p <= QuantInt32SymmPerChannel
}

func ParsePrecisionCode(s string) (PrecisionCode, error) {
	for code, name := range precisionNames {
		if strings.EqualFold(name, s) {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown precision %q", s)
}

// LayoutCode is the memory layout of an operand.
type LayoutCode int32

const (
	LayoutNCHW LayoutCode = iota
	LayoutNHWC
)

func (l LayoutCode) String() string {
	switch l {
	case LayoutNCHW:
		return "NCHW"
	case LayoutNHWC:
		return "NHWC"
	default:
		return fmt.Sprintf("LayoutCode(%d)", int32(l))
	}
}

func ParseLayoutCode(s string) (LayoutCode, error) {
	switch strings.ToUpper(s) {
	case "", "NCHW":
		return LayoutNCHW, nil
	case "NHWC":
		return LayoutNHWC, nil
	default:
		return 0, fmt.Errorf("unknown layout %q", s)
	}
}

// LifetimeCode says where an operand's value comes from.
type LifetimeCode int32

const (
	TemporaryVariable LifetimeCode = iota
	ConstantCopy
	ConstantReference
	ModelInput
	ModelOutput
)

var lifetimeNames = map[LifetimeCode]string{
	TemporaryVariable: "TEMPORARY_VARIABLE",
	ConstantCopy:      "CONSTANT_COPY",
	ConstantReference: "CONSTANT_REFERENCE",
	ModelInput:        "MODEL_INPUT",
	ModelOutput:       "MODEL_OUTPUT",
}

func (l LifetimeCode) String() string {
	if name, ok := lifetimeNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LifetimeCode(%d)", int32(l))
}

func ParseLifetimeCode(s string) (LifetimeCode, error) {
	if s == "" {
		return TemporaryVariable, nil
	}
	for code, name := range lifetimeNames {
		if strings.EqualFold(name, s) {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown lifetime %q", s)
}

// FuseCode is an activation folded into the preceding arithmetic operation.
type FuseCode int32

const (
	FusedNone FuseCode = iota
	FusedRelu
	FusedRelu1
	FusedRelu6
)

func (f FuseCode) String() string {
	switch f {
	case FusedNone:
		return "FUSED_NONE"
	case FusedRelu:
		return "FUSED_RELU"
	case FusedRelu1:
		return "FUSED_RELU1"
	case FusedRelu6:
		return "FUSED_RELU6"
	default:
		return fmt.Sprintf("FuseCode(%d)", int32(f))
	}
}

// OperationType is the kind tag of an operation.
type OperationType int32

const (
	OperationAdd OperationType = iota
	OperationAveragePool2D
	OperationConcat
	OperationConv2D
	OperationFullyConnected
	OperationMaxPool2D
	OperationMul
	OperationRelu
	OperationRelu6
	OperationReshape
	OperationSigmoid
	OperationSoftmax
	OperationTranspose
)

var operationNames = map[OperationType]string{
	OperationAdd:            "ADD",
	OperationAveragePool2D:  "AVERAGE_POOL_2D",
	OperationConcat:         "CONCAT",
	OperationConv2D:         "CONV_2D",
	OperationFullyConnected: "FULLY_CONNECTED",
	OperationMaxPool2D:      "MAX_POOL_2D",
	OperationMul:            "MUL",
	OperationRelu:           "RELU",
	OperationRelu6:          "RELU6",
	OperationReshape:        "RESHAPE",
	OperationSigmoid:        "SIGMOID",
	OperationSoftmax:        "SOFTMAX",
	OperationTranspose:      "TRANSPOSE",
}

func (t OperationType) String() string {
	if name, ok := operationNames[t]; ok {
		return name
	}
	return fmt.Sprintf("OperationType(%d)", int32(t))
}

func ParseOperationType(s string) (OperationType, error) {
	for code, name := range operationNames {
		if strings.EqualFold(name, s) {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown operation type %q", s)
}
