// Package device is the lyf device graph: typed tensors and operators, the
// graph that owns them, and the execution engine that runs it.
package device

import "fmt"

type PrecisionType int32

const (
	Bool8 PrecisionType = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	Float32
	Float64
	QuantInt8SymmPerLayer
	QuantInt8SymmPerChannel
	QuantInt32SymmPerLayer
	QuantInt32SymmPerChannel
	QuantUint8AsymmPerLayer
)

var precisionNames = [...]string{
	Bool8:                    "BOOL8",
	Int8:                     "INT8",
	Int16:                    "INT16",
	Int32:                    "INT32",
	Int64:                    "INT64",
	Uint8:                    "UINT8",
	Uint16:                   "UINT16",
	Uint32:                   "UINT32",
	Uint64:                   "UINT64",
	Float16:                  "FLOAT16",
	Float32:                  "FLOAT32",
	Float64:                  "FLOAT64",
	QuantInt8SymmPerLayer:    "QUANT_INT8_SYMM_PER_LAYER",
	QuantInt8SymmPerChannel:  "QUANT_INT8_SYMM_PER_CHANNEL",
	QuantInt32SymmPerLayer:   "QUANT_INT32_SYMM_PER_LAYER",
	QuantInt32SymmPerChannel: "QUANT_INT32_SYMM_PER_CHANNEL",
	QuantUint8AsymmPerLayer:  "QUANT_UINT8_ASYMM_PER_LAYER",
}

// AllPrecisionTypes lists every precision the device supports.
func AllPrecisionTypes() []PrecisionType {
	out := make([]PrecisionType, len(precisionNames))
	for i := range precisionNames {
		out[i] = PrecisionType(i)
	}
	return out
}

func (p PrecisionType) String() string {
	if p >= 0 && int(p) < len(precisionNames) {
		return precisionNames[p]
	}
	return fmt.Sprintf("PrecisionType(%d)", int32(p))
}

func (p PrecisionType) valid() bool {
	return p >= 0 && int(p) < len(precisionNames)
}

// ElementSize is the number of bytes per element, or 0 for an unknown precision.
func (p PrecisionType) ElementSize() int {
	switch p {
	case Bool8, Int8, Uint8, QuantInt8SymmPerLayer, QuantInt8SymmPerChannel, QuantUint8AsymmPerLayer:
		return 1
	case Int16, Uint16, Float16:
		return 2
	case Int32, Uint32, Float32, QuantInt32SymmPerLayer, QuantInt32SymmPerChannel:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// IsQuantized reports whether tensors of this precision carry scales.
func (p PrecisionType) IsQuantized() bool {
	return p >= QuantInt8SymmPerLayer && p <= QuantUint8AsymmPerLayer
}

type DataLayoutType int32

const (
	NCHW DataLayoutType = iota
	NHWC
)

func (l DataLayoutType) String() string {
	switch l {
	case NCHW:
		return "NCHW"
	case NHWC:
		return "NHWC"
	default:
		return fmt.Sprintf("DataLayoutType(%d)", int32(l))
	}
}

// FuseType is the activation applied to an operator's output.
type FuseType int32

const (
	FuseNone FuseType = iota
	FuseRelu
	FuseRelu1
	FuseRelu6
)

func (f FuseType) String() string {
	switch f {
	case FuseNone:
		return "FUSE_NONE"
	case FuseRelu:
		return "FUSE_RELU"
	case FuseRelu1:
		return "FUSE_RELU1"
	case FuseRelu6:
		return "FUSE_RELU6"
	default:
		return fmt.Sprintf("FuseType(%d)", int32(f))
	}
}

type OperatorType int32

const (
	OperatorConv2D OperatorType = iota + 1
	OperatorFullyConnected
	OperatorAdd
	OperatorMul
	OperatorActivation
	OperatorReshape
	OperatorSoftmax
)

func (t OperatorType) String() string {
	switch t {
	case OperatorConv2D:
		return "CONV2D"
	case OperatorFullyConnected:
		return "FULLY_CONNECTED"
	case OperatorAdd:
		return "ADD"
	case OperatorMul:
		return "MUL"
	case OperatorActivation:
		return "ACTIVATION"
	case OperatorReshape:
		return "RESHAPE"
	case OperatorSoftmax:
		return "SOFTMAX"
	default:
		return fmt.Sprintf("OperatorType(%d)", int32(t))
	}
}
