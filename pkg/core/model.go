// Package core is the device-agnostic model representation that drivers lower
// into their own graphs.
package core

// Dimensions is the shape of an operand. Only the first Count entries of Data
// are meaningful; -1 marks a dimension that is only known at execution time.
type Dimensions struct {
	Count uint32
	Data  []int32
}

// NewDimensions returns dimensions holding a copy of dims.
func NewDimensions(dims ...int32) Dimensions {
	data := make([]int32, len(dims))
	copy(data, dims)
	return Dimensions{Count: uint32(len(dims)), Data: data}
}

// Values returns the meaningful dimensions.
func (d Dimensions) Values() []int32 {
	if int(d.Count) > len(d.Data) {
		return d.Data
	}
	return d.Data[:d.Count]
}

type SymmPerLayerParams struct {
	Scale float32
}

type SymmPerChannelParams struct {
	Scales     []float32
	ChannelDim uint32
}

type AsymmPerLayerParams struct {
	Scale     float32
	ZeroPoint int32
}

// OperandType describes an operand's value. Which quantization parameters are
// meaningful is decided by Precision.
type OperandType struct {
	Precision  PrecisionCode
	Layout     LayoutCode
	Lifetime   LifetimeCode
	Dimensions Dimensions

	SymmPerLayerParams   SymmPerLayerParams
	SymmPerChannelParams SymmPerChannelParams
	AsymmPerLayerParams  AsymmPerLayerParams
}

// Operand is a tensor value in the model. Operands are compared by identity.
type Operand struct {
	Name string
	Type OperandType
	// Buffer holds constant data, if any. Drivers share it rather than copy it.
	Buffer []byte
}

func (o *Operand) IsConstant() bool {
	return o.Type.Lifetime == ConstantCopy || o.Type.Lifetime == ConstantReference
}

func (o *Operand) String() string {
	if o == nil {
		return "<nil>"
	}
	if o.Name != "" {
		return o.Name
	}
	return "operand(" + o.Type.Precision.String() + ")"
}

// Operation is a computation over operands.
type Operation struct {
	Type    OperationType
	Inputs  []*Operand
	Outputs []*Operand
}

type Model struct {
	Operands       []*Operand
	Operations     []*Operation
	InputOperands  []*Operand
	OutputOperands []*Operand
}

// Argument binds a caller buffer to a model input or output by position.
type Argument struct {
	Index  int
	Shape  []int32
	Buffer []byte
}

// Cache carries a serialized program between CreateProgram calls. An empty
// Buffer asks the driver to fill it in.
type Cache struct {
	Token  string
	Buffer []byte
}
