package device

// OperatorID indexes an operator within its graph.
type OperatorID int32

// Operator references its tensors by id; the graph owns them.
type Operator struct {
	ID      OperatorID
	Type    OperatorType
	Inputs  []TensorID
	Outputs []TensorID
	Attr    Attr
}

// Attr is the kind-specific payload of an operator. The concrete type is
// determined by the operator type (see AttrFor).
type Attr interface {
	OperatorType() OperatorType
}

type Conv2DAttr struct {
	// Pads is top, bottom, left, right.
	Pads      [4]int32
	Strides   [2]int32
	Dilations [2]int32
	Group     int32
	Fuse      FuseType
}

func (*Conv2DAttr) OperatorType() OperatorType { return OperatorConv2D }

type FullyConnectedAttr struct {
	Fuse FuseType
}

func (*FullyConnectedAttr) OperatorType() OperatorType { return OperatorFullyConnected }

// ElementwiseAttr is shared by ADD and MUL.
type ElementwiseAttr struct {
	Type OperatorType
	Fuse FuseType
}

func (a *ElementwiseAttr) OperatorType() OperatorType { return a.Type }

type ActivationAttr struct {
	Fuse FuseType
}

func (*ActivationAttr) OperatorType() OperatorType { return OperatorActivation }

// ReshapeAttr follows the usual conventions: 0 copies the input dimension and
// a single -1 is inferred.
type ReshapeAttr struct {
	Shape []int32
}

func (*ReshapeAttr) OperatorType() OperatorType { return OperatorReshape }

type SoftmaxAttr struct {
	Axis int32
}

func (*SoftmaxAttr) OperatorType() OperatorType { return OperatorSoftmax }

// AttrFor returns an empty payload of the right kind for t, or nil if t is
// not a known operator type.
func AttrFor(t OperatorType) Attr {
	switch t {
	case OperatorConv2D:
		return &Conv2DAttr{}
	case OperatorFullyConnected:
		return &FullyConnectedAttr{}
	case OperatorAdd, OperatorMul:
		return &ElementwiseAttr{Type: t}
	case OperatorActivation:
		return &ActivationAttr{}
	case OperatorReshape:
		return &ReshapeAttr{}
	case OperatorSoftmax:
		return &SoftmaxAttr{}
	default:
		return nil
	}
}
