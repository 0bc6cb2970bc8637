package device

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Graph owns every tensor and operator created for a program. Tensors and
// operators are referenced by index, so ids stay valid for the life of the
// graph.
type Graph struct {
	tensors   []*Tensor
	operators []*Operator

	inputTensors  []TensorID
	outputTensors []TensorID
}

func NewGraph() *Graph {
	return &Graph{}
}

// AddTensor creates a tensor. buffer, if non-nil, is referenced rather than
// copied.
func (g *Graph) AddTensor(attr TensorAttr, buffer []byte) *Tensor {
	tensor := &Tensor{
		ID:     TensorID(len(g.tensors)),
		Attr:   attr,
		Buffer: buffer,
	}
	tensor.Length = BufferLength(&tensor.Attr)
	g.tensors = append(g.tensors, tensor)
	return tensor
}

func (g *Graph) AddOperator(typ OperatorType, inputs []TensorID, outputs []TensorID, attr Attr) (*Operator, error) {
	for _, id := range inputs {
		if !g.hasTensor(id) {
			return nil, status.Errorf(codes.InvalidArgument, "%v operator input tensor %d does not exist", typ, id)
		}
	}
	for _, id := range outputs {
		if !g.hasTensor(id) {
			return nil, status.Errorf(codes.InvalidArgument, "%v operator output tensor %d does not exist", typ, id)
		}
	}
	if attr != nil && attr.OperatorType() != typ {
		return nil, status.Errorf(codes.InvalidArgument, "%v operator given %v attributes", typ, attr.OperatorType())
	}

	op := &Operator{
		ID:      OperatorID(len(g.operators)),
		Type:    typ,
		Inputs:  append([]TensorID(nil), inputs...),
		Outputs: append([]TensorID(nil), outputs...),
		Attr:    attr,
	}
	g.operators = append(g.operators, op)
	return op, nil
}

func (g *Graph) hasTensor(id TensorID) bool {
	return id >= 0 && int(id) < len(g.tensors)
}

// Tensor returns the tensor with the given id, or nil.
func (g *Graph) Tensor(id TensorID) *Tensor {
	if !g.hasTensor(id) {
		return nil
	}
	return g.tensors[id]
}

// Tensors returns the tensors for ids, or an error if any does not exist.
func (g *Graph) Tensors(ids []TensorID) ([]*Tensor, error) {
	out := make([]*Tensor, len(ids))
	for i, id := range ids {
		tensor := g.Tensor(id)
		if tensor == nil {
			return nil, status.Errorf(codes.Internal, "tensor %d does not exist", id)
		}
		out[i] = tensor
	}
	return out, nil
}

func (g *Graph) Operator(id OperatorID) *Operator {
	if id < 0 || int(id) >= len(g.operators) {
		return nil
	}
	return g.operators[id]
}

func (g *Graph) TensorCount() int {
	return len(g.tensors)
}

func (g *Graph) OperatorCount() int {
	return len(g.operators)
}

// Operators returns the operators in creation order.
func (g *Graph) Operators() []*Operator {
	return append([]*Operator(nil), g.operators...)
}

// SetInputs designates the graph inputs; argument indices bind by position.
func (g *Graph) SetInputs(ids []TensorID) error {
	for _, id := range ids {
		if !g.hasTensor(id) {
			return status.Errorf(codes.InvalidArgument, "input tensor %d does not exist", id)
		}
	}
	g.inputTensors = append([]TensorID(nil), ids...)
	return nil
}

// SetOutputs designates the graph outputs; argument indices bind by position.
func (g *Graph) SetOutputs(ids []TensorID) error {
	for _, id := range ids {
		if !g.hasTensor(id) {
			return status.Errorf(codes.InvalidArgument, "output tensor %d does not exist", id)
		}
	}
	g.outputTensors = append([]TensorID(nil), ids...)
	return nil
}

func (g *Graph) InputTensors() []TensorID {
	return append([]TensorID(nil), g.inputTensors...)
}

func (g *Graph) OutputTensors() []TensorID {
	return append([]TensorID(nil), g.outputTensors...)
}

// Producers maps each tensor to the operator that writes it.
func (g *Graph) Producers() map[TensorID]OperatorID {
	producers := make(map[TensorID]OperatorID)
	for _, op := range g.operators {
		for _, id := range op.Outputs {
			producers[id] = op.ID
		}
	}
	return producers
}
