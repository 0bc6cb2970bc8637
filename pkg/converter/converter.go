// Package converter lowers a core.Model into a device.Graph.
package converter

import (
	"context"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
	"k8s.io/examples/AI/lyfnpu/pkg/engine"
	"k8s.io/klog/v2"
)

// Converter walks a model in dependency order and builds the equivalent
// device graph. The graph owns everything the converter creates.
type Converter struct {
	graph    *device.Graph
	tensors  *TensorMap
	registry Registry
}

func New(graph *device.Graph, tensors *TensorMap, registry Registry) *Converter {
	if tensors == nil {
		tensors = NewTensorMap()
	}
	return &Converter{
		graph:    graph,
		tensors:  tensors,
		registry: registry,
	}
}

func (c *Converter) Graph() *device.Graph {
	return c.graph
}

func (c *Converter) TensorMap() *TensorMap {
	return c.tensors
}

// Apply lowers every operation of model. It stops at the first operation that
// cannot be lowered; an operation kind missing from the registry is
// reported as codes.Unimplemented.
func (c *Converter) Apply(ctx context.Context, model *core.Model) error {
	log := klog.FromContext(ctx)

	producers := model.Producers()
	operations, err := engine.Schedule(model.Operations, func(operation *core.Operation) []*core.Operation {
		var deps []*core.Operation
		for _, input := range operation.Inputs {
			if producer, found := producers[input]; found && input != nil {
				deps = append(deps, producer)
			}
		}
		return deps
	})
	if err != nil {
		return fmt.Errorf("sorting operations: %w", err)
	}

	for _, operation := range operations {
		log.V(5).Info("converting", "operation", operation.Type)
		entry, found := c.registry[operation.Type]
		if !found || entry.Convert == nil {
			return status.Errorf(codes.Unimplemented, "unsupported operation %v", operation.Type)
		}
		if err := entry.Convert(c, operation); err != nil {
			return fmt.Errorf("converting %v operation: %w", operation.Type, err)
		}
	}
	return nil
}

// DesignateArguments marks the tensors of the model inputs and outputs as
// the graph inputs and outputs, in model order. Operands that no operation
// touched are lowered first.
func (c *Converter) DesignateArguments(model *core.Model) error {
	inputs, err := c.tensorIDs(model.InputOperands)
	if err != nil {
		return fmt.Errorf("mapping model inputs: %w", err)
	}
	outputs, err := c.tensorIDs(model.OutputOperands)
	if err != nil {
		return fmt.Errorf("mapping model outputs: %w", err)
	}
	if err := c.graph.SetInputs(inputs); err != nil {
		return err
	}
	return c.graph.SetOutputs(outputs)
}

func (c *Converter) tensorIDs(operands []*core.Operand) ([]device.TensorID, error) {
	ids := make([]device.TensorID, len(operands))
	for i, operand := range operands {
		tensor, err := c.GetOrConvert(operand)
		if err != nil {
			return nil, err
		}
		ids[i] = tensor.ID
	}
	return ids, nil
}

// GetMappedTensor returns the latest tensor recorded for operand, or nil.
func (c *Converter) GetMappedTensor(operand *core.Operand) *device.Tensor {
	id, found := c.tensors.Resolve(operand)
	if !found {
		return nil
	}
	return c.graph.Tensor(id)
}

// UpdateTensorMap records tensor as the latest lowering of operand.
func (c *Converter) UpdateTensorMap(operand *core.Operand, tensor *device.Tensor) *device.Tensor {
	c.tensors.Record(operand, tensor.ID)
	return tensor
}

// TensorSpec describes a tensor to create. Scales, ZeroPoints and ChannelDim
// follow device.QuantParams.
type TensorSpec struct {
	Shape      []int32
	Precision  device.PrecisionType
	Layout     device.DataLayoutType
	Scales     []float32
	ZeroPoints []int32
	ChannelDim int32
	// Buffer is shared with the tensor, not copied.
	Buffer []byte
}

func (c *Converter) AddTensor(spec TensorSpec) (*device.Tensor, error) {
	attr := device.TensorAttr{
		Precision: spec.Precision,
		Layout:    spec.Layout,
		Shape:     append([]int32(nil), spec.Shape...),
		QuantParams: device.QuantParams{
			ChannelDim: -1,
		},
	}
	if spec.Scales != nil {
		if len(spec.Scales) == 0 {
			return nil, status.Errorf(codes.Internal, "%v tensor has an empty scale list", spec.Precision)
		}
		attr.QuantParams.Scales = append([]float32(nil), spec.Scales...)
		if spec.ZeroPoints != nil {
			if len(spec.ZeroPoints) != len(spec.Scales) {
				return nil, status.Errorf(codes.Internal, "%v tensor has %d zero points for %d scales", spec.Precision, len(spec.ZeroPoints), len(spec.Scales))
			}
			attr.QuantParams.ZeroPoints = append([]int32(nil), spec.ZeroPoints...)
		}
		attr.QuantParams.ChannelDim = spec.ChannelDim
	} else if spec.Precision.IsQuantized() {
		return nil, status.Errorf(codes.Internal, "%v tensor has no scales", spec.Precision)
	}
	return c.graph.AddTensor(attr, spec.Buffer), nil
}

// ConvertOperand creates a tensor for operand and records it as the
// operand's latest lowering. dims, when given, replace the operand's own
// dimensions. Every call creates a new tensor.
func (c *Converter) ConvertOperand(operand *core.Operand, dims ...int32) (*device.Tensor, error) {
	if operand == nil {
		return nil, status.Errorf(codes.InvalidArgument, "operand is nil")
	}
	typ := operand.Type

	if len(dims) == 0 {
		var err error
		dims, err = ConvertToDeviceDimensions(typ.Dimensions.Data, typ.Dimensions.Count)
		if err != nil {
			return nil, fmt.Errorf("operand %v: %w", operand, err)
		}
	}
	precision, err := ConvertToDevicePrecisionType(typ.Precision)
	if err != nil {
		return nil, fmt.Errorf("operand %v: %w", operand, err)
	}
	layout, err := ConvertToDeviceDataLayoutType(typ.Layout)
	if err != nil {
		return nil, fmt.Errorf("operand %v: %w", operand, err)
	}
	scales, zeroPoints, channelDim, err := ExtractQuantParams(typ)
	if err != nil {
		return nil, fmt.Errorf("operand %v: %w", operand, err)
	}

	tensor, err := c.AddTensor(TensorSpec{
		Shape:      dims,
		Precision:  precision,
		Layout:     layout,
		Scales:     scales,
		ZeroPoints: zeroPoints,
		ChannelDim: channelDim,
		Buffer:     operand.Buffer,
	})
	if err != nil {
		return nil, fmt.Errorf("operand %v: %w", operand, err)
	}
	return c.UpdateTensorMap(operand, tensor), nil
}

// GetOrConvert returns the latest tensor for operand, lowering it first if
// it has never been lowered.
func (c *Converter) GetOrConvert(operand *core.Operand) (*device.Tensor, error) {
	if tensor := c.GetMappedTensor(operand); tensor != nil {
		return tensor, nil
	}
	return c.ConvertOperand(operand)
}

func (c *Converter) AddOperator(typ device.OperatorType, inputs []*device.Tensor, outputs []*device.Tensor, attr device.Attr) (*device.Operator, error) {
	inputIDs, err := ids(inputs)
	if err != nil {
		return nil, fmt.Errorf("%v inputs: %w", typ, err)
	}
	outputIDs, err := ids(outputs)
	if err != nil {
		return nil, fmt.Errorf("%v outputs: %w", typ, err)
	}
	return c.graph.AddOperator(typ, inputIDs, outputIDs, attr)
}

func ids(tensors []*device.Tensor) ([]device.TensorID, error) {
	out := make([]device.TensorID, len(tensors))
	for i, tensor := range tensors {
		if tensor == nil {
			return nil, status.Errorf(codes.Internal, "tensor %d is nil", i)
		}
		out[i] = tensor.ID
	}
	return out, nil
}
