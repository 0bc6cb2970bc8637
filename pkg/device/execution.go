package device

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/examples/AI/lyfnpu/pkg/engine"
	"k8s.io/klog/v2"
)

// Kernel computes an operator's outputs from its inputs. Kernels size their
// output tensors with Tensor.Resize.
type Kernel func(inputs []*Tensor, outputs []*Tensor, attr Attr) error

// KernelTable maps operator types to kernels.
type KernelTable map[OperatorType]Kernel

// Argument binds a buffer to a graph input or output by position.
type Argument struct {
	Index  int
	Shape  []int32
	Buffer []byte
}

// Execution runs a graph. The operator order is computed once by Build and
// reused by every Run. An Execution is not safe for concurrent use.
type Execution struct {
	graph   *Graph
	kernels KernelTable

	operators []*Operator
	built     bool
}

func NewExecution(graph *Graph, kernels KernelTable) *Execution {
	return &Execution{
		graph:   graph,
		kernels: kernels,
	}
}

func (e *Execution) Graph() *Graph {
	return e.graph
}

// Build computes the operator execution order.
func (e *Execution) Build(ctx context.Context) error {
	log := klog.FromContext(ctx)
	log.Info("building device program", "operators", e.graph.OperatorCount(), "tensors", e.graph.TensorCount())

	producers := e.graph.Producers()
	operators, err := engine.Schedule(e.graph.operators, func(op *Operator) []*Operator {
		var deps []*Operator
		for _, id := range op.Inputs {
			if producer, found := producers[id]; found {
				deps = append(deps, e.graph.operators[producer])
			}
		}
		return deps
	})
	if err != nil {
		return fmt.Errorf("sorting operators: %w", err)
	}
	e.operators = operators
	e.built = true
	return nil
}

// BuildBuffer builds the execution and serializes the graph so that it can
// be reloaded with DeserializeGraph.
func (e *Execution) BuildBuffer(ctx context.Context) ([]byte, error) {
	if err := e.Build(ctx); err != nil {
		return nil, err
	}
	b, err := SerializeGraph(nil, e.graph)
	if err != nil {
		return nil, fmt.Errorf("serializing graph: %w", err)
	}
	klog.FromContext(ctx).Info("serialized device program", "bytes", len(b))
	return b, nil
}

// SetInputs binds one argument to each graph input. Shapes and buffers are
// replaced in place; nothing is bound unless every argument is valid.
func (e *Execution) SetInputs(args []Argument) error {
	if !e.built {
		return status.Errorf(codes.FailedPrecondition, "execution has not been built")
	}
	inputCount := len(e.graph.inputTensors)
	if len(args) != inputCount {
		return status.Errorf(codes.InvalidArgument, "got %d input arguments, graph has %d inputs", len(args), inputCount)
	}

	seen := make([]bool, inputCount)
	for i := range args {
		arg := &args[i]
		if arg.Index < 0 || arg.Index >= inputCount {
			return status.Errorf(codes.InvalidArgument, "input argument %d has index %d, expected [0, %d)", i, arg.Index, inputCount)
		}
		if seen[arg.Index] {
			return status.Errorf(codes.InvalidArgument, "input %d bound more than once", arg.Index)
		}
		seen[arg.Index] = true
		if arg.Buffer == nil {
			return status.Errorf(codes.InvalidArgument, "input %d has no buffer", arg.Index)
		}
		tensor := e.graph.tensors[e.graph.inputTensors[arg.Index]]
		if len(arg.Shape) != len(tensor.Attr.Shape) {
			return status.Errorf(codes.InvalidArgument, "input %d has rank %d, expected %d", arg.Index, len(arg.Shape), len(tensor.Attr.Shape))
		}
		attr := tensor.Attr
		attr.Shape = arg.Shape
		if length := BufferLength(&attr); len(arg.Buffer) < length {
			return status.Errorf(codes.InvalidArgument, "input %d buffer has %d bytes, shape %v needs %d", arg.Index, len(arg.Buffer), arg.Shape, length)
		}
	}

	for _, arg := range args {
		tensor := e.graph.tensors[e.graph.inputTensors[arg.Index]]
		tensor.Attr.Shape = append([]int32(nil), arg.Shape...)
		tensor.Buffer = arg.Buffer
		tensor.Length = BufferLength(&tensor.Attr)
	}
	return nil
}

// Run executes every operator once, in the order computed by Build.
func (e *Execution) Run(ctx context.Context) error {
	if !e.built {
		return status.Errorf(codes.FailedPrecondition, "execution has not been built")
	}
	log := klog.FromContext(ctx)

	startedAt := time.Now()
	for _, op := range e.operators {
		if err := e.runOperator(log, op); err != nil {
			return err
		}
	}

	if log.V(1).Enabled() {
		log.V(1).Info("ran device program", "operators", len(e.operators), "duration", time.Since(startedAt))
	}
	return nil
}

func (e *Execution) runOperator(log logr.Logger, op *Operator) error {
	kernel, found := e.kernels[op.Type]
	if !found {
		return status.Errorf(codes.Unimplemented, "unsupported operator type %v", op.Type)
	}
	inputs, err := e.graph.Tensors(op.Inputs)
	if err != nil {
		return err
	}
	outputs, err := e.graph.Tensors(op.Outputs)
	if err != nil {
		return err
	}
	for _, input := range inputs {
		if input.Buffer == nil {
			return status.Errorf(codes.FailedPrecondition, "%v operator %d input tensor %d has no buffer", op.Type, op.ID, input.ID)
		}
	}
	if err := kernel(inputs, outputs, op.Attr); err != nil {
		return status.Errorf(codes.Internal, "%v operator %d failed: %v", op.Type, op.ID, err)
	}
	if log := log.V(5); log.Enabled() {
		shapes := make([][]int32, len(outputs))
		for i, output := range outputs {
			shapes[i] = output.Attr.Shape
		}
		log.Info("ran operator", "type", op.Type, "id", op.ID, "outputShapes", shapes)
	}
	return nil
}

// GetOutputs returns one argument per graph output, referencing the output
// tensor buffers. It fails if Run has not populated them.
func (e *Execution) GetOutputs() ([]Argument, error) {
	outputs := make([]Argument, len(e.graph.outputTensors))
	for i, id := range e.graph.outputTensors {
		tensor := e.graph.tensors[id]
		if tensor.Buffer == nil {
			return nil, status.Errorf(codes.FailedPrecondition, "output %d has no buffer", i)
		}
		if len(tensor.Attr.Shape) == 0 {
			return nil, status.Errorf(codes.FailedPrecondition, "output %d has no shape", i)
		}
		outputs[i] = Argument{
			Index:  i,
			Shape:  append([]int32(nil), tensor.Attr.Shape...),
			Buffer: tensor.Data(),
		}
	}
	return outputs, nil
}
