package driver

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/examples/AI/lyfnpu/pkg/converter"
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
	"k8s.io/klog/v2"
)

// ValidateProgram reports, for every operation of model, whether the device
// can run it. Unsupported operations do not make the call fail.
func ValidateProgram(ctx context.Context, c *Context, model *core.Model) ([]bool, error) {
	if c == nil || model == nil {
		return nil, status.Errorf(codes.InvalidArgument, "context and model are required")
	}
	log := klog.FromContext(ctx)

	supported := make([]bool, len(model.Operations))
	for i, operation := range model.Operations {
		supported[i] = c.registry.Supports(operation)
		if !supported[i] {
			log.Info("operation is not supported", "index", i, "operation", operation.Type)
		}
	}
	return supported, nil
}

// Program is a device graph ready to execute. Execute calls are serialized.
type Program struct {
	mu        sync.Mutex
	context   *Context
	execution *device.Execution
}

// CreateProgram builds a program from a serialized cache buffer or, when the
// cache is empty, from model. A cache with an empty buffer receives the
// serialized graph so that later calls can skip conversion.
func CreateProgram(ctx context.Context, c *Context, model *core.Model, cache *core.Cache) (*Program, error) {
	if c == nil {
		return nil, status.Errorf(codes.InvalidArgument, "context is required")
	}
	hasCache := cache != nil && len(cache.Buffer) > 0
	if model == nil && !hasCache {
		return nil, status.Errorf(codes.InvalidArgument, "either a model or a cache buffer is required")
	}
	log := klog.FromContext(ctx)

	var graph *device.Graph
	if hasCache {
		log.Info("loading program from cache", "token", cache.Token, "bytes", len(cache.Buffer))
		g, err := device.DeserializeGraph(cache.Buffer)
		if err != nil {
			return nil, fmt.Errorf("loading cached program %q: %w", cache.Token, err)
		}
		graph = g
	} else {
		graph = device.NewGraph()
		conv := converter.New(graph, converter.NewTensorMap(), c.registry)
		if err := conv.Apply(ctx, model); err != nil {
			return nil, err
		}
		if err := conv.DesignateArguments(model); err != nil {
			return nil, err
		}
	}

	execution := device.NewExecution(graph, c.kernels)
	if cache != nil && !hasCache {
		buffer, err := execution.BuildBuffer(ctx)
		if err != nil {
			return nil, err
		}
		cache.Buffer = buffer
	} else if err := execution.Build(ctx); err != nil {
		return nil, err
	}

	return &Program{
		context:   c,
		execution: execution,
	}, nil
}

func (p *Program) InputCount() int {
	return len(p.execution.Graph().InputTensors())
}

func (p *Program) OutputCount() int {
	return len(p.execution.Graph().OutputTensors())
}

// Execute runs the program once. Each output argument with a nil Buffer
// receives the device's own output buffer, which stays valid until the next
// Execute; other buffers must be large enough to hold the result, which is
// copied in. Output shapes are always filled in.
func (p *Program) Execute(ctx context.Context, inputs []core.Argument, outputs []core.Argument) error {
	if len(outputs) == 0 {
		return status.Errorf(codes.InvalidArgument, "at least one output argument is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	args := make([]device.Argument, len(inputs))
	for i, input := range inputs {
		args[i] = device.Argument{Index: input.Index, Shape: input.Shape, Buffer: input.Buffer}
	}
	if err := p.execution.SetInputs(args); err != nil {
		return err
	}
	if err := p.execution.Run(ctx); err != nil {
		return err
	}
	results, err := p.execution.GetOutputs()
	if err != nil {
		return err
	}

	for i := range outputs {
		output := &outputs[i]
		if output.Index < 0 || output.Index >= len(results) {
			return status.Errorf(codes.InvalidArgument, "output argument %d has index %d, expected [0, %d)", i, output.Index, len(results))
		}
		result := results[output.Index]
		output.Shape = result.Shape
		if output.Buffer == nil {
			output.Buffer = result.Buffer
			continue
		}
		if len(output.Buffer) < len(result.Buffer) {
			return status.Errorf(codes.InvalidArgument, "output %d buffer has %d bytes, result needs %d", output.Index, len(output.Buffer), len(result.Buffer))
		}
		output.Buffer = output.Buffer[:copy(output.Buffer, result.Buffer)]
	}
	return nil
}

func (p *Program) Close(ctx context.Context) {
	klog.FromContext(ctx).Info("destroying program")
}
