package device_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

func float32Attr(shape ...int32) device.TensorAttr {
	return device.TensorAttr{
		Precision:   device.Float32,
		Layout:      device.NCHW,
		Shape:       shape,
		QuantParams: device.QuantParams{ChannelDim: -1},
	}
}

func float32Bytes(values ...float32) []byte {
	b := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func float32Values(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

// buildDenseGraph builds relu(x [1,2] * w [3,2]^T + b [3]) followed by a
// softmax over the last axis.
func buildDenseGraph(t *testing.T) *device.Graph {
	t.Helper()
	g := device.NewGraph()
	x := g.AddTensor(float32Attr(1, 2), nil)
	w := g.AddTensor(float32Attr(3, 2), float32Bytes(1, 0, 0, 1, -1, -1))
	b := g.AddTensor(float32Attr(3), float32Bytes(0, 0, 1))
	hidden := g.AddTensor(float32Attr(1, 3), nil)
	y := g.AddTensor(float32Attr(1, 3), nil)

	// Declared consumer first so that Build has to reorder.
	_, err := g.AddOperator(device.OperatorSoftmax, []device.TensorID{hidden.ID}, []device.TensorID{y.ID}, &device.SoftmaxAttr{Axis: -1})
	require.NoError(t, err)
	_, err = g.AddOperator(device.OperatorFullyConnected, []device.TensorID{x.ID, w.ID, b.ID}, []device.TensorID{hidden.ID}, &device.FullyConnectedAttr{Fuse: device.FuseRelu})
	require.NoError(t, err)

	require.NoError(t, g.SetInputs([]device.TensorID{x.ID}))
	require.NoError(t, g.SetOutputs([]device.TensorID{y.ID}))
	return g
}

func TestAddTensorComputesLength(t *testing.T) {
	g := device.NewGraph()
	tensor := g.AddTensor(device.TensorAttr{Precision: device.Float16, Shape: []int32{2, 3}}, nil)
	require.Equal(t, device.TensorID(0), tensor.ID)
	require.Equal(t, 12, tensor.Length)

	unknown := g.AddTensor(device.TensorAttr{Precision: device.Int8, Shape: []int32{-1, 3}}, nil)
	require.Equal(t, device.TensorID(1), unknown.ID)
	require.Equal(t, 0, unknown.Length)
	require.Equal(t, 2, g.TensorCount())
}

func TestAddOperatorValidatesReferences(t *testing.T) {
	g := device.NewGraph()
	in := g.AddTensor(float32Attr(1), nil)
	out := g.AddTensor(float32Attr(1), nil)

	_, err := g.AddOperator(device.OperatorActivation, []device.TensorID{in.ID}, []device.TensorID{7}, &device.ActivationAttr{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = g.AddOperator(device.OperatorActivation, []device.TensorID{-1}, []device.TensorID{out.ID}, &device.ActivationAttr{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = g.AddOperator(device.OperatorActivation, []device.TensorID{in.ID}, []device.TensorID{out.ID}, &device.SoftmaxAttr{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	op, err := g.AddOperator(device.OperatorActivation, []device.TensorID{in.ID}, []device.TensorID{out.ID}, &device.ActivationAttr{Fuse: device.FuseRelu})
	require.NoError(t, err)
	require.Equal(t, device.OperatorID(0), op.ID)
	require.Equal(t, 1, g.OperatorCount())
	require.Same(t, op, g.Operator(0))
	require.Nil(t, g.Operator(1))
}

func TestProducers(t *testing.T) {
	g := buildDenseGraph(t)
	producers := g.Producers()
	require.Equal(t, map[device.TensorID]device.OperatorID{
		3: 1,
		4: 0,
	}, producers)
}

func TestSetInputsRejectsUnknownTensor(t *testing.T) {
	g := device.NewGraph()
	g.AddTensor(float32Attr(1), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(g.SetInputs([]device.TensorID{0, 1})))
	require.Equal(t, codes.InvalidArgument, status.Code(g.SetOutputs([]device.TensorID{3})))
	require.Empty(t, g.InputTensors())
	require.Empty(t, g.OutputTensors())
}

func TestResizeReusesBuffer(t *testing.T) {
	tensor := &device.Tensor{Attr: float32Attr()}
	tensor.Resize([]int32{2, 2})
	require.Len(t, tensor.Buffer, 16)
	buffer := tensor.Buffer

	tensor.Resize([]int32{3})
	require.Equal(t, 12, tensor.Length)
	require.Len(t, tensor.Data(), 12)
	require.Same(t, &buffer[0], &tensor.Buffer[0])

	tensor.Resize([]int32{5})
	require.Len(t, tensor.Buffer, 20)
}

func TestResizeEmptyShape(t *testing.T) {
	tensor := &device.Tensor{Attr: float32Attr()}
	tensor.Resize([]int32{0, 3})
	require.NotNil(t, tensor.Buffer)
	require.Empty(t, tensor.Buffer)
	require.Equal(t, 0, tensor.Length)
}
