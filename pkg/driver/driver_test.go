package driver_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/examples/AI/lyfnpu/pkg/blobs"
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/examples/AI/lyfnpu/pkg/driver"
)

// denseModel is FULLY_CONNECTED with relu followed by SOFTMAX:
// y = softmax(relu(x * w^T + b)).
func denseModel() *core.Model {
	m := &core.Model{}
	x := m.AddInputOperand(core.NewTensorType(core.Float32, 1, 2))
	w := m.AddFloat32ConstantOperand([]float32{1, 0, 0, 1, -1, -1}, 3, 2)
	b := m.AddFloat32ConstantOperand([]float32{0, 0, 1}, 3)
	hidden := m.AddOperand(core.NewTensorType(core.Float32, 1, 3))
	y := m.AddOperand(core.NewTensorType(core.Float32, 1, 3))
	m.AddOperation(core.OperationFullyConnected, []*core.Operand{x, w, b, m.AddInt32ConstantOperand(int32(core.FusedRelu))}, []*core.Operand{hidden})
	m.AddOperation(core.OperationSoftmax, []*core.Operand{hidden, m.AddInt32ConstantOperand(-1)}, []*core.Operand{y})
	m.MarkOutputs(y)
	return m
}

func softmax(values ...float64) []float32 {
	var sum float64
	for _, v := range values {
		sum += math.Exp(v)
	}
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(math.Exp(v) / sum)
	}
	return out
}

func newContext(t *testing.T) *driver.Context {
	t.Helper()
	ctx := context.Background()
	d, err := driver.OpenDevice(ctx)
	require.NoError(t, err)
	c, err := driver.CreateContext(ctx, d, "")
	require.NoError(t, err)
	return c
}

func denseInputs() []core.Argument {
	return []core.Argument{{Index: 0, Shape: []int32{1, 2}, Buffer: core.EncodeFloat32s([]float32{1, 2})}}
}

func TestOpenDevice(t *testing.T) {
	d, err := driver.OpenDevice(context.Background())
	require.NoError(t, err)
	require.Equal(t, "lyf_npu", d.Name)
	require.Equal(t, "Paddle", d.Vendor)
	require.Equal(t, int32(1), d.Version)
}

func TestCreateContext(t *testing.T) {
	ctx := context.Background()
	d, err := driver.OpenDevice(ctx)
	require.NoError(t, err)

	c, err := driver.CreateContext(ctx, d, "LYF_NPU_SELECT_DEVICE_IDS=0; LOG_LEVEL = 5")
	require.NoError(t, err)
	require.Same(t, d, c.Device())
	v, found := c.Property("LOG_LEVEL")
	require.True(t, found)
	require.Equal(t, "5", v)
	_, found = c.Property("MISSING")
	require.False(t, found)

	_, err = driver.CreateContext(ctx, d, "NOVALUE")
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = driver.CreateContext(ctx, nil, "")
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestParseProperties(t *testing.T) {
	grid := []struct {
		in      string
		want    map[string]string
		wantErr bool
	}{
		{in: "", want: map[string]string{}},
		{in: "A=1", want: map[string]string{"A": "1"}},
		{in: "A=1;B=;", want: map[string]string{"A": "1", "B": ""}},
		{in: "A=1;A=2", want: map[string]string{"A": "2"}},
		{in: "A=x=y", want: map[string]string{"A": "x=y"}},
		{in: "=1", wantErr: true},
		{in: "A", wantErr: true},
	}
	for _, g := range grid {
		t.Run(g.in, func(t *testing.T) {
			got, err := driver.ParseProperties(g.in)
			if g.wantErr {
				require.Equal(t, codes.InvalidArgument, status.Code(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, g.want, got)
		})
	}
}

func TestValidateProgram(t *testing.T) {
	c := newContext(t)
	model := denseModel()
	y := model.OutputOperands[0]
	z := model.AddOperand(core.NewTensorType(core.Float32, 1, 3))
	model.AddOperation(core.OperationSigmoid, []*core.Operand{y}, []*core.Operand{z})

	supported, err := driver.ValidateProgram(context.Background(), c, model)
	require.NoError(t, err)
	require.Equal(t, []bool{true, true, false}, supported)

	_, err = driver.ValidateProgram(context.Background(), c, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCreateProgramArguments(t *testing.T) {
	ctx := context.Background()
	c := newContext(t)

	_, err := driver.CreateProgram(ctx, nil, denseModel(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = driver.CreateProgram(ctx, c, nil, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = driver.CreateProgram(ctx, c, nil, &core.Cache{Token: "empty"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = driver.CreateProgram(ctx, c, nil, &core.Cache{Token: "garbage", Buffer: []byte{0xff}})
	require.Error(t, err)
}

func TestCreateProgramUnsupported(t *testing.T) {
	model := denseModel()
	y := model.OutputOperands[0]
	z := model.AddOperand(core.NewTensorType(core.Float32, 1, 3))
	model.AddOperation(core.OperationSigmoid, []*core.Operand{y}, []*core.Operand{z})

	_, err := driver.CreateProgram(context.Background(), newContext(t), model, nil)
	require.Equal(t, codes.Unimplemented, status.Code(err))
	require.Equal(t, driver.StatusUnsupported, driver.StatusFromError(err))
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	p, err := driver.CreateProgram(ctx, newContext(t), denseModel(), nil)
	require.NoError(t, err)
	defer p.Close(ctx)
	require.Equal(t, 1, p.InputCount())
	require.Equal(t, 1, p.OutputCount())

	want := softmax(1, 2, 0)

	for i := 0; i < 2; i++ {
		outputs := []core.Argument{{Index: 0}}
		require.NoError(t, p.Execute(ctx, denseInputs(), outputs))
		require.Equal(t, []int32{1, 3}, outputs[0].Shape)
		require.InDeltaSlice(t, want, core.DecodeFloat32s(outputs[0].Buffer), 1e-6)
	}

	// Caller buffers are filled in and trimmed to the result.
	outputs := []core.Argument{{Index: 0, Buffer: make([]byte, 64)}}
	require.NoError(t, p.Execute(ctx, denseInputs(), outputs))
	require.Len(t, outputs[0].Buffer, 12)
	require.InDeltaSlice(t, want, core.DecodeFloat32s(outputs[0].Buffer), 1e-6)
}

func TestExecuteInvalidArguments(t *testing.T) {
	ctx := context.Background()
	p, err := driver.CreateProgram(ctx, newContext(t), denseModel(), nil)
	require.NoError(t, err)

	grid := []struct {
		name    string
		inputs  []core.Argument
		outputs []core.Argument
	}{
		{name: "no outputs", inputs: denseInputs()},
		{name: "no inputs", outputs: []core.Argument{{Index: 0}}},
		{name: "output index", inputs: denseInputs(), outputs: []core.Argument{{Index: 1}}},
		{name: "short output buffer", inputs: denseInputs(), outputs: []core.Argument{{Index: 0, Buffer: make([]byte, 4)}}},
		{name: "short input buffer", inputs: []core.Argument{{Index: 0, Shape: []int32{1, 2}, Buffer: make([]byte, 4)}}, outputs: []core.Argument{{Index: 0}}},
	}
	for _, g := range grid {
		t.Run(g.name, func(t *testing.T) {
			err := p.Execute(ctx, g.inputs, g.outputs)
			require.Equal(t, codes.InvalidArgument, status.Code(err), "got %v", err)
			require.Equal(t, driver.StatusInvalidParameter, driver.StatusFromError(err))
		})
	}
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newContext(t)
	model := denseModel()
	token := core.Fingerprint(model)

	cache := &core.Cache{Token: token}
	p1, err := driver.CreateProgram(ctx, c, model, cache)
	require.NoError(t, err)
	require.NotEmpty(t, cache.Buffer)

	programs := &driver.ProgramCache{Dir: t.TempDir(), Store: &blobs.LocalBlobstore{Dir: t.TempDir()}}
	require.NoError(t, programs.Save(ctx, token, cache.Buffer))

	buffer, found, err := programs.Load(ctx, token)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, cache.Buffer, buffer)

	p2, err := driver.CreateProgram(ctx, c, nil, &core.Cache{Token: token, Buffer: buffer})
	require.NoError(t, err)

	out1 := []core.Argument{{Index: 0}}
	require.NoError(t, p1.Execute(ctx, denseInputs(), out1))
	out2 := []core.Argument{{Index: 0}}
	require.NoError(t, p2.Execute(ctx, denseInputs(), out2))
	require.Equal(t, out1[0].Shape, out2[0].Shape)
	require.Equal(t, out1[0].Buffer, out2[0].Buffer)
}

func TestCacheRoundTripConstantOutput(t *testing.T) {
	ctx := context.Background()
	c := newContext(t)

	model := &core.Model{}
	x := model.AddInputOperand(core.NewTensorType(core.Float32, 2))
	y := model.AddOperand(core.NewTensorType(core.Float32, 2))
	k := model.AddFloat32ConstantOperand([]float32{3, 4}, 2)
	model.AddOperation(core.OperationRelu, []*core.Operand{x}, []*core.Operand{y})
	model.MarkOutputs(y, k)

	cache := &core.Cache{Token: core.Fingerprint(model)}
	p1, err := driver.CreateProgram(ctx, c, model, cache)
	require.NoError(t, err)
	p2, err := driver.CreateProgram(ctx, c, nil, &core.Cache{Token: cache.Token, Buffer: cache.Buffer})
	require.NoError(t, err)
	require.Equal(t, 2, p2.OutputCount())

	inputs := []core.Argument{{Index: 0, Shape: []int32{2}, Buffer: core.EncodeFloat32s([]float32{-1, 2})}}
	for _, p := range []*driver.Program{p1, p2} {
		outputs := []core.Argument{{Index: 0}, {Index: 1}}
		require.NoError(t, p.Execute(ctx, inputs, outputs))
		require.Equal(t, []float32{0, 2}, core.DecodeFloat32s(outputs[0].Buffer))
		require.Equal(t, []int32{2}, outputs[1].Shape)
		require.Equal(t, []float32{3, 4}, core.DecodeFloat32s(outputs[1].Buffer))
	}
}

func TestProgramCacheCreateProgram(t *testing.T) {
	ctx := context.Background()
	c := newContext(t)
	model := denseModel()
	token := core.Fingerprint(model)
	programs := &driver.ProgramCache{Dir: t.TempDir()}

	// A program written by an incompatible version is replaced.
	require.NoError(t, programs.Save(ctx, token, []byte{0x08, 0x02}))

	p, err := programs.CreateProgram(ctx, c, model)
	require.NoError(t, err)
	outputs := []core.Argument{{Index: 0}}
	require.NoError(t, p.Execute(ctx, denseInputs(), outputs))
	require.InDeltaSlice(t, softmax(1, 2, 0), core.DecodeFloat32s(outputs[0].Buffer), 1e-6)

	buffer, found, err := programs.Load(ctx, token)
	require.NoError(t, err)
	require.True(t, found)
	_, err = driver.CreateProgram(ctx, c, nil, &core.Cache{Token: token, Buffer: buffer})
	require.NoError(t, err)

	// The saved program is used as is.
	p, err = programs.CreateProgram(ctx, c, model)
	require.NoError(t, err)
	outputs = []core.Argument{{Index: 0}}
	require.NoError(t, p.Execute(ctx, denseInputs(), outputs))
	require.InDeltaSlice(t, softmax(1, 2, 0), core.DecodeFloat32s(outputs[0].Buffer), 1e-6)

	_, err = programs.CreateProgram(ctx, c, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestProgramCacheSharedStore(t *testing.T) {
	ctx := context.Background()
	store := &blobs.LocalBlobstore{Dir: t.TempDir()}

	writer := &driver.ProgramCache{Dir: t.TempDir(), Store: store}
	require.NoError(t, writer.Save(ctx, "0123456789abcdef", []byte{1, 2, 3}))

	// A cache with an empty directory finds the program in the store.
	reader := &driver.ProgramCache{Dir: t.TempDir(), Store: store}
	buffer, found, err := reader.Load(ctx, "0123456789abcdef")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte{1, 2, 3}, buffer)

	_, found, err = reader.Load(ctx, "fedcba9876543210")
	require.NoError(t, err)
	require.False(t, found)

	local := &driver.ProgramCache{Dir: t.TempDir()}
	_, found, err = local.Load(ctx, "0123456789abcdef")
	require.NoError(t, err)
	require.False(t, found)

	_, _, err = reader.Load(ctx, "../escape")
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	require.Equal(t, codes.InvalidArgument, status.Code(writer.Save(ctx, "", []byte{1})))
	require.Equal(t, codes.InvalidArgument, status.Code(writer.Save(ctx, "token", nil)))
}

func TestStatusFromError(t *testing.T) {
	grid := []struct {
		err  error
		want driver.Status
	}{
		{err: nil, want: driver.StatusSuccess},
		{err: status.Error(codes.InvalidArgument, "x"), want: driver.StatusInvalidParameter},
		{err: status.Error(codes.FailedPrecondition, "x"), want: driver.StatusInvalidParameter},
		{err: status.Error(codes.ResourceExhausted, "x"), want: driver.StatusOutOfMemory},
		{err: status.Error(codes.Unimplemented, "x"), want: driver.StatusUnsupported},
		{err: status.Error(codes.Internal, "x"), want: driver.StatusGenericFailure},
		{err: fmt.Errorf("wrapped: %w", status.Error(codes.Unimplemented, "x")), want: driver.StatusUnsupported},
		{err: errors.New("plain"), want: driver.StatusGenericFailure},
	}
	for _, g := range grid {
		require.Equal(t, g.want, driver.StatusFromError(g.err), "error %v", g.err)
	}
	require.Equal(t, "UNSUPPORTED", driver.StatusUnsupported.String())
}
