package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const denseModelYAML = `
operands:
- name: x
  precision: FLOAT32
  dimensions: [1, 2]
- name: w
  precision: FLOAT32
  dimensions: [3, 2]
  float32Values: [1, 0, 0, 1, -1, -1]
- name: b
  precision: float32
  dimensions: [3]
  dataFile: bias.bin
- name: fuse
  precision: INT32
  int32Values: [1]
- name: q
  precision: QUANT_INT8_SYMM_PER_CHANNEL
  dimensions: [2, 1]
  scales: [0.5, 0.25]
  channelDim: 0
  int32Values: [0]
- name: y
  precision: FLOAT32
  dimensions: [1, 3]
operations:
- type: FULLY_CONNECTED
  inputs: [x, w, b, fuse]
  outputs: [y]
inputs: [x]
outputs: [y]
`

func writeModel(t *testing.T, yaml string, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}
	p := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(p, []byte(yaml), 0644))
	return p
}

func TestLoadModelFile(t *testing.T) {
	p := writeModel(t, denseModelYAML, map[string][]byte{
		"bias.bin": EncodeFloat32s([]float32{0, 0, 1}),
	})
	model, err := LoadModelFile(p)
	require.NoError(t, err)

	require.Len(t, model.Operands, 6)
	require.Len(t, model.Operations, 1)
	op := model.Operations[0]
	require.Equal(t, OperationFullyConnected, op.Type)
	require.Equal(t, []string{"x", "w", "b", "fuse"}, []string{op.Inputs[0].Name, op.Inputs[1].Name, op.Inputs[2].Name, op.Inputs[3].Name})

	x, w, b, fuse, q, y := model.Operands[0], model.Operands[1], model.Operands[2], model.Operands[3], model.Operands[4], model.Operands[5]
	require.Equal(t, []*Operand{x}, model.InputOperands)
	require.Equal(t, []*Operand{y}, model.OutputOperands)
	require.Equal(t, ModelInput, x.Type.Lifetime)
	require.Equal(t, ModelOutput, y.Type.Lifetime)
	require.Equal(t, ConstantReference, w.Type.Lifetime)
	require.Equal(t, []int32{1, 2}, x.Type.Dimensions.Values())

	require.Equal(t, []float32{1, 0, 0, 1, -1, -1}, DecodeFloat32s(w.Buffer))
	require.Equal(t, []float32{0, 0, 1}, DecodeFloat32s(b.Buffer))
	v, err := Int32Value(fuse)
	require.NoError(t, err)
	require.Equal(t, int32(FusedRelu), v)

	require.Equal(t, QuantInt8SymmPerChannel, q.Type.Precision)
	require.Equal(t, SymmPerChannelParams{Scales: []float32{0.5, 0.25}, ChannelDim: 0}, q.Type.SymmPerChannelParams)
}

func TestLoadModelFileErrors(t *testing.T) {
	grid := []struct {
		name string
		edit func(string) string
		want string
	}{
		{
			name: "unknown field",
			edit: func(s string) string { return s + "extra: 1\n" },
			want: "parsing model file",
		},
		{
			name: "unknown operand",
			edit: func(s string) string { return strings.Replace(s, "inputs: [x, w, b, fuse]", "inputs: [x, w, missing]", 1) },
			want: `operand "missing" not found`,
		},
		{
			name: "unknown operation",
			edit: func(s string) string { return strings.Replace(s, "type: FULLY_CONNECTED", "type: LSTM", 1) },
			want: "unknown operation",
		},
		{
			name: "unknown precision",
			edit: func(s string) string { return strings.Replace(s, "precision: INT32", "precision: INT3", 1) },
			want: "unknown precision",
		},
		{
			name: "duplicate operand",
			edit: func(s string) string { return strings.Replace(s, "name: q", "name: w", 1) },
			want: "declared more than once",
		},
		{
			name: "two data sources",
			edit: func(s string) string { return strings.Replace(s, "dataFile: bias.bin", "dataFile: bias.bin\n  float32Values: [0, 0, 1]", 1) },
			want: "at most one of",
		},
		{
			name: "missing data file",
			edit: func(s string) string { return strings.Replace(s, "bias.bin", "nothere.bin", 1) },
			want: "reading data file",
		},
	}
	for _, g := range grid {
		t.Run(g.name, func(t *testing.T) {
			p := writeModel(t, g.edit(denseModelYAML), map[string][]byte{
				"bias.bin": EncodeFloat32s([]float32{0, 0, 1}),
			})
			_, err := LoadModelFile(p)
			require.ErrorContains(t, err, g.want)
		})
	}

	_, err := LoadModelFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
