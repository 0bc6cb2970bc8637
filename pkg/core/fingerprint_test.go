package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fingerprintModel(weights []float32) *Model {
	m := &Model{}
	x := m.AddInputOperand(NewTensorType(Float32, 1, 2))
	w := m.AddFloat32ConstantOperand(weights, 2, 2)
	y := m.AddOperand(NewTensorType(Float32, 1, 2))
	m.AddOperation(OperationFullyConnected, []*Operand{x, w}, []*Operand{y})
	m.MarkOutputs(y)
	return m
}

func TestFingerprint(t *testing.T) {
	base := Fingerprint(fingerprintModel([]float32{1, 2, 3, 4}))
	require.Len(t, base, 16)
	require.Equal(t, base, Fingerprint(fingerprintModel([]float32{1, 2, 3, 4})))

	// Constant data is part of the fingerprint.
	require.NotEqual(t, base, Fingerprint(fingerprintModel([]float32{1, 2, 3, 5})))

	m := fingerprintModel([]float32{1, 2, 3, 4})
	m.Operations[0].Type = OperationAdd
	require.NotEqual(t, base, Fingerprint(m))

	m = fingerprintModel([]float32{1, 2, 3, 4})
	m.InputOperands[0].Type.Dimensions = NewDimensions(2, 2)
	require.NotEqual(t, base, Fingerprint(m))

	m = fingerprintModel([]float32{1, 2, 3, 4})
	m.Operands[1].Type.Precision = QuantInt8SymmPerLayer
	quantized := Fingerprint(m)
	m.Operands[1].Type.SymmPerLayerParams.Scale = 0.5
	require.NotEqual(t, quantized, Fingerprint(m))
}
