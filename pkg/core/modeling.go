package core

import (
	"encoding/binary"
	"fmt"
	"math"
)

// NewTensorType returns a non-quantized NCHW type.
func NewTensorType(precision PrecisionCode, dims ...int32) OperandType {
	return OperandType{
		Precision:  precision,
		Layout:     LayoutNCHW,
		Dimensions: NewDimensions(dims...),
	}
}

func (m *Model) AddOperand(typ OperandType) *Operand {
	operand := &Operand{Type: typ}
	m.Operands = append(m.Operands, operand)
	return operand
}

// AddInputOperand adds an operand that is bound by the caller at execution time.
func (m *Model) AddInputOperand(typ OperandType) *Operand {
	typ.Lifetime = ModelInput
	operand := m.AddOperand(typ)
	m.InputOperands = append(m.InputOperands, operand)
	return operand
}

// AddConstantOperand adds an operand backed by buffer. The buffer is
// referenced, not copied.
func (m *Model) AddConstantOperand(typ OperandType, buffer []byte) *Operand {
	typ.Lifetime = ConstantReference
	operand := m.AddOperand(typ)
	operand.Buffer = buffer
	return operand
}

func (m *Model) AddInt32ConstantOperand(value int32) *Operand {
	return m.AddConstantOperand(NewTensorType(Int32), EncodeInt32s([]int32{value}))
}

func (m *Model) AddInt32ArrayConstantOperand(values []int32) *Operand {
	return m.AddConstantOperand(NewTensorType(Int32, int32(len(values))), EncodeInt32s(values))
}

func (m *Model) AddFloat32ConstantOperand(values []float32, dims ...int32) *Operand {
	return m.AddConstantOperand(NewTensorType(Float32, dims...), EncodeFloat32s(values))
}

func (m *Model) AddOperation(typ OperationType, inputs []*Operand, outputs []*Operand) *Operation {
	operation := &Operation{
		Type:    typ,
		Inputs:  inputs,
		Outputs: outputs,
	}
	m.Operations = append(m.Operations, operation)
	return operation
}

// MarkOutputs declares the model outputs, in order.
func (m *Model) MarkOutputs(operands ...*Operand) {
	for _, operand := range operands {
		operand.Type.Lifetime = ModelOutput
	}
	m.OutputOperands = append(m.OutputOperands, operands...)
}

// Producers maps every operand to the operation that writes it.
func (m *Model) Producers() map[*Operand]*Operation {
	producers := make(map[*Operand]*Operation)
	for _, operation := range m.Operations {
		for _, output := range operation.Outputs {
			producers[output] = operation
		}
	}
	return producers
}

func EncodeInt32s(values []int32) []byte {
	b := make([]byte, 0, 4*len(values))
	for _, v := range values {
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	return b
}

func EncodeFloat32s(values []float32) []byte {
	b := make([]byte, 0, 4*len(values))
	for _, v := range values {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

func DecodeFloat32s(b []byte) []float32 {
	values := make([]float32, len(b)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return values
}

// Int32Values reads a constant INT32 operand.
func Int32Values(operand *Operand) ([]int32, error) {
	if operand == nil {
		return nil, fmt.Errorf("operand is nil")
	}
	if operand.Type.Precision != Int32 {
		return nil, fmt.Errorf("operand %v has precision %v, expected %v", operand, operand.Type.Precision, Int32)
	}
	if operand.Buffer == nil {
		return nil, fmt.Errorf("operand %v has no constant data", operand)
	}
	if len(operand.Buffer)%4 != 0 {
		return nil, fmt.Errorf("operand %v has %d bytes, not a multiple of 4", operand, len(operand.Buffer))
	}
	values := make([]int32, len(operand.Buffer)/4)
	for i := range values {
		values[i] = int32(binary.LittleEndian.Uint32(operand.Buffer[4*i:]))
	}
	return values, nil
}

// Int32Value reads a constant scalar INT32 operand.
func Int32Value(operand *Operand) (int32, error) {
	values, err := Int32Values(operand)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("operand %v has %d values, expected 1", operand, len(values))
	}
	return values[0], nil
}
