package converter

import (
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

// TensorMap records every device tensor an operand has been lowered to. The
// most recent entry wins; history is never discarded.
type TensorMap struct {
	tensors map[*core.Operand][]device.TensorID
}

func NewTensorMap() *TensorMap {
	return &TensorMap{tensors: make(map[*core.Operand][]device.TensorID)}
}

// Resolve returns the latest tensor recorded for operand.
func (m *TensorMap) Resolve(operand *core.Operand) (device.TensorID, bool) {
	history := m.tensors[operand]
	if len(history) == 0 {
		return -1, false
	}
	return history[len(history)-1], true
}

// Record appends id to the history of operand and returns it.
func (m *TensorMap) Record(operand *core.Operand, id device.TensorID) device.TensorID {
	if m.tensors == nil {
		m.tensors = make(map[*core.Operand][]device.TensorID)
	}
	m.tensors[operand] = append(m.tensors[operand], id)
	return id
}

// History returns every tensor recorded for operand, oldest first.
func (m *TensorMap) History(operand *core.Operand) []device.TensorID {
	return append([]device.TensorID(nil), m.tensors[operand]...)
}

func (m *TensorMap) Len() int {
	return len(m.tensors)
}
