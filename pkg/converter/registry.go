package converter

import "k8s.io/examples/AI/lyfnpu/pkg/core"

// Entry lowers one kind of operation.
type Entry struct {
	// Validate reports whether the operation can be lowered.
	Validate func(operation *core.Operation) bool
	// Convert adds the device tensors and operators for the operation.
	Convert func(c *Converter, operation *core.Operation) error
}

// Registry maps operation kinds to their lowering. Operations whose kind is
// missing are rejected.
type Registry map[core.OperationType]Entry

// Supports reports whether operation has an entry and passes its validation.
func (r Registry) Supports(operation *core.Operation) bool {
	entry, found := r[operation.Type]
	if !found || entry.Convert == nil {
		return false
	}
	return entry.Validate == nil || entry.Validate(operation)
}
