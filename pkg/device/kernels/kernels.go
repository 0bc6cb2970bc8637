// Package kernels holds the reference CPU kernels for the lyf device
// operators.
package kernels

import "k8s.io/examples/AI/lyfnpu/pkg/device"

// Default returns a kernel table covering every operator type the converter
// emits.
func Default() device.KernelTable {
	return device.KernelTable{
		device.OperatorConv2D:         Conv2D,
		device.OperatorFullyConnected: FullyConnected,
		device.OperatorAdd:            Elementwise,
		device.OperatorMul:            Elementwise,
		device.OperatorActivation:     Activation,
		device.OperatorReshape:        Reshape,
		device.OperatorSoftmax:        Softmax,
	}
}
