package kernels

import (
	"fmt"

	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

// Conv2D computes a grouped, dilated 2-D convolution over NCHW tensors.
// Inputs are input [N, C, H, W], filter [Cout, C/group, KH, KW] and an
// optional bias [Cout].
func Conv2D(inputs []*device.Tensor, outputs []*device.Tensor, a device.Attr) error {
	attr, ok := a.(*device.Conv2DAttr)
	if !ok {
		return fmt.Errorf("expected conv2d attributes, got %T", a)
	}
	if len(inputs) < 2 || len(inputs) > 3 || len(outputs) != 1 {
		return fmt.Errorf("expected 2 or 3 inputs and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	input, filter, output := inputs[0], inputs[1], outputs[0]
	if input.Attr.Layout != device.NCHW {
		return fmt.Errorf("unsupported input layout %v", input.Attr.Layout)
	}
	if input.Rank() != 4 || filter.Rank() != 4 {
		return fmt.Errorf("expected rank 4 input and filter, got %v and %v", input.Attr.Shape, filter.Attr.Shape)
	}

	batch, channels, height, width := int(input.Attr.Shape[0]), int(input.Attr.Shape[1]), int(input.Attr.Shape[2]), int(input.Attr.Shape[3])
	outChannels, filterChannels, kernelH, kernelW := int(filter.Attr.Shape[0]), int(filter.Attr.Shape[1]), int(filter.Attr.Shape[2]), int(filter.Attr.Shape[3])

	group := int(orOne(attr.Group))
	strideH, strideW := int(orOne(attr.Strides[0])), int(orOne(attr.Strides[1]))
	dilationH, dilationW := int(orOne(attr.Dilations[0])), int(orOne(attr.Dilations[1]))
	padTop, padBottom, padLeft, padRight := int(attr.Pads[0]), int(attr.Pads[1]), int(attr.Pads[2]), int(attr.Pads[3])

	if channels%group != 0 || outChannels%group != 0 {
		return fmt.Errorf("channels %d and output channels %d must be divisible by group %d", channels, outChannels, group)
	}
	if filterChannels != channels/group {
		return fmt.Errorf("filter has %d input channels, expected %d", filterChannels, channels/group)
	}

	outH := (height+padTop+padBottom-(dilationH*(kernelH-1)+1))/strideH + 1
	outW := (width+padLeft+padRight-(dilationW*(kernelW-1)+1))/strideW + 1
	if outH <= 0 || outW <= 0 {
		return fmt.Errorf("input %v is too small for filter %v", input.Attr.Shape, filter.Attr.Shape)
	}

	x, err := decode(input)
	if err != nil {
		return err
	}
	w, err := decode(filter)
	if err != nil {
		return err
	}
	var bias []float32
	if len(inputs) == 3 && inputs[2] != nil {
		bias, err = decode(inputs[2])
		if err != nil {
			return err
		}
		if len(bias) != outChannels {
			return fmt.Errorf("bias has %d values, expected %d", len(bias), outChannels)
		}
	}

	y := make([]float32, batch*outChannels*outH*outW)
	outPerGroup := outChannels / group
	for n := 0; n < batch; n++ {
		for oc := 0; oc < outChannels; oc++ {
			g := oc / outPerGroup
			b := float32(0)
			if bias != nil {
				b = bias[oc]
			}
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					sum := b
					for ic := 0; ic < filterChannels; ic++ {
						c := g*filterChannels + ic
						for kh := 0; kh < kernelH; kh++ {
							ih := oh*strideH - padTop + kh*dilationH
							if ih < 0 || ih >= height {
								continue
							}
							for kw := 0; kw < kernelW; kw++ {
								iw := ow*strideW - padLeft + kw*dilationW
								if iw < 0 || iw >= width {
									continue
								}
								sum += x[((n*channels+c)*height+ih)*width+iw] * w[((oc*filterChannels+ic)*kernelH+kh)*kernelW+kw]
							}
						}
					}
					y[((n*outChannels+oc)*outH+oh)*outW+ow] = sum
				}
			}
		}
	}

	if err := applyFuse(y, attr.Fuse); err != nil {
		return err
	}
	return store(output, []int32{int32(batch), int32(outChannels), int32(outH), int32(outW)}, y)
}

func orOne(v int32) int32 {
	if v <= 0 {
		return 1
	}
	return v
}
