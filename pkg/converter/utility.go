package converter

import (
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

var devicePrecisions = map[core.PrecisionCode]device.PrecisionType{
	core.Bool8:                    device.Bool8,
	core.Int8:                     device.Int8,
	core.Int16:                    device.Int16,
	core.Int32:                    device.Int32,
	core.Int64:                    device.Int64,
	core.Uint8:                    device.Uint8,
	core.Uint16:                   device.Uint16,
	core.Uint32:                   device.Uint32,
	core.Uint64:                   device.Uint64,
	core.Float16:                  device.Float16,
	core.Float32:                  device.Float32,
	core.Float64:                  device.Float64,
	core.QuantInt8SymmPerLayer:    device.QuantInt8SymmPerLayer,
	core.QuantInt8SymmPerChannel:  device.QuantInt8SymmPerChannel,
	core.QuantInt32SymmPerLayer:   device.QuantInt32SymmPerLayer,
	core.QuantInt32SymmPerChannel: device.QuantInt32SymmPerChannel,
	core.QuantUint8AsymmPerLayer:  device.QuantUint8AsymmPerLayer,
}

func ConvertToDevicePrecisionType(precision core.PrecisionCode) (device.PrecisionType, error) {
	if p, found := devicePrecisions[precision]; found {
		return p, nil
	}
	return 0, status.Errorf(codes.Unimplemented, "unsupported operand precision %v", precision)
}

func ConvertToDeviceDataLayoutType(layout core.LayoutCode) (device.DataLayoutType, error) {
	switch layout {
	case core.LayoutNCHW:
		return device.NCHW, nil
	case core.LayoutNHWC:
		return device.NHWC, nil
	default:
		return 0, status.Errorf(codes.Unimplemented, "unsupported operand layout %v", layout)
	}
}

// ConvertToDeviceDimensions returns a copy of the first count entries of data.
func ConvertToDeviceDimensions(data []int32, count uint32) ([]int32, error) {
	if uint64(count) > math.MaxInt32 || int(count) > len(data) {
		return nil, status.Errorf(codes.InvalidArgument, "dimension count %d exceeds the %d dimensions given", count, len(data))
	}
	dims := make([]int32, count)
	copy(dims, data)
	return dims, nil
}

// ExtractQuantParams returns the device quantization parameters for typ.
// Scales and zero points are nil for non-quantized precisions and channelDim
// is -1 unless the precision is per-channel.
func ExtractQuantParams(typ core.OperandType) (scales []float32, zeroPoints []int32, channelDim int32, err error) {
	switch typ.Precision {
	case core.QuantInt8SymmPerLayer, core.QuantInt32SymmPerLayer:
		return []float32{typ.SymmPerLayerParams.Scale}, nil, -1, nil

	case core.QuantInt8SymmPerChannel, core.QuantInt32SymmPerChannel:
		params := typ.SymmPerChannelParams
		if len(params.Scales) == 0 {
			return nil, nil, -1, status.Errorf(codes.InvalidArgument, "%v operand has no scales", typ.Precision)
		}
		dims := typ.Dimensions.Values()
		if int(params.ChannelDim) >= len(dims) {
			return nil, nil, -1, status.Errorf(codes.InvalidArgument, "channel dimension %d out of range for rank %d", params.ChannelDim, len(dims))
		}
		if channels := dims[params.ChannelDim]; channels > 0 && int(channels) != len(params.Scales) {
			return nil, nil, -1, status.Errorf(codes.InvalidArgument, "%d scales given for %d channels", len(params.Scales), channels)
		}
		return append([]float32(nil), params.Scales...), nil, int32(params.ChannelDim), nil

	case core.QuantUint8AsymmPerLayer:
		params := typ.AsymmPerLayerParams
		return []float32{params.Scale}, []int32{params.ZeroPoint}, -1, nil

	default:
		if typ.Precision.IsQuantized() {
			return nil, nil, -1, status.Errorf(codes.Unimplemented, "unsupported quantized precision %v", typ.Precision)
		}
		return nil, nil, -1, nil
	}
}

func ConvertFuseCodeToDeviceFuseType(fuse core.FuseCode) (device.FuseType, error) {
	switch fuse {
	case core.FusedNone:
		return device.FuseNone, nil
	case core.FusedRelu:
		return device.FuseRelu, nil
	case core.FusedRelu1:
		return device.FuseRelu1, nil
	case core.FusedRelu6:
		return device.FuseRelu6, nil
	default:
		return 0, status.Errorf(codes.Unimplemented, "unsupported fuse code %v", fuse)
	}
}
