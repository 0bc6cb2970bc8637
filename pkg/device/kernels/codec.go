package kernels

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
)

// Kernels compute in float32. decode and encode translate between a tensor's
// stored precision (including quantized forms) and float32 values.

func decode(t *device.Tensor) ([]float32, error) {
	n := device.Volume(t.Attr.Shape)
	size := t.Attr.Precision.ElementSize()
	if size == 0 {
		return nil, fmt.Errorf("tensor %d has unsupported precision %v", t.ID, t.Attr.Precision)
	}
	b := t.Buffer
	if len(b) < n*size {
		return nil, fmt.Errorf("tensor %d buffer has %d bytes, shape %v needs %d", t.ID, len(b), t.Attr.Shape, n*size)
	}
	scale, err := scaleFunc(t)
	if err != nil {
		return nil, err
	}

	values := make([]float32, n)
	le := binary.LittleEndian
	for i := range values {
		switch t.Attr.Precision {
		case device.Bool8:
			if b[i] != 0 {
				values[i] = 1
			}
		case device.Int8:
			values[i] = float32(int8(b[i]))
		case device.Uint8:
			values[i] = float32(b[i])
		case device.Int16:
			values[i] = float32(int16(le.Uint16(b[2*i:])))
		case device.Uint16:
			values[i] = float32(le.Uint16(b[2*i:]))
		case device.Int32:
			values[i] = float32(int32(le.Uint32(b[4*i:])))
		case device.Uint32:
			values[i] = float32(le.Uint32(b[4*i:]))
		case device.Int64:
			values[i] = float32(int64(le.Uint64(b[8*i:])))
		case device.Uint64:
			values[i] = float32(le.Uint64(b[8*i:]))
		case device.Float16:
			values[i] = float16.Frombits(le.Uint16(b[2*i:])).Float32()
		case device.Float32:
			values[i] = math.Float32frombits(le.Uint32(b[4*i:]))
		case device.Float64:
			values[i] = float32(math.Float64frombits(le.Uint64(b[8*i:])))
		case device.QuantInt8SymmPerLayer, device.QuantInt8SymmPerChannel:
			s, _ := scale(i)
			values[i] = float32(int8(b[i])) * s
		case device.QuantInt32SymmPerLayer, device.QuantInt32SymmPerChannel:
			s, _ := scale(i)
			values[i] = float32(int32(le.Uint32(b[4*i:]))) * s
		case device.QuantUint8AsymmPerLayer:
			s, zp := scale(i)
			values[i] = float32(int32(b[i])-zp) * s
		}
	}
	return values, nil
}

// encode writes values into t, which must already be sized for them.
func encode(t *device.Tensor, values []float32) error {
	size := t.Attr.Precision.ElementSize()
	if size == 0 {
		return fmt.Errorf("tensor %d has unsupported precision %v", t.ID, t.Attr.Precision)
	}
	b := t.Buffer
	if len(b) < len(values)*size {
		return fmt.Errorf("tensor %d buffer has %d bytes, need %d", t.ID, len(b), len(values)*size)
	}
	scale, err := scaleFunc(t)
	if err != nil {
		return err
	}

	le := binary.LittleEndian
	for i, v := range values {
		switch t.Attr.Precision {
		case device.Bool8:
			b[i] = 0
			if v != 0 {
				b[i] = 1
			}
		case device.Int8:
			b[i] = byte(int8(clampRound(v, math.MinInt8, math.MaxInt8)))
		case device.Uint8:
			b[i] = byte(clampRound(v, 0, math.MaxUint8))
		case device.Int16:
			le.PutUint16(b[2*i:], uint16(int16(clampRound(v, math.MinInt16, math.MaxInt16))))
		case device.Uint16:
			le.PutUint16(b[2*i:], uint16(clampRound(v, 0, math.MaxUint16)))
		case device.Int32:
			le.PutUint32(b[4*i:], uint32(int32(clampRound(v, math.MinInt32, math.MaxInt32))))
		case device.Uint32:
			le.PutUint32(b[4*i:], uint32(clampRound(v, 0, math.MaxUint32)))
		case device.Int64:
			le.PutUint64(b[8*i:], uint64(int64(math.Round(float64(v)))))
		case device.Uint64:
			le.PutUint64(b[8*i:], uint64(math.Max(0, math.Round(float64(v)))))
		case device.Float16:
			le.PutUint16(b[2*i:], float16.Fromfloat32(v).Bits())
		case device.Float32:
			le.PutUint32(b[4*i:], math.Float32bits(v))
		case device.Float64:
			le.PutUint64(b[8*i:], math.Float64bits(float64(v)))
		case device.QuantInt8SymmPerLayer, device.QuantInt8SymmPerChannel:
			s, _ := scale(i)
			b[i] = byte(int8(clampRound(v/s, math.MinInt8, math.MaxInt8)))
		case device.QuantInt32SymmPerLayer, device.QuantInt32SymmPerChannel:
			s, _ := scale(i)
			le.PutUint32(b[4*i:], uint32(int32(clampRound(v/s, math.MinInt32, math.MaxInt32))))
		case device.QuantUint8AsymmPerLayer:
			s, zp := scale(i)
			b[i] = byte(clampRound(v/s+float32(zp), 0, math.MaxUint8))
		}
	}
	return nil
}

// clampRound rounds half away from zero and saturates to [lo, hi].
func clampRound(v float32, lo, hi float64) float64 {
	r := math.Round(float64(v))
	if math.IsNaN(r) {
		return 0
	}
	return math.Max(lo, math.Min(hi, r))
}

// scaleFunc returns the scale and zero point that apply to element i.
func scaleFunc(t *device.Tensor) (func(i int) (float32, int32), error) {
	q := &t.Attr.QuantParams
	switch t.Attr.Precision {
	case device.QuantInt8SymmPerLayer, device.QuantInt32SymmPerLayer, device.QuantUint8AsymmPerLayer:
		if len(q.Scales) != 1 {
			return nil, fmt.Errorf("tensor %d is %v but has %d scales", t.ID, t.Attr.Precision, len(q.Scales))
		}
		s := q.Scales[0]
		zp := int32(0)
		if len(q.ZeroPoints) > 0 {
			zp = q.ZeroPoints[0]
		}
		return func(int) (float32, int32) { return s, zp }, nil

	case device.QuantInt8SymmPerChannel, device.QuantInt32SymmPerChannel:
		shape := t.Attr.Shape
		axis := int(q.ChannelDim)
		if axis < 0 || axis >= len(shape) {
			return nil, fmt.Errorf("tensor %d has channel dimension %d, rank %d", t.ID, axis, len(shape))
		}
		channels := int(shape[axis])
		if len(q.Scales) != channels {
			return nil, fmt.Errorf("tensor %d has %d scales for %d channels", t.ID, len(q.Scales), channels)
		}
		inner := device.Volume(shape[axis+1:])
		return func(i int) (float32, int32) {
			return q.Scales[(i/inner)%channels], 0
		}, nil

	default:
		return func(int) (float32, int32) { return 1, 0 }, nil
	}
}

func applyFuse(values []float32, fuse device.FuseType) error {
	var lo, hi float32
	switch fuse {
	case device.FuseNone:
		return nil
	case device.FuseRelu:
		lo, hi = 0, float32(math.Inf(1))
	case device.FuseRelu1:
		lo, hi = -1, 1
	case device.FuseRelu6:
		lo, hi = 0, 6
	default:
		return fmt.Errorf("unsupported fuse type %v", fuse)
	}
	for i, v := range values {
		if v < lo {
			values[i] = lo
		} else if v > hi {
			values[i] = hi
		}
	}
	return nil
}

// store sizes out for shape and writes values into it.
func store(out *device.Tensor, shape []int32, values []float32) error {
	out.Resize(shape)
	return encode(out, values)
}
