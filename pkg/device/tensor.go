package device

// QuantParams holds quantization metadata. Scales is empty for
// non-quantized tensors; ZeroPoints is either empty or as long as Scales.
// ChannelDim is -1 unless the tensor is quantized per channel.
type QuantParams struct {
	Scales     []float32
	ZeroPoints []int32
	ChannelDim int32
}

type TensorAttr struct {
	Precision   PrecisionType
	Layout      DataLayoutType
	Shape       []int32
	QuantParams QuantParams
}

// TensorID indexes a tensor within its graph.
type TensorID int32

// Tensor is a value in the device graph. Buffer is either constant data shared
// with the model, a caller buffer bound by SetInputs, or storage allocated by
// a kernel for its outputs.
type Tensor struct {
	ID     TensorID
	Attr   TensorAttr
	Buffer []byte
	Length int
}

// Volume is the number of elements in shape, or 0 if any dimension is not
// known yet (negative).
func Volume(shape []int32) int {
	volume := 1
	for _, dim := range shape {
		if dim < 0 {
			return 0
		}
		volume *= int(dim)
	}
	return volume
}

// BufferLength is the number of bytes a tensor with attr occupies.
func BufferLength(attr *TensorAttr) int {
	return Volume(attr.Shape) * attr.Precision.ElementSize()
}

// Resize sets the tensor shape and makes sure the buffer can hold it,
// reallocating only when the current buffer is too small. The buffer is
// never nil afterwards, even for an empty shape.
func (t *Tensor) Resize(shape []int32) {
	t.Attr.Shape = append(t.Attr.Shape[:0:0], shape...)
	t.Length = BufferLength(&t.Attr)
	if t.Buffer == nil || cap(t.Buffer) < t.Length {
		t.Buffer = make([]byte, t.Length)
	} else {
		t.Buffer = t.Buffer[:t.Length]
	}
}

// Data returns the valid portion of the buffer.
func (t *Tensor) Data() []byte {
	if len(t.Buffer) < t.Length {
		return t.Buffer
	}
	return t.Buffer[:t.Length]
}

func (t *Tensor) Rank() int {
	return len(t.Attr.Shape)
}
