package device

import (
	"bytes"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protowire"
)

// The serialized graph is a protocol buffer message, written by hand:
//
//	Graph    { 1: version, 2: repeated Tensor, 3: repeated Operator, 4: inputs, 5: outputs }
//	Tensor   { 1: precision, 2: layout, 3: shape, 4: scales, 5: zero_points, 6: channel_dim, 7: buffer }
//	Operator { 1: type, 2: inputs, 3: outputs, 4: attr }
//
// Repeated scalars are packed. Only constant buffers are written: graph
// inputs are bound at execution time and operator outputs are allocated by
// kernels. A constant designated as a graph output keeps its buffer.
const graphFormatVersion = 1

const (
	graphVersionField  protowire.Number = 1
	graphTensorField   protowire.Number = 2
	graphOperatorField protowire.Number = 3
	graphInputsField   protowire.Number = 4
	graphOutputsField  protowire.Number = 5
	tensorPrecision    protowire.Number = 1
	tensorLayout       protowire.Number = 2
	tensorShape        protowire.Number = 3
	tensorScales       protowire.Number = 4
	tensorZeroPoints   protowire.Number = 5
	tensorChannelDim   protowire.Number = 6
	tensorBuffer       protowire.Number = 7
	operatorType       protowire.Number = 1
	operatorInputs     protowire.Number = 2
	operatorOutputs    protowire.Number = 3
	operatorAttr       protowire.Number = 4
	attrValues         protowire.Number = 1
	attrStrides        protowire.Number = 2
	attrDilations      protowire.Number = 3
	attrGroup          protowire.Number = 4
	attrFuse           protowire.Number = 5
)

// SerializeGraph appends the encoded graph to b. Encoding the same graph
// always produces the same bytes.
func SerializeGraph(b []byte, g *Graph) ([]byte, error) {
	bound := make(map[TensorID]bool)
	for _, id := range g.inputTensors {
		bound[id] = true
	}
	for id := range g.Producers() {
		bound[id] = true
	}

	b = appendVarintField(b, graphVersionField, graphFormatVersion)
	for _, tensor := range g.tensors {
		var m []byte
		m = appendVarintField(m, tensorPrecision, uint64(tensor.Attr.Precision))
		m = appendVarintField(m, tensorLayout, uint64(tensor.Attr.Layout))
		m = appendInt32sField(m, tensorShape, tensor.Attr.Shape)
		m = appendFloat32sField(m, tensorScales, tensor.Attr.QuantParams.Scales)
		m = appendInt32sField(m, tensorZeroPoints, tensor.Attr.QuantParams.ZeroPoints)
		m = appendVarintField(m, tensorChannelDim, protowire.EncodeZigZag(int64(tensor.Attr.QuantParams.ChannelDim)))
		if !bound[tensor.ID] && tensor.Buffer != nil {
			m = protowire.AppendTag(m, tensorBuffer, protowire.BytesType)
			m = protowire.AppendBytes(m, tensor.Data())
		}
		b = protowire.AppendTag(b, graphTensorField, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}

	for _, op := range g.operators {
		attr, err := marshalAttr(op)
		if err != nil {
			return nil, err
		}
		var m []byte
		m = appendVarintField(m, operatorType, uint64(op.Type))
		m = appendTensorIDsField(m, operatorInputs, op.Inputs)
		m = appendTensorIDsField(m, operatorOutputs, op.Outputs)
		m = protowire.AppendTag(m, operatorAttr, protowire.BytesType)
		m = protowire.AppendBytes(m, attr)
		b = protowire.AppendTag(b, graphOperatorField, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}

	b = appendTensorIDsField(b, graphInputsField, g.inputTensors)
	b = appendTensorIDsField(b, graphOutputsField, g.outputTensors)
	return b, nil
}

// DeserializeGraph rebuilds a graph written by SerializeGraph. Constant
// buffers are copied out of b.
func DeserializeGraph(b []byte) (*Graph, error) {
	g := NewGraph()
	var inputs, outputs []TensorID
	version := uint64(0)

	err := forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == graphVersionField && typ == protowire.VarintType:
			version = x
		case num == graphTensorField && typ == protowire.BytesType:
			return unmarshalTensor(g, v)
		case num == graphOperatorField && typ == protowire.BytesType:
			return unmarshalOperator(g, v)
		case num == graphInputsField && typ == protowire.BytesType:
			ids, err := decodeTensorIDs(v)
			if err != nil {
				return err
			}
			inputs = ids
		case num == graphOutputsField && typ == protowire.BytesType:
			ids, err := decodeTensorIDs(v)
			if err != nil {
				return err
			}
			outputs = ids
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if version != graphFormatVersion {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported serialized graph version %d", version)
	}
	if err := g.SetInputs(inputs); err != nil {
		return nil, err
	}
	if err := g.SetOutputs(outputs); err != nil {
		return nil, err
	}
	return g, nil
}

func unmarshalTensor(g *Graph, b []byte) error {
	var attr TensorAttr
	var buffer []byte
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		var err error
		switch num {
		case tensorPrecision:
			attr.Precision = PrecisionType(x)
		case tensorLayout:
			attr.Layout = DataLayoutType(x)
		case tensorShape:
			attr.Shape, err = decodeInt32s(v)
		case tensorScales:
			attr.QuantParams.Scales, err = decodeFloat32s(v)
		case tensorZeroPoints:
			attr.QuantParams.ZeroPoints, err = decodeInt32s(v)
		case tensorChannelDim:
			attr.QuantParams.ChannelDim = int32(protowire.DecodeZigZag(x))
		case tensorBuffer:
			buffer = bytes.Clone(v)
			if buffer == nil {
				buffer = []byte{}
			}
		}
		return err
	})
	if err != nil {
		return err
	}
	if !attr.Precision.valid() {
		return status.Errorf(codes.InvalidArgument, "serialized tensor %d has unknown precision %d", g.TensorCount(), attr.Precision)
	}
	g.AddTensor(attr, buffer)
	return nil
}

func unmarshalOperator(g *Graph, b []byte) error {
	var typ OperatorType
	var inputs, outputs []TensorID
	var attrBytes []byte
	err := forEachField(b, func(num protowire.Number, wt protowire.Type, v []byte, x uint64) error {
		var err error
		switch num {
		case operatorType:
			typ = OperatorType(x)
		case operatorInputs:
			inputs, err = decodeTensorIDs(v)
		case operatorOutputs:
			outputs, err = decodeTensorIDs(v)
		case operatorAttr:
			attrBytes = v
		}
		return err
	})
	if err != nil {
		return err
	}
	attr, err := unmarshalAttr(typ, attrBytes)
	if err != nil {
		return err
	}
	_, err = g.AddOperator(typ, inputs, outputs, attr)
	return err
}

func marshalAttr(op *Operator) ([]byte, error) {
	var m []byte
	switch attr := op.Attr.(type) {
	case nil:
	case *Conv2DAttr:
		m = appendInt32sField(m, attrValues, attr.Pads[:])
		m = appendInt32sField(m, attrStrides, attr.Strides[:])
		m = appendInt32sField(m, attrDilations, attr.Dilations[:])
		m = appendVarintField(m, attrGroup, protowire.EncodeZigZag(int64(attr.Group)))
		m = appendVarintField(m, attrFuse, uint64(attr.Fuse))
	case *FullyConnectedAttr:
		m = appendVarintField(m, attrFuse, uint64(attr.Fuse))
	case *ElementwiseAttr:
		m = appendVarintField(m, attrFuse, uint64(attr.Fuse))
	case *ActivationAttr:
		m = appendVarintField(m, attrFuse, uint64(attr.Fuse))
	case *ReshapeAttr:
		m = appendInt32sField(m, attrValues, attr.Shape)
	case *SoftmaxAttr:
		m = appendVarintField(m, attrValues, protowire.EncodeZigZag(int64(attr.Axis)))
	default:
		return nil, status.Errorf(codes.Unimplemented, "cannot serialize %T attributes of operator %d", attr, op.ID)
	}
	return m, nil
}

func unmarshalAttr(typ OperatorType, b []byte) (Attr, error) {
	attr := AttrFor(typ)
	if attr == nil {
		return nil, status.Errorf(codes.Unimplemented, "serialized graph contains unsupported operator type %v", typ)
	}
	err := forEachField(b, func(num protowire.Number, wt protowire.Type, v []byte, x uint64) error {
		var values []int32
		var err error
		if wt == protowire.BytesType {
			values, err = decodeInt32s(v)
			if err != nil {
				return err
			}
		}
		switch attr := attr.(type) {
		case *Conv2DAttr:
			switch num {
			case attrValues:
				copy(attr.Pads[:], values)
			case attrStrides:
				copy(attr.Strides[:], values)
			case attrDilations:
				copy(attr.Dilations[:], values)
			case attrGroup:
				attr.Group = int32(protowire.DecodeZigZag(x))
			case attrFuse:
				attr.Fuse = FuseType(x)
			}
		case *FullyConnectedAttr:
			if num == attrFuse {
				attr.Fuse = FuseType(x)
			}
		case *ElementwiseAttr:
			if num == attrFuse {
				attr.Fuse = FuseType(x)
			}
		case *ActivationAttr:
			if num == attrFuse {
				attr.Fuse = FuseType(x)
			}
		case *ReshapeAttr:
			if num == attrValues {
				attr.Shape = values
			}
		case *SoftmaxAttr:
			if num == attrValues {
				attr.Axis = int32(protowire.DecodeZigZag(x))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attr, nil
}

// forEachField walks the fields of one message. For varint fields x holds the
// value; for length-delimited fields v holds the payload.
func forEachField(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(protowire.ParseError(n))
		}
		b = b[n:]

		var v []byte
		var x uint64
		switch typ {
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return malformed(protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(num, typ, v, x); err != nil {
			return err
		}
	}
	return nil
}

func malformed(err error) error {
	return status.Errorf(codes.InvalidArgument, "malformed serialized graph: %v", err)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt32sField(b []byte, num protowire.Number, values []int32) []byte {
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendVarint(packed, protowire.EncodeZigZag(int64(v)))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func appendTensorIDsField(b []byte, num protowire.Number, ids []TensorID) []byte {
	var packed []byte
	for _, id := range ids {
		packed = protowire.AppendVarint(packed, uint64(id))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func appendFloat32sField(b []byte, num protowire.Number, values []float32) []byte {
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendFixed32(packed, math.Float32bits(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func decodeInt32s(b []byte) ([]int32, error) {
	var out []int32
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, malformed(protowire.ParseError(n))
		}
		out = append(out, int32(protowire.DecodeZigZag(v)))
		b = b[n:]
	}
	return out, nil
}

func decodeTensorIDs(b []byte) ([]TensorID, error) {
	var out []TensorID
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, malformed(protowire.ParseError(n))
		}
		out = append(out, TensorID(v))
		b = b[n:]
	}
	return out, nil
}

func decodeFloat32s(b []byte) ([]float32, error) {
	var out []float32
	for len(b) > 0 {
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return nil, malformed(protowire.ParseError(n))
		}
		out = append(out, math.Float32frombits(v))
		b = b[n:]
	}
	return out, nil
}
