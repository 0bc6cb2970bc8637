package core

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a stable hash of the model structure and constant data,
// suitable as a program cache token.
func Fingerprint(model *Model) string {
	d := xxhash.New()

	var scratch []byte
	writeInt := func(v int64) {
		scratch = binary.AppendVarint(scratch[:0], v)
		d.Write(scratch)
	}
	writeBytes := func(b []byte) {
		writeInt(int64(len(b)))
		d.Write(b)
	}

	index := make(map[*Operand]int, len(model.Operands))
	writeInt(int64(len(model.Operands)))
	for i, operand := range model.Operands {
		index[operand] = i
		typ := &operand.Type
		writeInt(int64(typ.Precision))
		writeInt(int64(typ.Layout))
		writeInt(int64(typ.Lifetime))
		dims := typ.Dimensions.Values()
		writeInt(int64(len(dims)))
		for _, dim := range dims {
			writeInt(int64(dim))
		}
		switch typ.Precision {
		case QuantInt8SymmPerLayer, QuantInt16SymmPerLayer, QuantInt32SymmPerLayer:
			writeInt(int64(math.Float32bits(typ.SymmPerLayerParams.Scale)))
		case QuantInt8SymmPerChannel, QuantInt16SymmPerChannel, QuantInt32SymmPerChannel:
			writeInt(int64(typ.SymmPerChannelParams.ChannelDim))
			writeInt(int64(len(typ.SymmPerChannelParams.Scales)))
			for _, scale := range typ.SymmPerChannelParams.Scales {
				writeInt(int64(math.Float32bits(scale)))
			}
		case QuantUint8AsymmPerLayer, QuantUint16AsymmPerLayer:
			writeInt(int64(math.Float32bits(typ.AsymmPerLayerParams.Scale)))
			writeInt(int64(typ.AsymmPerLayerParams.ZeroPoint))
		}
		if operand.IsConstant() {
			writeBytes(operand.Buffer)
		}
	}

	writeOperands := func(operands []*Operand) {
		writeInt(int64(len(operands)))
		for _, operand := range operands {
			i, ok := index[operand]
			if !ok {
				i = -1
			}
			writeInt(int64(i))
		}
	}

	writeInt(int64(len(model.Operations)))
	for _, operation := range model.Operations {
		writeInt(int64(operation.Type))
		writeOperands(operation.Inputs)
		writeOperands(operation.Outputs)
	}
	writeOperands(model.InputOperands)
	writeOperands(model.OutputOperands)

	return fmt.Sprintf("%016x", d.Sum64())
}
