package core

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// ModelFile is the on-disk description of a model, as read by LoadModelFile.
type ModelFile struct {
	Operands   []OperandSpec   `json:"operands"`
	Operations []OperationSpec `json:"operations"`
	Inputs     []string        `json:"inputs"`
	Outputs    []string        `json:"outputs"`
}

type OperandSpec struct {
	Name       string  `json:"name"`
	Precision  string  `json:"precision"`
	Layout     string  `json:"layout,omitempty"`
	Dimensions []int32 `json:"dimensions,omitempty"`

	// Quantization parameters, interpreted according to Precision.
	Scale      float32   `json:"scale,omitempty"`
	ZeroPoint  int32     `json:"zeroPoint,omitempty"`
	Scales     []float32 `json:"scales,omitempty"`
	ChannelDim uint32    `json:"channelDim,omitempty"`

	// Constant data. At most one of these may be set.
	Float32Values []float32 `json:"float32Values,omitempty"`
	Int32Values   []int32   `json:"int32Values,omitempty"`
	DataFile      string    `json:"dataFile,omitempty"`
}

type OperationSpec struct {
	Type    string   `json:"type"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// LoadModelFile reads a YAML (or JSON) model description. Relative data file
// paths are resolved against the directory holding the model file.
func LoadModelFile(p string) (*Model, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading model file %q: %w", p, err)
	}
	var f ModelFile
	if err := yaml.UnmarshalStrict(b, &f); err != nil {
		return nil, fmt.Errorf("parsing model file %q: %w", p, err)
	}
	model, err := f.Build(filepath.Dir(p))
	if err != nil {
		return nil, fmt.Errorf("building model from %q: %w", p, err)
	}
	return model, nil
}

// Build constructs the model described by f.
func (f *ModelFile) Build(baseDir string) (*Model, error) {
	model := &Model{}
	operands := make(map[string]*Operand, len(f.Operands))

	for _, spec := range f.Operands {
		if spec.Name == "" {
			return nil, fmt.Errorf("operand without a name")
		}
		if _, found := operands[spec.Name]; found {
			return nil, fmt.Errorf("operand %q declared more than once", spec.Name)
		}
		typ, err := spec.operandType()
		if err != nil {
			return nil, fmt.Errorf("operand %q: %w", spec.Name, err)
		}
		buffer, err := spec.constantData(baseDir)
		if err != nil {
			return nil, fmt.Errorf("operand %q: %w", spec.Name, err)
		}

		var operand *Operand
		if buffer != nil {
			operand = model.AddConstantOperand(typ, buffer)
		} else {
			operand = model.AddOperand(typ)
		}
		operand.Name = spec.Name
		operands[spec.Name] = operand
	}

	lookup := func(names []string) ([]*Operand, error) {
		out := make([]*Operand, len(names))
		for i, name := range names {
			operand, found := operands[name]
			if !found {
				return nil, fmt.Errorf("operand %q not found", name)
			}
			out[i] = operand
		}
		return out, nil
	}

	for i, spec := range f.Operations {
		typ, err := ParseOperationType(spec.Type)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		inputs, err := lookup(spec.Inputs)
		if err != nil {
			return nil, fmt.Errorf("operation %d (%v) inputs: %w", i, typ, err)
		}
		outputs, err := lookup(spec.Outputs)
		if err != nil {
			return nil, fmt.Errorf("operation %d (%v) outputs: %w", i, typ, err)
		}
		model.AddOperation(typ, inputs, outputs)
	}

	inputs, err := lookup(f.Inputs)
	if err != nil {
		return nil, fmt.Errorf("model inputs: %w", err)
	}
	for _, input := range inputs {
		input.Type.Lifetime = ModelInput
	}
	model.InputOperands = inputs

	outputs, err := lookup(f.Outputs)
	if err != nil {
		return nil, fmt.Errorf("model outputs: %w", err)
	}
	model.MarkOutputs(outputs...)

	return model, nil
}

func (s *OperandSpec) operandType() (OperandType, error) {
	precision, err := ParsePrecisionCode(s.Precision)
	if err != nil {
		return OperandType{}, err
	}
	layout, err := ParseLayoutCode(s.Layout)
	if err != nil {
		return OperandType{}, err
	}
	typ := NewTensorType(precision, s.Dimensions...)
	typ.Layout = layout

	switch precision {
	case QuantInt8SymmPerLayer, QuantInt16SymmPerLayer, QuantInt32SymmPerLayer:
		typ.SymmPerLayerParams = SymmPerLayerParams{Scale: s.Scale}
	case QuantInt8SymmPerChannel, QuantInt16SymmPerChannel, QuantInt32SymmPerChannel:
		scales := make([]float32, len(s.Scales))
		copy(scales, s.Scales)
		typ.SymmPerChannelParams = SymmPerChannelParams{Scales: scales, ChannelDim: s.ChannelDim}
	case QuantUint8AsymmPerLayer, QuantUint16AsymmPerLayer:
		typ.AsymmPerLayerParams = AsymmPerLayerParams{Scale: s.Scale, ZeroPoint: s.ZeroPoint}
	}
	return typ, nil
}

func (s *OperandSpec) constantData(baseDir string) ([]byte, error) {
	set := 0
	if s.Float32Values != nil {
		set++
	}
	if s.Int32Values != nil {
		set++
	}
	if s.DataFile != "" {
		set++
	}
	if set > 1 {
		return nil, fmt.Errorf("at most one of float32Values, int32Values and dataFile may be set")
	}

	switch {
	case s.Float32Values != nil:
		return EncodeFloat32s(s.Float32Values), nil
	case s.Int32Values != nil:
		return EncodeInt32s(s.Int32Values), nil
	case s.DataFile != "":
		p := s.DataFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading data file: %w", err)
		}
		return b, nil
	}
	return nil, nil
}
