package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Tool names of the four command variants as they appear on the wire.
const (
	ToolTableOp  = "dataframe_operation"
	ToolSeriesOp = "series_operation"
	ToolPop      = "pop"
	ToolAssign   = "series_assign"
)

// Command is one structured request against the stack or the register.
// Exactly one of TableOp, SeriesOp, Pop or AssignSeriesToTable.
type Command interface {
	ToolName() string
	isCommand()
}

// TableOp invokes a table operation on the stack slot TargetIndex (0 is the bottom).
type TableOp struct {
	TargetIndex  int            `json:"target_index" yaml:"target_index" mapstructure:"target_index"`
	FunctionName string         `json:"function_name" yaml:"function_name" mapstructure:"function_name"`
	Kwargs       map[string]any `json:"kwargs,omitempty" yaml:"kwargs,omitempty" mapstructure:"kwargs"`
}

// SeriesOp invokes a series operation on the register.
type SeriesOp struct {
	FunctionName string         `json:"function_name" yaml:"function_name" mapstructure:"function_name"`
	Kwargs       map[string]any `json:"kwargs,omitempty" yaml:"kwargs,omitempty" mapstructure:"kwargs"`
}

// Pop removes the top table.
type Pop struct{}

// AssignSeriesToTable writes the register as a column of the top table.
// ColumnName defaults to the series name. When InPlace is explicitly false the
// top table is copied and pushed first, and the column is written to the copy.
type AssignSeriesToTable struct {
	ColumnName string `json:"column_name,omitempty" yaml:"column_name,omitempty" mapstructure:"column_name"`
	InPlace    *bool  `json:"in_place,omitempty" yaml:"in_place,omitempty" mapstructure:"in_place"`
}

func (TableOp) ToolName() string             { return ToolTableOp }
func (SeriesOp) ToolName() string            { return ToolSeriesOp }
func (Pop) ToolName() string                 { return ToolPop }
func (AssignSeriesToTable) ToolName() string { return ToolAssign }

func (TableOp) isCommand()             {}
func (SeriesOp) isCommand()            {}
func (Pop) isCommand()                 {}
func (AssignSeriesToTable) isCommand() {}

// aliases maps the argument names the model may use to their canonical form.
var aliases = map[string]string{
	"target_frame": "target_index",
	"function":     "function_name",
}

// DecodeCommand validates the wire form of a command and returns the typed variant.
// Validation is structural only; whether the operation exists is decided at dispatch.
func DecodeCommand(name string, input map[string]any) (Command, error) {
	in, err := canonicalInput(input)
	if err != nil {
		return nil, err
	}

	switch name {
	case ToolTableOp:
		raw, ok := in["target_index"]
		if !ok {
			return nil, fmt.Errorf("%w: %s requires target_index", ErrMalformedCommand, name)
		}
		if err := checkIndex(raw); err != nil {
			return nil, err
		}
		var op TableOp
		if err := decodeStrict(in, &op); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCommand, name, err)
		}
		if strings.TrimSpace(op.FunctionName) == "" {
			return nil, fmt.Errorf("%w: %s requires function_name", ErrMalformedCommand, name)
		}
		if op.Kwargs == nil {
			op.Kwargs = map[string]any{}
		}
		return op, nil

	case ToolSeriesOp:
		var op SeriesOp
		if err := decodeStrict(in, &op); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCommand, name, err)
		}
		if strings.TrimSpace(op.FunctionName) == "" {
			return nil, fmt.Errorf("%w: %s requires function_name", ErrMalformedCommand, name)
		}
		if op.Kwargs == nil {
			op.Kwargs = map[string]any{}
		}
		return op, nil

	case ToolPop:
		if len(in) > 0 {
			return nil, fmt.Errorf("%w: pop takes no arguments", ErrMalformedCommand)
		}
		return Pop{}, nil

	case ToolAssign:
		var op AssignSeriesToTable
		if err := decodeStrict(in, &op); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCommand, name, err)
		}
		return op, nil
	}

	return nil, fmt.Errorf("%w: unknown command %q", ErrMalformedCommand, name)
}

// EncodeCommand returns the wire form of a command.
func EncodeCommand(c Command) (string, map[string]any) {
	switch op := c.(type) {
	case TableOp:
		return ToolTableOp, map[string]any{
			"target_index":  op.TargetIndex,
			"function_name": op.FunctionName,
			"kwargs":        kwargsOrEmpty(op.Kwargs),
		}
	case SeriesOp:
		return ToolSeriesOp, map[string]any{
			"function_name": op.FunctionName,
			"kwargs":        kwargsOrEmpty(op.Kwargs),
		}
	case AssignSeriesToTable:
		in := map[string]any{}
		if op.ColumnName != "" {
			in["column_name"] = op.ColumnName
		}
		if op.InPlace != nil {
			in["in_place"] = *op.InPlace
		}
		return ToolAssign, in
	}
	return ToolPop, map[string]any{}
}

// Describe renders a command the way it is written in logs and step records.
func Describe(c Command) string {
	switch op := c.(type) {
	case TableOp:
		return fmt.Sprintf("stack[%d].%s(%s)", op.TargetIndex, op.FunctionName, formatKwargs(op.Kwargs))
	case SeriesOp:
		return fmt.Sprintf("register.%s(%s)", op.FunctionName, formatKwargs(op.Kwargs))
	case AssignSeriesToTable:
		name, in := EncodeCommand(op)
		return name + "(" + formatKwargs(in) + ")"
	}
	return "pop()"
}

func canonicalInput(input map[string]any) (map[string]any, error) {
	in := make(map[string]any, len(input))
	for k, v := range input {
		if canon, ok := aliases[k]; ok {
			k = canon
		}
		if _, dup := in[k]; dup {
			return nil, fmt.Errorf("%w: argument %q given twice", ErrMalformedCommand, k)
		}
		in[k] = v
	}
	// Some models send kwargs as a JSON-encoded string.
	if s, ok := in["kwargs"].(string); ok {
		var kw map[string]any
		if strings.TrimSpace(s) == "" {
			kw = map[string]any{}
		} else if err := json.Unmarshal([]byte(s), &kw); err != nil {
			return nil, fmt.Errorf("%w: kwargs is not an object: %v", ErrMalformedCommand, err)
		}
		in["kwargs"] = kw
	}
	return in, nil
}

func checkIndex(raw any) error {
	var f float64
	switch v := raw.(type) {
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		var err error
		if f, err = v.Float64(); err != nil {
			return fmt.Errorf("%w: target_index %q is not a number", ErrMalformedCommand, v)
		}
	default:
		return fmt.Errorf("%w: target_index must be an integer, got %T", ErrMalformedCommand, raw)
	}
	if f != math.Trunc(f) || f < 0 {
		return fmt.Errorf("%w: target_index must be a non-negative integer, got %v", ErrMalformedCommand, raw)
	}
	return nil
}

func decodeStrict(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func kwargsOrEmpty(kw map[string]any) map[string]any {
	if kw == nil {
		return map[string]any{}
	}
	return kw
}

func formatKwargs(kw map[string]any) string {
	if len(kw) == 0 {
		return ""
	}
	data, err := json.Marshal(kw)
	if err != nil {
		return fmt.Sprint(kw)
	}
	return string(data)
}
