package domain

// Call is a command request from the decision-maker in wire form, tied to the ID
// its tool result must answer. It is decoded into a Command when executed, so a
// malformed request is reported back in-band instead of aborting the session.
type Call struct {
	ID    string         `json:"id" yaml:"id" mapstructure:"id"`
	Name  string         `json:"name" yaml:"name" mapstructure:"name"`
	Input map[string]any `json:"input,omitempty" yaml:"input,omitempty" mapstructure:"input"`
}

// NewCall wraps a typed command.
func NewCall(id string, c Command) *Call {
	name, input := EncodeCommand(c)
	return &Call{ID: id, Name: name, Input: input}
}

// Command decodes the call.
func (c *Call) Command() (Command, error) {
	return DecodeCommand(c.Name, c.Input)
}

// Decision is what the decision-maker returns for a transcript: optional narration
// and at most one call. A nil Call ends the session.
type Decision struct {
	Narration string
	Call      *Call
}

// Tool describes one command variant for the decision-maker.
type Tool struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  map[string]any `json:"input_schema" yaml:"parameters,omitempty" mapstructure:"parameters"`
}

// Tools returns the JSON-schema description of the four command variants.
func Tools() []Tool {
	kwargs := map[string]any{
		"type":        "object",
		"description": "Keyword arguments for the operation. Use an empty object when there are none. Values are numbers, strings, booleans or lists of those.",
	}
	return []Tool{
		{
			Name: ToolTableOp,
			Description: "Call an operation on a table in the stack. The result is reported as text. " +
				"A table result is pushed onto the stack, a series result replaces the series register, " +
				"and plot.* operations return the rendered chart as an image. Columns are read with " +
				"__getitem__(key=\"name\").",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"target_index":  map[string]any{"type": "integer", "description": "Position of the target table in the stack, 0 being the bottom (the original data set)."},
					"function_name": map[string]any{"type": "string", "description": "Table operation name, e.g. describe, query, eval, plot.bar."},
					"kwargs":        kwargs,
				},
				"required": []string{"target_index", "function_name", "kwargs"},
			},
		},
		{
			Name: ToolSeriesOp,
			Description: "Call an operation on the series in the register. A series result replaces the register; " +
				"plot.* operations return the rendered chart as an image.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"function_name": map[string]any{"type": "string", "description": "Series operation name, e.g. mean, value_counts, str.upper."},
					"kwargs":        kwargs,
				},
				"required": []string{"function_name", "kwargs"},
			},
		},
		{
			Name:        ToolPop,
			Description: "Pop the top table from the stack, removing it. Returns its text form.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			Name: ToolAssign,
			Description: "Assign the series in the register as a column of the table at the top of the stack, " +
				"aligned by row label. Use it where a single operation cannot express an assignment: " +
				"eval(expr=\"a + b\") loads a series, then series_assign(column_name=\"c\") stores it.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"column_name": map[string]any{"type": "string", "description": "Column to create or overwrite. Defaults to the series name."},
					"in_place":    map[string]any{"type": "boolean", "description": "When false, a copy of the top table is pushed and receives the column. Defaults to true."},
				},
			},
		},
	}
}
