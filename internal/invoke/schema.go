package invoke

// Definition is the function-tool description advertised to the platform.
type Definition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable's name and argument schema.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema is a JSON Schema object for the tool arguments.
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema describes one argument.
type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Describe builds the definition of a tool advertised under name. RawRequest
// parameters are filled by the server and are not advertised.
func Describe(name string, t Tool) Definition {
	schema := ParameterSchema{
		Type:       "object",
		Properties: make(map[string]PropertySchema),
	}
	for _, p := range t.Params() {
		if p.Type == RawRequest || !p.Type.supported() {
			continue
		}
		schema.Properties[p.Name] = PropertySchema{
			Type:        p.Type.String(),
			Description: p.Description,
		}
		schema.Required = append(schema.Required, p.Name)
	}

	return Definition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: t.Description(),
			Parameters:  schema,
		},
	}
}
