package llm

// BuildEarningsJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Every field is optional: the model returns a partial record. We pass this to the
// model as an output constraint and also use it locally to validate.
func BuildEarningsJSONSchema() map[string]any {
	penalty := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"type":   map[string]any{"type": "string", "minLength": 1},
			"amount": decimalProp(),
		},
		"required": []string{"amount"},
	}
	rating := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"rating": map[string]any{"type": "string", "pattern": `^\d+(\.\d{1,2})?$`},
		},
		"required": []string{"rating"},
	}

	props := map[string]any{
		"platform":     map[string]any{"type": "string", "minLength": 1},
		"date":         map[string]any{"type": "string", "minLength": 1},
		"total":        decimalProp(),
		"base_pay":     decimalProp(),
		"bonus":        decimalProp(),
		"distance_pay": decimalProp(),
		"penalties":    map[string]any{"type": "array", "items": penalty},
		"ratings":      map[string]any{"type": "array", "items": rating},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

// decimalProp accepts a JSON number or a decimal string with at most two places.
func decimalProp() map[string]any {
	return map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string", "pattern": `^-?\d+(\.\d{1,2})?$`},
			map[string]any{"type": "number"},
		},
	}
}
