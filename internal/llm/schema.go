package llm

// BuildMatchJSONSchema returns the JSON-Schema of a MatchSuggestion reply.
// record_id is null when nothing in the sample fits.
func BuildMatchJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"record_id":  map[string]any{"type": []any{"integer", "null"}},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 100.0},
			"reason":     map[string]any{"type": "string"},
		},
		"required": []string{"record_id", "confidence"},
	}
}

// BuildColumnsJSONSchema returns the JSON-Schema of a ColumnSuggestion reply for a sample
// with the given number of rows and columns.
func BuildColumnsJSONSchema(rows, cols int) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"header_row":         indexProp(rows),
			"identifier_column":  indexProp(cols),
			"descriptive_column": indexProp(cols),
		},
		"required": []string{"header_row", "identifier_column", "descriptive_column"},
	}
}

func indexProp(max int) map[string]any {
	return map[string]any{"type": "integer", "minimum": 0, "maximum": max}
}
