package extract

import "github.com/joseph-ayodele/parivyaya/constants"

// BuildRecordsJSONSchema returns the JSON Schema the service output must satisfy.
// It goes out with the request as a structured-output constraint and is used
// again locally to validate the reply.
func BuildRecordsJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"date":                      map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"title":                     map[string]any{"type": "string", "minLength": 1, "maxLength": 500},
			"amount":                    map[string]any{"type": "number"},
			"currency":                  map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
			"category_primary":          map[string]any{"type": "string", "enum": constants.PrimaryStrings()},
			"category_detailed":         map[string]any{"type": "string", "enum": constants.DetailedStrings()},
			"category_confidence_level": map[string]any{"type": "string", "enum": constants.ConfidenceStrings()},
		},
		"required": []string{
			"date", "title", "amount", "currency",
			"category_primary", "category_detailed", "category_confidence_level",
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"transactions": map[string]any{"type": "array", "items": item},
		},
		"required": []string{"transactions"},
	}
}
