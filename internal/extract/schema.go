package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxCount bounds minutes and servings so they fit an int on every platform.
const maxCount = math.MaxInt32

// candidateSchema returns the JSON Schema model output must satisfy. Unknown
// properties are allowed and ignored.
func candidateSchema() map[string]any {
	optionalText := map[string]any{"type": []string{"string", "null"}}
	requiredText := map[string]any{"type": "string", "pattern": `\S`}

	return map[string]any{
		"type":     "object",
		"required": []string{"name", "time_estimation"},
		"properties": map[string]any{
			"name":            requiredText,
			"description":     optionalText,
			"cuisine_type":    optionalText,
			"main_ingredient": optionalText,
			"time_estimation": map[string]any{"type": "number", "minimum": 0, "maximum": maxCount},
			"servings":        map[string]any{"type": []string{"number", "null"}, "minimum": 0, "maximum": maxCount},
			"health_score":    map[string]any{"type": []string{"number", "null"}, "minimum": 0, "maximum": 100},
			"ingredients": map[string]any{
				"type": []string{"array", "null"},
				"items": map[string]any{
					"type":     "object",
					"required": []string{"name"},
					"properties": map[string]any{
						"name":   requiredText,
						"amount": optionalText,
					},
				},
			},
			"instructions": map[string]any{
				"type": []string{"array", "null"},
				"items": map[string]any{
					"type":     "object",
					"required": []string{"instruction"},
					"properties": map[string]any{
						"instruction": requiredText,
					},
				},
			},
		},
	}
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(candidateSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("recipe.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("recipe.json")
})
