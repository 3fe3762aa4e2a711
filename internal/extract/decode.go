package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"recipebox/internal/recipe"
)

var (
	fencePattern   = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*\\s*(.*?)\\s*```")
	numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	quotedPattern  = regexp.MustCompile(`['"]([^'"]+)['"]`)
	numericFields  = []string{"time_estimation", "servings", "health_score"}
)

// StripFence returns the body of the first fenced code block in content, or
// content unchanged when it has none.
func StripFence(content string) string {
	if m := fencePattern.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return content
}

// wireCandidate mirrors the schema once validated.
type wireCandidate struct {
	Name           string   `json:"name"`
	Description    *string  `json:"description"`
	CuisineType    *string  `json:"cuisine_type"`
	MainIngredient *string  `json:"main_ingredient"`
	TimeEstimation float64  `json:"time_estimation"`
	Servings       *float64 `json:"servings"`
	HealthScore    *float64 `json:"health_score"`
	Ingredients    []struct {
		Name   string  `json:"name"`
		Amount *string `json:"amount"`
	} `json:"ingredients"`
	Instructions []struct {
		Instruction string `json:"instruction"`
	} `json:"instructions"`
}

// Decode parses model output into a validated candidate. Numbers sent as
// numeric strings are accepted; anything else that does not match the schema
// is reported as a *ValidationError.
func Decode(content string) (recipe.Candidate, error) {
	var doc any
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &doc); err != nil {
		return recipe.Candidate{}, &ValidationError{Constraint: err.Error(), Err: ErrMalformedJSON}
	}

	if obj, ok := doc.(map[string]any); ok {
		coerceNumbers(obj)
	}

	schema, err := compiledSchema()
	if err != nil {
		return recipe.Candidate{}, fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return recipe.Candidate{}, toValidationError(err)
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return recipe.Candidate{}, fmt.Errorf("re-encode candidate: %w", err)
	}
	var w wireCandidate
	if err := json.Unmarshal(normalized, &w); err != nil {
		return recipe.Candidate{}, &ValidationError{Constraint: err.Error(), Err: ErrSchemaViolation}
	}

	return w.candidate(), nil
}

func (w wireCandidate) candidate() recipe.Candidate {
	c := recipe.Candidate{
		Name:           strings.TrimSpace(w.Name),
		Description:    optionalText(w.Description),
		CuisineType:    optionalText(w.CuisineType),
		MainIngredient: optionalText(w.MainIngredient),
		TimeEstimation: int(math.Round(w.TimeEstimation)),
		HealthScore:    optionalInt(w.HealthScore),
		Ingredients:    make([]recipe.Ingredient, 0, len(w.Ingredients)),
		Instructions:   make([]recipe.Instruction, 0, len(w.Instructions)),
	}

	// zero servings means the source did not say
	if s := optionalInt(w.Servings); s != nil && *s > 0 {
		c.Servings = s
	}

	for _, ing := range w.Ingredients {
		c.Ingredients = append(c.Ingredients, recipe.Ingredient{
			Name:   strings.TrimSpace(ing.Name),
			Amount: optionalText(ing.Amount),
		})
	}
	for _, inst := range w.Instructions {
		c.Instructions = append(c.Instructions, recipe.Instruction{
			Instruction: strings.TrimSpace(inst.Instruction),
		})
	}
	return c
}

// coerceNumbers turns numeric strings in numeric fields into numbers so the
// schema sees the value the model meant.
func coerceNumbers(obj map[string]any) {
	for _, k := range numericFields {
		s, ok := obj[k].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if !numericPattern.MatchString(s) {
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			obj[k] = f
		}
	}
}

func toValidationError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &ValidationError{Constraint: err.Error(), Err: ErrSchemaViolation}
	}

	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}

	field := fieldPath(leaf.InstanceLocation)
	constraint := leaf.Message
	if strings.HasSuffix(leaf.KeywordLocation, "/required") {
		if m := quotedPattern.FindStringSubmatch(leaf.Message); m != nil {
			field = joinField(field, m[1])
		}
		constraint = "is required"
	}

	return &ValidationError{Field: field, Constraint: constraint, Err: ErrSchemaViolation}
}

// fieldPath converts a JSON pointer like /ingredients/0/name into
// ingredients[0].name.
func fieldPath(pointer string) string {
	var b strings.Builder
	for _, seg := range strings.Split(pointer, "/") {
		if seg == "" {
			continue
		}
		seg = strings.NewReplacer("~1", "/", "~0", "~").Replace(seg)
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

func joinField(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func optionalInt(f *float64) *int {
	if f == nil {
		return nil
	}
	n := int(math.Round(*f))
	return &n
}
