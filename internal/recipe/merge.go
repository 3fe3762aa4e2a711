package recipe

import (
	"errors"
	"math"
	"strings"
)

// ErrEmptyBatch is returned when Merge is called without any candidates.
var ErrEmptyBatch = errors.New("no recipes to merge")

// Merge folds candidates extracted from successive pages of one recipe into a
// single candidate. The first candidate is the base: its name is kept,
// ingredients are deduplicated by IngredientKey, instructions are concatenated
// in order and scalar fields are reconciled field by field. The input is not
// modified.
func Merge(candidates []Candidate) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrEmptyBatch
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	base := candidates[0]
	merged := Candidate{
		Name:           base.Name,
		Description:    copyString(base.Description),
		CuisineType:    copyString(base.CuisineType),
		MainIngredient: copyString(base.MainIngredient),
		Servings:       copyInt(base.Servings),
		HealthScore:    copyInt(base.HealthScore),
	}

	merged.Ingredients = mergeIngredients(candidates)

	merged.Instructions = []Instruction{}
	for _, c := range candidates {
		merged.Instructions = append(merged.Instructions, c.Instructions...)
		merged.TimeEstimation += c.TimeEstimation
	}

	for _, c := range candidates[1:] {
		merged.Description = appendDistinct(merged.Description, c.Description, ". ")

		if c.Servings != nil {
			if merged.Servings == nil || *c.Servings > *merged.Servings {
				merged.Servings = copyInt(c.Servings)
			}
		}

		if c.HealthScore != nil {
			if merged.HealthScore == nil {
				merged.HealthScore = copyInt(c.HealthScore)
			} else {
				avg := int(math.Round(float64(*merged.HealthScore+*c.HealthScore) / 2))
				merged.HealthScore = &avg
			}
		}

		merged.CuisineType = appendDistinct(merged.CuisineType, c.CuisineType, ", ")
		merged.MainIngredient = appendDistinct(merged.MainIngredient, c.MainIngredient, ", ")
	}

	return merged, nil
}

// IngredientKey is the identity used to detect the same ingredient across
// candidates.
func IngredientKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// mergeIngredients keeps ingredients in order of first appearance. A repeated
// ingredient contributes its amount: adopted when the first had none, appended
// with ", " when both differ.
func mergeIngredients(candidates []Candidate) []Ingredient {
	index := make(map[string]int)
	out := []Ingredient{}

	for _, c := range candidates {
		for _, ing := range c.Ingredients {
			key := IngredientKey(ing.Name)
			i, seen := index[key]
			if !seen {
				index[key] = len(out)
				out = append(out, Ingredient{Name: ing.Name, Amount: copyString(ing.Amount)})
				continue
			}

			existing := &out[i]
			switch {
			case ing.Amount == nil:
			case existing.Amount == nil:
				existing.Amount = copyString(ing.Amount)
			case *existing.Amount != *ing.Amount:
				joined := *existing.Amount + ", " + *ing.Amount
				existing.Amount = &joined
			}
		}
	}

	return out
}

func appendDistinct(current, next *string, sep string) *string {
	if next == nil || (current != nil && *current == *next) {
		return current
	}
	if current == nil {
		return copyString(next)
	}
	joined := *current + sep + *next
	return &joined
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
