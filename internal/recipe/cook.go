package recipe

import (
	"errors"
	"sort"
)

var (
	// ErrNoSteps is returned when a recipe has no instructions to cook through.
	ErrNoSteps = errors.New("recipe has no instructions")
	// ErrStepOutOfRange is returned for a step number outside the recipe.
	ErrStepOutOfRange = errors.New("step out of range")
)

// CookView is one screen of cook mode.
type CookView struct {
	RecipeID    string `json:"recipe_id"`
	RecipeName  string `json:"recipe_name"`
	StepNumber  int    `json:"step_number"`
	TotalSteps  int    `json:"total_steps"`
	Instruction string `json:"instruction"`
	HasPrevious bool   `json:"has_previous"`
	HasNext     bool   `json:"has_next"`
}

// CookStep returns the view for the 1-based step of r, walking instructions
// in their stored order.
func CookStep(r *Recipe, step int) (CookView, error) {
	if len(r.Instructions) == 0 {
		return CookView{}, ErrNoSteps
	}

	steps := make([]RecipeInstruction, len(r.Instructions))
	copy(steps, r.Instructions)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	if step < 1 || step > len(steps) {
		return CookView{}, ErrStepOutOfRange
	}

	current := steps[step-1]
	return CookView{
		RecipeID:    r.ID,
		RecipeName:  r.Name,
		StepNumber:  current.StepNumber,
		TotalSteps:  len(steps),
		Instruction: current.Instruction,
		HasPrevious: step > 1,
		HasNext:     step < len(steps),
	}, nil
}
