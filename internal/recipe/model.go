package recipe

import (
	"strings"
	"time"
)

// Ingredient is a single ingredient line as extracted from a source.
type Ingredient struct {
	Name   string  `json:"name" binding:"required"`
	Amount *string `json:"amount"`
}

// Instruction is a single cooking step as extracted from a source.
type Instruction struct {
	Instruction string `json:"instruction" binding:"required"`
}

// Candidate is the structured recipe produced by one extraction call, and the
// shape the merge step returns. Optional fields are nil when absent.
type Candidate struct {
	Name           string        `json:"name" binding:"required"`
	Description    *string       `json:"description"`
	CuisineType    *string       `json:"cuisine_type"`
	MainIngredient *string       `json:"main_ingredient"`
	TimeEstimation int           `json:"time_estimation" binding:"gte=0"`
	Servings       *int          `json:"servings" binding:"omitempty,min=1"`
	HealthScore    *int          `json:"health_score" binding:"omitempty,min=0,max=100"`
	Ingredients    []Ingredient  `json:"ingredients" binding:"dive"`
	Instructions   []Instruction `json:"instructions" binding:"dive"`
}

// Recipe represents a persisted recipe with its ordered child collections.
type Recipe struct {
	ID             string              `json:"id" db:"id"`
	Name           string              `json:"name" db:"name"`
	Description    *string             `json:"description" db:"description"`
	ImageURL       *string             `json:"image_url" db:"image_url"`
	CuisineType    *string             `json:"cuisine_type" db:"cuisine_type"`
	MainIngredient *string             `json:"main_ingredient" db:"main_ingredient"`
	TimeEstimation int                 `json:"time_estimation" db:"time_estimation"`
	HealthScore    *int                `json:"health_score" db:"health_score"`
	Servings       *int                `json:"servings" db:"servings"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" db:"updated_at"`
	Ingredients    []RecipeIngredient  `json:"ingredients,omitempty" db:"-"`
	Instructions   []RecipeInstruction `json:"instructions,omitempty" db:"-"`
}

// RecipeIngredient is an ingredient row belonging to a recipe.
type RecipeIngredient struct {
	ID       string  `json:"id" db:"id"`
	RecipeID string  `json:"recipe_id" db:"recipe_id"`
	Name     string  `json:"name" db:"name"`
	Amount   *string `json:"amount" db:"amount"`
	Order    int     `json:"order" db:"sort_order"`
}

// RecipeInstruction is a numbered step belonging to a recipe.
type RecipeInstruction struct {
	ID          string `json:"id" db:"id"`
	RecipeID    string `json:"recipe_id" db:"recipe_id"`
	StepNumber  int    `json:"step_number" db:"step_number"`
	Instruction string `json:"instruction" db:"instruction"`
	Order       int    `json:"order" db:"sort_order"`
}

// NewRecipe builds an unsaved Recipe from a reviewed candidate. Blank
// ingredients and steps are dropped; the rest are numbered in order.
// Identifiers and timestamps are assigned by the store.
func NewRecipe(c Candidate, imageURL *string) *Recipe {
	r := &Recipe{
		Name:           strings.TrimSpace(c.Name),
		Description:    c.Description,
		ImageURL:       imageURL,
		CuisineType:    c.CuisineType,
		MainIngredient: c.MainIngredient,
		TimeEstimation: c.TimeEstimation,
		HealthScore:    c.HealthScore,
		Servings:       c.Servings,
	}

	for _, ing := range c.Ingredients {
		name := strings.TrimSpace(ing.Name)
		if name == "" {
			continue
		}
		r.Ingredients = append(r.Ingredients, RecipeIngredient{
			Name:   name,
			Amount: trimmedOrNil(ing.Amount),
			Order:  len(r.Ingredients),
		})
	}

	for _, inst := range c.Instructions {
		text := strings.TrimSpace(inst.Instruction)
		if text == "" {
			continue
		}
		order := len(r.Instructions)
		r.Instructions = append(r.Instructions, RecipeInstruction{
			StepNumber:  order + 1,
			Instruction: text,
			Order:       order,
		})
	}

	return r
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
