package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookStep(t *testing.T) {
	r := &Recipe{
		ID:   "r1",
		Name: "Rice",
		Instructions: []RecipeInstruction{
			{StepNumber: 3, Instruction: "Serve", Order: 2},
			{StepNumber: 1, Instruction: "Rinse", Order: 0},
			{StepNumber: 2, Instruction: "Boil", Order: 1},
		},
	}

	first, err := CookStep(r, 1)
	require.NoError(t, err)
	assert.Equal(t, CookView{
		RecipeID:    "r1",
		RecipeName:  "Rice",
		StepNumber:  1,
		TotalSteps:  3,
		Instruction: "Rinse",
		HasPrevious: false,
		HasNext:     true,
	}, first)

	last, err := CookStep(r, 3)
	require.NoError(t, err)
	assert.Equal(t, "Serve", last.Instruction)
	assert.True(t, last.HasPrevious)
	assert.False(t, last.HasNext)

	_, err = CookStep(r, 0)
	assert.ErrorIs(t, err, ErrStepOutOfRange)
	_, err = CookStep(r, 4)
	assert.ErrorIs(t, err, ErrStepOutOfRange)

	_, err = CookStep(&Recipe{}, 1)
	assert.ErrorIs(t, err, ErrNoSteps)
}
