package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestMerge_Empty(t *testing.T) {
	merged, err := Merge(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Equal(t, Candidate{}, merged)
}

func TestMerge_SingleCandidateIsReturnedUnchanged(t *testing.T) {
	c := Candidate{
		Name:           "Soup",
		Description:    strPtr("warm"),
		TimeEstimation: 40,
		Servings:       intPtr(3),
		Ingredients:    []Ingredient{{Name: "Leek"}, {Name: "leek", Amount: strPtr("2")}},
		Instructions:   []Instruction{{Instruction: "Boil"}},
	}

	merged, err := Merge([]Candidate{c})
	require.NoError(t, err)
	assert.Equal(t, c, merged)
}

func TestMerge_PancakesAndWaffles(t *testing.T) {
	a := Candidate{
		Name:           "Pancakes",
		TimeEstimation: 10,
		Servings:       intPtr(2),
		Ingredients:    []Ingredient{{Name: "Flour", Amount: strPtr("1 cup")}},
		Instructions:   []Instruction{{Instruction: "Mix dry ingredients"}},
	}
	b := Candidate{
		Name:           "Waffles",
		TimeEstimation: 15,
		Servings:       intPtr(4),
		HealthScore:    intPtr(70),
		Ingredients: []Ingredient{
			{Name: "flour", Amount: strPtr("1.5 cups")},
			{Name: "Egg", Amount: strPtr("1")},
		},
		Instructions: []Instruction{{Instruction: "Cook in waffle iron"}},
	}

	merged, err := Merge([]Candidate{a, b})
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", merged.Name)
	assert.Equal(t, 25, merged.TimeEstimation)
	assert.Equal(t, intPtr(4), merged.Servings)
	assert.Equal(t, intPtr(70), merged.HealthScore)
	assert.Equal(t, []Ingredient{
		{Name: "Flour", Amount: strPtr("1 cup, 1.5 cups")},
		{Name: "Egg", Amount: strPtr("1")},
	}, merged.Ingredients)
	assert.Equal(t, []Instruction{
		{Instruction: "Mix dry ingredients"},
		{Instruction: "Cook in waffle iron"},
	}, merged.Instructions)

	// inputs are untouched
	assert.Equal(t, "1 cup", *a.Ingredients[0].Amount)
	assert.Len(t, a.Instructions, 1)
}

func TestMerge_IngredientKeyIgnoresCaseAndWhitespace(t *testing.T) {
	merged, err := Merge([]Candidate{
		{Name: "Bread", Ingredients: []Ingredient{{Name: "Flour"}}},
		{Name: "Bread", Ingredients: []Ingredient{{Name: " flour "}}},
	})
	require.NoError(t, err)
	require.Len(t, merged.Ingredients, 1)
	assert.Equal(t, "Flour", merged.Ingredients[0].Name)
}

func TestMerge_IngredientAmounts(t *testing.T) {
	tests := []struct {
		name   string
		first  *string
		second *string
		want   *string
	}{
		{name: "adopt when missing", first: nil, second: strPtr("1 tsp"), want: strPtr("1 tsp")},
		{name: "keep identical", first: strPtr("1 tsp"), second: strPtr("1 tsp"), want: strPtr("1 tsp")},
		{name: "join different", first: strPtr("1 tsp"), second: strPtr("2 tsp"), want: strPtr("1 tsp, 2 tsp")},
		{name: "keep when later missing", first: strPtr("1 tsp"), second: nil, want: strPtr("1 tsp")},
		{name: "both missing", first: nil, second: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, err := Merge([]Candidate{
				{Name: "x", Ingredients: []Ingredient{{Name: "salt", Amount: tt.first}}},
				{Name: "y", Ingredients: []Ingredient{{Name: "salt", Amount: tt.second}}},
			})
			require.NoError(t, err)
			require.Len(t, merged.Ingredients, 1)
			assert.Equal(t, tt.want, merged.Ingredients[0].Amount)
		})
	}
}

func TestMerge_IngredientOrderIsFirstAppearance(t *testing.T) {
	merged, err := Merge([]Candidate{
		{Name: "a", Ingredients: []Ingredient{{Name: "Butter"}, {Name: "Sugar"}}},
		{Name: "b", Ingredients: []Ingredient{{Name: "Eggs"}, {Name: "butter", Amount: strPtr("50g")}}},
		{Name: "c", Ingredients: []Ingredient{{Name: "Milk"}, {Name: "SUGAR", Amount: strPtr("1 cup")}}},
	})
	require.NoError(t, err)

	var names []string
	for _, ing := range merged.Ingredients {
		names = append(names, ing.Name)
	}
	assert.Equal(t, []string{"Butter", "Sugar", "Eggs", "Milk"}, names)
	assert.Equal(t, strPtr("50g"), merged.Ingredients[0].Amount)
	assert.Equal(t, strPtr("1 cup"), merged.Ingredients[1].Amount)
}

func TestMerge_DuplicateIngredientsCollapse(t *testing.T) {
	c := Candidate{Name: "Stew", Ingredients: []Ingredient{{Name: "Beef"}, {Name: "Carrot"}, {Name: "Onion"}}}

	merged, err := Merge([]Candidate{c, c, c})
	require.NoError(t, err)

	single, err := Merge([]Candidate{c})
	require.NoError(t, err)

	keys := func(ings []Ingredient) []string {
		var out []string
		for _, ing := range ings {
			out = append(out, IngredientKey(ing.Name))
		}
		return out
	}
	assert.ElementsMatch(t, keys(single.Ingredients), keys(merged.Ingredients))
}

func TestMerge_InstructionsAndTimeAccumulate(t *testing.T) {
	candidates := []Candidate{
		{Name: "a", TimeEstimation: 0, Instructions: []Instruction{{Instruction: "one"}, {Instruction: "two"}}},
		{Name: "b", TimeEstimation: 20, Instructions: []Instruction{{Instruction: "two"}}},
		{Name: "c", TimeEstimation: 35},
		{Name: "d", TimeEstimation: 5, Instructions: []Instruction{{Instruction: "three"}}},
	}

	merged, err := Merge(candidates)
	require.NoError(t, err)

	assert.Equal(t, 60, merged.TimeEstimation)
	assert.Equal(t, []Instruction{
		{Instruction: "one"},
		{Instruction: "two"},
		{Instruction: "two"},
		{Instruction: "three"},
	}, merged.Instructions)
}

func TestMerge_Servings(t *testing.T) {
	tests := []struct {
		name          string
		first, second *int
		want          *int
	}{
		{name: "adopt", first: nil, second: intPtr(4), want: intPtr(4)},
		{name: "max grows", first: intPtr(4), second: intPtr(6), want: intPtr(6)},
		{name: "max keeps", first: intPtr(6), second: intPtr(4), want: intPtr(6)},
		{name: "absent stays absent", first: nil, second: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, err := Merge([]Candidate{{Name: "a", Servings: tt.first}, {Name: "b", Servings: tt.second}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, merged.Servings)
		})
	}
}

func TestMerge_HealthScore(t *testing.T) {
	merged, err := Merge([]Candidate{{Name: "a", HealthScore: intPtr(80)}, {Name: "b", HealthScore: intPtr(60)}})
	require.NoError(t, err)
	assert.Equal(t, intPtr(70), merged.HealthScore)

	merged, err = Merge([]Candidate{{Name: "a"}, {Name: "b", HealthScore: intPtr(90)}})
	require.NoError(t, err)
	assert.Equal(t, intPtr(90), merged.HealthScore)

	// folded pairwise: avg(avg(100, 50), 0) = avg(75, 0) = 37.5 -> 38
	merged, err = Merge([]Candidate{
		{Name: "a", HealthScore: intPtr(100)},
		{Name: "b", HealthScore: intPtr(50)},
		{Name: "c", HealthScore: intPtr(0)},
	})
	require.NoError(t, err)
	assert.Equal(t, intPtr(38), merged.HealthScore)
}

func TestMerge_TextFields(t *testing.T) {
	merged, err := Merge([]Candidate{
		{Name: "Tacos", Description: strPtr("Crispy"), CuisineType: strPtr("Mexican")},
		{Name: "Salsa", Description: strPtr("Fresh"), CuisineType: strPtr("Mexican"), MainIngredient: strPtr("Tomato")},
		{Name: "Beans", Description: strPtr("Fresh"), CuisineType: strPtr("Tex-Mex"), MainIngredient: strPtr("Beans")},
	})
	require.NoError(t, err)

	assert.Equal(t, "Tacos", merged.Name)
	// compared against the accumulated value, not against earlier candidates
	assert.Equal(t, strPtr("Crispy. Fresh. Fresh"), merged.Description)
	assert.Equal(t, strPtr("Mexican, Tex-Mex"), merged.CuisineType)
	assert.Equal(t, strPtr("Tomato, Beans"), merged.MainIngredient)
}
