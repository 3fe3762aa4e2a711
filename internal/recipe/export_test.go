package recipe

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportXLSX(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRecipe(ctx, NewRecipe(Candidate{
		Name:           "Pancakes",
		CuisineType:    strPtr("American"),
		TimeEstimation: 25,
		Servings:       intPtr(4),
		Ingredients:    []Ingredient{{Name: "Flour", Amount: strPtr("1 cup")}, {Name: "Salt"}},
		Instructions:   []Instruction{{Instruction: "Mix"}, {Instruction: "Fry"}},
	}, nil)))

	data, err := ExportXLSX(ctx, store)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(recipesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Name", rows[0][0])
	assert.Equal(t, "Pancakes", rows[1][0])
	assert.Equal(t, "American", rows[1][1])
	assert.Equal(t, "25", rows[1][3])
	assert.Equal(t, "4", rows[1][4])
	assert.Equal(t, "1 cup Flour; Salt", rows[1][6])

	steps, err := f.GetRows(stepsSheet)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, []string{"Pancakes", "2", "Fry"}, steps[2])
}

func TestWriteRow_Errors(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	assert.NoError(t, writeRow(f, "Sheet1", 1, "Name", 3))

	// unknown sheet
	assert.Error(t, writeRow(f, "Missing", 1, "Name"))

	// row 0 has no cell name
	assert.Error(t, writeRow(f, "Sheet1", 0, "Name"))
}
