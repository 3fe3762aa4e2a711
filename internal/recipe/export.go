package recipe

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	recipesSheet = "Recipes"
	stepsSheet   = "Steps"
)

// ExportXLSX writes every stored recipe to a workbook with one row per recipe
// on the "Recipes" sheet and one row per instruction on the "Steps" sheet.
func ExportXLSX(ctx context.Context, store Store) ([]byte, error) {
	list, err := store.ListRecipes(ctx, ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", recipesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(stepsSheet); err != nil {
		return nil, err
	}

	if err := writeRow(f, recipesSheet, 1, "Name", "Cuisine", "Main Ingredient", "Time (min)", "Servings", "Health Score", "Ingredients", "Description", "Created"); err != nil {
		return nil, err
	}
	if err := writeRow(f, stepsSheet, 1, "Recipe", "Step", "Instruction"); err != nil {
		return nil, err
	}

	row, stepRow := 2, 2
	for _, summary := range list {
		r, err := store.GetRecipe(ctx, summary.ID)
		if err != nil {
			return nil, fmt.Errorf("get recipe %s: %w", summary.ID, err)
		}
		if r == nil {
			// deleted while exporting
			continue
		}

		if err := writeRow(f, recipesSheet, row,
			r.Name,
			deref(r.CuisineType),
			deref(r.MainIngredient),
			r.TimeEstimation,
			optionalInt(r.Servings),
			optionalInt(r.HealthScore),
			ingredientSummary(r.Ingredients),
			deref(r.Description),
			r.CreatedAt.Format("2006-01-02"),
		); err != nil {
			return nil, err
		}
		row++

		for _, inst := range r.Instructions {
			if err := writeRow(f, stepsSheet, stepRow, r.Name, inst.StepNumber, inst.Instruction); err != nil {
				return nil, err
			}
			stepRow++
		}
	}

	_ = f.SetColWidth(recipesSheet, "A", "A", 28)
	_ = f.SetColWidth(recipesSheet, "B", "C", 18)
	_ = f.SetColWidth(recipesSheet, "G", "H", 60)
	_ = f.SetColWidth(stepsSheet, "A", "A", 28)
	_ = f.SetColWidth(stepsSheet, "C", "C", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("xlsx %s row %d: %w", sheet, row, err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("xlsx %s %s: %w", sheet, cell, err)
		}
	}
	return nil
}

func ingredientSummary(ings []RecipeIngredient) string {
	parts := make([]string, 0, len(ings))
	for _, ing := range ings {
		if ing.Amount != nil {
			parts = append(parts, *ing.Amount+" "+ing.Name)
		} else {
			parts = append(parts, ing.Name)
		}
	}
	return strings.Join(parts, "; ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalInt(n *int) any {
	if n == nil {
		return ""
	}
	return *n
}
