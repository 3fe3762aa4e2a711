package extract

const recipeShape = `{
  "name": "Recipe name",
  "description": "Optional description",
  "cuisine_type": "Optional cuisine type (e.g., Mexican, Italian)",
  "main_ingredient": "Optional main ingredient (e.g., Beef, Chicken)",
  "time_estimation": number in minutes,
  "servings": optional number,
  "health_score": optional number 0-100,
  "ingredients": [{"name": "ingredient name", "amount": "optional amount"}],
  "instructions": [{"instruction": "step text"}]
}`

// ImagePrompt instructs the model to read a photographed recipe page.
const ImagePrompt = `You are a recipe extraction assistant. Extract recipe information from the provided image of a written recipe and return it as JSON.
The JSON should have the following structure:
` + recipeShape + `

Read the image carefully and extract all recipe information. For time_estimation, convert to minutes if needed.
If the required information is not present, use common sense to make a reasonable guess. Don't leave any fields blank.`

// TextPrompt instructs the model to structure a spoken or typed recipe.
const TextPrompt = `You are a recipe extraction assistant. Extract recipe information from the provided text and return it as JSON.
The JSON should have the following structure:
` + recipeShape + `

If information is missing, make reasonable inferences. For time_estimation, convert to minutes if needed.
Return only the JSON object.`
