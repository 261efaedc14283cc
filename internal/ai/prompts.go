package ai

import (
	"encoding/json"
	"fmt"

	"alphaminer/internal/brain"
	apperrors "alphaminer/internal/errors"
)

const systemPrompt = `You are a professional quantitative investment expert specializing in ` +
	`factor mining and strategy development. You provide safe, helpful and accurate answers. ` +
	`Always respond with a single JSON object.`

// buildSelectDatasetPrompt renders the dataset selection prompt
func buildSelectDatasetPrompt(datasets []brain.Dataset) (string, error) {
	catalog, err := marshalIndent(datasets)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Select the single most promising dataset for factor mining.

Dataset catalog:
%s

Consider the following when choosing:
1. Dataset coverage
2. How many users work with it (userCount)
3. How many alphas were built on it (alphaCount)
4. Its category and subcategory

Return your choice in this JSON format:
{
    "selected_dataset": "dataset ID",
    "reason": "why this dataset"
}
`, catalog), nil
}

// buildGeneratePrompt renders the initial factor generation prompt
func buildGeneratePrompt(dataset brain.Dataset, operators []string, fields []brain.DataField) (string, error) {
	datasetJSON, err := marshalIndent(dataset)
	if err != nil {
		return "", err
	}
	fieldsJSON, err := marshalIndent(fields)
	if err != nil {
		return "", err
	}
	operatorsJSON, err := marshalIndent(operators)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Generate an initial factor expression.

Dataset:
%s

Available fields (always refer to a field by its id):
%s

Available operators:
%s

Return your factor in this JSON format:
{
    "factor_expression": "the expression",
    "explanation": "what the factor captures"
}

Requirements:
1. Use field ids as field names, never descriptions or other attributes
2. Use only the listed operators, names must match exactly
3. The factor must have a sensible financial or economic interpretation
4. Keep the expression reasonably short
5. Make sure all parentheses are balanced

Example expressions:
- ts_rank(divide(close, open), 20)
- ts_mean(volume, 5) / ts_std_dev(volume, 5)
- ts_corr(close, volume, 10)
`, datasetJSON, fieldsJSON, operatorsJSON), nil
}

// buildRefinePrompt renders the refinement prompt with prior attempts as feedback
func buildRefinePrompt(dataset brain.Dataset, operators []string, fields []brain.DataField, prior []Attempt) (string, error) {
	datasetJSON, err := marshalIndent(dataset)
	if err != nil {
		return "", err
	}
	fieldsJSON, err := marshalIndent(fields)
	if err != nil {
		return "", err
	}
	operatorsJSON, err := marshalIndent(operators)
	if err != nil {
		return "", err
	}
	priorJSON, err := marshalIndent(prior)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Generate an improved factor expression.

Dataset:
%s

Available fields (always refer to a field by its id):
%s

Available operators:
%s

Previous attempts and their performance:
%s

Return your factor in this JSON format:
{
    "factor_expression": "the expression",
    "explanation": "what the factor captures and how it improves on the previous attempts"
}

Requirements:
1. Avoid high correlation with the previous attempts
2. Address the weaknesses of the previous attempts
3. Use field ids as field names, never descriptions or other attributes
4. Use only the listed operators, names must match exactly
5. The factor must have a sensible financial interpretation
6. Make sure all parentheses are balanced
7. Consider using different field combinations than earlier attempts
`, datasetJSON, fieldsJSON, operatorsJSON, priorJSON), nil
}

// marshalIndent renders a value as indented JSON for prompt embedding
func marshalIndent(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", apperrors.NewAppError(apperrors.ErrCodeInternal, "failed to render prompt payload", err)
	}
	return string(data), nil
}
