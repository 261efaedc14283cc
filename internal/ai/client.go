package ai

import (
	"context"
	"encoding/json"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"alphaminer/internal/brain"
	apperrors "alphaminer/internal/errors"
	"alphaminer/internal/logging"
)

// Config represents the language model API configuration
type Config struct {
	APIURL      string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Client wraps an OpenAI-compatible chat completion API for factor work
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// DatasetSelection is the model's dataset pick with its reasoning
type DatasetSelection struct {
	SelectedDataset string `json:"selected_dataset"`
	Reason          string `json:"reason"`
}

// FactorProposal is a generated factor expression with its explanation
type FactorProposal struct {
	Expression  string `json:"factor_expression"`
	Explanation string `json:"explanation"`
}

// Attempt is a prior expression and its evaluation, fed back for refinement
type Attempt struct {
	Expression string  `json:"expression"`
	Sharpe     float64 `json:"sharpe"`
	Passed     bool    `json:"passed"`
}

// NewClient creates a new AI client
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.NewAppError(apperrors.ErrCodeInvalidInput, "AI API key is required", nil)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIURL != "" {
		clientConfig.BaseURL = cfg.APIURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     timeout,
	}, nil
}

// SelectDataset asks the model to pick the most promising dataset from the
// catalog. A reply that does not parse falls back to the first catalog
// entry, matching the loop's preference for making progress over stalling.
func (c *Client) SelectDataset(ctx context.Context, datasets []brain.Dataset) (*DatasetSelection, error) {
	if len(datasets) == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrCodeDatasetSelection, "dataset catalog is empty", nil)
	}

	prompt, err := buildSelectDatasetPrompt(datasets)
	if err != nil {
		return nil, err
	}

	var selection DatasetSelection
	if err := c.complete(ctx, prompt, &selection); err != nil {
		logging.WithError(err).Warn("Dataset selection reply unusable, falling back to first dataset")
		return &DatasetSelection{
			SelectedDataset: datasets[0].ID,
			Reason:          "fallback: model reply could not be parsed",
		}, nil
	}

	if selection.SelectedDataset == "" {
		return &DatasetSelection{
			SelectedDataset: datasets[0].ID,
			Reason:          "fallback: model reply omitted a dataset ID",
		}, nil
	}

	return &selection, nil
}

// GenerateFactor asks the model for an initial factor expression over the
// dataset's fields
func (c *Client) GenerateFactor(ctx context.Context, dataset brain.Dataset, operators []string, fields []brain.DataField) (*FactorProposal, error) {
	prompt, err := buildGeneratePrompt(dataset, operators, fields)
	if err != nil {
		return nil, err
	}
	return c.requestProposal(ctx, prompt)
}

// RefineFactor asks the model for an improved expression given prior
// attempts and their evaluation results
func (c *Client) RefineFactor(ctx context.Context, dataset brain.Dataset, operators []string, fields []brain.DataField, prior []Attempt) (*FactorProposal, error) {
	prompt, err := buildRefinePrompt(dataset, operators, fields, prior)
	if err != nil {
		return nil, err
	}
	return c.requestProposal(ctx, prompt)
}

// requestProposal runs a completion and validates the returned expression
func (c *Client) requestProposal(ctx context.Context, prompt string) (*FactorProposal, error) {
	var proposal FactorProposal
	if err := c.complete(ctx, prompt, &proposal); err != nil {
		return nil, err
	}

	if proposal.Expression == "" {
		return nil, apperrors.NewAppError(apperrors.ErrCodeInvalidResponse,
			"model reply omitted the factor expression", nil)
	}

	return &proposal, nil
}

// complete sends a chat completion request and decodes the JSON reply
func (c *Client) complete(ctx context.Context, prompt string, dest interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrCodeGeneration, "AI API request failed", err)
	}

	if len(resp.Choices) == 0 {
		return apperrors.NewAppError(apperrors.ErrCodeInvalidResponse, "AI API returned no choices", nil)
	}

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), dest); err != nil {
		return apperrors.NewAppErrorWithDetails(apperrors.ErrCodeInvalidResponse,
			"AI reply is not valid JSON", content, err)
	}

	return nil
}
