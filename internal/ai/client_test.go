package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"alphaminer/internal/brain"
	apperrors "alphaminer/internal/errors"
)

// chatHandler serves an OpenAI-compatible chat completion endpoint that
// replies with the given content and records the last user prompt
type chatHandler struct {
	content    string
	lastPrompt string
}

func (h *chatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	json.Unmarshal(body, &req)
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			h.lastPrompt = msg.Content
		}
	}

	resp := map[string]interface{}{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": h.content,
				},
				"finish_reason": "stop",
			},
		},
	}
	json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, handler *chatHandler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{
		APIURL:      server.URL + "/v1",
		APIKey:      "test-key",
		Model:       "moonshot-v1-auto",
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func testCatalog() []brain.Dataset {
	return []brain.Dataset{
		{ID: "fundamental6", Name: "Company Fundamentals", Coverage: 0.95, UserCount: 3000, AlphaCount: 12000},
		{ID: "analyst4", Name: "Analyst Estimates", Coverage: 0.82, UserCount: 1200, AlphaCount: 4000},
	}
}

func TestSelectDataset(t *testing.T) {
	t.Run("parses model selection", func(t *testing.T) {
		handler := &chatHandler{content: `{"selected_dataset":"analyst4","reason":"high coverage with fewer competing alphas"}`}
		client := newTestClient(t, handler)

		selection, err := client.SelectDataset(context.Background(), testCatalog())
		if err != nil {
			t.Fatalf("SelectDataset failed: %v", err)
		}
		if selection.SelectedDataset != "analyst4" {
			t.Errorf("expected analyst4, got %s", selection.SelectedDataset)
		}
		if !strings.Contains(handler.lastPrompt, "fundamental6") {
			t.Error("prompt should include the dataset catalog")
		}
	})

	t.Run("falls back to first dataset on unparsable reply", func(t *testing.T) {
		handler := &chatHandler{content: `sorry, I cannot help with that`}
		client := newTestClient(t, handler)

		selection, err := client.SelectDataset(context.Background(), testCatalog())
		if err != nil {
			t.Fatalf("SelectDataset failed: %v", err)
		}
		if selection.SelectedDataset != "fundamental6" {
			t.Errorf("expected fallback to fundamental6, got %s", selection.SelectedDataset)
		}
	})

	t.Run("falls back when reply omits dataset ID", func(t *testing.T) {
		handler := &chatHandler{content: `{"reason":"no pick"}`}
		client := newTestClient(t, handler)

		selection, err := client.SelectDataset(context.Background(), testCatalog())
		if err != nil {
			t.Fatalf("SelectDataset failed: %v", err)
		}
		if selection.SelectedDataset != "fundamental6" {
			t.Errorf("expected fallback to fundamental6, got %s", selection.SelectedDataset)
		}
	})

	t.Run("empty catalog is an error", func(t *testing.T) {
		client := newTestClient(t, &chatHandler{content: `{}`})

		_, err := client.SelectDataset(context.Background(), nil)
		if err == nil {
			t.Fatal("expected error for empty catalog")
		}
	})
}

func TestGenerateFactor(t *testing.T) {
	handler := &chatHandler{content: `{"factor_expression":"ts_rank(assets, 20)","explanation":"ranks asset growth"}`}
	client := newTestClient(t, handler)

	fields := []brain.DataField{{ID: "assets", Description: "Total assets"}}
	proposal, err := client.GenerateFactor(context.Background(), testCatalog()[0], []string{"ts_rank"}, fields)
	if err != nil {
		t.Fatalf("GenerateFactor failed: %v", err)
	}

	if proposal.Expression != "ts_rank(assets, 20)" {
		t.Errorf("unexpected expression: %s", proposal.Expression)
	}
	if !strings.Contains(handler.lastPrompt, `"assets"`) {
		t.Error("prompt should include the field catalog")
	}
	if !strings.Contains(handler.lastPrompt, "ts_rank") {
		t.Error("prompt should include the operators")
	}
}

func TestGenerateFactorMissingExpression(t *testing.T) {
	handler := &chatHandler{content: `{"explanation":"I could not come up with one"}`}
	client := newTestClient(t, handler)

	_, err := client.GenerateFactor(context.Background(), testCatalog()[0], nil, nil)
	if err == nil {
		t.Fatal("expected error for missing expression")
	}

	appErr := apperrors.GetAppError(err)
	if appErr == nil || appErr.Code != apperrors.ErrCodeInvalidResponse {
		t.Errorf("expected INVALID_AI_RESPONSE, got %v", err)
	}
	if !appErr.IsRetryable() {
		t.Error("an unusable reply should be transient")
	}
}

func TestRefineFactor(t *testing.T) {
	handler := &chatHandler{content: `{"factor_expression":"ts_zscore(liabilities, 10)","explanation":"less correlated with the prior attempt"}`}
	client := newTestClient(t, handler)

	prior := []Attempt{{Expression: "ts_rank(assets, 20)", Sharpe: 1.1, Passed: false}}
	proposal, err := client.RefineFactor(context.Background(), testCatalog()[0], []string{"ts_zscore"}, nil, prior)
	if err != nil {
		t.Fatalf("RefineFactor failed: %v", err)
	}

	if proposal.Expression != "ts_zscore(liabilities, 10)" {
		t.Errorf("unexpected expression: %s", proposal.Expression)
	}
	if !strings.Contains(handler.lastPrompt, "ts_rank(assets, 20)") {
		t.Error("refinement prompt should include the prior attempt")
	}
	if !strings.Contains(handler.lastPrompt, "1.1") {
		t.Error("refinement prompt should include the prior score")
	}
}
