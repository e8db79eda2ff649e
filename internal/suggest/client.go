// Package suggest はタスクの説明文から妥当な期日を提案するAIクライアントです。
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-4o-mini"
	dateLayout     = "2006-01-02"
)

// ErrEmptyDescription は説明文が空の場合のエラーです。
// このエラーのときは補完サービスへのリクエストは発生しません。
var ErrEmptyDescription = errors.New("task description is empty")

const systemPrompt = `You are a helpful assistant that suggests a reasonable completion date for a task based on its description.

Consider the task description and suggest a completion date in ISO format (YYYY-MM-DD). Also, provide a brief reasoning for the suggested date.

Respond with JSON of the form {"suggestedDate": "YYYY-MM-DD", "reasoning": "..."}.`

// Client は補完サービスへのHTTPクライアントです。
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewClient は新しいClientを作成します。baseURLが空の場合は既定値を使います。
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   defaultModel,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Suggestion は提案された期日とその理由です。
type Suggestion struct {
	SuggestedDate string `json:"suggestedDate"`
	Reasoning     string `json:"reasoning"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// SuggestDate は説明文を補完サービスに送り、構造化された提案を返します。
// リトライは行いません。失敗の詳細は呼び出し元でログに記録し、
// クライアントには汎用メッセージだけを返す想定です。
func (c *Client) SuggestDate(ctx context.Context, description string) (*Suggestion, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Task Description: " + description},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("suggestion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("suggestion API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("suggestion API returned status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, errors.New("suggestion API returned no choices")
	}

	var suggestion Suggestion
	if err := json.Unmarshal([]byte(chatResp.Choices[0].Message.Content), &suggestion); err != nil {
		return nil, fmt.Errorf("failed to parse suggestion content: %w", err)
	}
	if _, err := time.Parse(dateLayout, suggestion.SuggestedDate); err != nil {
		return nil, fmt.Errorf("suggested date %q is not a valid ISO date", suggestion.SuggestedDate)
	}

	return &suggestion, nil
}
