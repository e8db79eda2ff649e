package suggest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"go-task-flow/backend/internal/suggest"
)

func completionResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": content}},
		},
	}
}

func TestSuggestDate_EmptyDescriptionSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := suggest.NewClient("test-key", server.URL)

	_, err := client.SuggestDate(context.Background(), "")
	require.ErrorIs(t, err, suggest.ErrEmptyDescription)

	_, err = client.SuggestDate(context.Background(), "   ")
	require.ErrorIs(t, err, suggest.ErrEmptyDescription)

	// 空の説明文では補完サービスは一切呼ばれない
	require.Equal(t, int32(0), calls.Load())
}

func TestSuggestDate_ParsesStructuredResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req["messages"])

		json.NewEncoder(w).Encode(completionResponse(
			`{"suggestedDate": "2025-03-01", "reasoning": "Report writing usually takes a few days."}`,
		))
	}))
	defer server.Close()

	client := suggest.NewClient("test-key", server.URL)

	suggestion, err := client.SuggestDate(context.Background(), "Write the quarterly report")
	require.NoError(t, err)
	require.Equal(t, "2025-03-01", suggestion.SuggestedDate)
	require.Equal(t, "Report writing usually takes a few days.", suggestion.Reasoning)
}

func TestSuggestDate_RejectsInvalidDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completionResponse(
			`{"suggestedDate": "next Tuesday", "reasoning": "soon"}`,
		))
	}))
	defer server.Close()

	client := suggest.NewClient("test-key", server.URL)

	_, err := client.SuggestDate(context.Background(), "Buy groceries")
	require.Error(t, err)
}

func TestSuggestDate_SurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "rate limit exceeded", "type": "rate_limit"},
		})
	}))
	defer server.Close()

	client := suggest.NewClient("test-key", server.URL)

	_, err := client.SuggestDate(context.Background(), "Buy groceries")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limit exceeded")
}
