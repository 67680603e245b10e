// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package translate

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiBody(text, finishReason string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content":      map[string]any{"parts": []map[string]any{{"text": text}}},
				"finishReason": finishReason,
			},
		},
	}
}

func TestOutputTokenCap(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 65536, NewGeminiClient("k", "gemini-2.5-flash", nil).OutputTokenCap())
	assert.Equal(t, 65536, NewGeminiClient("k", "gemini-2.5-pro", nil).OutputTokenCap())
	assert.Equal(t, 8192, NewGeminiClient("k", "gemini-2.0-flash", nil).OutputTokenCap())
	assert.Equal(t, 8192, NewGeminiClient("k", "gemini-1.5-pro", nil).OutputTokenCap())
	assert.Equal(t, 8192, NewGeminiClient("k", "something-else", nil).OutputTokenCap())
}

func TestGenerateContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "translate this")
		assert.Equal(t, 65536, req.Config.MaxOutputTokens)

		_ = json.NewEncoder(w).Encode(geminiBody("translated text", "STOP"))
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", "gemini-2.5-flash", srv.Client())
	c.baseURL = srv.URL

	out, err := c.GenerateContent(t.Context(), "translate this")
	require.NoError(t, err)
	assert.Equal(t, "translated text", out)
}

func TestGenerateContentFinishReasons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		finish   string
		wantType ErrorType
	}{
		{"SAFETY", ErrorSafety},
		{"RECITATION", ErrorRecitation},
		{"MAX_TOKENS", ErrorMaxTokens},
	}

	for _, tt := range tests {
		t.Run(tt.finish, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(geminiBody("partial", tt.finish))
			}))
			defer srv.Close()

			c := NewGeminiClient("k", "gemini-2.5-flash", srv.Client())
			c.baseURL = srv.URL

			out, err := c.GenerateContent(t.Context(), "p")
			require.Error(t, err)
			assert.Equal(t, tt.wantType, Classify(err).Type)
			if tt.wantType == ErrorMaxTokens {
				assert.Equal(t, "partial", out, "truncated text must be surfaced for salvage")
			}
		})
	}
}

func TestGenerateContentHTTPErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   int
		wantType ErrorType
	}{
		{http.StatusTooManyRequests, ErrorRateLimited},
		{http.StatusServiceUnavailable, ErrorUnavailable},
		{http.StatusBadRequest, ErrorOther},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer srv.Close()

			c := NewGeminiClient("k", "gemini-2.5-flash", srv.Client())
			c.baseURL = srv.URL

			_, err := c.GenerateContent(t.Context(), "p")
			require.Error(t, err)
			assert.Equal(t, tt.wantType, Classify(err).Type)
		})
	}
}

func TestStreamGenerateContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":streamGenerateContent")
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, text := range []string{"Hello ", "streamed ", "world"} {
			data, _ := json.Marshal(geminiBody(text, ""))
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		data, _ := json.Marshal(geminiBody("", "STOP"))
		fmt.Fprintf(w, "data: %s\n\n", data)
	}))
	defer srv.Close()

	c := NewGeminiClient("k", "gemini-2.5-flash", srv.Client())
	c.baseURL = srv.URL

	var deltas []string
	out, err := c.StreamGenerateContent(t.Context(), "p", func(sofar string) {
		deltas = append(deltas, sofar)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello streamed world", out)

	require.NotEmpty(t, deltas)
	assert.Equal(t, "Hello streamed world", deltas[len(deltas)-1])
	// Deltas are monotonically growing snapshots.
	for i := 1; i < len(deltas); i++ {
		assert.True(t, strings.HasPrefix(deltas[i], deltas[i-1]))
	}
}

func TestStreamGenerateContentMaxTokens(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		data, _ := json.Marshal(geminiBody("truncated output", "MAX_TOKENS"))
		fmt.Fprintf(w, "data: %s\n\n", data)
	}))
	defer srv.Close()

	c := NewGeminiClient("k", "gemini-2.5-flash", srv.Client())
	c.baseURL = srv.URL

	out, err := c.StreamGenerateContent(t.Context(), "p", nil)
	require.Error(t, err)
	assert.Equal(t, ErrorMaxTokens, Classify(err).Type)
	assert.Equal(t, "truncated output", out)
}
