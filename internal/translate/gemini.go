// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package translate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Model output-token caps by family. Queried models are matched by prefix;
// anything unknown gets the conservative default.
const defaultOutputTokenCap = 8192

var modelOutputCaps = []struct {
	prefix string
	cap    int
}{
	{"gemini-2.5", 65536},
	{"gemini-2.0", 8192},
	{"gemini-1.5", 8192},
}

// GeminiClient talks to the Generative Language REST API.
type GeminiClient struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

// NewGeminiClient builds a client for the given model.
func NewGeminiClient(apiKey, model string, client *http.Client) *GeminiClient {
	if client == nil {
		// No total timeout: streamed generations legitimately run for
		// minutes. Cancellation comes from the request context.
		client = &http.Client{}
	}
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		client:  client,
		baseURL: geminiBaseURL,
	}
}

// OutputTokenCap returns the model's maximum output tokens.
func (g *GeminiClient) OutputTokenCap() int {
	for _, m := range modelOutputCaps {
		if strings.HasPrefix(g.model, m.prefix) {
			return m.cap
		}
	}
	return defaultOutputTokenCap
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Config   geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *GeminiClient) newRequest(ctx context.Context, endpoint string, prompt string) (*http.Request, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		Config: geminiGenConfig{
			Temperature:     0.2,
			MaxOutputTokens: g.OutputTokenCap(),
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", g.apiKey)
	return req, nil
}

// GenerateContent runs a single blocking generation and returns the full text.
func (g *GeminiClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)

	req, err := g.newRequest(ctx, endpoint, prompt)
	if err != nil {
		return "", err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", newError(ErrorUnavailable, "gemini request: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return "", newError(ErrorUnavailable, "gemini response: %v", err)
	}

	if err := statusToError(resp.StatusCode, data); err != nil {
		return "", err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", newError(ErrorOther, "decode gemini response: %v", err)
	}
	return extractText(&parsed)
}

// StreamGenerateContent runs a streaming generation over SSE. onDelta is
// invoked with the full text accumulated so far after every chunk.
func (g *GeminiClient) StreamGenerateContent(ctx context.Context, prompt string, onDelta func(sofar string)) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", g.baseURL, g.model)

	req, err := g.newRequest(ctx, endpoint, prompt)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", newError(ErrorUnavailable, "gemini stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return "", statusToError(resp.StatusCode, data)
	}

	var sb strings.Builder
	var finishReason string

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok || payload == "[DONE]" {
			continue
		}

		var event geminiResponse
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Debug().Err(err).Msg("skipping malformed stream event")
			continue
		}

		for _, cand := range event.Candidates {
			for _, part := range cand.Content.Parts {
				sb.WriteString(part.Text)
			}
			if cand.FinishReason != "" {
				finishReason = cand.FinishReason
			}
		}
		if event.PromptFeedback.BlockReason != "" {
			return "", newError(ErrorSafety, "prompt blocked: %s", event.PromptFeedback.BlockReason)
		}

		if onDelta != nil && sb.Len() > 0 {
			onDelta(sb.String())
		}
	}
	if err := scanner.Err(); err != nil {
		return "", newError(ErrorUnavailable, "gemini stream interrupted: %v", err)
	}

	return finishToResult(sb.String(), finishReason)
}

// statusToError maps non-200 HTTP statuses onto typed errors.
func statusToError(status int, body []byte) error {
	if status == http.StatusOK {
		return nil
	}

	var parsed geminiResponse
	_ = json.Unmarshal(body, &parsed)
	msg := parsed.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	switch {
	case status == http.StatusTooManyRequests:
		return newError(ErrorRateLimited, "rate limited: %s", msg)
	case status == http.StatusServiceUnavailable, parsed.Error.Status == "UNAVAILABLE":
		return newError(ErrorUnavailable, "model overloaded: %s", msg)
	default:
		return newError(ErrorOther, "gemini status %d: %s", status, msg)
	}
}

// extractText pulls the candidate text out of a blocking response and applies
// the finish-reason semantics.
func extractText(resp *geminiResponse) (string, error) {
	if resp.PromptFeedback.BlockReason != "" {
		return "", newError(ErrorSafety, "prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", newError(ErrorOther, "no candidates returned")
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}
	return finishToResult(sb.String(), cand.FinishReason)
}

// finishToResult turns the finish reason into a typed error, carrying any
// partial text along for the MAX_TOKENS salvage path.
func finishToResult(text, finishReason string) (string, error) {
	switch finishReason {
	case "", "STOP":
		return text, nil
	case "SAFETY":
		return "", newError(ErrorSafety, "response blocked by safety filter")
	case "RECITATION":
		return "", newError(ErrorRecitation, "response blocked for recitation")
	case "MAX_TOKENS":
		return text, newError(ErrorMaxTokens, "output truncated at token limit")
	default:
		return "", newError(ErrorOther, "generation stopped: %s", finishReason)
	}
}
