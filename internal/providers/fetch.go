// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"

	"github.com/subgloss/subgloss/internal/buildinfo"
)

// maxResponseBytes bounds any single provider response body.
const maxResponseBytes = 30 << 20

// fetch performs an HTTP request with exponential backoff on transient
// failures (429, 503, other 5xx, network errors). The request is rebuilt per
// attempt because a consumed body cannot be resent.
func fetch(ctx context.Context, client *http.Client, attempts uint, newReq func() (*http.Request, error)) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			req, err := newReq()
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req = req.WithContext(ctx)
			if req.Header.Get("User-Agent") == "" {
				req.Header.Set("User-Agent", buildinfo.UserAgent)
			}

			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("request %s: %w", req.URL.Host, err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path))
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				return retry.Unrecoverable(fmt.Errorf("auth failure from %s: %s", req.URL.Host, resp.Status))
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				return fmt.Errorf("transient failure from %s: %s", req.URL.Host, resp.Status)
			case resp.StatusCode >= 400:
				return retry.Unrecoverable(fmt.Errorf("request to %s failed: %s", req.URL.Host, resp.Status))
			}

			body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			if err != nil {
				return fmt.Errorf("read response from %s: %w", req.URL.Host, err)
			}
			return nil
		},
		retry.Attempts(attempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// fetchJSON fetches and decodes a JSON response.
func fetchJSON(ctx context.Context, client *http.Client, attempts uint, v any, newReq func() (*http.Request, error)) error {
	body, err := fetch(ctx, client, attempts, newReq)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
