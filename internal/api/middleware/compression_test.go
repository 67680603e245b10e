// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(body)) //nolint:errcheck
	})
}

func TestCompressGzip(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("subtitle line that compresses well\n", 200)
	handler := Compress(1024, 4)(textHandler(body))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Contains(t, rec.Header().Get("Vary"), "Accept-Encoding")

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	decoded, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))
	assert.Less(t, rec.Body.Len(), len(body))
}

func TestCompressSkipsSmallResponses(t *testing.T) {
	t.Parallel()

	handler := Compress(1024, 4)(textHandler("tiny"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, br, zstd")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "tiny", rec.Body.String())
}

func TestCompressSkipsNonTextContent(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat("x", 4096)
	handler := Compress(1024, 4)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte(payload)) //nolint:errcheck
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, payload, rec.Body.String())
}

func TestCompressWithoutAcceptEncoding(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("line\n", 1000)
	handler := Compress(1024, 4)(textHandler(body))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, body, rec.Body.String())
}

func TestNegotiateAlgorithm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   compressionAlgorithm
	}{
		{header: "", want: algorithmNone},
		{header: "identity", want: algorithmNone},
		{header: "gzip", want: algorithmGzip},
		{header: "gzip, deflate, br", want: algorithmBrotli},
		{header: "gzip, br, zstd", want: algorithmZstd},
		{header: "*", want: algorithmZstd},
		{header: "gzip;q=0.8, br;q=0", want: algorithmGzip},
		{header: "zstd;q=0", want: algorithmNone},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, negotiateAlgorithm(tt.header), tt.header)
	}
}

func TestCompressPreservesStatusCode(t *testing.T) {
	t.Parallel()

	handler := Compress(1024, 4)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`)) //nolint:errcheck
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, `{"error":"not found"}`, rec.Body.String())
}
