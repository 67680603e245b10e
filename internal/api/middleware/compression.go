// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Subtitle bodies are highly repetitive text, so they compress well even at
// modest levels. Responses below the threshold go out uncompressed.
const (
	defaultMinCompressSize = 1024
	defaultCompressLevel   = 4
)

type compressionAlgorithm int

const (
	algorithmNone compressionAlgorithm = iota
	algorithmGzip
	algorithmBrotli
	algorithmZstd
)

// Compress negotiates zstd, brotli, or gzip from Accept-Encoding and
// compresses text and JSON responses larger than minSize bytes.
func Compress(minSize, level int) func(http.Handler) http.Handler {
	if minSize <= 0 {
		minSize = defaultMinCompressSize
	}
	if level < 1 || level > 9 {
		level = defaultCompressLevel
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			algorithm := negotiateAlgorithm(r.Header.Get("Accept-Encoding"))
			if algorithm == algorithmNone {
				next.ServeHTTP(w, r)
				return
			}

			cw := &compressionWriter{
				ResponseWriter: w,
				algorithm:      algorithm,
				minSize:        minSize,
				level:          level,
			}
			defer cw.Close()

			w.Header().Add("Vary", "Accept-Encoding")
			next.ServeHTTP(cw, r)
		})
	}
}

// compressionWriter buffers the first write so small responses skip the
// encoder entirely.
type compressionWriter struct {
	http.ResponseWriter
	algorithm compressionAlgorithm
	minSize   int
	level     int

	writer      io.Writer
	status      int
	wroteHeader bool
}

func (w *compressionWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
}

func (w *compressionWriter) Write(data []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	if w.writer == nil {
		w.writer = w.selectWriter(len(data))
	}
	return w.writer.Write(data)
}

// selectWriter commits to plain or compressed output on the first write.
// Streaming handlers that write many small chunks stay uncompressed; the
// payloads worth compressing here arrive in one write.
func (w *compressionWriter) selectWriter(firstWrite int) io.Writer {
	if firstWrite < w.minSize || !compressibleContentType(w.Header().Get("Content-Type")) {
		w.ResponseWriter.WriteHeader(w.status)
		return w.ResponseWriter
	}

	w.Header().Del("Content-Length")
	switch w.algorithm {
	case algorithmZstd:
		encoder, err := zstd.NewWriter(w.ResponseWriter)
		if err != nil {
			break
		}
		w.Header().Set("Content-Encoding", "zstd")
		w.ResponseWriter.WriteHeader(w.status)
		return encoder
	case algorithmBrotli:
		w.Header().Set("Content-Encoding", "br")
		w.ResponseWriter.WriteHeader(w.status)
		return brotli.NewWriterLevel(w.ResponseWriter, w.level)
	case algorithmGzip:
		if encoder, err := gzip.NewWriterLevel(w.ResponseWriter, w.level); err == nil {
			w.Header().Set("Content-Encoding", "gzip")
			w.ResponseWriter.WriteHeader(w.status)
			return encoder
		}
	}

	w.ResponseWriter.WriteHeader(w.status)
	return w.ResponseWriter
}

func (w *compressionWriter) Close() error {
	if w.writer == nil && w.wroteHeader {
		// Header-only response; flush the status.
		w.ResponseWriter.WriteHeader(w.status)
	}
	if closer, ok := w.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (w *compressionWriter) Flush() {
	if flusher, ok := w.writer.(interface{ Flush() error }); ok {
		flusher.Flush() //nolint:errcheck
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func compressibleContentType(contentType string) bool {
	return strings.Contains(contentType, "text/") ||
		strings.Contains(contentType, "application/json")
}

// negotiateAlgorithm picks the strongest encoding the client accepts.
// Priority: zstd > br > gzip.
func negotiateAlgorithm(acceptEncoding string) compressionAlgorithm {
	encodings := parseAcceptEncoding(acceptEncoding)
	switch {
	case encodings["zstd"] > 0:
		return algorithmZstd
	case encodings["br"] > 0:
		return algorithmBrotli
	case encodings["gzip"] > 0:
		return algorithmGzip
	default:
		return algorithmNone
	}
}

// parseAcceptEncoding returns the quality value per encoding token.
func parseAcceptEncoding(header string) map[string]float64 {
	encodings := make(map[string]float64)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		encoding := part
		qvalue := 1.0
		if idx := strings.Index(part, ";q="); idx != -1 {
			encoding = strings.TrimSpace(part[:idx])
			if q, err := strconv.ParseFloat(strings.TrimSpace(part[idx+3:]), 64); err == nil {
				qvalue = q
			}
		}

		if encoding == "*" {
			for _, e := range []string{"zstd", "br", "gzip"} {
				if _, seen := encodings[e]; !seen {
					encodings[e] = qvalue
				}
			}
			continue
		}
		encodings[encoding] = qvalue
	}
	return encodings
}
