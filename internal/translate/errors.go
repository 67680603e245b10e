// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package translate

import (
	"errors"
	"fmt"
)

// ErrorType labels a translation failure with the model- or transport-level
// cause. The orchestrator persists the type so a cached failure can be shown
// to the user and retried appropriately.
type ErrorType string

const (
	ErrorSafety        ErrorType = "SAFETY"
	ErrorRecitation    ErrorType = "RECITATION"
	ErrorMaxTokens     ErrorType = "MAX_TOKENS"
	ErrorRateLimited   ErrorType = "429"
	ErrorUnavailable   ErrorType = "503"
	ErrorInvalidSource ErrorType = "INVALID_SOURCE"
	ErrorOther         ErrorType = "other"
)

// Error is a classified translation failure.
type Error struct {
	Type    ErrorType
	Message string

	// ShouldChunk is set on a single-shot MAX_TOKENS failure: the same input
	// is expected to succeed when split into chunks.
	ShouldChunk bool
	// NeedsSmallerChunks is set when even a chunked request overflowed with
	// near-empty output.
	NeedsSmallerChunks bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("translation failed (%s): %s", e.Type, e.Message)
}

func newError(t ErrorType, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Classify extracts the *Error from err, wrapping unknown failures as
// ErrorOther so callers always get a typed result.
func Classify(err error) *Error {
	var terr *Error
	if errors.As(err, &terr) {
		return terr
	}
	return &Error{Type: ErrorOther, Message: err.Error()}
}

// retryable reports whether the failure is transient: the model is overloaded
// or rate limiting, and a backed-off retry is worthwhile.
func retryable(err error) bool {
	var terr *Error
	if !errors.As(err, &terr) {
		return true // transport errors
	}
	return terr.Type == ErrorUnavailable || terr.Type == ErrorRateLimited
}
