// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package translate turns SRT text into another language via the Gemini API,
// chunking oversized files and salvaging partial output where possible.
package translate

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"

	"github.com/subgloss/subgloss/internal/subtitle"
)

// Client is the LLM surface the engine drives. *GeminiClient implements it;
// tests substitute fakes.
type Client interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	StreamGenerateContent(ctx context.Context, prompt string, onDelta func(sofar string)) (string, error)
	OutputTokenCap() int
}

// Progress receives the full translated-so-far SRT text. chunkDone marks a
// snapshot taken right after a chunk finished, as opposed to a mid-stream
// token delta. It may be called from the translation goroutine at any rate;
// implementations must be fast.
type Progress func(partial string, chunkDone bool)

// maxTokensAcceptRatio: a MAX_TOKENS result at least this fraction of the
// source length is accepted as a usable partial translation.
const maxTokensAcceptRatio = 0.3

// Options tune retry and pacing behavior; zero values take the defaults.
type Options struct {
	// Attempts per chunk for transient failures.
	Attempts uint
	// RetryBaseDelay is doubled on each attempt (2s, 4s, 8s by default).
	RetryBaseDelay time.Duration
	// ChunkDelayMin/Max bound the pause between consecutive chunks.
	ChunkDelayMin time.Duration
	ChunkDelayMax time.Duration
}

func (o *Options) defaults() {
	if o.Attempts == 0 {
		o.Attempts = 3
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 2 * time.Second
	}
	if o.ChunkDelayMin <= 0 {
		o.ChunkDelayMin = 500 * time.Millisecond
	}
	if o.ChunkDelayMax <= o.ChunkDelayMin {
		o.ChunkDelayMax = o.ChunkDelayMin + 500*time.Millisecond
	}
}

// Engine is the translation engine.
type Engine struct {
	client Client
	opts   Options
}

// NewEngine builds an engine over the given client.
func NewEngine(client Client, opts Options) *Engine {
	opts.defaults()
	return &Engine{client: client, opts: opts}
}

// Translate converts SRT text to the target language. Large inputs are
// chunked; progress (optional) observes partial output as it accumulates.
// Failures come back as *Error.
func (e *Engine) Translate(ctx context.Context, srt, targetLanguage string, progress Progress) (string, error) {
	if strings.TrimSpace(srt) == "" {
		return "", newError(ErrorInvalidSource, "empty source subtitle")
	}

	estimated := EstimateTokens(srt)
	capTokens := e.client.OutputTokenCap()
	chunked := estimated > singleShotTokenLimit || estimated > int(float64(capTokens)*outputCapRatio)

	log.Debug().
		Int("estimatedTokens", estimated).
		Int("outputCap", capTokens).
		Bool("chunked", chunked).
		Str("targetLanguage", targetLanguage).
		Msg("starting translation")

	if !chunked {
		out, err := e.translateSingleShot(ctx, srt, targetLanguage, progress)
		if err == nil {
			return out, nil
		}

		terr := Classify(err)
		if terr.Type != ErrorMaxTokens {
			return "", terr
		}
		if float64(len(out)) >= maxTokensAcceptRatio*float64(len(srt)) {
			log.Warn().Int("outputLen", len(out)).Msg("accepting truncated single-shot translation")
			return finalize(out)
		}
		// Too little output to salvage: the same input should fit chunked.
		terr.ShouldChunk = true
		log.Warn().Msg("single-shot translation overflowed, retrying chunked")
	}

	return e.translateChunked(ctx, srt, targetLanguage, progress)
}

func (e *Engine) translateSingleShot(ctx context.Context, srt, targetLanguage string, progress Progress) (string, error) {
	chunk := Chunk{Entries: splitEntries(srt)}
	out, err := e.callModel(ctx, buildPrompt(chunk, targetLanguage), progress != nil, func(sofar string) {
		if progress != nil {
			progress(CleanOutput(sofar), false)
		}
	})
	if err != nil {
		return CleanOutput(out), err
	}
	return finalize(out)
}

func (e *Engine) translateChunked(ctx context.Context, srt, targetLanguage string, progress Progress) (string, error) {
	// Chunks must also fit the model's output budget, which can be tighter
	// than the default target on small-cap models.
	target := chunkTargetTokens
	if byCap := int(float64(e.client.OutputTokenCap()) * outputCapRatio); byCap < target {
		target = byCap
	}

	entries := splitEntries(srt)
	chunks := buildChunks(entries, target)

	log.Debug().Int("chunks", len(chunks)).Int("entries", len(entries)).Msg("chunked translation")

	var translated []string
	for i, chunk := range chunks {
		if i > 0 {
			if err := e.interChunkDelay(ctx); err != nil {
				return "", Classify(err)
			}
		}

		prefix := strings.Join(translated, "\n\n")
		if prefix != "" {
			prefix += "\n\n"
		}
		out, err := e.callModel(ctx, buildPrompt(chunk, targetLanguage), progress != nil, func(sofar string) {
			if progress != nil {
				progress(prefix+CleanOutput(sofar), false)
			}
		})
		if err != nil {
			terr := Classify(err)
			if terr.Type == ErrorMaxTokens && float64(len(out)) >= maxTokensAcceptRatio*float64(len(chunk.Text())) {
				log.Warn().Int("chunk", i).Msg("accepting truncated chunk translation")
			} else {
				if terr.Type == ErrorMaxTokens {
					terr.NeedsSmallerChunks = true
				}
				return "", terr
			}
		}

		translated = append(translated, CleanOutput(out))
		if progress != nil {
			progress(strings.Join(translated, "\n\n"), true)
		}
	}

	return finalize(strings.Join(translated, "\n\n"))
}

// callModel issues one request with backed-off retries on transient failures.
// The partial output of the final attempt is returned alongside any error so
// MAX_TOKENS salvage can inspect it.
func (e *Engine) callModel(ctx context.Context, prompt string, streaming bool, onDelta func(string)) (string, error) {
	var out string

	err := retry.Do(
		func() error {
			var err error
			if streaming {
				out, err = e.client.StreamGenerateContent(ctx, prompt, onDelta)
			} else {
				out, err = e.client.GenerateContent(ctx, prompt)
			}
			if err != nil && !retryable(err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Attempts(e.opts.Attempts),
		retry.Delay(e.opts.RetryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	return out, err
}

// interChunkDelay sleeps a randomized interval between chunks to stay under
// rate limits.
func (e *Engine) interChunkDelay(ctx context.Context) error {
	span := e.opts.ChunkDelayMax - e.opts.ChunkDelayMin
	delay := e.opts.ChunkDelayMin + time.Duration(rand.Int63n(int64(span)+1))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finalize reparses the merged model output, dropping malformed entries and
// reindexing from 1 so the result is always well-formed SRT.
func finalize(out string) (string, error) {
	cues := subtitle.Sanitize(subtitle.Parse(CleanOutput(out)))
	if len(cues) == 0 {
		return "", newError(ErrorOther, "model output contained no parseable subtitle entries")
	}
	return subtitle.Format(cues), nil
}
