// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mholt/archives"

	"github.com/subgloss/subgloss/internal/subtitle"
)

// maxArchiveBytes caps provider archives; anything larger is refused.
const maxArchiveBytes = 25 << 20

// archiveKind identifies the container format from magic bytes.
type archiveKind string

const (
	archiveNone archiveKind = ""
	archiveZip  archiveKind = "zip"
	archiveRar  archiveKind = "rar"
	archiveGzip archiveKind = "gzip"
	archive7z   archiveKind = "7z"
	archiveTar  archiveKind = "tar"
)

// detectArchive sniffs the payload's magic bytes.
func detectArchive(data []byte) archiveKind {
	switch {
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return archiveZip
	case bytes.HasPrefix(data, []byte("Rar!\x1a\x07")):
		return archiveRar
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		return archiveGzip
	case bytes.HasPrefix(data, []byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c}):
		return archive7z
	case len(data) > 262 && bytes.Equal(data[257:262], []byte("ustar")):
		return archiveTar
	}
	return archiveNone
}

// subtitleExtensionRank orders extraction preference: real SRT first, then
// formats we can convert or pass through.
var subtitleExtensionRank = map[string]int{
	".srt": 0,
	".vtt": 1,
	".ass": 2,
	".ssa": 3,
}

// DecodePayload turns a raw provider download into subtitle text. Archives
// are detected by magic bytes and the best subtitle file inside is extracted;
// ASS/SSA is converted to SRT, VTT is preserved verbatim.
func DecodePayload(ctx context.Context, data []byte, minSizeBytes int) (string, error) {
	kind := detectArchive(data)
	if kind != archiveNone {
		if len(data) > maxArchiveBytes {
			return "", fmt.Errorf("%w: %d bytes", ErrArchiveTooLarge, len(data))
		}
		extracted, err := extractSubtitleFile(ctx, data)
		if err != nil {
			return "", err
		}
		data = extracted
	}

	if len(data) < minSizeBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooSmall, len(data))
	}

	text := string(data)
	switch {
	case subtitle.IsVTT(text):
		return text, nil
	case subtitle.IsASS(text):
		return subtitle.ASSToSRT(text), nil
	}
	return text, nil
}

func extractSubtitleFile(ctx context.Context, data []byte) ([]byte, error) {
	format, stream, err := archives.Identify(ctx, "", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("identify archive: %w", err)
	}

	if decomp, ok := format.(archives.Decompressor); ok {
		rc, err := decomp.OpenReader(stream)
		if err != nil {
			return nil, fmt.Errorf("open compressed stream: %w", err)
		}
		defer rc.Close()

		inner, err := io.ReadAll(io.LimitReader(rc, maxArchiveBytes+1))
		if err != nil {
			return nil, fmt.Errorf("decompress: %w", err)
		}
		if len(inner) > maxArchiveBytes {
			return nil, fmt.Errorf("%w: decompressed beyond cap", ErrArchiveTooLarge)
		}
		// A gzip member may itself wrap a tar archive.
		if detectArchive(inner) != archiveNone {
			return extractSubtitleFile(ctx, inner)
		}
		return inner, nil
	}

	extractor, ok := format.(archives.Extractor)
	if !ok {
		return nil, fmt.Errorf("unsupported archive format %T", format)
	}

	type entry struct {
		name    string
		rank    int
		content []byte
	}
	var entries []entry

	err = extractor.Extract(ctx, stream, func(ctx context.Context, f archives.FileInfo) error {
		if f.IsDir() {
			return nil
		}
		rank, wanted := subtitleExtensionRank[strings.ToLower(filepath.Ext(f.NameInArchive))]
		if !wanted {
			return nil
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.NameInArchive, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(io.LimitReader(rc, maxArchiveBytes+1))
		if err != nil {
			return fmt.Errorf("read %s: %w", f.NameInArchive, err)
		}
		if len(content) > maxArchiveBytes {
			return fmt.Errorf("%w: entry %s", ErrArchiveTooLarge, f.NameInArchive)
		}

		entries = append(entries, entry{name: f.NameInArchive, rank: rank, content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extract archive: %w", err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: archive holds no subtitle files", ErrNotFound)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].rank < entries[j].rank
	})
	return entries[0].content, nil
}
