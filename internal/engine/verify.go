package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/scbundle/scb/internal/bundle"
	"github.com/scbundle/scb/internal/event"
	"github.com/scbundle/scb/internal/stats"
)

// VerifyConfig controls a round-trip verification.
type VerifyConfig struct {
	// Encode selects the tree and filters exactly as a merge would.
	Encode EncodeConfig
	// ScratchDir is where the decoded tree is written. Defaults to the
	// system temp directory. The scratch tree is removed afterwards.
	ScratchDir string
}

// VerifyResult holds the outcome of a verification pass.
type VerifyResult struct {
	Verified int64
	Failed   int64
	// Skipped counts degraded and transcoded files, which cannot round-trip
	// byte for byte.
	Skipped int64
	Errors  []VerifyError
}

// VerifyError records a single checksum mismatch.
type VerifyError struct {
	Path    string
	SrcHash string
	DstHash string
}

// Verify encodes the tree, decodes the bundle into a scratch directory and
// compares BLAKE3 checksums of every UTF-8 source file with its copy.
func Verify(ctx context.Context, cfg VerifyConfig) (VerifyResult, error) {
	encCfg := cfg.Encode
	events := encCfg.Events
	collector := encCfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
		encCfg.Stats = collector
	}
	event.Emit(events, event.Event{Type: event.VerifyStarted})

	// Per-file encode events would be reported twice.
	encCfg.Events = nil
	encCfg.Progress = nil
	enc, err := Encode(ctx, encCfg)
	if err != nil {
		return VerifyResult{}, err
	}

	scratch, err := os.MkdirTemp(cfg.ScratchDir, "scb-verify-*")
	if err != nil {
		return VerifyResult{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	_, err = Materialize(ctx, bundle.Decode(enc.Bundle), MaterializeConfig{
		Root:   scratch,
		Mode:   OverwriteReplace,
		Logger: encCfg.Logger,
	})
	if err != nil {
		return VerifyResult{}, fmt.Errorf("decode into scratch: %w", err)
	}

	var result VerifyResult
	mismatch := func(f EncodedFile, src, dst string, err error) {
		result.Failed++
		result.Errors = append(result.Errors, VerifyError{Path: f.Path, SrcHash: src, DstHash: dst})
		collector.AddFilesVerifyFailed(1)
		event.Emit(events, event.Event{Type: event.VerifyFailed, Path: f.Path, Error: err})
	}

	for _, f := range enc.Files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if f.Degraded || f.Encoding != bundle.UTF8 {
			result.Skipped++
			continue
		}

		srcHash, err := HashFile(f.Source)
		if err != nil {
			mismatch(f, "error", "n/a", err)
			continue
		}
		dstHash, err := HashFile(filepath.Join(scratch, filepath.FromSlash(f.Path)))
		if err != nil {
			mismatch(f, srcHash, "error", err)
			continue
		}
		if srcHash != dstHash {
			mismatch(f, srcHash, dstHash, nil)
			continue
		}

		result.Verified++
		collector.AddFilesVerified(1)
		event.Emit(events, event.Event{Type: event.VerifyOK, Path: f.Path})
	}
	return result, nil
}
