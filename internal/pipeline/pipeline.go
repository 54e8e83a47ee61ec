package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reeltab/reeltab/internal/media"
	"github.com/reeltab/reeltab/internal/scanning"
	"github.com/reeltab/reeltab/internal/tabulate"
)

// ErrNoItems is returned when extraction succeeded but no line items were
// found on any frame. It is a user-facing "no items detected" condition,
// not a crash.
var ErrNoItems = errors.New("no line items detected on the receipt")

// Warning records a frame whose extraction produced nothing usable. The
// run continues without it.
type Warning struct {
	FrameIndex int    `json:"frame_index"`
	Message    string `json:"message"`
}

// Result is the terminal artifact of one pipeline run: the canonical
// line-item table plus any per-frame warnings. It belongs to exactly one
// run and has no cross-run identity.
type Result struct {
	Items    []tabulate.Item `json:"items"`
	Warnings []Warning       `json:"warnings,omitempty"`
}

// CSV serializes the result's canonical table.
func (r *Result) CSV() ([]byte, error) {
	return tabulate.WriteCSV(r.Items)
}

// Config carries the tunables for pipeline runs. It is immutable and
// shared read-only between concurrent runs.
type Config struct {
	// SimilarityThreshold is the SSIM cutoff for video frame sampling.
	// Too high wastes model calls on near-duplicates; too low can miss
	// receipt sections.
	SimilarityThreshold float64

	// DecodeFPS bounds video decoding work.
	DecodeFPS int

	// FuzzyThreshold is the name-similarity cutoff for deduplication.
	FuzzyThreshold float64

	// Concurrency bounds in-flight extraction calls per run.
	Concurrency int

	// RunDeadline aborts a whole run that exceeds it; zero means none.
	RunDeadline time.Duration
}

// DefaultConfig returns the documented defaults. The similarity threshold
// and decode rate were chosen empirically against panned receipt videos.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.32,
		DecodeFPS:           2,
		FuzzyThreshold:      0.84,
		Concurrency:         3,
	}
}

// Service runs receipt extraction pipelines. Runs share the extractor and
// config but no mutable state.
type Service struct {
	extractor scanning.Extractor
	tempDir   string
	cfg       Config
}

// NewService creates a new Service
func NewService(extractor scanning.Extractor, tempDir string, cfg Config) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Service{
		extractor: extractor,
		tempDir:   tempDir,
		cfg:       cfg,
	}
}

// ProcessUpload runs one full pipeline over an uploaded file: stage it in
// a scratch directory, derive frames, extract and aggregate. The scratch
// directory is removed on every exit path.
func (s *Service) ProcessUpload(ctx context.Context, filename string, data []byte, contentType string) (*Result, error) {
	wd, err := newWorkdir(s.tempDir)
	if err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	defer wd.Cleanup()

	path, err := wd.Save(filename, data)
	if err != nil {
		return nil, fmt.Errorf("staging upload: %w", err)
	}

	frames, err := media.Frames(path, data, contentType, media.SampleOptions{
		SimilarityThreshold: s.cfg.SimilarityThreshold,
		DecodeFPS:           s.cfg.DecodeFPS,
	})
	if err != nil {
		// No model call has happened yet, so no external cost is incurred
		return nil, err
	}
	slog.Info("Derived frames", "filename", filename, "content_type", contentType, "frames", len(frames))

	return s.ProcessFrames(ctx, frames)
}

// ProcessFrames extracts line items from an ordered frame sequence and
// aggregates them into one canonical table. Extraction calls run on a
// bounded worker pool; results are slotted by frame index so aggregation
// order never depends on response arrival order.
func (s *Service) ProcessFrames(ctx context.Context, frames []media.Frame) (*Result, error) {
	if s.cfg.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunDeadline)
		defer cancel()
	}

	perFrame := make([][]scanning.LineItem, len(frames))
	frameErrs := make([]error, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, frame := range frames {
		g.Go(func() error {
			items, err := s.extractor.ExtractItems(gctx, frame.PNG)
			if err != nil {
				// Degrades to a per-frame warning unless every frame fails
				frameErrs[i] = err
				return nil
			}
			perFrame[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extracting frames: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run aborted: %w", err)
	}

	var candidates []tabulate.Candidate
	var warnings []Warning
	failed := 0
	for i, items := range perFrame {
		if err := frameErrs[i]; err != nil {
			failed++
			slog.Warn("Frame extraction failed", "frame", i, "error", err)
			warnings = append(warnings, Warning{FrameIndex: i, Message: err.Error()})
			continue
		}
		if len(items) == 0 {
			warnings = append(warnings, Warning{FrameIndex: i, Message: "no line items found on frame"})
			continue
		}
		for _, item := range items {
			candidates = append(candidates, tabulate.Candidate{LineItem: item, Frame: i})
		}
	}

	if failed > 0 && failed == len(frames) {
		return nil, fmt.Errorf("extracting frames: all %d frames failed: %w", len(frames), frameErrs[len(frames)-1])
	}

	items := tabulate.Aggregate(candidates, tabulate.Options{FuzzyThreshold: s.cfg.FuzzyThreshold})
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	return &Result{Items: items, Warnings: warnings}, nil
}
