package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"

	"github.com/hapnesbitt/FroogleOne/internal/logger"
	"github.com/hapnesbitt/FroogleOne/internal/metrics"
	"github.com/hapnesbitt/FroogleOne/internal/store"
	"github.com/hapnesbitt/FroogleOne/internal/transcoder"
)

// Converter runs one media conversion. Satisfied by *transcoder.Transcoder.
type Converter interface {
	Convert(ctx context.Context, profile transcoder.Profile, inputPath, outputPath string) error
}

// Dependencies is everything the job handlers need.
type Dependencies struct {
	Store       store.Store
	Transcoder  Converter
	Dispatcher  *Dispatcher
	Intake      *Intake
	StorageRoot string
	ScratchDir  string
}

// VideoTranscodeHandler converts staged uploads to MP4.
func VideoTranscodeHandler(deps *Dependencies, profile transcoder.Profile) func(context.Context, *job.Job) error {
	return transcodeHandler(deps, JobTypeVideoTranscode, "Video", profile)
}

// AudioTranscodeHandler converts staged uploads to MP3.
func AudioTranscodeHandler(deps *Dependencies, profile transcoder.Profile) func(context.Context, *job.Job) error {
	return transcodeHandler(deps, JobTypeAudioTranscode, "Audio", profile)
}

func transcodeHandler(deps *Dependencies, jobType, label string, profile transcoder.Profile) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		log := logger.FromContext(ctx).With("job_id", j.ID, "job_type", jobType)
		start := time.Now()

		var payload TranscodePayload
		if err := j.UnmarshalPayload(&payload); err != nil {
			log.Error("invalid payload", "error", err)
			return middleware.Permanent(fmt.Errorf("invalid payload: %w", err))
		}
		log = log.With("media_id", payload.MediaID, "file", payload.OriginalFilename, "attempt", payload.Attempt)
		log.Info("job started", "user", payload.UploaderID)

		if err := deps.Store.SetMediaFields(ctx, payload.MediaID, map[string]string{
			store.FieldProcessingStatus: string(store.StatusProcessing),
		}); err != nil {
			// Not fatal: the conversion result write below is what matters.
			log.Warn("failed to mark record processing", "error", err)
		}

		convertStart := time.Now()
		convErr := deps.Transcoder.Convert(ctx, profile, payload.InputPath, payload.OutputPath)
		metrics.RecordJobStage(jobType, "convert", time.Since(convertStart).Seconds())

		if convErr == nil {
			finalName := filepath.Base(payload.OutputPath)
			relPath := filepath.Join(payload.BatchPathSegment, finalName)
			fields := store.CompletedFields(finalName, relPath, profile.OutputMIME)
			if err := deps.Store.SetMediaFields(ctx, payload.MediaID, fields); err != nil {
				log.Error("failed to write completed record", "error", err)
				return fmt.Errorf("write completed record for %s: %w", payload.MediaID, err)
			}
			removeStagedInput(log, payload.InputPath)
			log.Info("job completed", "duration_ms", time.Since(start).Milliseconds(), "output", finalName)
			return nil
		}

		reason, message := classifyConversionError(label, convErr)
		log.Error("conversion failed", "reason", reason, "error", convErr)

		if payload.Attempt < deps.Dispatcher.MaxAttempts() {
			retry := payload
			retry.Attempt++
			deps.Dispatcher.RetryLater(jobType, retry, payload.Attempt)
			return nil
		}

		metrics.RecordTranscodeFailure(jobType, reason)
		finalizeFailure(ctx, deps.Store, log, payload.MediaID, store.StatusFailed, message)
		removeStagedInput(log, payload.InputPath)
		return middleware.Permanent(convErr)
	}
}

// classifyConversionError maps a conversion error onto a metrics reason and
// the client-visible error message.
func classifyConversionError(label string, err error) (reason, message string) {
	var encErr *transcoder.EncodeError
	switch {
	case errors.As(err, &encErr):
		return "encode_failed", fmt.Sprintf("%s conversion error (rc %d): %s",
			label, encErr.ExitCode, truncate(encErr.Stderr, 200))
	case errors.Is(err, transcoder.ErrTimeout):
		return "timeout", label + " conversion timeout."
	default:
		return "unexpected", "Unexpected error: " + truncate(err.Error(), 100)
	}
}

// finalizeFailure writes a terminal failure unless a successful run of the
// same job already completed the record. A stale duplicate execution must
// never clobber a completed result.
func finalizeFailure(ctx context.Context, st store.Store, log *slog.Logger, mediaID string, status store.Status, message string) {
	current, err := st.MediaStatus(ctx, mediaID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error("failed to read record status before finalizing", "error", err)
		return
	}
	if current.IsTerminalSuccess() {
		log.Warn("record already completed, keeping existing result", "status", string(current))
		return
	}
	if err := st.SetMediaFields(ctx, mediaID, store.FailedFields(status, message)); err != nil {
		log.Error("failed to write failure record", "error", err)
	}
}

func removeStagedInput(log *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Error("failed to remove staged input", "path", path, "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
