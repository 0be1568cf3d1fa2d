// Package transcoder runs ffmpeg conversions for the ingestion workers.
// Inputs and outputs are paths on local disk; the worker owns staging and
// cleanup of both.
package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/hapnesbitt/FroogleOne/internal/config"
)

// ErrTimeout is returned when a conversion exceeds its profile's wall-clock
// limit. Timeouts are retried like any other encoder failure.
var ErrTimeout = errors.New("transcoder: conversion timed out")

// EncodeError is a non-zero ffmpeg exit. Stderr carries the tail of the
// encoder's diagnostics for the failure record.
type EncodeError struct {
	ExitCode int
	Stderr   string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("ffmpeg exited with code %d: %s", e.ExitCode, e.Stderr)
}

// Profile is one conversion target: the codec arguments placed between the
// input and output paths, plus the container's extension, MIME type, and
// wall-clock limit.
type Profile struct {
	Name       string
	Args       []string
	OutputExt  string
	OutputMIME string
	Timeout    time.Duration
}

// VideoProfile is the universal-playback MP4 target.
func VideoProfile(cfg *config.Config) Profile {
	return Profile{
		Name: "video_mp4",
		Args: []string{
			"-c:v", cfg.VideoCodec,
			"-preset", cfg.VideoPreset,
			"-crf", cfg.VideoCRF,
			"-c:a", cfg.VideoAudioCodec,
			"-b:a", cfg.VideoAudioBitrate,
			"-movflags", "+faststart",
			"-f", "mp4",
		},
		OutputExt:  ".mp4",
		OutputMIME: "video/mp4",
		Timeout:    cfg.VideoJobTimeout,
	}
}

// AudioProfile is the highest-quality VBR MP3 target.
func AudioProfile(cfg *config.Config) Profile {
	args := []string{"-c:a", cfg.AudioEncoder}
	args = append(args, cfg.AudioOptions...)
	args = append(args,
		"-ar", cfg.AudioSampleRate,
		"-f", "mp3",
	)
	return Profile{
		Name:       "audio_mp3",
		Args:       args,
		OutputExt:  ".mp3",
		OutputMIME: "audio/mpeg",
		Timeout:    cfg.AudioJobTimeout,
	}
}

// stderr tail kept for failure records.
const maxStderr = 4096

// Transcoder invokes ffmpeg.
type Transcoder struct {
	ffmpegPath string
}

func New(ffmpegPath string) (*Transcoder, error) {
	if _, err := exec.LookPath(ffmpegPath); err != nil {
		return nil, fmt.Errorf("ffmpeg not found at %q: %w", ffmpegPath, err)
	}
	return &Transcoder{ffmpegPath: ffmpegPath}, nil
}

// Convert runs one conversion under the profile's wall-clock limit. The
// output file is overwritten if present. A non-zero exit returns an
// *EncodeError; exceeding the limit returns ErrTimeout.
func (t *Transcoder) Convert(ctx context.Context, profile Profile, inputPath, outputPath string) error {
	if profile.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, profile.Timeout)
		defer cancel()
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-i", inputPath}
	args = append(args, profile.Args...)
	args = append(args, "-y", outputPath)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s (%s)", ErrTimeout, profile.Timeout, profile.Name)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &EncodeError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   tail(stderr.Bytes(), maxStderr),
		}
	}
	return fmt.Errorf("run ffmpeg (%s): %w", profile.Name, err)
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(bytes.TrimSpace(b))
}
