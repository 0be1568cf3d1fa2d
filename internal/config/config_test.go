package config

import (
	"testing"
	"time"
)

func TestLoadRequiresRedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without REDIS_URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.FFmpegPath != "ffmpeg" {
		t.Errorf("FFmpegPath = %q", cfg.FFmpegPath)
	}
	if cfg.VideoCodec != "libx264" || cfg.VideoPreset != "veryslow" || cfg.VideoCRF != "16" {
		t.Errorf("video settings = %s/%s/%s", cfg.VideoCodec, cfg.VideoPreset, cfg.VideoCRF)
	}
	if cfg.VideoJobTimeout != 180*time.Minute {
		t.Errorf("VideoJobTimeout = %v", cfg.VideoJobTimeout)
	}
	if cfg.AudioJobTimeout != 60*time.Minute {
		t.Errorf("AudioJobTimeout = %v", cfg.AudioJobTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.VideoRetryDelay != 120*time.Second || cfg.AudioRetryDelay != 60*time.Second {
		t.Errorf("retry delays = %v/%v", cfg.VideoRetryDelay, cfg.AudioRetryDelay)
	}
	if cfg.ScratchDir != "static/uploads/temp_zip_extracts" {
		t.Errorf("ScratchDir = %q", cfg.ScratchDir)
	}

	for _, ext := range []string{"mkv", "mov", "avi", "wmv", "flv"} {
		if _, ok := cfg.VideoFormats[ext]; !ok {
			t.Errorf("VideoFormats missing %q", ext)
		}
	}
	if _, ok := cfg.VideoFormats["mp4"]; ok {
		t.Error("mp4 must not be in the convert set")
	}
	for _, ext := range []string{"wav", "flac", "m4a", "aac", "ogg", "opus"} {
		if _, ok := cfg.AudioFormats[ext]; !ok {
			t.Errorf("AudioFormats missing %q", ext)
		}
	}
	if _, ok := cfg.AudioFormats["mp3"]; ok {
		t.Error("mp3 must not be in the convert set")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PORT", "9999")
	t.Setenv("VIDEO_FORMATS_TO_CONVERT_TO_MP4", "MKV, mov")
	t.Setenv("VIDEO_RETRY_BASE_DELAY", "30s")
	t.Setenv("SCRATCH_DIR", "/tmp/scratch")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if len(cfg.VideoFormats) != 2 {
		t.Errorf("VideoFormats = %v, want lowercased mkv+mov", cfg.VideoFormats)
	}
	if _, ok := cfg.VideoFormats["mkv"]; !ok {
		t.Error("MKV should be lowercased into the set")
	}
	if cfg.VideoRetryDelay != 30*time.Second {
		t.Errorf("VideoRetryDelay = %v", cfg.VideoRetryDelay)
	}
	if cfg.ScratchDir != "/tmp/scratch" {
		t.Errorf("ScratchDir = %q", cfg.ScratchDir)
	}
}

func TestLoadEmptyConvertSetDisables(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("AUDIO_FORMATS_TO_CONVERT_TO_MP3", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.AudioFormats) != 0 {
		t.Errorf("explicitly empty set should disable audio conversion, got %v", cfg.AudioFormats)
	}
}

func TestLoadBadDuration(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("VIDEO_JOB_TIMEOUT", "three hours")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject an unparseable duration")
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}

	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject port 0")
	}
	cfg.Port = 8080

	cfg.WorkerConcurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject zero concurrency")
	}
}
