package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          int
	MaxUploadSize int64
	BaseURL       string

	Environment string
	LogLevel    string

	RedisURL string

	// StorageRoot is the directory under which per-batch media directories
	// ({owner}/{batchID}) are created. ScratchDir holds archive extraction
	// directories and transcode inputs awaiting processing.
	StorageRoot string
	ScratchDir  string

	FFmpegPath string

	VideoCodec        string
	VideoPreset       string
	VideoCRF          string
	VideoAudioCodec   string
	VideoAudioBitrate string
	VideoFormats      map[string]struct{}
	VideoJobTimeout   time.Duration

	AudioEncoder    string
	AudioOptions    []string
	AudioSampleRate string
	AudioFormats    map[string]struct{}
	AudioJobTimeout time.Duration

	WorkerConcurrency int
	MaxRetries        int
	VideoRetryDelay   time.Duration
	AudioRetryDelay   time.Duration

	JWTSecret     string
	SessionMaxAge time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Port = getEnvInt("PORT", 8080)
	cfg.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 9000*1024*1024)
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg.StorageRoot = getEnvString("STORAGE_ROOT", "static/uploads")
	cfg.ScratchDir = getEnvString("SCRATCH_DIR", "")
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = cfg.StorageRoot + "/temp_zip_extracts"
	}

	cfg.FFmpegPath = getEnvString("FFMPEG_PATH", "ffmpeg")

	cfg.VideoCodec = getEnvString("VIDEO_MP4_VIDEO_CODEC", "libx264")
	cfg.VideoPreset = getEnvString("VIDEO_MP4_VIDEO_PRESET", "veryslow")
	cfg.VideoCRF = getEnvString("VIDEO_MP4_VIDEO_CRF", "16")
	cfg.VideoAudioCodec = getEnvString("VIDEO_MP4_AUDIO_CODEC", "aac")
	cfg.VideoAudioBitrate = getEnvString("VIDEO_MP4_AUDIO_BITRATE", "320k")
	cfg.VideoFormats = getEnvSet("VIDEO_FORMATS_TO_CONVERT_TO_MP4", "mkv,mov,avi,wmv,flv")
	cfg.VideoJobTimeout, err = getEnvDuration("VIDEO_JOB_TIMEOUT", "180m")
	if err != nil {
		return nil, fmt.Errorf("invalid VIDEO_JOB_TIMEOUT: %w", err)
	}

	cfg.AudioEncoder = getEnvString("AUDIO_MP3_ENCODER", "libmp3lame")
	cfg.AudioOptions = strings.Fields(getEnvString("AUDIO_MP3_OPTIONS", "-q:a 0 -compression_level 0"))
	cfg.AudioSampleRate = getEnvString("AUDIO_MP3_SAMPLE_RATE", "44100")
	cfg.AudioFormats = getEnvSet("AUDIO_FORMATS_TO_CONVERT_TO_MP3", "wav,flac,m4a,aac,ogg,opus")
	cfg.AudioJobTimeout, err = getEnvDuration("AUDIO_JOB_TIMEOUT", "60m")
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIO_JOB_TIMEOUT: %w", err)
	}

	cfg.WorkerConcurrency = getEnvInt("WORKER_CONCURRENCY", 4)
	cfg.MaxRetries = getEnvInt("MAX_RETRIES", 3)
	cfg.VideoRetryDelay, err = getEnvDuration("VIDEO_RETRY_BASE_DELAY", "120s")
	if err != nil {
		return nil, fmt.Errorf("invalid VIDEO_RETRY_BASE_DELAY: %w", err)
	}
	cfg.AudioRetryDelay, err = getEnvDuration("AUDIO_RETRY_BASE_DELAY", "60s")
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIO_RETRY_BASE_DELAY: %w", err)
	}

	cfg.JWTSecret = getEnvString("JWT_SECRET", "change-me-in-production")
	cfg.SessionMaxAge, err = getEnvDuration("SESSION_MAX_AGE", "720h")
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_MAX_AGE: %w", err)
	}

	cfg.Environment = getEnvString("ENVIRONMENT", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxUploadSize < 1 {
		return fmt.Errorf("invalid max upload size: %d", c.MaxUploadSize)
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("invalid worker concurrency: %d", c.WorkerConcurrency)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid max retries: %d", c.MaxRetries)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return time.ParseDuration(value)
}

// getEnvSet parses a comma-separated list into a lowercase membership set.
// An explicitly empty value yields an empty set, disabling that conversion
// class entirely.
func getEnvSet(key, defaultValue string) map[string]struct{} {
	raw, ok := os.LookupEnv(key)
	if !ok {
		raw = defaultValue
	}
	set := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			set[part] = struct{}{}
		}
	}
	return set
}
