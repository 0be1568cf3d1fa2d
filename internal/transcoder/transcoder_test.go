package transcoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/hapnesbitt/FroogleOne/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		VideoCodec:        "libx264",
		VideoPreset:       "veryslow",
		VideoCRF:          "16",
		VideoAudioCodec:   "aac",
		VideoAudioBitrate: "320k",
		VideoJobTimeout:   3 * time.Hour,
		AudioEncoder:      "libmp3lame",
		AudioOptions:      []string{"-q:a", "0", "-compression_level", "0"},
		AudioSampleRate:   "44100",
		AudioJobTimeout:   time.Hour,
	}
}

func TestVideoProfileArgs(t *testing.T) {
	p := VideoProfile(testConfig())

	want := []string{
		"-c:v", "libx264",
		"-preset", "veryslow",
		"-crf", "16",
		"-c:a", "aac",
		"-b:a", "320k",
		"-movflags", "+faststart",
		"-f", "mp4",
	}
	if !reflect.DeepEqual(p.Args, want) {
		t.Errorf("VideoProfile args = %v, want %v", p.Args, want)
	}
	if p.OutputExt != ".mp4" || p.OutputMIME != "video/mp4" {
		t.Errorf("output = %s %s", p.OutputExt, p.OutputMIME)
	}
	if p.Timeout != 3*time.Hour {
		t.Errorf("timeout = %v", p.Timeout)
	}
}

func TestAudioProfileArgs(t *testing.T) {
	p := AudioProfile(testConfig())

	want := []string{
		"-c:a", "libmp3lame",
		"-q:a", "0",
		"-compression_level", "0",
		"-ar", "44100",
		"-f", "mp3",
	}
	if !reflect.DeepEqual(p.Args, want) {
		t.Errorf("AudioProfile args = %v, want %v", p.Args, want)
	}
	if p.OutputExt != ".mp3" || p.OutputMIME != "audio/mpeg" {
		t.Errorf("output = %s %s", p.OutputExt, p.OutputMIME)
	}
}

func TestNewMissingBinary(t *testing.T) {
	if _, err := New("/no/such/ffmpeg-binary"); err == nil {
		t.Fatal("New() should fail for a missing binary")
	}
}

// fakeFFmpeg writes a shell script that stands in for the encoder. The
// last argument ffmpeg receives is the output path.
func fakeFFmpeg(t *testing.T, script string) *Transcoder {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub not available")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	tc, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tc
}

func TestConvertSuccess(t *testing.T) {
	tc := fakeFFmpeg(t, `for out; do :; done; printf converted > "$out"`)
	out := filepath.Join(t.TempDir(), "out.mp4")

	err := tc.Convert(context.Background(), Profile{Name: "video_mp4"}, "/dev/null", out)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "converted" {
		t.Errorf("output = %q, %v", data, err)
	}
}

func TestConvertEncoderFailure(t *testing.T) {
	tc := fakeFFmpeg(t, `echo "moov atom not found" >&2; exit 187`)

	err := tc.Convert(context.Background(), Profile{Name: "video_mp4"}, "/dev/null", filepath.Join(t.TempDir(), "out.mp4"))
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("Convert() error = %v, want *EncodeError", err)
	}
	if encErr.ExitCode != 187 {
		t.Errorf("exit code = %d, want 187", encErr.ExitCode)
	}
	if !strings.Contains(encErr.Stderr, "moov atom not found") {
		t.Errorf("stderr = %q", encErr.Stderr)
	}
}

func TestConvertTimeout(t *testing.T) {
	tc := fakeFFmpeg(t, `sleep 5`)

	err := tc.Convert(context.Background(), Profile{Name: "video_mp4", Timeout: 50 * time.Millisecond},
		"/dev/null", filepath.Join(t.TempDir(), "out.mp4"))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Convert() error = %v, want ErrTimeout", err)
	}
}

func TestTail(t *testing.T) {
	if got := tail([]byte("  short  "), 100); got != "short" {
		t.Errorf("tail(short) = %q", got)
	}
	long := strings.Repeat("a", 50) + "tail-end"
	if got := tail([]byte(long), 8); got != "tail-end" {
		t.Errorf("tail(long) = %q", got)
	}
}

func TestEncodeErrorMessage(t *testing.T) {
	err := &EncodeError{ExitCode: 1, Stderr: "bad input"}
	want := "ffmpeg exited with code 1: bad input"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
