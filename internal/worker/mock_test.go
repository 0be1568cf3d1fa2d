package worker

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"

	"github.com/hapnesbitt/FroogleOne/internal/config"
	"github.com/hapnesbitt/FroogleOne/internal/logger"
	"github.com/hapnesbitt/FroogleOne/internal/store"
	"github.com/hapnesbitt/FroogleOne/internal/transcoder"
)

type enqueueCall struct {
	JobType string
	Payload interface{}
}

type mockBroker struct {
	mu sync.Mutex

	EnqueueErr error
	Calls      []enqueueCall
}

func (m *mockBroker) Enqueue(jobType string, payload interface{}) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return "", m.EnqueueErr
	}
	m.Calls = append(m.Calls, enqueueCall{JobType: jobType, Payload: payload})
	return "job-" + jobType, nil
}

func (m *mockBroker) calls() []enqueueCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]enqueueCall, len(m.Calls))
	copy(out, m.Calls)
	return out
}

// fakeConverter substitutes for ffmpeg in handler tests.
type fakeConverter struct {
	mu sync.Mutex

	ConvertErr error
	Calls      int
}

func (f *fakeConverter) Convert(_ context.Context, _ transcoder.Profile, _, outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.ConvertErr != nil {
		return f.ConvertErr
	}
	return writeFile(outputPath, []byte("converted"))
}

func newTestConfig() *config.Config {
	return &config.Config{
		VideoFormats:    map[string]struct{}{"mkv": {}, "mov": {}, "avi": {}, "wmv": {}, "flv": {}},
		AudioFormats:    map[string]struct{}{"wav": {}, "flac": {}, "m4a": {}, "aac": {}, "ogg": {}, "opus": {}},
		MaxRetries:      3,
		VideoRetryDelay: 120 * time.Second,
		AudioRetryDelay: 60 * time.Second,
	}
}

type testEnv struct {
	Store      *store.MemoryStore
	Broker     *mockBroker
	Converter  *fakeConverter
	Deps       *Dependencies
	Cfg        *config.Config
	StorageDir string
	ScratchDir string
}

// newTestEnv wires handlers against in-memory infrastructure. Retry timers
// fire synchronously so scheduled retries land in the mock broker before
// the handler returns.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := newTestConfig()
	st := store.NewMemoryStore()
	b := &mockBroker{}
	conv := &fakeConverter{}

	d := NewDispatcher(b, cfg, logger.NewTestLogger())
	d.afterFunc = func(_ time.Duration, f func()) *time.Timer {
		f()
		return nil
	}

	storageDir := t.TempDir()
	scratchDir := t.TempDir()

	return &testEnv{
		Store:     st,
		Broker:    b,
		Converter: conv,
		Deps: &Dependencies{
			Store:       st,
			Transcoder:  conv,
			Dispatcher:  d,
			Intake:      NewIntake(cfg),
			StorageRoot: storageDir,
			ScratchDir:  scratchDir,
		},
		Cfg:        cfg,
		StorageDir: storageDir,
		ScratchDir: scratchDir,
	}
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func newTestJob(t *testing.T, jobType string, payload interface{}) *job.Job {
	t.Helper()
	j, err := job.New(jobType, payload)
	if err != nil {
		t.Fatalf("job.New() error = %v", err)
	}
	return j
}
