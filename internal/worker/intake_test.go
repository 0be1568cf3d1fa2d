package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hapnesbitt/FroogleOne/internal/store"
)

func stageInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("stage input: %v", err)
	}
	return path
}

func placeOne(t *testing.T, env *testEnv, req PlaceRequest) Placement {
	t.Helper()
	pipe := env.Store.Pipeline()
	placement, err := env.Deps.Intake.Place(pipe, req)
	if err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	if err := pipe.Exec(context.Background()); err != nil {
		t.Fatalf("pipeline exec: %v", err)
	}
	return placement
}

func TestPlaceVideoQueuesTranscode(t *testing.T) {
	env := newTestEnv(t)
	batchDir := filepath.Join(env.StorageDir, "alice", "b1")
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		t.Fatal(err)
	}
	input := stageInput(t, batchDir, "itm1_input.mov")

	placement := placeOne(t, env, PlaceRequest{
		BatchID:          "b1",
		BatchPathSegment: filepath.Join("alice", "b1"),
		BatchDir:         batchDir,
		UploaderID:       "alice",
		InputPath:        input,
		OriginalFilename: "clip.mov",
	})

	if placement.Disposition != DispositionQueuedVideo {
		t.Errorf("disposition = %q, want %q", placement.Disposition, DispositionQueuedVideo)
	}
	if placement.Job == nil {
		t.Fatal("expected a pending transcode job")
	}
	if placement.Job.Type != JobTypeVideoTranscode {
		t.Errorf("job type = %q", placement.Job.Type)
	}
	if got := filepath.Base(placement.Job.Payload.OutputPath); got != "clip.mp4" {
		t.Errorf("output file = %q, want clip.mp4", got)
	}
	if placement.Job.Payload.InputPath != input {
		t.Errorf("payload input = %q, want %q", placement.Job.Payload.InputPath, input)
	}

	item, err := env.Store.GetMediaItem(context.Background(), placement.Item.ID)
	if err != nil {
		t.Fatalf("GetMediaItem() error = %v", err)
	}
	if item.Status != store.StatusQueued {
		t.Errorf("status = %q, want queued", item.Status)
	}
	if item.Filepath != "" {
		t.Errorf("queued item has filepath %q, want empty until completion", item.Filepath)
	}
	if item.FilenameOnDisk != "itm1_input.mov" {
		t.Errorf("filename_on_disk = %q", item.FilenameOnDisk)
	}
	if _, err := os.Stat(input); err != nil {
		t.Errorf("queued input should stay staged: %v", err)
	}

	ids, _ := env.Store.BatchItemIDs(context.Background(), "b1")
	if len(ids) != 1 || ids[0] != placement.Item.ID {
		t.Errorf("batch items = %v", ids)
	}
}

func TestPlaceAudioQueuesTranscode(t *testing.T) {
	env := newTestEnv(t)
	batchDir := t.TempDir()
	input := stageInput(t, batchDir, "x_input.wav")

	placement := placeOne(t, env, PlaceRequest{
		BatchID:          "b1",
		BatchPathSegment: "alice/b1",
		BatchDir:         batchDir,
		UploaderID:       "alice",
		InputPath:        input,
		OriginalFilename: "take 1.wav",
	})

	if placement.Disposition != DispositionQueuedAudio {
		t.Fatalf("disposition = %q", placement.Disposition)
	}
	if placement.Job.Type != JobTypeAudioTranscode {
		t.Errorf("job type = %q", placement.Job.Type)
	}
	if got := filepath.Base(placement.Job.Payload.OutputPath); got != "take_1.mp3" {
		t.Errorf("output file = %q, want take_1.mp3", got)
	}
}

func TestPlaceDirectMediaMovesFile(t *testing.T) {
	env := newTestEnv(t)
	batchDir := t.TempDir()
	input := stageInput(t, batchDir, "y_input.jpg")

	placement := placeOne(t, env, PlaceRequest{
		BatchID:          "b1",
		BatchPathSegment: "alice/b1",
		BatchDir:         batchDir,
		UploaderID:       "alice",
		InputPath:        input,
		OriginalFilename: "photo.jpg",
	})

	if placement.Disposition != DispositionDirect {
		t.Fatalf("disposition = %q", placement.Disposition)
	}
	if placement.Job != nil {
		t.Error("direct media should not queue a job")
	}
	if placement.Item.Status != store.StatusCompleted {
		t.Errorf("status = %q, want completed", placement.Item.Status)
	}
	if want := filepath.Join("alice/b1", "photo.jpg"); placement.Item.Filepath != want {
		t.Errorf("filepath = %q, want %q", placement.Item.Filepath, want)
	}
	if _, err := os.Stat(filepath.Join(batchDir, "photo.jpg")); err != nil {
		t.Errorf("final file missing: %v", err)
	}
	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Errorf("staged input should have been moved, stat err = %v", err)
	}
	if placement.Item.Mimetype != "image/jpeg" {
		t.Errorf("mimetype = %q", placement.Item.Mimetype)
	}
}

func TestPlaceUnknownExtensionStoredAsBlob(t *testing.T) {
	env := newTestEnv(t)
	batchDir := t.TempDir()
	input := stageInput(t, batchDir, "z_input.xyz")

	placement := placeOne(t, env, PlaceRequest{
		BatchID:          "b1",
		BatchPathSegment: "alice/b1",
		BatchDir:         batchDir,
		UploaderID:       "alice",
		InputPath:        input,
		OriginalFilename: "data.xyz",
	})

	if placement.Disposition != DispositionBlob {
		t.Fatalf("disposition = %q", placement.Disposition)
	}
	if placement.Item.ItemType != store.ItemTypeBlob {
		t.Errorf("item type = %q, want blob", placement.Item.ItemType)
	}
	if placement.Item.Mimetype != "application/octet-stream" {
		t.Errorf("mimetype = %q", placement.Item.Mimetype)
	}
}

func TestPlaceForceBlobOverridesClassification(t *testing.T) {
	env := newTestEnv(t)
	batchDir := t.TempDir()
	input := stageInput(t, batchDir, "w_input.jpg")

	placement := placeOne(t, env, PlaceRequest{
		BatchID:          "b1",
		BatchPathSegment: "alice/b1",
		BatchDir:         batchDir,
		UploaderID:       "alice",
		InputPath:        input,
		OriginalFilename: "photo.jpg",
		ForceBlob:        true,
	})

	if placement.Disposition != DispositionBlob {
		t.Errorf("disposition = %q, want blob", placement.Disposition)
	}
	if placement.Item.ItemType != store.ItemTypeBlob {
		t.Errorf("item type = %q", placement.Item.ItemType)
	}
}

func TestPlaceCollidingNamesGetSuffixes(t *testing.T) {
	env := newTestEnv(t)
	batchDir := t.TempDir()

	first := placeOne(t, env, PlaceRequest{
		BatchID: "b1", BatchPathSegment: "a/b1", BatchDir: batchDir, UploaderID: "a",
		InputPath:        stageInput(t, batchDir, "a_input.png"),
		OriginalFilename: "shot.png",
	})
	second := placeOne(t, env, PlaceRequest{
		BatchID: "b1", BatchPathSegment: "a/b1", BatchDir: batchDir, UploaderID: "a",
		InputPath:        stageInput(t, batchDir, "b_input.png"),
		OriginalFilename: "shot.png",
	})

	if first.Item.FilenameOnDisk != "shot.png" {
		t.Errorf("first name = %q", first.Item.FilenameOnDisk)
	}
	if second.Item.FilenameOnDisk != "shot_1.png" {
		t.Errorf("second name = %q, want shot_1.png", second.Item.FilenameOnDisk)
	}
}

func TestPlaceUnsafeNameFallsBack(t *testing.T) {
	env := newTestEnv(t)
	batchDir := t.TempDir()
	input := stageInput(t, batchDir, "q_input.png")

	placement := placeOne(t, env, PlaceRequest{
		BatchID: "b1", BatchPathSegment: "a/b1", BatchDir: batchDir, UploaderID: "a",
		InputPath:        input,
		OriginalFilename: "....png",
	})

	if !strings.HasPrefix(placement.Item.FilenameOnDisk, "item_") {
		t.Errorf("fallback name = %q, want item_ prefix", placement.Item.FilenameOnDisk)
	}
}

func TestPlaceArchiveRecordsTracker(t *testing.T) {
	env := newTestEnv(t)
	batchDir := t.TempDir()
	input := stageInput(t, batchDir, "arc_input.zip")

	pipe := env.Store.Pipeline()
	item, payload := env.Deps.Intake.PlaceArchive(pipe, PlaceRequest{
		BatchID:          "b1",
		BatchPathSegment: "alice/b1",
		BatchDir:         batchDir,
		UploaderID:       "alice",
		InputPath:        input,
		OriginalFilename: "batch.zip",
	})
	if err := pipe.Exec(context.Background()); err != nil {
		t.Fatal(err)
	}

	if item.ItemType != store.ItemTypeArchiveImport {
		t.Errorf("item type = %q", item.ItemType)
	}
	if item.Status != store.StatusQueuedImport {
		t.Errorf("status = %q", item.Status)
	}
	if payload.ZipPath != input || payload.OriginalZipName != "batch.zip" {
		t.Errorf("payload = %+v", payload)
	}

	tracked, err := env.Store.ImportTracker(context.Background(), "b1", "batch.zip")
	if err != nil {
		t.Fatalf("ImportTracker() error = %v", err)
	}
	if tracked != item.ID {
		t.Errorf("tracker = %q, want %q", tracked, item.ID)
	}
}

func TestStagingName(t *testing.T) {
	tests := []struct {
		id, original, want string
	}{
		{"abc", "movie.MOV", "abc_input.mov"},
		{"abc", "noext", "abc_input"},
		{"abc", "a.tar.gz", "abc_input.gz"},
	}
	for _, tt := range tests {
		if got := StagingName(tt.id, tt.original); got != tt.want {
			t.Errorf("StagingName(%q, %q) = %q, want %q", tt.id, tt.original, got, tt.want)
		}
	}
}
