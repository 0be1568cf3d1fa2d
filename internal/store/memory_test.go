package store

import (
	"context"
	"testing"
	"time"
)

func TestUserRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetUser(ctx, "alice"); err != ErrNotFound {
		t.Errorf("GetUser(missing) = %v, want ErrNotFound", err)
	}

	u := User{Username: "alice", PasswordHash: "$2a$12$x", IsAdmin: true}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetUser(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got != u {
		t.Errorf("GetUser() = %+v, want %+v", got, u)
	}

	exists, err := s.UserExists(ctx, "alice")
	if err != nil || !exists {
		t.Errorf("UserExists() = %v, %v", exists, err)
	}
}

func TestBatchRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created := time.Now().Add(-time.Hour)
	b := Batch{
		ID:         "b1",
		Name:       "holiday",
		OwnerID:    "alice",
		CreatedAt:  created,
		ModifiedAt: created,
	}
	if err := s.CreateBatch(ctx, b); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetBatch(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "holiday" || got.OwnerID != "alice" {
		t.Errorf("GetBatch() = %+v", got)
	}
	if got.CreatedAt.UnixMicro() != created.UnixMicro() {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}

	if err := s.SetBatchFields(ctx, "b1", map[string]string{FieldBatchName: "renamed"}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetBatch(ctx, "b1")
	if got.Name != "renamed" {
		t.Errorf("name after rename = %q", got.Name)
	}

	if err := s.DeleteBatch(ctx, "b1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetBatch(ctx, "b1"); err != ErrNotFound {
		t.Errorf("GetBatch(deleted) = %v, want ErrNotFound", err)
	}
}

func TestUserBatchListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"b1", "b2", "b3"} {
		if err := s.PushUserBatch(ctx, "alice", id); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := s.UserBatchIDs(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] != "b3" || ids[2] != "b1" {
		t.Errorf("UserBatchIDs() = %v, want newest first", ids)
	}

	if err := s.RemoveUserBatch(ctx, "alice", "b2"); err != nil {
		t.Fatal(err)
	}
	ids, _ = s.UserBatchIDs(ctx, "alice")
	if len(ids) != 2 || ids[0] != "b3" || ids[1] != "b1" {
		t.Errorf("after removal = %v", ids)
	}
}

func TestBatchItemsKeepInsertionOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"m1", "m2", "m3"} {
		if err := s.AppendBatchItem(ctx, "b1", id); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := s.BatchItemIDs(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] != "m1" || ids[2] != "m3" {
		t.Errorf("BatchItemIDs() = %v, want insertion order", ids)
	}

	n, _ := s.BatchItemCount(ctx, "b1")
	if n != 3 {
		t.Errorf("BatchItemCount() = %d", n)
	}

	if err := s.RemoveBatchItem(ctx, "b1", "m2"); err != nil {
		t.Fatal(err)
	}
	ids, _ = s.BatchItemIDs(ctx, "b1")
	if len(ids) != 2 || ids[0] != "m1" || ids[1] != "m3" {
		t.Errorf("after removal = %v", ids)
	}
}

func TestMediaItemRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	item := MediaItem{
		ID:               "m1",
		OriginalFilename: "clip.mov",
		FilenameOnDisk:   "m1_input.mov",
		Mimetype:         "video/quicktime",
		IsHidden:         true,
		IsLiked:          true,
		UploaderID:       "alice",
		BatchID:          "b1",
		UploadedAt:       time.Now(),
		Description:      "first take",
		ItemType:         ItemTypeMedia,
		Status:           StatusQueued,
	}
	if err := s.PutMediaItem(ctx, item); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetMediaItem(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if got.OriginalFilename != item.OriginalFilename || !got.IsHidden || !got.IsLiked ||
		got.Status != StatusQueued || got.Description != "first take" {
		t.Errorf("GetMediaItem() = %+v", got)
	}

	status, err := s.MediaStatus(ctx, "m1")
	if err != nil || status != StatusQueued {
		t.Errorf("MediaStatus() = %q, %v", status, err)
	}

	if err := s.SetMediaFields(ctx, "m1", FailedFields(StatusFailed, "boom")); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetMediaItem(ctx, "m1")
	if got.Status != StatusFailed || got.ErrorMessage != "boom" {
		t.Errorf("after failure write = %+v", got)
	}
	// Partial writes must not disturb other fields.
	if got.OriginalFilename != "clip.mov" {
		t.Errorf("original filename lost: %q", got.OriginalFilename)
	}
}

func TestMediaItemLegacyDefaults(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Records written before item_type/processing_status existed read back
	// as completed media.
	if err := s.SetMediaFields(ctx, "old", map[string]string{
		FieldOriginalFilename: "scan.jpg",
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetMediaItem(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if got.ItemType != ItemTypeMedia {
		t.Errorf("ItemType = %q, want media default", got.ItemType)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed default", got.Status)
	}
}

func TestPipelineBuffersUntilExec(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	pipe := s.Pipeline()
	pipe.SetMediaFields("m1", map[string]string{FieldProcessingStatus: string(StatusQueued)})
	pipe.AppendBatchItem("b1", "m1")
	pipe.SetImportTracker("b1", "a.zip", "m1")

	if _, err := s.GetMediaItem(ctx, "m1"); err != ErrNotFound {
		t.Errorf("media visible before Exec, err = %v", err)
	}
	if ids, _ := s.BatchItemIDs(ctx, "b1"); len(ids) != 0 {
		t.Errorf("batch items visible before Exec: %v", ids)
	}

	if err := pipe.Exec(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetMediaItem(ctx, "m1"); err != nil {
		t.Errorf("media missing after Exec: %v", err)
	}
	if ids, _ := s.BatchItemIDs(ctx, "b1"); len(ids) != 1 {
		t.Errorf("batch items after Exec: %v", ids)
	}
	if id, err := s.ImportTracker(ctx, "b1", "a.zip"); err != nil || id != "m1" {
		t.Errorf("tracker after Exec = %q, %v", id, err)
	}
}

func TestShareTokens(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SetShareToken(ctx, "tok", "b1"); err != nil {
		t.Fatal(err)
	}
	id, err := s.ResolveShareToken(ctx, "tok")
	if err != nil || id != "b1" {
		t.Errorf("ResolveShareToken() = %q, %v", id, err)
	}

	if err := s.DeleteShareToken(ctx, "tok"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ResolveShareToken(ctx, "tok"); err != ErrNotFound {
		t.Errorf("resolve after delete = %v, want ErrNotFound", err)
	}
}

func TestStatusPredicates(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCompletedImport, StatusFailedImport}
	for _, st := range terminal {
		if !st.IsTerminal() {
			t.Errorf("%q should be terminal", st)
		}
	}
	for _, st := range []Status{StatusQueued, StatusQueuedImport, StatusProcessing} {
		if st.IsTerminal() {
			t.Errorf("%q should not be terminal", st)
		}
	}

	for _, st := range []Status{StatusCompleted, StatusCompletedImport} {
		if !st.IsTerminalSuccess() {
			t.Errorf("%q should be terminal success", st)
		}
	}
	for _, st := range []Status{StatusFailed, StatusFailedImport, StatusProcessing} {
		if st.IsTerminalSuccess() {
			t.Errorf("%q should not be terminal success", st)
		}
	}
}

func TestTimeFieldRoundTrip(t *testing.T) {
	now := time.Now()
	s := TimeField(now)
	back := parseTimeField(s)
	if back.UnixMicro() != now.UnixMicro() {
		t.Errorf("round trip %v -> %q -> %v", now, s, back)
	}

	if TimeField(time.Time{}) != "" {
		t.Error("zero time should render empty")
	}
	if !parseTimeField("").IsZero() {
		t.Error("empty field should parse to zero time")
	}
	if !parseTimeField("garbage").IsZero() {
		t.Error("unparseable field should parse to zero time")
	}
}
