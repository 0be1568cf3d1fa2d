package worker

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"
	"github.com/google/uuid"

	"github.com/hapnesbitt/FroogleOne/internal/logger"
	"github.com/hapnesbitt/FroogleOne/internal/mediatype"
	"github.com/hapnesbitt/FroogleOne/internal/metrics"
	"github.com/hapnesbitt/FroogleOne/internal/store"
)

// ManifestName is the optional per-archive metadata file. When present it
// maps zip-internal paths to display names, descriptions, and visibility.
const ManifestName = "lightbox_manifest.json"

const reservedPrefix = "__MACOSX"

type manifestEntry struct {
	ZipPath          string `json:"zip_path"`
	OriginalFilename string `json:"original_filename"`
	Description      string `json:"description"`
	IsHidden         bool   `json:"is_hidden"`
}

type importManifest struct {
	Files []manifestEntry `json:"files"`
}

// ArchiveImportHandler expands an uploaded ZIP into independently tracked
// media items. Every member re-enters the same classification as a direct
// upload, so one archive job fans out into direct stores and transcode
// jobs attributed to the same batch.
func ArchiveImportHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		log := logger.FromContext(ctx).With("job_id", j.ID, "job_type", JobTypeArchiveImport)
		start := time.Now()

		var payload ArchiveImportPayload
		if err := j.UnmarshalPayload(&payload); err != nil {
			log.Error("invalid payload", "error", err)
			return middleware.Permanent(fmt.Errorf("invalid payload: %w", err))
		}
		log = log.With("media_id", payload.MediaID, "batch_id", payload.BatchID, "zip", payload.OriginalZipName)
		log.Info("job started", "user", payload.UploaderID)

		// The tracker's lifetime is this invocation, success or failure.
		defer func() {
			if err := deps.Store.DeleteImportTracker(ctx, payload.BatchID, payload.OriginalZipName); err != nil {
				log.Error("failed to delete import tracker", "error", err)
			}
		}()

		batch, err := deps.Store.GetBatch(ctx, payload.BatchID)
		if err != nil || batch.OwnerID == "" {
			log.Error("batch owner not found, aborting import", "error", err)
			finalizeFailure(ctx, deps.Store, log, payload.MediaID, store.StatusFailedImport, "Batch owner not found.")
			return middleware.Permanent(fmt.Errorf("resolve owner of batch %s: owner missing", payload.BatchID))
		}

		segment := filepath.Join(batch.OwnerID, payload.BatchID)
		batchDir := filepath.Join(deps.StorageRoot, segment)
		if err := os.MkdirAll(batchDir, 0o755); err != nil {
			finalizeFailure(ctx, deps.Store, log, payload.MediaID, store.StatusFailedImport, "Import error: "+truncate(err.Error(), 100))
			return middleware.Permanent(fmt.Errorf("create batch dir: %w", err))
		}

		// Scratch area exclusive to this invocation; concurrent imports
		// into the same batch never share extraction state.
		scratch := filepath.Join(deps.ScratchDir, fmt.Sprintf("import_%s_%s", payload.BatchID, hexToken()))
		if err := os.MkdirAll(scratch, 0o755); err != nil {
			finalizeFailure(ctx, deps.Store, log, payload.MediaID, store.StatusFailedImport, "Import error: "+truncate(err.Error(), 100))
			return middleware.Permanent(fmt.Errorf("create scratch dir: %w", err))
		}
		defer func() {
			if err := os.RemoveAll(scratch); err != nil {
				log.Error("failed to remove scratch dir", "path", scratch, "error", err)
			}
		}()

		zr, err := zip.OpenReader(payload.ZipPath)
		if err != nil {
			log.Error("cannot open archive", "error", err)
			finalizeFailure(ctx, deps.Store, log, payload.MediaID, store.StatusFailedImport, "Corrupted ZIP.")
			return middleware.Permanent(fmt.Errorf("open archive %s: %w", payload.OriginalZipName, err))
		}
		defer zr.Close()

		manifest := readManifest(log, &zr.Reader)

		pipe := deps.Store.Pipeline()
		var jobs []PendingJob
		mediaCount, blobCount := 0, 0

		for _, member := range zr.File {
			name := member.Name
			if member.FileInfo().IsDir() || strings.HasSuffix(name, "/") ||
				strings.HasPrefix(name, reservedPrefix) || name == ManifestName {
				continue
			}

			saneBase := sanitizedEntryName(name)
			if saneBase == "" {
				log.Warn("skipping entry with empty sanitized name", "entry", name)
				metrics.RecordArchiveEntry("skipped_empty_name")
				continue
			}

			dest := filepath.Join(scratch, saneBase)
			if !pathWithin(dest, scratch) {
				log.Error("path traversal attempt, skipping entry", "entry", name)
				metrics.RecordArchiveEntry("skipped_traversal")
				continue
			}

			if err := extractMember(member, dest); err != nil {
				finalizeFailure(ctx, deps.Store, log, payload.MediaID, store.StatusFailedImport, "Import error: "+truncate(err.Error(), 100))
				return middleware.Permanent(fmt.Errorf("extract %q: %w", name, err))
			}

			originalName := path.Base(strings.ReplaceAll(name, "\\", "/"))
			description, hidden := "", false
			if meta, ok := manifest[name]; ok {
				if meta.OriginalFilename != "" {
					originalName = meta.OriginalFilename
				}
				description = meta.Description
				hidden = meta.IsHidden
			}

			placement, err := deps.Intake.Place(pipe, PlaceRequest{
				BatchID:          payload.BatchID,
				BatchPathSegment: segment,
				BatchDir:         batchDir,
				UploaderID:       payload.UploaderID,
				InputPath:        dest,
				OriginalFilename: originalName,
				Description:      description,
				IsHidden:         hidden,
			})
			if err != nil {
				finalizeFailure(ctx, deps.Store, log, payload.MediaID, store.StatusFailedImport, "Import error: "+truncate(err.Error(), 100))
				return middleware.Permanent(fmt.Errorf("place %q: %w", name, err))
			}
			metrics.RecordArchiveEntry(placement.Disposition)
			if placement.Job != nil {
				jobs = append(jobs, *placement.Job)
			}
			if placement.Item.ItemType == store.ItemTypeBlob {
				blobCount++
			} else {
				mediaCount++
			}
		}

		if err := pipe.Exec(ctx); err != nil {
			finalizeFailure(ctx, deps.Store, log, payload.MediaID, store.StatusFailedImport, "Import error: "+truncate(err.Error(), 100))
			return middleware.Permanent(fmt.Errorf("commit import records: %w", err))
		}

		for _, pending := range jobs {
			// Queued inputs live in scratch, which is removed when this
			// invocation exits. Move them next to the batch before the
			// transcode job can run.
			if err := stageScratchInput(&pending.Payload, batchDir); err != nil {
				log.Error("failed to stage transcode input", "media_id", pending.Payload.MediaID, "error", err)
				finalizeFailure(ctx, deps.Store, log, pending.Payload.MediaID, store.StatusFailed, "Import error: "+truncate(err.Error(), 100))
				continue
			}
			if _, err := deps.Dispatcher.Submit(pending.Type, pending.Payload); err != nil {
				log.Error("failed to dispatch transcode for archive member", "media_id", pending.Payload.MediaID, "error", err)
				finalizeFailure(ctx, deps.Store, log, pending.Payload.MediaID, store.StatusFailed, "Failed to queue conversion.")
			}
		}

		zipName := filepath.Base(payload.ZipPath)
		fields := map[string]string{
			store.FieldFilenameOnDisk:   zipName,
			store.FieldFilepath:         filepath.Join(segment, zipName),
			store.FieldProcessingStatus: string(store.StatusCompletedImport),
			store.FieldErrorMessage:     "",
		}
		if err := deps.Store.SetMediaFields(ctx, payload.MediaID, fields); err != nil {
			log.Error("failed to write completed_import record", "error", err)
			return fmt.Errorf("finalize import record: %w", err)
		}

		log.Info("job completed", "duration_ms", time.Since(start).Milliseconds(),
			"imported_media", mediaCount, "imported_blobs", blobCount, "queued_jobs", len(jobs))
		return nil
	}
}

// stageScratchInput moves a queued member's input from scratch into the
// batch directory under its record's staging name and rewrites the payload
// to match.
func stageScratchInput(p *TranscodePayload, batchDir string) error {
	staged := filepath.Join(batchDir, StagingName(p.MediaID, p.OriginalFilename))
	if err := os.Rename(p.InputPath, staged); err != nil {
		return err
	}
	p.InputPath = staged
	return nil
}

func readManifest(log *slog.Logger, zr *zip.Reader) map[string]manifestEntry {
	f, err := zr.Open(ManifestName)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("cannot open manifest", "error", err)
		}
		return nil
	}
	defer f.Close()

	var m importManifest
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		log.Warn("manifest corrupted, importing without metadata", "error", err)
		return nil
	}
	byPath := make(map[string]manifestEntry, len(m.Files))
	for _, entry := range m.Files {
		byPath[entry.ZipPath] = entry
	}
	log.Info("manifest loaded", "entries", len(byPath))
	return byPath
}

func extractMember(member *zip.File, dest string) error {
	src, err := member.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// sanitizedEntryName flattens a zip-internal path to a safe base name.
func sanitizedEntryName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == ".." || base == "/" {
		return ""
	}
	return mediatype.SanitizeBaseName(base)
}

func pathWithin(p, dir string) bool {
	absP, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	return absP == absDir || strings.HasPrefix(absP, absDir+string(filepath.Separator))
}

func hexToken() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")
}
