package worker

// Job type names registered with the queue.
const (
	JobTypeVideoTranscode = "video_transcode"
	JobTypeAudioTranscode = "audio_transcode"
	JobTypeArchiveImport  = "archive_import"
)

// TranscodePayload carries one conversion job. Attempt counts completed
// executions; a retry dispatch increments it.
type TranscodePayload struct {
	MediaID          string `json:"media_id"`
	BatchID          string `json:"batch_id"`
	InputPath        string `json:"input_path"`
	OutputPath       string `json:"output_path"`
	OriginalFilename string `json:"original_filename"`
	BatchPathSegment string `json:"batch_path_segment"`
	UploaderID       string `json:"uploader_id"`
	Attempt          int    `json:"attempt"`
}

// ArchiveImportPayload carries one ZIP expansion job. MediaID is the record
// tracking the archive itself, not any of its members.
type ArchiveImportPayload struct {
	MediaID         string `json:"media_id"`
	BatchID         string `json:"batch_id"`
	ZipPath         string `json:"zip_path"`
	OriginalZipName string `json:"original_zip_name"`
	UploaderID      string `json:"uploader_id"`
}
