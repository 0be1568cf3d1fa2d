// Package mediatype classifies uploaded filenames by extension and maps
// extensions to MIME types. Classification is the single decision point
// controlling whether a file enters the transcode queue or is stored
// synchronously.
package mediatype

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Kind is the routing decision for an inbound file.
type Kind int

const (
	// KindVideoConvert routes through the video->MP4 transcode worker.
	KindVideoConvert Kind = iota
	// KindAudioConvert routes through the audio->MP3 transcode worker.
	KindAudioConvert
	// KindDirectMedia is processable media stored as-is with its native type.
	KindDirectMedia
	// KindBlob is anything else, stored opaquely.
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindVideoConvert:
		return "video_convert"
	case KindAudioConvert:
		return "audio_convert"
	case KindDirectMedia:
		return "direct_media"
	default:
		return "blob"
	}
}

const OctetStream = "application/octet-stream"

// processableExtensions is the broader "media" set: files recognized as
// image/video/audio/pdf and stored (or transcoded) as media items rather
// than opaque blobs.
var processableExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {}, "heic": {},
	"heif": {}, "svg": {}, "avif": {}, "bmp": {}, "ico": {},
	"mp4": {}, "mkv": {}, "mov": {}, "webm": {}, "ogv": {}, "3gp": {},
	"3g2": {}, "avi": {}, "wmv": {}, "flv": {}, "mpg": {}, "mpeg": {},
	"mp3": {}, "aac": {}, "wav": {}, "ogg": {}, "opus": {}, "flac": {},
	"m4a": {}, "wma": {}, "pdf": {},
}

var mimeTypes = map[string]string{
	".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".png": "image/png",
	".gif": "image/gif", ".webp": "image/webp", ".heic": "image/heic",
	".heif": "image/heif", ".svg": "image/svg+xml", ".avif": "image/avif",
	".bmp": "image/bmp", ".ico": "image/x-icon",
	".mp4": "video/mp4", ".mov": "video/quicktime", ".mkv": "video/x-matroska",
	".webm": "video/webm", ".ogv": "video/ogg", ".3gp": "video/3gpp",
	".3g2": "video/3gpp2", ".avi": "video/x-msvideo", ".wmv": "video/x-ms-wmv",
	".flv": "video/x-flv", ".mpg": "video/mpeg", ".mpeg": "video/mpeg",
	".mp3": "audio/mpeg", ".aac": "audio/aac", ".wav": "audio/wav",
	".ogg": "audio/ogg", ".opus": "audio/opus", ".flac": "audio/flac",
	".m4a": "audio/mp4", ".wma": "audio/x-ms-wma",
	".pdf": "application/pdf", ".zip": "application/zip",
	".tar": "application/x-tar", ".gz": "application/gzip",
	".tgz": "application/gzip", ".7z": "application/x-7z-compressed",
}

// Ext returns the lowercase extension of name without the dot.
func Ext(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// MIMEByExt maps a dotted extension (".mp4") to its MIME type; unknown
// extensions map to application/octet-stream.
func MIMEByExt(extWithDot string) string {
	if mt, ok := mimeTypes[strings.ToLower(extWithDot)]; ok {
		return mt
	}
	return OctetStream
}

// MIMEForFilename maps a filename to its MIME type by extension.
func MIMEForFilename(name string) string {
	return MIMEByExt(filepath.Ext(name))
}

// IsProcessableMedia reports whether the filename is in the broader media
// set eligible for media handling (as opposed to opaque blob storage).
func IsProcessableMedia(name string) bool {
	_, ok := processableExtensions[Ext(name)]
	return ok
}

// IsArchive reports whether the filename names a ZIP archive eligible for
// import fan-out.
func IsArchive(name string) bool {
	return Ext(name) == "zip"
}

// Classify implements the three-way routing branch. videoFormats and
// audioFormats are the configured convert sets (lowercase extensions
// without dots).
func Classify(name string, videoFormats, audioFormats map[string]struct{}) Kind {
	ext := Ext(name)
	if _, ok := videoFormats[ext]; ok {
		return KindVideoConvert
	}
	if _, ok := audioFormats[ext]; ok {
		return KindAudioConvert
	}
	if IsProcessableMedia(name) {
		return KindDirectMedia
	}
	return KindBlob
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SanitizeBaseName reduces a filename base to a safe form for use as an
// on-disk name: path separators stripped, unsafe runes collapsed to
// underscores, leading dots removed. Returns "" when nothing safe remains.
func SanitizeBaseName(base string) string {
	base = filepath.Base(base)
	base = strings.ReplaceAll(base, " ", "_")
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "." || base == ".." {
		return ""
	}
	return base
}
