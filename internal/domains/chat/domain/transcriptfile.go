package domain

import (
	"path"
	"strings"
	"time"
)

const transcriptTimestampLayout = "20060102T150405Z"

// TranscriptFileName returns "<YYYYMMDDTHHMMSSZ>_<request_id>.json".
// Lexical order of these names follows creation time at second resolution.
func TranscriptFileName(createdAt time.Time, requestID string) string {
	return createdAt.UTC().Format(transcriptTimestampLayout) + "_" + requestID + ".json"
}

// TranscriptRelPath returns the slash-separated path of a transcript below
// the storage root: "<persona-slug>/<file name>".
func TranscriptRelPath(persona string, createdAt time.Time, requestID string) string {
	return path.Join(PersonaSlug(persona), TranscriptFileName(createdAt, requestID))
}

// IsTranscriptFileName reports whether name looks like a transcript file.
func IsTranscriptFileName(name string) bool {
	if !strings.HasSuffix(name, ".json") {
		return false
	}
	stem := strings.TrimSuffix(name, ".json")
	ts, _, ok := strings.Cut(stem, "_")
	if !ok {
		return false
	}
	_, err := time.Parse(transcriptTimestampLayout, ts)
	return err == nil
}
