// Package wakeword runs audio frames through a wake word engine and fans
// detections out to handlers.
package wakeword

import (
	"path/filepath"
	"strings"
	"time"
)

// Detection is one keyword match.
type Detection struct {
	ID          string    `json:"id"`
	Keyword     string    `json:"keyword"`
	Index       int       `json:"index"`  // position of the keyword in the engine's keyword list
	Source      string    `json:"source"` // capture device or file the audio came from
	Time        time.Time `json:"time"`
	FrameOffset int64     `json:"frame_offset"` // frames processed before the matching frame
	Offset      float64   `json:"offset_seconds"`
}

// platformSuffixes are the platform tags in keyword file names.
var platformSuffixes = []string{"_linux", "_mac", "_windows", "_raspberry-pi", "_android", "_ios", "_wasm"}

// KeywordLabel returns a display name for a built-in keyword name or a
// keyword file path, e.g. "/x/hey google_linux.ppn" becomes "hey google".
func KeywordLabel(keyword string) string {
	if !strings.EqualFold(filepath.Ext(keyword), ".ppn") {
		return keyword
	}
	name := strings.TrimSuffix(filepath.Base(keyword), filepath.Ext(keyword))
	for _, suffix := range platformSuffixes {
		if trimmed, ok := strings.CutSuffix(name, suffix); ok && trimmed != "" {
			return trimmed
		}
	}
	return name
}
