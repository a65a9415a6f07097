// Package datastore keeps a history of wake word detections in SQLite.
package datastore

import (
	"time"

	"github.com/tphakala/go-porcupine/internal/wakeword"
)

// DetectionRecord is the persisted form of a detection.
type DetectionRecord struct {
	ID            uint   `gorm:"primaryKey"`
	DetectionID   string `gorm:"size:36;uniqueIndex"`
	Keyword       string `gorm:"index"`
	KeywordIndex  int
	Source        string
	DetectedAt    time.Time `gorm:"index"`
	FrameOffset   int64
	OffsetSeconds float64
	CreatedAt     time.Time
}

// TableName overrides the GORM default.
func (DetectionRecord) TableName() string { return "detections" }

func recordFromDetection(d *wakeword.Detection) DetectionRecord {
	return DetectionRecord{
		DetectionID:   d.ID,
		Keyword:       d.Keyword,
		KeywordIndex:  d.Index,
		Source:        d.Source,
		DetectedAt:    d.Time,
		FrameOffset:   d.FrameOffset,
		OffsetSeconds: d.Offset,
	}
}

func (r *DetectionRecord) toDetection() wakeword.Detection {
	return wakeword.Detection{
		ID:          r.DetectionID,
		Keyword:     r.Keyword,
		Index:       r.KeywordIndex,
		Source:      r.Source,
		Time:        r.DetectedAt,
		FrameOffset: r.FrameOffset,
		Offset:      r.OffsetSeconds,
	}
}

// KeywordCount is the number of detections of one keyword.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int64  `json:"count"`
}
