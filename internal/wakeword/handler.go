package wakeword

import (
	"context"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/go-porcupine/internal/logger"
)

// Handler receives detections.
type Handler interface {
	Name() string
	HandleDetection(ctx context.Context, d Detection) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, d Detection) error
}

func (h HandlerFunc) Name() string { return h.HandlerName }

func (h HandlerFunc) HandleDetection(ctx context.Context, d Detection) error {
	return h.Fn(ctx, d)
}

// LogHandler logs every detection at info level.
type LogHandler struct {
	Log logger.Logger
}

func (LogHandler) Name() string { return "log" }

func (h LogHandler) HandleDetection(_ context.Context, d Detection) error {
	log := h.Log
	if log == nil {
		log = GetLogger()
	}
	log.Info("wake word detected",
		logger.String("keyword", d.Keyword),
		logger.Int("index", d.Index),
		logger.String("source", d.Source),
		logger.Int64("frame_offset", d.FrameOffset),
		logger.Float64("offset_seconds", d.Offset),
		logger.String("detection_id", d.ID))
	return nil
}

// RecentDetections keeps the latest detections in memory for status
// queries. Entries expire after ttl; at most limit are kept.
type RecentDetections struct {
	items *cache.Cache
	limit int
}

// NewRecentDetections creates an in-memory detection history. Expired
// entries are pruned on write, no background goroutine is started.
func NewRecentDetections(limit int, ttl time.Duration) *RecentDetections {
	if limit <= 0 {
		limit = 100
	}
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &RecentDetections{
		items: cache.New(ttl, 0),
		limit: limit,
	}
}

func (r *RecentDetections) Name() string { return "recent" }

func (r *RecentDetections) HandleDetection(_ context.Context, d Detection) error {
	r.items.DeleteExpired()
	r.items.SetDefault(d.ID, d)

	if r.items.ItemCount() > r.limit {
		for _, old := range r.sorted()[r.limit:] {
			r.items.Delete(old.ID)
		}
	}
	return nil
}

// Recent returns up to limit detections, newest first. limit <= 0 returns all.
func (r *RecentDetections) Recent(limit int) []Detection {
	all := r.sorted()
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (r *RecentDetections) sorted() []Detection {
	items := r.items.Items()
	out := make([]Detection, 0, len(items))
	for _, item := range items {
		if d, ok := item.Object.(Detection); ok {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].FrameOffset > out[j].FrameOffset
		}
		return out[i].Time.After(out[j].Time)
	})
	return out
}
