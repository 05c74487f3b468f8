package ambience

import (
	"fmt"

	"github.com/MimeLyc/sonomancer/internal/mood"
)

// ChapterKey identifies a chapter within a book. ChapterIndex is zero-based.
type ChapterKey struct {
	BookID       string
	ChapterIndex int
}

func (k ChapterKey) String() string {
	return fmt.Sprintf("%s#%d", k.BookID, k.ChapterIndex)
}

// Result is the externally visible ambience for a chapter.
// An empty YouTubeID means no suitable video was found.
type Result struct {
	Mood        mood.Mood `json:"mood"`
	YouTubeID   string    `json:"youtube_id"`
	VideoTitle  string    `json:"video_title"`
	Explanation string    `json:"explanation"`
}

func (r Result) HasVideo() bool {
	return r.YouTubeID != ""
}

// Stats are cumulative counters since the orchestrator was created.
type Stats struct {
	CacheHits      uint64 `json:"cache_hits"`
	PipelineRuns   uint64 `json:"pipeline_runs"`
	CoalescedWaits uint64 `json:"coalesced_waits"`
	Failures       uint64 `json:"failures"`
	NoCandidate    uint64 `json:"no_candidate"`
	Cached         int    `json:"cached"`
}
