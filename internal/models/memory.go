package models

import "time"

// MemorySource tags where a RankedMemory entry came from.
type MemorySource string

const (
	SourceLongTerm  MemorySource = "long_term"
	SourceDailyNote MemorySource = "daily_note"
)

// RankedMemory is a scored search hit over the memory subsystem. It is
// created on demand by search and never persisted.
type RankedMemory struct {
	Content   string       `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
	Source    MemorySource `json:"source"`
	Score     int          `json:"score"`
	Excerpt   string       `json:"excerpt"`
}

// DailyNoteEntry is one timestamped section within a daily note file.
type DailyNoteEntry struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
