package repository

import "time"

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
)

type Session struct {
	ID              string
	SourceKey       string
	Engine          string
	Model           string
	StartedAt       time.Time
	EndedAt         *time.Time
	Status          SessionStatus
	StopReason      string
	SamplesCaptured int64
	ChunkCount      int
	SegmentCount    int
	FailedChunks    int
	DroppedChunks   int
}
