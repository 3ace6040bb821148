package dto

import (
	"time"

	"github.com/google/uuid"
)

// CleanupRequest is read from the query string or a JSON body. Zero values take configured defaults.
type CleanupRequest struct {
	DaysOld   int  `json:"days_old" query:"days_old" validate:"min=0,max=3650"`
	BatchSize int  `json:"batch_size" query:"batch_size" validate:"min=0,max=1000"`
	DryRun    bool `json:"dry_run" query:"dry_run"`
	Verbose   bool `json:"verbose" query:"verbose"`
}

type CleanupOptions struct {
	DaysOld   int  `json:"days_old"`
	BatchSize int  `json:"batch_size"`
	DryRun    bool `json:"dry_run"`
	Verbose   bool `json:"verbose"`
}

type ScheduledSession struct {
	SessionId         uuid.UUID `json:"session_id"`
	Title             string    `json:"title"`
	DaysUntilDeletion int       `json:"days_until_deletion"`
}

type FailedSession struct {
	SessionId uuid.UUID `json:"session_id"`
	Error     string    `json:"error"`
}

type CleanupReport struct {
	SessionsDeleted  int                `json:"sessions_deleted"`
	MessagesDeleted  int                `json:"messages_deleted"`
	ChunkRefsDeleted int                `json:"chunk_refs_deleted"`
	SessionsSelected int                `json:"sessions_selected"`
	BatchesRun       int                `json:"batches_run"`
	ScheduledPreview []ScheduledSession `json:"scheduled_preview,omitempty"`
	Failed           []FailedSession    `json:"failed,omitempty"`
}

type CleanupResponse struct {
	Success                bool           `json:"success"`
	Timestamp              time.Time      `json:"timestamp"`
	Options                CleanupOptions `json:"options"`
	ScheduledSessionsFound int            `json:"scheduled_sessions_found"`
	Result                 CleanupReport  `json:"result"`
}
