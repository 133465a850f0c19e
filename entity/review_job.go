package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

var TerminalStatuses = []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}

const (
	ConsoleLevelInfo    = "info"
	ConsoleLevelSuccess = "success"
	ConsoleLevelWarning = "warning"
	ConsoleLevelError   = "error"
)

// ConsoleEntry is one line of a job's live console.
type ConsoleEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// StepEntry is the audit record of one attempted pipeline stage.
type StepEntry struct {
	Name   string     `json:"name"`
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	Result StepResult `json:"result"`
}

// StepResult holds exactly one stage payload; the populated field identifies the stage.
type StepResult struct {
	Identity  *IdentityCheck  `json:"identity,omitempty"`
	Duplicate *DuplicateCheck `json:"duplicate,omitempty"`
	Content   *ContentSignals `json:"content,omitempty"`
	Commits   *CommitSignals  `json:"commits,omitempty"`
	Verdict   *Verdict        `json:"verdict,omitempty"`
}

const (
	ResultStatusError     = "Error"
	ResultStatusCancelled = "Cancelled"
)

// JobResult is the terminal payload of a job: a verdict, an error or a cancellation notice.
type JobResult struct {
	Status          string `json:"status"`
	ConfidenceScore int    `json:"confidence_score,omitempty"`
	ReviewNotes     string `json:"review_notes,omitempty"`
	UserFeedback    string `json:"user_feedback,omitempty"`
	Message         string `json:"message,omitempty"`
	Error           string `json:"error,omitempty"`
}

func ResultFromVerdict(v Verdict) *JobResult {
	return &JobResult{
		Status:          v.Status,
		ConfidenceScore: v.ConfidenceScore,
		ReviewNotes:     v.ReviewNotes,
		UserFeedback:    v.UserFeedback,
	}
}

// RecordLocation addresses one submission record in the external record store.
type RecordLocation struct {
	BaseID    string `json:"base_id" gorm:"type:varchar(120);not null;index"`
	TableName string `json:"table_name" gorm:"type:varchar(120);not null"`
	RecordID  string `json:"record_id" gorm:"type:varchar(120);not null"`
}

type ReviewJob struct {
	ID                 uint64                            `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID            uuid.UUID                         `json:"owner_id" gorm:"type:uuid;not null;index"`
	Location           RecordLocation                    `json:"location" gorm:"embedded"`
	Status             JobStatus                         `json:"status" gorm:"type:varchar(20);not null;index"`
	CurrentStep        string                            `json:"current_step" gorm:"type:varchar(255)"`
	Steps              datatypes.JSONSlice[StepEntry]    `json:"steps" gorm:"type:jsonb;not null;default:'[]'"`
	ConsoleLog         datatypes.JSONSlice[ConsoleEntry] `json:"console_log" gorm:"type:jsonb;not null;default:'[]'"`
	Result             datatypes.JSONType[*JobResult]    `json:"result" gorm:"type:jsonb;not null;default:'null'"`
	FieldMappings      datatypes.JSONType[FieldMappings] `json:"field_mappings" gorm:"type:jsonb;not null;default:'{}'"`
	CustomInstructions string                            `json:"-" gorm:"type:text"`
	CancelRequested    bool                              `json:"cancel_requested" gorm:"not null;default:false"`
	WrittenBackAt      *time.Time                        `json:"written_back_at,omitempty"`
	CreatedAt          time.Time                         `json:"created_at" gorm:"not null;autoCreateTime;index"`
	CompletedAt        *time.Time                        `json:"completed_at"`
}

func (ReviewJob) TableName() string { return "review_jobs" }

func NewReviewJob(ownerID uuid.UUID, loc RecordLocation, mappings FieldMappings, instructions string) *ReviewJob {
	return &ReviewJob{
		OwnerID:            ownerID,
		Location:           loc,
		Status:             JobStatusPending,
		CurrentStep:        "Initializing...",
		Steps:              datatypes.JSONSlice[StepEntry]{},
		ConsoleLog:         datatypes.JSONSlice[ConsoleEntry]{},
		Result:             datatypes.NewJSONType[*JobResult](nil),
		FieldMappings:      datatypes.NewJSONType(mappings),
		CustomInstructions: instructions,
	}
}
