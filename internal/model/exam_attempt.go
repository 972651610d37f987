package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CompletionType string

const (
	CompletionManual  CompletionType = "manual"
	CompletionTimeout CompletionType = "timeout"
)

// AnswerEntry is one slot of the serialized answer sheet.
type AnswerEntry struct {
	QuestionID uint   `json:"question_id"`
	Answer     string `json:"answer"`
}

// ExamAttempt is the single submission record of one user for one exam.
// Once IsCompleted is true the answers and the score never change.
type ExamAttempt struct {
	ID               uint                             `gorm:"primarykey" json:"id"`
	PublicID         uuid.UUID                        `json:"public_id" gorm:"type:uuid;uniqueIndex"`
	ExamID           uint                             `json:"exam_id" gorm:"not null;uniqueIndex:idx_attempt_exam_user"`
	UserID           uint                             `json:"user_id" gorm:"not null;uniqueIndex:idx_attempt_exam_user"`
	Answers          datatypes.JSONSlice[AnswerEntry] `json:"answers" gorm:"type:jsonb"`
	StartedAt        time.Time                        `json:"started_at" gorm:"not null"`
	SubmittedAt      *time.Time                       `json:"submitted_at,omitempty"`
	IsCompleted      bool                             `json:"is_completed" gorm:"not null;default:false;index"`
	CompletionType   CompletionType                   `json:"completion_type,omitempty" gorm:"type:varchar(16)"`
	Score            int                              `json:"score" gorm:"not null;default:0"`
	PercentageScore  int                              `json:"percentage_score" gorm:"not null;default:0"`
	Passed           bool                             `json:"passed" gorm:"not null;default:false"`
	TimeSpentSeconds int                              `json:"time_spent_seconds" gorm:"not null;default:0"`
	NeedsReview      datatypes.JSONSlice[uint]        `json:"needs_review,omitempty" gorm:"type:jsonb"`
	CreatedAt        time.Time                        `json:"created_at"`
	UpdatedAt        time.Time                        `json:"updated_at"`
}

func (a *ExamAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.PublicID == uuid.Nil {
		a.PublicID = uuid.New()
	}
	return nil
}

// AttemptResult is everything finalization writes onto an attempt.
type AttemptResult struct {
	Answers          []AnswerEntry
	SubmittedAt      time.Time
	CompletionType   CompletionType
	Score            int
	TotalPoints      int
	PercentageScore  int
	Passed           bool
	TimeSpentSeconds int
	// NeedsReview lists the questions left for manual grading.
	NeedsReview []uint
}

// Result rebuilds the stored result of a completed attempt.
func (a *ExamAttempt) Result(totalPoints int) AttemptResult {
	r := AttemptResult{
		Answers:          append([]AnswerEntry(nil), a.Answers...),
		CompletionType:   a.CompletionType,
		Score:            a.Score,
		TotalPoints:      totalPoints,
		PercentageScore:  a.PercentageScore,
		Passed:           a.Passed,
		TimeSpentSeconds: a.TimeSpentSeconds,
		NeedsReview:      append([]uint(nil), a.NeedsReview...),
	}
	if a.SubmittedAt != nil {
		r.SubmittedAt = *a.SubmittedAt
	}
	return r
}
