package dto

import "time"

type AnswerDTO struct {
	QuestionID uint   `json:"question_id"`
	Answer     string `json:"answer"`
}

// ResultResponse is the stored outcome of a completed attempt.
type ResultResponse struct {
	Score            int       `json:"score"`
	TotalPoints      int       `json:"total_points"`
	PercentageScore  int       `json:"percentage_score"`
	Passed           bool      `json:"passed"`
	CompletionType   string    `json:"completion_type"`
	SubmittedAt      time.Time `json:"submitted_at"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	// NeedsReview lists questions awaiting manual grading.
	NeedsReview []uint `json:"needs_review,omitempty"`
}

type SessionResponse struct {
	ExamID           uint            `json:"exam_id"`
	State            string          `json:"state"`
	StartedAt        time.Time       `json:"started_at"`
	Deadline         time.Time       `json:"deadline"`
	RemainingSeconds int             `json:"remaining_seconds"`
	Answers          []AnswerDTO     `json:"answers"`
	LastSavedAt      *time.Time      `json:"last_saved_at,omitempty"`
	Result           *ResultResponse `json:"result,omitempty"`
}

// TestResultResponse is the verdict of a visible test case.
type TestResultResponse struct {
	Passed   bool   `json:"passed"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// RunTestsResponse lists visible verdicts; hidden cases only show up in the counts.
type RunTestsResponse struct {
	QuestionID   uint                 `json:"question_id"`
	Results      []TestResultResponse `json:"results"`
	Passed       int                  `json:"passed"`
	Total        int                  `json:"total"`
	HiddenPassed int                  `json:"hidden_passed"`
	HiddenTotal  int                  `json:"hidden_total"`
}

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}
