package dto

import "time"

// TestCaseResponse is a visible test case. Hidden ones never reach this DTO.
type TestCaseResponse struct {
	ID             uint   `json:"id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// QuestionResponse is a question as shown to a student taking the exam.
type QuestionResponse struct {
	ID          uint               `json:"id"`
	Type        string             `json:"type"`
	Text        string             `json:"text"`
	Points      int                `json:"points"`
	OrderInExam int                `json:"order_in_exam"`
	Options     []string           `json:"options,omitempty" copier:"-"`
	StarterCode *string            `json:"starter_code,omitempty"`
	TestCases   []TestCaseResponse `json:"test_cases,omitempty" copier:"-"`
	HiddenTests int                `json:"hidden_tests,omitempty"`
}

type AssignmentResponse struct {
	Status     string     `json:"status"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
}

// ExamResponse is the student view of an exam: no correct answers, reference
// solutions or hidden test data.
type ExamResponse struct {
	ID              uint                `json:"id"`
	Title           string              `json:"title"`
	DurationMinutes int                 `json:"duration_minutes"`
	PassingScore    int                 `json:"passing_score"`
	TotalPoints     int                 `json:"total_points"`
	Questions       []QuestionResponse  `json:"questions" copier:"-"`
	Assignment      *AssignmentResponse `json:"assignment,omitempty" copier:"-"`
}
