package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeCode           QuestionType = "code"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

type Question struct {
	ID          uint         `gorm:"primarykey" json:"id"`
	ExamID      uint         `json:"exam_id" gorm:"not null;index"`
	Type        QuestionType `json:"type" gorm:"type:varchar(32);not null"`
	Text        string       `json:"text" gorm:"type:text;not null"`
	Points      int          `json:"points" gorm:"not null;check:points > 0"`
	OrderInExam int          `json:"order_in_exam" gorm:"not null"`

	// multiple_choice
	Options       datatypes.JSONSlice[string] `json:"options,omitempty" gorm:"type:jsonb"`
	CorrectAnswer *string                     `json:"correct_answer,omitempty"`

	// code
	StarterCode       *string    `json:"starter_code,omitempty" gorm:"type:text"`
	ReferenceSolution *string    `json:"reference_solution,omitempty" gorm:"type:text"`
	TestCases         []TestCase `json:"test_cases,omitempty" gorm:"foreignKey:QuestionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type TestCase struct {
	ID              uint   `gorm:"primarykey" json:"id"`
	QuestionID      uint   `json:"question_id" gorm:"not null;index"`
	OrderInQuestion int    `json:"order_in_question" gorm:"not null"`
	Input           string `json:"input" gorm:"type:text;not null;default:''"`
	ExpectedOutput  string `json:"expected_output" gorm:"type:text;not null"`
	IsHidden        bool   `json:"is_hidden" gorm:"not null;default:false"`
}
