package model

import (
	"time"

	"gorm.io/gorm"
)

type Exam struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	Title           string         `json:"title" gorm:"not null"`
	DurationMinutes int            `json:"duration_minutes" gorm:"not null;check:duration_minutes > 0"`
	PassingScore    int            `json:"passing_score" gorm:"not null;default:0"` // 0-100
	TotalPoints     int            `json:"total_points" gorm:"not null;default:0"`
	Questions       []Question     `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// Duration is the full time allowed for one attempt.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// SumPoints adds up the points of the loaded questions.
func (e *Exam) SumPoints() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Points
	}
	return total
}

// QuestionByID returns the question with the given id, or nil.
func (e *Exam) QuestionByID(id uint) *Question {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i]
		}
	}
	return nil
}

// BeforeSave keeps TotalPoints in line with the questions when they are saved together.
func (e *Exam) BeforeSave(tx *gorm.DB) error {
	if len(e.Questions) > 0 {
		e.TotalPoints = e.SumPoints()
	}
	return nil
}
