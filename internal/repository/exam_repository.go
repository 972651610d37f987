package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lshigami/examgrader/internal/model"
	"gorm.io/gorm"
)

// ExamRepository is the read side of the exam catalog. Authoring writes happen elsewhere.
type ExamRepository interface {
	FindByIDWithQuestions(ctx context.Context, id uint) (*model.Exam, error)
}

type examRepository struct {
	db *gorm.DB
}

func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) FindByIDWithQuestions(ctx context.Context, id uint) (*model.Exam, error) {
	var exam model.Exam
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_in_exam ASC, questions.id ASC")
		}).
		Preload("Questions.TestCases", func(db *gorm.DB) *gorm.DB {
			return db.Order("test_cases.order_in_question ASC, test_cases.id ASC")
		}).
		First(&exam, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("exam %d: %w", id, ErrExamNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &exam, nil
}
