package repository

import (
	"context"
	"errors"

	"github.com/lshigami/examgrader/internal/model"
	"gorm.io/gorm"
)

type AssignmentRepository interface {
	FindByExamAndUser(ctx context.Context, examID, userID uint) (*model.ExamAssignment, error) // nil, nil when not assigned
}

type assignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) FindByExamAndUser(ctx context.Context, examID, userID uint) (*model.ExamAssignment, error) {
	var assignment model.ExamAssignment
	err := r.db.WithContext(ctx).
		Where("exam_id = ? AND user_id = ?", examID, userID).
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}
