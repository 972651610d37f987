package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lshigami/examgrader/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository interface {
	GetAttempt(ctx context.Context, examID, userID uint) (*model.ExamAttempt, error) // nil, nil when absent
	CreateAttempt(ctx context.Context, attempt *model.ExamAttempt) (*model.ExamAttempt, error)
	SaveProgress(ctx context.Context, examID, userID uint, answers []model.AnswerEntry) error
	FinalizeAttempt(ctx context.Context, examID, userID uint, result model.AttemptResult) (*model.ExamAttempt, error)
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) GetAttempt(ctx context.Context, examID, userID uint) (*model.ExamAttempt, error) {
	return findAttempt(r.db.WithContext(ctx), examID, userID)
}

// CreateAttempt inserts the attempt unless one already exists for the pair and
// returns whatever row is stored afterwards.
func (r *attemptRepository) CreateAttempt(ctx context.Context, attempt *model.ExamAttempt) (*model.ExamAttempt, error) {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(attempt).Error; err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}
	stored, err := findAttempt(db, attempt.ExamID, attempt.UserID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("exam %d user %d: %w", attempt.ExamID, attempt.UserID, ErrAttemptNotFound)
	}
	return stored, nil
}

func (r *attemptRepository) SaveProgress(ctx context.Context, examID, userID uint, answers []model.AnswerEntry) error {
	res := r.db.WithContext(ctx).
		Model(&model.ExamAttempt{}).
		Where("exam_id = ? AND user_id = ? AND is_completed = ?", examID, userID, false).
		Update("answers", datatypes.NewJSONSlice(answers))
	if res.Error != nil {
		return fmt.Errorf("failed to save progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAttemptCompleted
	}
	return nil
}

// FinalizeAttempt writes the result only if the attempt is still open and moves a
// pending assignment to submitted in the same transaction.
func (r *attemptRepository) FinalizeAttempt(ctx context.Context, examID, userID uint, result model.AttemptResult) (*model.ExamAttempt, error) {
	var stored *model.ExamAttempt
	alreadyFinal := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ExamAttempt{}).
			Where("exam_id = ? AND user_id = ? AND is_completed = ?", examID, userID, false).
			Updates(map[string]interface{}{
				"answers":            datatypes.NewJSONSlice(result.Answers),
				"submitted_at":       result.SubmittedAt,
				"is_completed":       true,
				"completion_type":    result.CompletionType,
				"score":              result.Score,
				"percentage_score":   result.PercentageScore,
				"passed":             result.Passed,
				"time_spent_seconds": result.TimeSpentSeconds,
				"needs_review":       datatypes.NewJSONSlice(result.NeedsReview),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to finalize attempt: %w", res.Error)
		}
		alreadyFinal = res.RowsAffected == 0

		if !alreadyFinal {
			err := tx.Model(&model.ExamAssignment{}).
				Where("exam_id = ? AND user_id = ? AND status = ?", examID, userID, model.AssignmentPending).
				Update("status", model.AssignmentSubmitted).Error
			if err != nil {
				return fmt.Errorf("failed to mark assignment submitted: %w", err)
			}
		}

		var err error
		stored, err = findAttempt(tx, examID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("exam %d user %d: %w", examID, userID, ErrAttemptNotFound)
	}
	if alreadyFinal {
		return stored, ErrAlreadyFinalized
	}
	return stored, nil
}

func findAttempt(db *gorm.DB, examID, userID uint) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	err := db.Where("exam_id = ? AND user_id = ?", examID, userID).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	return &attempt, nil
}
