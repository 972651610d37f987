package service

import (
	"context"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/lshigami/examgrader/internal/dto"
	"github.com/lshigami/examgrader/internal/model"
	"github.com/lshigami/examgrader/internal/repository"
	"github.com/rs/zerolog/log"
)

type ExamService interface {
	GetExamForStudent(ctx context.Context, examID, userID uint) (*dto.ExamResponse, error)
}

type examService struct {
	examRepo       repository.ExamRepository
	assignmentRepo repository.AssignmentRepository
}

func NewExamService(examRepo repository.ExamRepository, assignmentRepo repository.AssignmentRepository) ExamService {
	return &examService{examRepo: examRepo, assignmentRepo: assignmentRepo}
}

// GetExamForStudent returns the exam without anything that gives answers away.
func (s *examService) GetExamForStudent(ctx context.Context, examID, userID uint) (*dto.ExamResponse, error) {
	exam, err := s.examRepo.FindByIDWithQuestions(ctx, examID)
	if err != nil {
		log.Warn().Err(err).Uint("examID", examID).Msg("GetExamForStudent: Failed to load exam")
		return nil, err
	}

	var resp dto.ExamResponse
	if err := copier.Copy(&resp, exam); err != nil {
		log.Error().Err(err).Msg("Failed to copy Exam model to ExamResponse")
		return nil, fmt.Errorf("error preparing exam response: %w", err)
	}

	resp.Questions = make([]dto.QuestionResponse, 0, len(exam.Questions))
	for i := range exam.Questions {
		q, err := studentQuestion(&exam.Questions[i])
		if err != nil {
			return nil, err
		}
		resp.Questions = append(resp.Questions, q)
	}

	assignment, err := s.assignmentRepo.FindByExamAndUser(ctx, examID, userID)
	if err != nil {
		log.Error().Err(err).Uint("examID", examID).Uint("userID", userID).Msg("GetExamForStudent: Failed to load assignment")
		return nil, fmt.Errorf("error loading assignment: %w", err)
	}
	if assignment != nil {
		resp.Assignment = &dto.AssignmentResponse{
			Status:     string(assignment.Status),
			AssignedAt: assignment.AssignedAt,
			DueDate:    assignment.DueDate,
		}
	}
	return &resp, nil
}

func studentQuestion(q *model.Question) (dto.QuestionResponse, error) {
	var resp dto.QuestionResponse
	if err := copier.Copy(&resp, q); err != nil {
		return resp, fmt.Errorf("error preparing question %d: %w", q.ID, err)
	}
	resp.Type = string(q.Type)
	if len(q.Options) > 0 {
		resp.Options = append([]string(nil), q.Options...)
	}
	for _, tc := range q.TestCases {
		if tc.IsHidden {
			resp.HiddenTests++
			continue
		}
		resp.TestCases = append(resp.TestCases, dto.TestCaseResponse{
			ID:             tc.ID,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
		})
	}
	return resp, nil
}
