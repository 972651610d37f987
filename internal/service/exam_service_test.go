package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lshigami/examgrader/internal/model"
	"github.com/lshigami/examgrader/internal/repository"
)

func TestGetExamForStudentRedactsAnswers(t *testing.T) {
	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := NewExamService(
		&fakeExamRepo{exams: map[uint]*model.Exam{1: sampleExam()}},
		&fakeAssignmentRepo{assignment: &model.ExamAssignment{ExamID: 1, UserID: 5, Status: model.AssignmentPending, DueDate: &due}},
	)

	resp, err := svc.GetExamForStudent(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("GetExamForStudent returned error: %v", err)
	}

	if resp.Title != "Intro to Go" || resp.TotalPoints != 40 || resp.DurationMinutes != 30 {
		t.Errorf("unexpected exam header %+v", resp)
	}
	if len(resp.Questions) != 3 {
		t.Fatalf("Expected 3 questions, got %d", len(resp.Questions))
	}

	mc := resp.Questions[0]
	if mc.Type != "multiple_choice" || len(mc.Options) != 3 {
		t.Errorf("unexpected multiple choice view %+v", mc)
	}

	code := resp.Questions[1]
	if len(code.TestCases) != 2 || code.HiddenTests != 1 {
		t.Errorf("Expected 2 visible and 1 hidden test, got %d and %d", len(code.TestCases), code.HiddenTests)
	}
	for _, tc := range code.TestCases {
		if tc.Input == "secret" {
			t.Error("hidden test case leaked into the student view")
		}
	}
	if code.StarterCode == nil || *code.StarterCode != "// write here" {
		t.Errorf("Expected starter code, got %v", code.StarterCode)
	}

	if resp.Assignment == nil || resp.Assignment.Status != "pending" || !resp.Assignment.DueDate.Equal(due) {
		t.Errorf("unexpected assignment %+v", resp.Assignment)
	}
}

func TestGetExamForStudentNotFound(t *testing.T) {
	svc := NewExamService(&fakeExamRepo{}, &fakeAssignmentRepo{})

	_, err := svc.GetExamForStudent(context.Background(), 42, 1)
	if !errors.Is(err, repository.ErrExamNotFound) {
		t.Errorf("Expected ErrExamNotFound, got %v", err)
	}
}
