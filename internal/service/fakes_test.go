package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lshigami/examgrader/internal/grading"
	"github.com/lshigami/examgrader/internal/model"
	"github.com/lshigami/examgrader/internal/repository"
)

type fakeExamRepo struct {
	exams map[uint]*model.Exam
}

func (f *fakeExamRepo) FindByIDWithQuestions(ctx context.Context, id uint) (*model.Exam, error) {
	exam, ok := f.exams[id]
	if !ok {
		return nil, fmt.Errorf("exam %d: %w", id, repository.ErrExamNotFound)
	}
	return exam, nil
}

type fakeAssignmentRepo struct {
	assignment *model.ExamAssignment
}

func (f *fakeAssignmentRepo) FindByExamAndUser(ctx context.Context, examID, userID uint) (*model.ExamAssignment, error) {
	return f.assignment, nil
}

type attemptKey struct{ examID, userID uint }

type fakeAttemptRepo struct {
	mu        sync.Mutex
	attempts  map[attemptKey]*model.ExamAttempt
	creates   int
	saves     int
	finalizes int
	// finalizeErr fails the next FinalizeAttempt once.
	finalizeErr error
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[attemptKey]*model.ExamAttempt)}
}

func (f *fakeAttemptRepo) GetAttempt(ctx context.Context, examID, userID uint) (*model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptKey{examID, userID}]
	if !ok {
		return nil, nil
	}
	clone := *a
	return &clone, nil
}

func (f *fakeAttemptRepo) CreateAttempt(ctx context.Context, attempt *model.ExamAttempt) (*model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := attemptKey{attempt.ExamID, attempt.UserID}
	if _, ok := f.attempts[key]; !ok {
		f.creates++
		clone := *attempt
		f.attempts[key] = &clone
	}
	clone := *f.attempts[key]
	return &clone, nil
}

func (f *fakeAttemptRepo) SaveProgress(ctx context.Context, examID, userID uint, answers []model.AnswerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptKey{examID, userID}]
	if !ok {
		return repository.ErrAttemptNotFound
	}
	if a.IsCompleted {
		return repository.ErrAttemptCompleted
	}
	f.saves++
	a.Answers = answers
	return nil
}

func (f *fakeAttemptRepo) FinalizeAttempt(ctx context.Context, examID, userID uint, r model.AttemptResult) (*model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptKey{examID, userID}]
	if !ok {
		return nil, repository.ErrAttemptNotFound
	}
	if err := f.finalizeErr; err != nil {
		f.finalizeErr = nil
		return nil, err
	}
	if a.IsCompleted {
		clone := *a
		return &clone, repository.ErrAlreadyFinalized
	}
	f.finalizes++
	submitted := r.SubmittedAt
	a.Answers = r.Answers
	a.SubmittedAt = &submitted
	a.IsCompleted = true
	a.CompletionType = r.CompletionType
	a.Score = r.Score
	a.PercentageScore = r.PercentageScore
	a.Passed = r.Passed
	a.TimeSpentSeconds = r.TimeSpentSeconds
	a.NeedsReview = r.NeedsReview
	clone := *a
	return &clone, nil
}

// echoGrader passes a test case when the answer equals its expected output.
type echoGrader struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
}

func (g *echoGrader) GradeQuestion(ctx context.Context, q *model.Question, answer string) []grading.TestResult {
	g.mu.Lock()
	g.calls++
	delay := g.delay
	g.mu.Unlock()
	time.Sleep(delay)

	out := make([]grading.TestResult, len(q.TestCases))
	for i, tc := range q.TestCases {
		out[i] = grading.TestResult{
			Passed:   answer == tc.ExpectedOutput,
			Input:    tc.Input,
			Expected: tc.ExpectedOutput,
			Actual:   answer,
			Hidden:   tc.IsHidden,
		}
	}
	return out
}

func (g *echoGrader) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []interface{}
}

func (p *recordingPublisher) Publish(eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, payload)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) last() interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func strPtr(s string) *string { return &s }

func sampleExam() *model.Exam {
	exam := &model.Exam{
		ID:              1,
		Title:           "Intro to Go",
		DurationMinutes: 30,
		PassingScore:    60,
		Questions: []model.Question{
			{ID: 10, ExamID: 1, Type: model.QuestionTypeMultipleChoice, Text: "Pick B", Points: 10, OrderInExam: 1,
				Options: []string{"A", "B", "C"}, CorrectAnswer: strPtr("B")},
			{ID: 11, ExamID: 1, Type: model.QuestionTypeCode, Text: "Echo", Points: 20, OrderInExam: 2,
				StarterCode: strPtr("// write here"), ReferenceSolution: strPtr("echo"),
				TestCases: []model.TestCase{
					{ID: 1, QuestionID: 11, Input: "a", ExpectedOutput: "ok"},
					{ID: 2, QuestionID: 11, Input: "b", ExpectedOutput: "ok"},
					{ID: 3, QuestionID: 11, Input: "secret", ExpectedOutput: "ok", IsHidden: true},
				}},
			{ID: 12, ExamID: 1, Type: model.QuestionTypeShortAnswer, Text: "Explain channels", Points: 10, OrderInExam: 3},
		},
	}
	exam.TotalPoints = exam.SumPoints()
	return exam
}
