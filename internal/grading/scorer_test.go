package grading

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/lshigami/examgrader/internal/model"
)

// stubGrader passes the first `passing` test cases of every question.
type stubGrader struct {
	passing map[uint]int
	calls   int
}

func (s *stubGrader) GradeQuestion(ctx context.Context, q *model.Question, answer string) []TestResult {
	s.calls++
	results := make([]TestResult, len(q.TestCases))
	for i := range results {
		results[i].Passed = i < s.passing[q.ID]
	}
	return results
}

func strPtr(s string) *string { return &s }

func nCases(n int) []model.TestCase {
	return make([]model.TestCase, n)
}

func TestCodePoints(t *testing.T) {
	testCases := []struct {
		name                  string
		points, passed, total int
		expected              int
	}{
		{"full pass 3 cases", 20, 3, 3, 20},
		{"full pass 7 cases keeps every point", 20, 7, 7, 20},
		{"partial two of three", 30, 2, 3, 20},
		{"partial floors", 20, 3, 7, 8},
		{"six of seven floors", 20, 6, 7, 17},
		{"none passed", 20, 0, 4, 0},
		{"no cases", 20, 0, 0, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodePoints(tc.points, tc.passed, tc.total); got != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestPercentage(t *testing.T) {
	testCases := []struct {
		score, total, expected int
	}{
		{0, 10, 0},
		{1, 3, 33},
		{2, 3, 67},
		{10, 10, 100},
		{12, 10, 100},
		{-1, 10, 0},
		{5, 0, 0},
	}
	for _, tc := range testCases {
		if got := Percentage(tc.score, tc.total); got != tc.expected {
			t.Errorf("Percentage(%d, %d): expected %d, got %d", tc.score, tc.total, tc.expected, got)
		}
	}
}

func TestTimeSpentSeconds(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	testCases := []struct {
		name     string
		elapsed  time.Duration
		expected int
	}{
		{"rounds down", 90*time.Second + 400*time.Millisecond, 90},
		{"rounds up", 90*time.Second + 500*time.Millisecond, 91},
		{"caps at duration", 2 * time.Hour, 600},
		{"clock skew floors at zero", -3 * time.Second, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := TimeSpentSeconds(start, start.Add(tc.elapsed), 10*time.Minute)
			if got != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestScoreMixedExam(t *testing.T) {
	exam := &model.Exam{
		PassingScore: 60,
		Questions: []model.Question{
			{ID: 1, Type: model.QuestionTypeMultipleChoice, Points: 10, CorrectAnswer: strPtr("B")},
			{ID: 2, Type: model.QuestionTypeCode, Points: 30, TestCases: nCases(3)},
			{ID: 3, Type: model.QuestionTypeCode, Points: 20, TestCases: nCases(7)},
			{ID: 4, Type: model.QuestionTypeCode, Points: 15},
			{ID: 5, Type: model.QuestionTypeShortAnswer, Points: 25},
		},
	}
	exam.TotalPoints = exam.SumPoints()
	grader := &stubGrader{passing: map[uint]int{2: 2, 3: 7}}

	res, err := NewScorer(grader).Score(context.Background(), exam, map[uint]string{
		1: "B",
		2: "code",
		3: "code",
		5: "an essay",
	})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}

	wantAwarded := []int{10, 20, 20, 0, 0}
	for i, qs := range res.Questions {
		if qs.Awarded != wantAwarded[i] {
			t.Errorf("question %d: expected %d points, got %d", qs.QuestionID, wantAwarded[i], qs.Awarded)
		}
	}
	if !res.Questions[3].NeedsReview || !res.Questions[4].NeedsReview {
		t.Errorf("Expected ungraded questions to be flagged for review")
	}
	if got := res.NeedsReview(); !reflect.DeepEqual(got, []uint{4, 5}) {
		t.Errorf("Expected questions 4 and 5 to await review, got %v", got)
	}
	if res.Score != 50 || res.TotalPoints != 100 {
		t.Errorf("Expected 50/100, got %d/%d", res.Score, res.TotalPoints)
	}
	if res.PercentageScore != 50 || res.Passed {
		t.Errorf("Expected 50%% not passed, got %d%% passed=%v", res.PercentageScore, res.Passed)
	}
	if grader.calls != 2 {
		t.Errorf("Expected grader to run for the two gradable code questions, got %d", grader.calls)
	}
}

func TestScoreMultipleChoiceIsAllOrNothing(t *testing.T) {
	exam := &model.Exam{
		TotalPoints:  5,
		PassingScore: 100,
		Questions: []model.Question{
			{ID: 1, Type: model.QuestionTypeMultipleChoice, Points: 5, CorrectAnswer: strPtr("Paris")},
		},
	}
	scorer := NewScorer(&stubGrader{})

	for _, answer := range []string{"paris", "Paris, France", "Par", " Paris", ""} {
		res, err := scorer.Score(context.Background(), exam, map[uint]string{1: answer})
		if err != nil {
			t.Fatalf("Score returned error: %v", err)
		}
		if res.Score != 0 {
			t.Errorf("answer %q: expected 0 points, got %d", answer, res.Score)
		}
	}

	res, _ := scorer.Score(context.Background(), exam, map[uint]string{1: "Paris"})
	if res.Score != 5 || res.PercentageScore != 100 || !res.Passed {
		t.Errorf("Expected full marks and pass, got %+v", res)
	}
}

func TestScorePassedMatchesThreshold(t *testing.T) {
	exam := &model.Exam{
		TotalPoints:  3,
		PassingScore: 67,
		Questions: []model.Question{
			{ID: 1, Type: model.QuestionTypeMultipleChoice, Points: 1, CorrectAnswer: strPtr("a")},
			{ID: 2, Type: model.QuestionTypeMultipleChoice, Points: 1, CorrectAnswer: strPtr("a")},
			{ID: 3, Type: model.QuestionTypeMultipleChoice, Points: 1, CorrectAnswer: strPtr("a")},
		},
	}
	res, err := NewScorer(&stubGrader{}).Score(context.Background(), exam, map[uint]string{1: "a", 2: "a"})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if res.PercentageScore != 67 || !res.Passed {
		t.Errorf("Expected 67%% to pass a 67 threshold, got %d%% passed=%v", res.PercentageScore, res.Passed)
	}
}

func TestScoreFailsWhenContextEnds(t *testing.T) {
	exam := &model.Exam{
		TotalPoints: 10,
		Questions:   []model.Question{{ID: 1, Type: model.QuestionTypeCode, Points: 10, TestCases: nCases(2)}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewScorer(&stubGrader{}).Score(ctx, exam, nil); err == nil {
		t.Fatal("Expected an error when grading is interrupted")
	}
}
