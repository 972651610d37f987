package grading

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/lshigami/examgrader/internal/model"
)

// CodeGrader grades one code question.
type CodeGrader interface {
	GradeQuestion(ctx context.Context, q *model.Question, answer string) []TestResult
}

type QuestionScore struct {
	QuestionID uint               `json:"question_id"`
	Type       model.QuestionType `json:"type"`
	Points     int                `json:"points"`
	Awarded    int                `json:"awarded"`
	// NeedsReview marks questions automation could not grade.
	NeedsReview bool         `json:"needs_review,omitempty"`
	Tests       []TestResult `json:"-"`
}

type Result struct {
	Score           int             `json:"score"`
	TotalPoints     int             `json:"total_points"`
	PercentageScore int             `json:"percentage_score"`
	Passed          bool            `json:"passed"`
	Questions       []QuestionScore `json:"questions"`
}

// NeedsReview returns the IDs of questions that were not graded automatically.
func (r *Result) NeedsReview() []uint {
	var ids []uint
	for _, q := range r.Questions {
		if q.NeedsReview {
			ids = append(ids, q.QuestionID)
		}
	}
	return ids
}

type Scorer struct {
	grader CodeGrader
}

func NewScorer(grader CodeGrader) *Scorer {
	return &Scorer{grader: grader}
}

// Score grades every question of exam in order. Missing answers count as "".
// It fails only when ctx ends while grading, since a partially graded exam must not be stored.
func (s *Scorer) Score(ctx context.Context, exam *model.Exam, answers map[uint]string) (*Result, error) {
	result := &Result{
		TotalPoints: exam.TotalPoints,
		Questions:   make([]QuestionScore, 0, len(exam.Questions)),
	}

	for i := range exam.Questions {
		q := &exam.Questions[i]
		qs := QuestionScore{QuestionID: q.ID, Type: q.Type, Points: q.Points}
		answer := answers[q.ID]

		switch q.Type {
		case model.QuestionTypeMultipleChoice:
			if q.CorrectAnswer != nil && answer == *q.CorrectAnswer {
				qs.Awarded = q.Points
			}
		case model.QuestionTypeCode:
			if len(q.TestCases) == 0 {
				qs.NeedsReview = true
				break
			}
			qs.Tests = s.grader.GradeQuestion(ctx, q, answer)
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("grading question %d interrupted: %w", q.ID, err)
			}
			qs.Awarded = CodePoints(q.Points, CountPassed(qs.Tests), len(qs.Tests))
		case model.QuestionTypeShortAnswer:
			qs.NeedsReview = true
		}

		result.Score += qs.Awarded
		result.Questions = append(result.Questions, qs)
	}

	result.PercentageScore = Percentage(result.Score, result.TotalPoints)
	result.Passed = result.PercentageScore >= exam.PassingScore
	return result, nil
}

// CodePoints awards full points on a full pass and the floored proportional
// share otherwise.
func CodePoints(points, passed, total int) int {
	if total <= 0 {
		return 0
	}
	if passed >= total {
		return points
	}
	return points * passed / total
}

// Percentage is round(100*score/total) clamped to [0, 100]; 0 when total is 0.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(score) / float64(total)))
	return clamp(pct, 0, 100)
}

// TimeSpentSeconds is the rounded wall time of the attempt capped at the exam duration.
func TimeSpentSeconds(startedAt, submittedAt time.Time, duration time.Duration) int {
	secs := int(math.Round(submittedAt.Sub(startedAt).Seconds()))
	return clamp(secs, 0, int(duration/time.Second))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
