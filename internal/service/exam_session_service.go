package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lshigami/examgrader/config"
	"github.com/lshigami/examgrader/internal/dto"
	"github.com/lshigami/examgrader/internal/event"
	"github.com/lshigami/examgrader/internal/grading"
	"github.com/lshigami/examgrader/internal/model"
	"github.com/lshigami/examgrader/internal/repository"
	"github.com/lshigami/examgrader/internal/session"
	"github.com/rs/zerolog/log"
)

// ExamSessionService keeps one live session per (exam, user) and exposes the
// session operations to the HTTP layer. Operations other than Start load the
// session on demand, so a client can carry on after a server restart.
type ExamSessionService interface {
	StartOrResumeSession(ctx context.Context, examID, userID uint) (*dto.SessionResponse, error)
	UpdateAnswer(ctx context.Context, examID, userID, questionID uint, answer string) error
	RunTests(ctx context.Context, examID, userID, questionID uint) (*dto.RunTestsResponse, error)
	Submit(ctx context.Context, examID, userID uint) (*dto.ResultResponse, error)
	CloseSession(ctx context.Context, examID, userID uint)
	GetResult(ctx context.Context, examID, userID uint) (*dto.ResultResponse, error)
	Shutdown(ctx context.Context)
}

type sessionKey struct {
	examID uint
	userID uint
}

type examSessionService struct {
	examRepo    repository.ExamRepository
	attemptRepo repository.AttemptRepository
	grader      grading.CodeGrader
	scorer      session.Scorer
	publisher   event.Publisher
	autosave    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[sessionKey]*session.Session
	// loading holds one channel per key whose session is being loaded and
	// started. It is closed once that load is done.
	loading map[sessionKey]chan struct{}
}

func NewExamSessionService(
	cfg *config.Config,
	examRepo repository.ExamRepository,
	attemptRepo repository.AttemptRepository,
	grader grading.CodeGrader,
	scorer session.Scorer,
	publisher event.Publisher,
) ExamSessionService {
	return &examSessionService{
		examRepo:    examRepo,
		attemptRepo: attemptRepo,
		grader:      grader,
		scorer:      scorer,
		publisher:   publisher,
		autosave:    cfg.Session.AutosaveInterval,
		now:         time.Now,
		sessions:    make(map[sessionKey]*session.Session),
		loading:     make(map[sessionKey]chan struct{}),
	}
}

func (s *examSessionService) StartOrResumeSession(ctx context.Context, examID, userID uint) (*dto.SessionResponse, error) {
	sess, err := s.acquire(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(sess.Snapshot()), nil
}

func (s *examSessionService) UpdateAnswer(ctx context.Context, examID, userID, questionID uint, answer string) error {
	sess, err := s.acquire(ctx, examID, userID)
	if err != nil {
		return err
	}
	return sess.UpdateAnswer(questionID, answer)
}

// RunTests grades the current answer and redacts hidden test cases.
func (s *examSessionService) RunTests(ctx context.Context, examID, userID, questionID uint) (*dto.RunTestsResponse, error) {
	sess, err := s.acquire(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	results, err := sess.RunTests(ctx, questionID)
	if err != nil {
		return nil, err
	}

	resp := &dto.RunTestsResponse{
		QuestionID: questionID,
		Results:    make([]dto.TestResultResponse, 0, len(results)),
		Total:      len(results),
		Passed:     grading.CountPassed(results),
	}
	for _, r := range results {
		if r.Hidden {
			resp.HiddenTotal++
			if r.Passed {
				resp.HiddenPassed++
			}
			continue
		}
		resp.Results = append(resp.Results, dto.TestResultResponse{
			Passed:   r.Passed,
			Input:    r.Input,
			Expected: r.Expected,
			Actual:   r.Actual,
		})
	}
	log.Info().Uint("examID", examID).Uint("userID", userID).Uint("questionID", questionID).
		Int("passed", resp.Passed).Int("total", resp.Total).Msg("RunTests: graded current answer")
	return resp, nil
}

func (s *examSessionService) Submit(ctx context.Context, examID, userID uint) (*dto.ResultResponse, error) {
	sess, err := s.acquire(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	result, err := sess.Submit(ctx)
	if err != nil {
		return nil, err
	}
	return toResultResponse(*result), nil
}

// CloseSession disposes the live session, if any. Pending answers are saved once more.
func (s *examSessionService) CloseSession(ctx context.Context, examID, userID uint) {
	key := sessionKey{examID: examID, userID: userID}
	s.mu.Lock()
	sess, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if ok {
		sess.Close(ctx)
		log.Info().Uint("examID", examID).Uint("userID", userID).Msg("CloseSession: session disposed")
	}
}

func (s *examSessionService) GetResult(ctx context.Context, examID, userID uint) (*dto.ResultResponse, error) {
	exam, err := s.examRepo.FindByIDWithQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	attempt, err := s.attemptRepo.GetAttempt(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, fmt.Errorf("exam %d user %d: %w", examID, userID, repository.ErrAttemptNotFound)
	}
	if !attempt.IsCompleted {
		return nil, ErrAttemptInProgress
	}
	return toResultResponse(attempt.Result(exam.TotalPoints)), nil
}

// Shutdown closes every live session.
func (s *examSessionService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[sessionKey]*session.Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close(ctx)
	}
	log.Info().Int("count", len(sessions)).Msg("Shutdown: live sessions closed")
}

// acquire returns the live session for the pair, loading and starting it when
// there is none. Loads are serialized per pair: a caller that finds a load in
// flight waits for it and looks again, so an expired attempt is scored once.
func (s *examSessionService) acquire(ctx context.Context, examID, userID uint) (*session.Session, error) {
	key := sessionKey{examID: examID, userID: userID}
	for {
		s.mu.Lock()
		if sess := s.lookupLocked(key); sess != nil {
			s.mu.Unlock()
			return sess, nil
		}
		if wait, ok := s.loading[key]; ok {
			s.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		done := make(chan struct{})
		s.loading[key] = done
		s.mu.Unlock()

		sess, err := s.load(ctx, key)

		s.mu.Lock()
		delete(s.loading, key)
		close(done)
		// A completed session owns no timers and is served from its stored result.
		if err == nil && sess.State() == session.StateInProgress {
			s.sessions[key] = sess
		}
		s.mu.Unlock()
		return sess, err
	}
}

// load reads the exam and attempt, creating the attempt on first visit, and
// starts a session over them.
func (s *examSessionService) load(ctx context.Context, key sessionKey) (*session.Session, error) {
	exam, err := s.examRepo.FindByIDWithQuestions(ctx, key.examID)
	if err != nil {
		log.Warn().Err(err).Uint("examID", key.examID).Msg("load: Failed to load exam")
		return nil, err
	}
	attempt, err := s.attemptRepo.GetAttempt(ctx, key.examID, key.userID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		attempt, err = s.attemptRepo.CreateAttempt(ctx, &model.ExamAttempt{
			ExamID:    key.examID,
			UserID:    key.userID,
			StartedAt: s.now(),
			Answers:   []model.AnswerEntry{},
		})
		if err != nil {
			log.Error().Err(err).Uint("examID", key.examID).Uint("userID", key.userID).Msg("load: Failed to create attempt")
			return nil, err
		}
		log.Info().Uint("examID", key.examID).Uint("userID", key.userID).Msg("load: attempt started")
	}

	sess := session.New(exam, attempt, s.attemptRepo, s.grader, s.scorer, session.Options{
		AutosaveInterval: s.autosave,
		Now:              s.now,
		OnFinalized: func(examID, userID uint, result model.AttemptResult) {
			s.evict(key)
			s.publishFinalized(examID, userID, result)
		},
	})
	if _, err := sess.Start(ctx); err != nil {
		sess.Close(ctx)
		return nil, err
	}
	return sess, nil
}

func (s *examSessionService) lookupLocked(key sessionKey) *session.Session {
	sess, ok := s.sessions[key]
	if !ok {
		return nil
	}
	if sess.Closed() {
		delete(s.sessions, key)
		return nil
	}
	return sess
}

func (s *examSessionService) evict(key sessionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

func (s *examSessionService) publishFinalized(examID, userID uint, r model.AttemptResult) {
	err := s.publisher.Publish(event.TypeAttemptFinalized, event.AttemptFinalized{
		ExamID:           examID,
		UserID:           userID,
		CompletionType:   string(r.CompletionType),
		Score:            r.Score,
		TotalPoints:      r.TotalPoints,
		PercentageScore:  r.PercentageScore,
		Passed:           r.Passed,
		TimeSpentSeconds: r.TimeSpentSeconds,
		SubmittedAt:      r.SubmittedAt,
		NeedsReview:      r.NeedsReview,
	})
	if err != nil {
		log.Error().Err(err).Uint("examID", examID).Uint("userID", userID).Msg("publishFinalized: Failed to publish event")
	}
}

func toSessionResponse(snap *session.Snapshot) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		ExamID:           snap.ExamID,
		State:            string(snap.State),
		StartedAt:        snap.StartedAt,
		Deadline:         snap.Deadline,
		RemainingSeconds: snap.RemainingSeconds,
		Answers:          make([]dto.AnswerDTO, len(snap.Answers)),
		LastSavedAt:      snap.LastSavedAt,
	}
	for i, a := range snap.Answers {
		resp.Answers[i] = dto.AnswerDTO{QuestionID: a.QuestionID, Answer: a.Answer}
	}
	if snap.Result != nil {
		resp.Result = toResultResponse(*snap.Result)
	}
	return resp
}

func toResultResponse(r model.AttemptResult) *dto.ResultResponse {
	return &dto.ResultResponse{
		Score:            r.Score,
		TotalPoints:      r.TotalPoints,
		PercentageScore:  r.PercentageScore,
		Passed:           r.Passed,
		CompletionType:   string(r.CompletionType),
		SubmittedAt:      r.SubmittedAt,
		TimeSpentSeconds: r.TimeSpentSeconds,
		NeedsReview:      r.NeedsReview,
	}
}
