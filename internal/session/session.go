package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lshigami/examgrader/internal/grading"
	"github.com/lshigami/examgrader/internal/model"
	"github.com/lshigami/examgrader/internal/repository"
	"github.com/rs/zerolog/log"
)

type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateInProgress State = "IN_PROGRESS"
	StateCompleted  State = "COMPLETED"
)

// Store is the part of the attempt repository a session writes to.
type Store interface {
	SaveProgress(ctx context.Context, examID, userID uint, answers []model.AnswerEntry) error
	FinalizeAttempt(ctx context.Context, examID, userID uint, result model.AttemptResult) (*model.ExamAttempt, error)
}

type Scorer interface {
	Score(ctx context.Context, exam *model.Exam, answers map[uint]string) (*grading.Result, error)
}

type Grader interface {
	GradeQuestion(ctx context.Context, q *model.Question, answer string) []grading.TestResult
}

type Options struct {
	AutosaveInterval time.Duration
	// TickInterval defaults to one second.
	TickInterval time.Duration
	Now          func() time.Time
	// OnFinalized runs after this session wrote the final result.
	OnFinalized func(examID, userID uint, result model.AttemptResult)
}

// Snapshot is what the caller sees of a session.
type Snapshot struct {
	ExamID           uint
	UserID           uint
	State            State
	StartedAt        time.Time
	Deadline         time.Time
	RemainingSeconds int
	Answers          []model.AnswerEntry
	LastSavedAt      *time.Time
	Result           *model.AttemptResult
}

// Session drives one attempt from start to its single finalization.
type Session struct {
	exam    *model.Exam
	attempt *model.ExamAttempt
	store   Store
	grader  Grader
	scorer  Scorer
	opts    Options
	now     func() time.Time

	answers   *AnswerStore
	countdown *Countdown
	autosaver *Autosaver

	mu          sync.Mutex
	state       State
	result      *model.AttemptResult
	finalizing  chan struct{}
	closed      bool
	lastSavedAt time.Time

	// persistMu orders autosave writes against the finalize write.
	persistMu sync.Mutex
}

func New(exam *model.Exam, attempt *model.ExamAttempt, store Store, grader Grader, scorer Scorer, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ids := make([]uint, len(exam.Questions))
	for i, q := range exam.Questions {
		ids[i] = q.ID
	}

	s := &Session{
		exam:      exam,
		attempt:   attempt,
		store:     store,
		grader:    grader,
		scorer:    scorer,
		opts:      opts,
		now:       opts.Now,
		answers:   NewAnswerStore(ids),
		countdown: NewCountdown(attempt.StartedAt, exam.Duration(), opts.Now),
		state:     StateNotStarted,
	}
	if opts.TickInterval > 0 {
		s.countdown.tick = opts.TickInterval
	}
	s.autosaver = NewAutosaver(opts.AutosaveInterval, s.autosave)
	return s
}

// Start moves the session out of NOT_STARTED. A completed attempt goes straight
// to COMPLETED with its stored result. An open attempt is hydrated and its timer
// and autosave loop start. If its time already ran out it is finalized now, and
// a failed finalize is returned as a *FinalizeError with the session left open
// for a retried Submit.
func (s *Session) Start(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.state != StateNotStarted {
		s.mu.Unlock()
		return s.Snapshot(), nil
	}

	if s.attempt.IsCompleted {
		r := s.attempt.Result(s.exam.TotalPoints)
		s.result = &r
		s.state = StateCompleted
		s.mu.Unlock()
		return s.Snapshot(), nil
	}

	s.answers.Load(s.attempt.Answers)
	s.state = StateInProgress
	s.mu.Unlock()

	if s.countdown.Remaining() == 0 {
		log.Info().Uint("examID", s.exam.ID).Uint("userID", s.attempt.UserID).Msg("Start: time ran out while away, finalizing")
		if _, err := s.Finalize(ctx, model.CompletionTimeout); err != nil {
			log.Error().Err(err).Uint("examID", s.exam.ID).Uint("userID", s.attempt.UserID).Msg("Start: finalize of expired attempt failed")
			return s.Snapshot(), err
		}
		return s.Snapshot(), nil
	}

	s.countdown.Start(s.expire)
	s.autosaver.Start()
	return s.Snapshot(), nil
}

func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		ExamID:    s.exam.ID,
		UserID:    s.attempt.UserID,
		State:     s.state,
		StartedAt: s.attempt.StartedAt,
		Deadline:  s.countdown.Deadline(),
	}
	if s.state == StateCompleted {
		r := *s.result
		snap.Result = &r
		snap.Answers = append([]model.AnswerEntry(nil), r.Answers...)
		return snap
	}
	snap.RemainingSeconds = s.countdown.RemainingSeconds()
	snap.Answers = s.answers.Serialize()
	if !s.lastSavedAt.IsZero() {
		t := s.lastSavedAt
		snap.LastSavedAt = &t
	}
	return snap
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) RemainingSeconds() int {
	if s.State() != StateInProgress {
		return 0
	}
	return s.countdown.RemainingSeconds()
}

// UpdateAnswer records an answer in memory; autosave persists it later. Edits
// are refused once the deadline has passed, even while the timeout finalize is
// still pending or being retried.
func (s *Session) UpdateAnswer(questionID uint, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if s.countdown.Remaining() == 0 {
		return ErrTimeUp
	}
	if s.exam.QuestionByID(questionID) == nil {
		return ErrQuestionNotFound
	}
	s.answers.Set(questionID, value)
	return nil
}

// RunTests grades the current answer of a code question without scoring it.
// Results include hidden cases. If the session is closed while the tests run,
// the results are dropped.
func (s *Session) RunTests(ctx context.Context, questionID uint) ([]grading.TestResult, error) {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	q := s.exam.QuestionByID(questionID)
	if q == nil {
		s.mu.Unlock()
		return nil, ErrQuestionNotFound
	}
	if q.Type != model.QuestionTypeCode {
		s.mu.Unlock()
		return nil, ErrNotCodeQuestion
	}
	answer := s.answers.Get(questionID)
	s.mu.Unlock()

	results := s.grader.GradeQuestion(ctx, q, answer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return results, nil
}

// Submit finalizes the attempt on behalf of the user.
func (s *Session) Submit(ctx context.Context) (*model.AttemptResult, error) {
	return s.Finalize(ctx, model.CompletionManual)
}

// Finalize grades and stores the attempt once. Concurrent callers wait for the
// one in flight and get its result; calls after completion return the stored
// result without grading. On failure the session stays IN_PROGRESS and a
// *FinalizeError is returned.
func (s *Session) Finalize(ctx context.Context, completion model.CompletionType) (*model.AttemptResult, error) {
	for {
		s.mu.Lock()
		switch {
		case s.state == StateCompleted:
			r := *s.result
			s.mu.Unlock()
			return &r, nil
		case s.state == StateNotStarted:
			s.mu.Unlock()
			return nil, ErrNotStarted
		case s.closed:
			s.mu.Unlock()
			return nil, ErrSessionClosed
		}

		if wait := s.finalizing; wait != nil {
			s.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		done := make(chan struct{})
		s.finalizing = done
		answers := s.answers.Serialize()
		if s.countdown.Remaining() == 0 {
			completion = model.CompletionTimeout
		}
		s.mu.Unlock()

		result, wrote, err := s.finalize(ctx, answers, completion)

		s.mu.Lock()
		s.finalizing = nil
		close(done)
		if err != nil {
			s.mu.Unlock()
			log.Error().Err(err).Uint("examID", s.exam.ID).Uint("userID", s.attempt.UserID).Msg("Finalize: attempt stays in progress")
			return nil, &FinalizeError{Err: err}
		}
		s.state = StateCompleted
		s.result = result
		s.mu.Unlock()

		s.stopLoops()
		if wrote && s.opts.OnFinalized != nil {
			s.opts.OnFinalized(s.exam.ID, s.attempt.UserID, *result)
		}
		r := *result
		return &r, nil
	}
}

func (s *Session) finalize(ctx context.Context, answers []model.AnswerEntry, completion model.CompletionType) (*model.AttemptResult, bool, error) {
	byID := make(map[uint]string, len(answers))
	for _, a := range answers {
		byID[a.QuestionID] = a.Answer
	}

	scored, err := s.scorer.Score(ctx, s.exam, byID)
	if err != nil {
		return nil, false, fmt.Errorf("scoring: %w", err)
	}

	submittedAt := s.now()
	result := model.AttemptResult{
		Answers:          answers,
		SubmittedAt:      submittedAt,
		CompletionType:   completion,
		Score:            scored.Score,
		TotalPoints:      scored.TotalPoints,
		PercentageScore:  scored.PercentageScore,
		Passed:           scored.Passed,
		TimeSpentSeconds: grading.TimeSpentSeconds(s.attempt.StartedAt, submittedAt, s.exam.Duration()),
		NeedsReview:      scored.NeedsReview(),
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	stored, err := s.store.FinalizeAttempt(ctx, s.exam.ID, s.attempt.UserID, result)
	if errors.Is(err, repository.ErrAlreadyFinalized) && stored != nil {
		log.Info().Uint("examID", s.exam.ID).Uint("userID", s.attempt.UserID).Msg("Finalize: attempt was finalized elsewhere, using stored result")
		r := stored.Result(s.exam.TotalPoints)
		return &r, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("persisting result: %w", err)
	}

	log.Info().Uint("examID", s.exam.ID).Uint("userID", s.attempt.UserID).
		Int("score", result.Score).Str("completion", string(completion)).Msg("Finalize: attempt completed")
	if stored == nil {
		return &result, true, nil
	}
	r := stored.Result(s.exam.TotalPoints)
	return &r, true, nil
}

// Flush writes unsaved answers if the attempt is still open and no finalize is
// in flight. The write happens under persistMu so it cannot land after the
// finalize write.
func (s *Session) Flush(ctx context.Context) error {
	if !s.answers.Dirty() {
		return nil
	}
	entries, version := s.answers.Snapshot()

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	open := s.state == StateInProgress && s.finalizing == nil
	s.mu.Unlock()
	if !open {
		return nil
	}

	if err := s.store.SaveProgress(ctx, s.exam.ID, s.attempt.UserID, entries); err != nil {
		return err
	}
	s.answers.MarkSaved(version)

	s.mu.Lock()
	s.lastSavedAt = s.now()
	s.mu.Unlock()
	return nil
}

// Close tears down the timer and autosave loop and writes pending answers once
// more. The session cannot be used afterwards.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.stopLoops()
	if err := s.Flush(ctx); err != nil {
		log.Warn().Err(err).Uint("examID", s.exam.ID).Uint("userID", s.attempt.UserID).Msg("Close: final save failed")
	}
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) autosave(ctx context.Context) {
	if err := s.Flush(ctx); err != nil {
		log.Warn().Err(err).Uint("examID", s.exam.ID).Uint("userID", s.attempt.UserID).Msg("autosave: write failed, will retry next tick")
	}
}

func (s *Session) expire() {
	if _, err := s.Finalize(context.Background(), model.CompletionTimeout); err != nil && !errors.Is(err, ErrSessionClosed) {
		log.Error().Err(err).Uint("examID", s.exam.ID).Uint("userID", s.attempt.UserID).Msg("expire: automatic submit failed")
	}
}

func (s *Session) stopLoops() {
	s.countdown.Stop()
	s.autosaver.Stop()
}

func (s *Session) checkOpenLocked() error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.state == StateNotStarted:
		return ErrNotStarted
	case s.state == StateCompleted:
		return ErrAttemptCompleted
	}
	return nil
}
