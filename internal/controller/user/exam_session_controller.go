package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/examgrader/internal/dto"
	"github.com/lshigami/examgrader/internal/repository"
	"github.com/lshigami/examgrader/internal/service"
	"github.com/lshigami/examgrader/internal/session"
	"github.com/rs/zerolog/log"
)

// UserIDHeader carries the caller's identity, set by the gateway in front of this service.
const UserIDHeader = "X-User-ID"

type ExamSessionController struct {
	examService    service.ExamService
	sessionService service.ExamSessionService
}

func NewExamSessionController(es service.ExamService, ss service.ExamSessionService) *ExamSessionController {
	return &ExamSessionController{
		examService:    es,
		sessionService: ss,
	}
}

func (c *ExamSessionController) RegisterRoutes(router *gin.Engine) {
	exams := router.Group("/api/v1/exams/:exam_id")
	{
		exams.GET("", c.GetExam)
		exams.GET("/result", c.GetResult)

		sess := exams.Group("/session")
		sess.POST("", c.StartSession)
		sess.DELETE("", c.CloseSession)
		sess.PUT("/answers/:question_id", c.UpdateAnswer)
		sess.POST("/questions/:question_id/run", c.RunTests)
		sess.POST("/submit", c.Submit)
	}
}

// GetExam godoc
// @Summary Get an exam for taking
// @Description Exam with its questions. Correct answers, reference solutions and hidden test cases are removed.
// @Tags Exam Session
// @Produce json
// @Param exam_id path int true "Exam ID"
// @Param X-User-ID header int true "User ID"
// @Success 200 {object} dto.ExamResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid Exam ID or User ID"
// @Failure 404 {object} dto.ErrorResponse "Exam not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /exams/{exam_id} [get]
func (c *ExamSessionController) GetExam(ctx *gin.Context) {
	examID, userID, ok := examAndUser(ctx)
	if !ok {
		return
	}
	exam, err := c.examService.GetExamForStudent(ctx.Request.Context(), examID, userID)
	if err != nil {
		respondError(ctx, "GetExam", err)
		return
	}
	ctx.JSON(http.StatusOK, exam)
}

// StartSession godoc
// @Summary Start or resume an exam session
// @Description Creates the attempt on first call. Resuming returns saved answers and the time left. A completed attempt returns its stored result.
// @Tags Exam Session
// @Produce json
// @Param exam_id path int true "Exam ID"
// @Param X-User-ID header int true "User ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid Exam ID or User ID"
// @Failure 404 {object} dto.ErrorResponse "Exam not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /exams/{exam_id}/session [post]
func (c *ExamSessionController) StartSession(ctx *gin.Context) {
	examID, userID, ok := examAndUser(ctx)
	if !ok {
		return
	}
	resp, err := c.sessionService.StartOrResumeSession(ctx.Request.Context(), examID, userID)
	if err != nil {
		respondError(ctx, "StartSession", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// UpdateAnswer godoc
// @Summary Update one answer
// @Description Stores the answer in the live session. It is persisted by the next autosave.
// @Tags Exam Session
// @Accept json
// @Param exam_id path int true "Exam ID"
// @Param question_id path int true "Question ID"
// @Param X-User-ID header int true "User ID"
// @Param answer body dto.UpdateAnswerRequest true "New answer"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 404 {object} dto.ErrorResponse "Exam or question not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt already completed"
// @Router /exams/{exam_id}/session/answers/{question_id} [put]
func (c *ExamSessionController) UpdateAnswer(ctx *gin.Context) {
	examID, userID, ok := examAndUser(ctx)
	if !ok {
		return
	}
	questionID, ok := uintParam(ctx, "question_id")
	if !ok {
		return
	}

	var req dto.UpdateAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	if err := c.sessionService.UpdateAnswer(ctx.Request.Context(), examID, userID, questionID, *req.Answer); err != nil {
		respondError(ctx, "UpdateAnswer", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// RunTests godoc
// @Summary Run the visible tests of a code question
// @Description Runs the current answer against every test case. Only visible results are returned; hidden ones appear in the counts.
// @Tags Exam Session
// @Produce json
// @Param exam_id path int true "Exam ID"
// @Param question_id path int true "Question ID"
// @Param X-User-ID header int true "User ID"
// @Success 200 {object} dto.RunTestsResponse
// @Failure 400 {object} dto.ErrorResponse "Not a code question"
// @Failure 404 {object} dto.ErrorResponse "Exam or question not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt completed or session closed"
// @Router /exams/{exam_id}/session/questions/{question_id}/run [post]
func (c *ExamSessionController) RunTests(ctx *gin.Context) {
	examID, userID, ok := examAndUser(ctx)
	if !ok {
		return
	}
	questionID, ok := uintParam(ctx, "question_id")
	if !ok {
		return
	}
	resp, err := c.sessionService.RunTests(ctx.Request.Context(), examID, userID, questionID)
	if err != nil {
		respondError(ctx, "RunTests", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Submit godoc
// @Summary Submit the attempt
// @Description Grades and stores the attempt. Submitting again returns the stored result.
// @Tags Exam Session
// @Produce json
// @Param exam_id path int true "Exam ID"
// @Param X-User-ID header int true "User ID"
// @Success 200 {object} dto.ResultResponse
// @Failure 404 {object} dto.ErrorResponse "Exam not found"
// @Failure 503 {object} dto.ErrorResponse "Grading or saving failed, retry"
// @Router /exams/{exam_id}/session/submit [post]
func (c *ExamSessionController) Submit(ctx *gin.Context) {
	examID, userID, ok := examAndUser(ctx)
	if !ok {
		return
	}
	log.Info().Uint("examID", examID).Uint("userID", userID).Msg("Received request to submit exam attempt")

	resp, err := c.sessionService.Submit(ctx.Request.Context(), examID, userID)
	if err != nil {
		respondError(ctx, "Submit", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// CloseSession godoc
// @Summary Leave the exam
// @Description Stops the timer and autosave of the live session after saving pending answers. The attempt stays open.
// @Tags Exam Session
// @Param exam_id path int true "Exam ID"
// @Param X-User-ID header int true "User ID"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse "Invalid Exam ID or User ID"
// @Router /exams/{exam_id}/session [delete]
func (c *ExamSessionController) CloseSession(ctx *gin.Context) {
	examID, userID, ok := examAndUser(ctx)
	if !ok {
		return
	}
	c.sessionService.CloseSession(ctx.Request.Context(), examID, userID)
	ctx.Status(http.StatusNoContent)
}

// GetResult godoc
// @Summary Get the stored result
// @Tags Exam Session
// @Produce json
// @Param exam_id path int true "Exam ID"
// @Param X-User-ID header int true "User ID"
// @Success 200 {object} dto.ResultResponse
// @Failure 404 {object} dto.ErrorResponse "No attempt"
// @Failure 409 {object} dto.ErrorResponse "Attempt still in progress"
// @Router /exams/{exam_id}/result [get]
func (c *ExamSessionController) GetResult(ctx *gin.Context) {
	examID, userID, ok := examAndUser(ctx)
	if !ok {
		return
	}
	resp, err := c.sessionService.GetResult(ctx.Request.Context(), examID, userID)
	if err != nil {
		respondError(ctx, "GetResult", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

func examAndUser(ctx *gin.Context) (examID, userID uint, ok bool) {
	examID, ok = uintParam(ctx, "exam_id")
	if !ok {
		return 0, 0, false
	}
	val, err := strconv.ParseUint(ctx.GetHeader(UserIDHeader), 10, 32)
	if err != nil || val == 0 {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Missing or invalid " + UserIDHeader + " header"})
		return 0, 0, false
	}
	return examID, uint(val), true
}

func uintParam(ctx *gin.Context, name string) (uint, bool) {
	val, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(val), true
}

func respondError(ctx *gin.Context, op string, err error) {
	var finalizeErr *session.FinalizeError
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, repository.ErrExamNotFound),
		errors.Is(err, repository.ErrAttemptNotFound),
		errors.Is(err, session.ErrQuestionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrNotCodeQuestion):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrAttemptCompleted),
		errors.Is(err, repository.ErrAttemptCompleted),
		errors.Is(err, session.ErrSessionClosed),
		errors.Is(err, session.ErrTimeUp),
		errors.Is(err, service.ErrAttemptInProgress):
		status = http.StatusConflict
	case errors.As(err, &finalizeErr) && finalizeErr.Retryable():
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msgf("User %s: Service error", op)
	} else {
		log.Warn().Err(err).Msgf("User %s: Request rejected", op)
	}
	ctx.JSON(status, dto.ErrorResponse{Message: http.StatusText(status), Details: []string{err.Error()}})
}
