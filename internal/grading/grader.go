package grading

import (
	"context"
	"strings"

	"github.com/lshigami/examgrader/config"
	"github.com/lshigami/examgrader/internal/executor"
	"github.com/lshigami/examgrader/internal/model"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// ExecutionFailedMarker replaces the actual output of a test case whose run
// could not be completed by the executor.
const ExecutionFailedMarker = "Error: could not execute code"

// TestResult is the verdict for one test case. Hidden results carry their
// input and expected output too; redaction is left to the presentation layer.
type TestResult struct {
	Passed   bool   `json:"passed"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Hidden   bool   `json:"hidden"`
}

// outcome is either an actual output or the reason there is none.
type outcome struct {
	actual string
	err    error
}

type Grader struct {
	runner      executor.Runner
	languageID  int
	concurrency int
}

func NewGrader(runner executor.Runner, cfg *config.Config) *Grader {
	concurrency := cfg.Executor.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Grader{
		runner:      runner,
		languageID:  cfg.Executor.LanguageID,
		concurrency: concurrency,
	}
}

// GradeQuestion runs every test case of q against answer (or the starter code
// when answer is blank). Results are in test case order whatever the concurrency.
func (g *Grader) GradeQuestion(ctx context.Context, q *model.Question, answer string) []TestResult {
	source := answer
	if strings.TrimSpace(source) == "" && q.StarterCode != nil {
		source = *q.StarterCode
	}

	results := make([]TestResult, len(q.TestCases))
	p := pool.New().WithMaxGoroutines(g.concurrency)
	for i := range q.TestCases {
		i := i
		tc := q.TestCases[i]
		p.Go(func() {
			results[i] = g.gradeCase(ctx, q.ID, source, tc)
		})
	}
	p.Wait()
	return results
}

func (g *Grader) gradeCase(ctx context.Context, questionID uint, source string, tc model.TestCase) TestResult {
	expected := strings.TrimSpace(tc.ExpectedOutput)
	out := g.execute(ctx, source, tc.Input)

	actual := out.actual
	if out.err != nil {
		log.Warn().Err(out.err).Uint("questionID", questionID).Uint("testCaseID", tc.ID).Msg("GradeQuestion: executor call failed, recording failed verdict")
		actual = ExecutionFailedMarker
	}
	return TestResult{
		Passed:   out.err == nil && actual == expected,
		Input:    tc.Input,
		Expected: expected,
		Actual:   actual,
		Hidden:   tc.IsHidden,
	}
}

func (g *Grader) execute(ctx context.Context, source, stdin string) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{err: err}
	}
	res, err := g.runner.Execute(ctx, executor.Submission{
		SourceCode: source,
		LanguageID: g.languageID,
		Stdin:      stdin,
	})
	if err != nil {
		return outcome{err: err}
	}
	return outcome{actual: ActualOutput(res)}
}

// ActualOutput picks what a run "printed": stdout when there is any, otherwise
// the error stream, the compiler output, and finally the status description.
func ActualOutput(res *executor.Result) string {
	if res.Stdout != "" {
		return strings.TrimSpace(res.Stdout)
	}
	if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
		return "Error: " + stderr
	}
	if compile := strings.TrimSpace(res.CompileOutput); compile != "" {
		return "Compilation Error: " + compile
	}
	return res.Status
}

// CountPassed returns how many results passed.
func CountPassed(results []TestResult) int {
	n := 0
	for _, r := range results {
		if r.Passed {
			n++
		}
	}
	return n
}
