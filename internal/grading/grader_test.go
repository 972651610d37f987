package grading

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lshigami/examgrader/config"
	"github.com/lshigami/examgrader/internal/executor"
	"github.com/lshigami/examgrader/internal/model"
)

// fakeRunner answers by stdin; stdin values listed in fail return an error.
type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string]*executor.Result
	fail    map[string]bool
	jitter  bool
	calls   []executor.Submission
}

func (f *fakeRunner) Execute(ctx context.Context, sub executor.Submission) (*executor.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sub)
	res, ok := f.outputs[sub.Stdin]
	failing := f.fail[sub.Stdin]
	jitter := f.jitter
	f.mu.Unlock()

	if jitter {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	}
	if failing {
		return nil, errors.New("connection refused")
	}
	if !ok {
		return &executor.Result{Status: "Accepted"}, nil
	}
	return res, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newGrader(runner executor.Runner, concurrency int) *Grader {
	cfg := &config.Config{}
	cfg.Executor.LanguageID = 63
	cfg.Executor.Concurrency = concurrency
	return NewGrader(runner, cfg)
}

func codeQuestion(points int, cases ...model.TestCase) *model.Question {
	return &model.Question{ID: 7, Type: model.QuestionTypeCode, Points: points, TestCases: cases}
}

func TestActualOutput(t *testing.T) {
	testCases := []struct {
		name     string
		res      executor.Result
		expected string
	}{
		{"stdout trimmed", executor.Result{Stdout: "  3\n", Stderr: "warn"}, "3"},
		{"stderr when no stdout", executor.Result{Stderr: "ReferenceError: x\n"}, "Error: ReferenceError: x"},
		{"compile output", executor.Result{CompileOutput: "main.c:1: error\n"}, "Compilation Error: main.c:1: error"},
		{"status fallback", executor.Result{Status: "Time Limit Exceeded"}, "Time Limit Exceeded"},
		{"whitespace stdout still wins", executor.Result{Stdout: "\n", Stderr: "boom"}, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ActualOutput(&tc.res); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestGradeQuestionVerdicts(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[string]*executor.Result{
			"1 2": {Stdout: "3\n"},
			"2 2": {Stdout: "5\n"},
			"0 0": {Stdout: " 0 "},
		},
		fail: map[string]bool{"boom": true},
	}
	q := codeQuestion(10,
		model.TestCase{ID: 1, Input: "1 2", ExpectedOutput: "3"},
		model.TestCase{ID: 2, Input: "2 2", ExpectedOutput: "4\n"},
		model.TestCase{ID: 3, Input: "boom", ExpectedOutput: "1"},
		model.TestCase{ID: 4, Input: "0 0", ExpectedOutput: "0", IsHidden: true},
	)

	results := newGrader(runner, 1).GradeQuestion(context.Background(), q, "read and add")

	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}
	wantPassed := []bool{true, false, false, true}
	for i, r := range results {
		if r.Passed != wantPassed[i] {
			t.Errorf("case %d: expected passed=%v, got %v (actual %q)", i, wantPassed[i], r.Passed, r.Actual)
		}
	}
	if results[1].Expected != "4" {
		t.Errorf("Expected trimmed expected output, got %q", results[1].Expected)
	}
	if results[2].Actual != ExecutionFailedMarker {
		t.Errorf("Expected failure marker, got %q", results[2].Actual)
	}
	if !results[3].Hidden || results[3].Input != "0 0" {
		t.Errorf("hidden case should be graded with its data, got %+v", results[3])
	}
	if runner.callCount() != 4 {
		t.Errorf("Expected grading to continue after a failure, got %d calls", runner.callCount())
	}
	if got := CountPassed(results); got != 2 {
		t.Errorf("Expected 2 passed, got %d", got)
	}
}

func TestGradeQuestionUsesStarterCodeWhenBlank(t *testing.T) {
	runner := &fakeRunner{}
	starter := "function main() {}"
	q := codeQuestion(5, model.TestCase{Input: "x", ExpectedOutput: "y"})
	q.StarterCode = &starter

	newGrader(runner, 1).GradeQuestion(context.Background(), q, "   ")

	if len(runner.calls) != 1 || runner.calls[0].SourceCode != starter {
		t.Fatalf("Expected starter code to be submitted, got %+v", runner.calls)
	}
	if runner.calls[0].LanguageID != 63 {
		t.Errorf("Expected language 63, got %d", runner.calls[0].LanguageID)
	}
}

func TestGradeQuestionParallelKeepsOrder(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]*executor.Result{}, jitter: true}
	var cases []model.TestCase
	for i := 0; i < 20; i++ {
		in := strings.Repeat("a", i+1)
		runner.outputs[in] = &executor.Result{Stdout: in}
		cases = append(cases, model.TestCase{ID: uint(i + 1), Input: in, ExpectedOutput: in})
	}

	results := newGrader(runner, 8).GradeQuestion(context.Background(), codeQuestion(20, cases...), "echo")

	for i, r := range results {
		if r.Input != cases[i].Input || !r.Passed {
			t.Fatalf("result %d out of order or failed: %+v", i, r)
		}
	}
}

func TestGradeQuestionCancelledContext(t *testing.T) {
	runner := &fakeRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := newGrader(runner, 1).GradeQuestion(ctx, codeQuestion(5, model.TestCase{Input: "1"}, model.TestCase{Input: "2"}), "code")

	if runner.callCount() != 0 {
		t.Errorf("Expected no executor calls after cancellation, got %d", runner.callCount())
	}
	for _, r := range results {
		if r.Passed || r.Actual != ExecutionFailedMarker {
			t.Errorf("Expected failed verdict, got %+v", r)
		}
	}
}
