package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-go-api/internal/models"
	"github.com/noah-isme/exam-go-api/pkg/coderunner"
)

type fakeRunner struct {
	results map[string]coderunner.RunResult
	errs    map[string]error
	calls   []coderunner.RunRequest
}

func (f *fakeRunner) Run(_ context.Context, req coderunner.RunRequest) (coderunner.RunResult, error) {
	f.calls = append(f.calls, req)
	if err, ok := f.errs[req.Stdin]; ok {
		return coderunner.RunResult{}, err
	}
	if result, ok := f.results[req.Stdin]; ok {
		return result, nil
	}
	return coderunner.RunResult{Stdout: "", ExitCode: 0}, nil
}

func TestEvaluateObjectiveExactMatch(t *testing.T) {
	evaluator := NewAnswerEvaluator(&fakeRunner{}, zerolog.Nop(), EvaluatorConfig{})
	question := models.Question{Section: models.SectionMCQ, Answer: "Paris"}

	result, err := evaluator.Evaluate(context.Background(), question, AnswerSubmission{Answer: "Paris"})
	require.NoError(t, err)
	require.True(t, result.IsCorrect)
	require.Zero(t, result.TotalTestCases)

	// Case matters, no normalisation is applied.
	result, err = evaluator.Evaluate(context.Background(), question, AnswerSubmission{Answer: "paris"})
	require.NoError(t, err)
	require.False(t, result.IsCorrect)

	result, err = evaluator.Evaluate(context.Background(), question, AnswerSubmission{Answer: " Paris"})
	require.NoError(t, err)
	require.False(t, result.IsCorrect)
}

func TestEvaluateCodingAllCasesPass(t *testing.T) {
	runner := &fakeRunner{results: map[string]coderunner.RunResult{
		"1": {Stdout: "2\n", ExitCode: 0},
		"2": {Stdout: "4", ExitCode: 0},
		"3": {Stdout: "  6  ", ExitCode: 0},
	}}
	evaluator := NewAnswerEvaluator(runner, zerolog.Nop(), EvaluatorConfig{})

	question := models.Question{
		Section: models.SectionCoding,
		TestCases: []models.TestCase{
			{Input: "1", ExpectedOutput: "2"},
			{Input: "2", ExpectedOutput: "4"},
			{Input: "3", ExpectedOutput: "6", Hidden: true},
		},
	}

	result, err := evaluator.Evaluate(context.Background(), question, AnswerSubmission{Code: "print(int(input())*2)", Language: "python"})
	require.NoError(t, err)
	require.True(t, result.IsCorrect)
	require.Equal(t, 3, result.TotalTestCases)
	require.Equal(t, 3, result.TestCasesPassed)

	// Hidden test cases are executed like any other.
	require.Len(t, runner.calls, 3)
}

func TestEvaluateCodingPartialCredit(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]coderunner.RunResult{
			"1": {Stdout: "2", ExitCode: 0},
			"2": {Stdout: "5", ExitCode: 0},
			"4": {Stdout: "8", ExitCode: 1},
		},
		errs: map[string]error{"3": errors.New("sandbox unavailable")},
	}
	evaluator := NewAnswerEvaluator(runner, zerolog.Nop(), EvaluatorConfig{})

	question := models.Question{
		Section: models.SectionCoding,
		TestCases: []models.TestCase{
			{Input: "1", ExpectedOutput: "2"},
			{Input: "2", ExpectedOutput: "4"},
			{Input: "3", ExpectedOutput: "6"},
			{Input: "4", ExpectedOutput: "8"},
		},
	}

	result, err := evaluator.Evaluate(context.Background(), question, AnswerSubmission{Code: "..."})
	require.NoError(t, err)
	require.False(t, result.IsCorrect)
	require.Equal(t, 4, result.TotalTestCases)
	// Wrong output, runner error and non-zero exit each fail their test case
	// without aborting the run.
	require.Equal(t, 1, result.TestCasesPassed)
	require.Len(t, runner.calls, 4)
}

func TestEvaluateCodingTimeoutFailsCase(t *testing.T) {
	runner := &fakeRunner{results: map[string]coderunner.RunResult{
		"1": {Stdout: "2", TimedOut: true},
	}}
	evaluator := NewAnswerEvaluator(runner, zerolog.Nop(), EvaluatorConfig{})

	question := models.Question{
		Section:   models.SectionCoding,
		TestCases: []models.TestCase{{Input: "1", ExpectedOutput: "2"}},
	}

	result, err := evaluator.Evaluate(context.Background(), question, AnswerSubmission{Code: "while True: pass"})
	require.NoError(t, err)
	require.False(t, result.IsCorrect)
	require.Zero(t, result.TestCasesPassed)
}

func TestEvaluateCodingDefaultLanguage(t *testing.T) {
	runner := &fakeRunner{}
	evaluator := NewAnswerEvaluator(runner, zerolog.Nop(), EvaluatorConfig{DefaultLanguage: "javascript"})

	question := models.Question{
		Section:   models.SectionCoding,
		TestCases: []models.TestCase{{Input: "1", ExpectedOutput: ""}},
	}

	_, err := evaluator.Evaluate(context.Background(), question, AnswerSubmission{Code: "..."})
	require.NoError(t, err)
	require.Equal(t, "javascript", runner.calls[0].Language)
}
