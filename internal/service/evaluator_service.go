package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-go-api/internal/models"
	"github.com/noah-isme/exam-go-api/pkg/coderunner"
)

// AnswerSubmission is one candidate response to a question.
type AnswerSubmission struct {
	Answer   string
	Code     string
	Language string
}

// EvaluationResult reports how a submission was graded. For coding
// questions IsCorrect holds exactly when every test case passed; the tally
// is always populated so partial credit can be applied upstream.
type EvaluationResult struct {
	IsCorrect       bool
	TotalTestCases  int
	TestCasesPassed int
}

// AnswerEvaluator decides whether a submission answers a question correctly.
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, question models.Question, submission AnswerSubmission) (EvaluationResult, error)
}

// EvaluatorConfig carries execution knobs for coding evaluation.
type EvaluatorConfig struct {
	RunTimeout      time.Duration
	DefaultLanguage string
}

type answerEvaluator struct {
	runner coderunner.Runner
	logger zerolog.Logger
	cfg    EvaluatorConfig
}

// NewAnswerEvaluator constructs an evaluator backed by the given runner.
func NewAnswerEvaluator(runner coderunner.Runner, logger zerolog.Logger, cfg EvaluatorConfig) AnswerEvaluator {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Second
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "python"
	}
	return &answerEvaluator{
		runner: runner,
		logger: logger.With().Str("component", "answer_evaluator").Logger(),
		cfg:    cfg,
	}
}

func (e *answerEvaluator) Evaluate(ctx context.Context, question models.Question, submission AnswerSubmission) (EvaluationResult, error) {
	if !question.IsCoding() {
		// Exact, case-sensitive match. No trimming or normalization.
		return EvaluationResult{IsCorrect: submission.Answer == question.Answer}, nil
	}
	return e.evaluateCoding(ctx, question, submission), nil
}

// evaluateCoding runs every test case, hidden ones included. A runner
// failure on one test case only fails that test case; the remaining ones
// still run.
func (e *answerEvaluator) evaluateCoding(ctx context.Context, question models.Question, submission AnswerSubmission) EvaluationResult {
	language := strings.ToLower(strings.TrimSpace(submission.Language))
	if language == "" {
		language = e.cfg.DefaultLanguage
	}

	result := EvaluationResult{TotalTestCases: len(question.TestCases)}
	for i, testCase := range question.TestCases {
		run, err := e.runner.Run(ctx, coderunner.RunRequest{
			Language: language,
			Source:   submission.Code,
			Stdin:    testCase.Input,
			Timeout:  e.cfg.RunTimeout,
		})
		if err != nil {
			e.logger.Warn().Err(err).
				Str("question_id", question.QuestionID).
				Int("test_case", i).
				Msg("test case execution failed, counting as wrong")
			continue
		}
		if run.ExitCode != 0 || run.TimedOut {
			continue
		}
		if strings.TrimSpace(run.Stdout) == strings.TrimSpace(testCase.ExpectedOutput) {
			result.TestCasesPassed++
		}
	}

	result.IsCorrect = result.TestCasesPassed == result.TotalTestCases
	return result
}
