package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/exam-go-api/internal/dto"
	"github.com/noah-isme/exam-go-api/internal/models"
	"github.com/noah-isme/exam-go-api/internal/observability"
	"github.com/noah-isme/exam-go-api/internal/repository"
)

// recordingRefPattern accepts http(s) URLs with a host and a non-empty path,
// scheme optional.
var recordingRefPattern = regexp.MustCompile(`^(https?://)?([a-z0-9-]+\.)+[a-z0-9]{2,4}/[^\s]*$`)

// AutoSubmitScheduler arms a one-shot auto submission for an exam deadline.
// Cancelling an unknown exam id is a no-op.
type AutoSubmitScheduler interface {
	Arm(examID uint, deadline time.Time)
	Cancel(examID uint)
}

// ExamService drives the exam session lifecycle: start, answer submission,
// recording attachment and the transition into a terminal state.
//
// Complete is idempotent and safe under concurrency: the status flip is a
// storage-level compare-and-swap, so between the client pressing submit, the
// in-process deadline timer and the overdue sweep exactly one caller finalises
// the exam. The others observe the already-final state without error.
type ExamService interface {
	Start(ctx context.Context, userID uint, payload dto.ExamStartRequest) (dto.ExamResponse, error)
	Get(ctx context.Context, examID, callerID uint, isAdmin bool) (dto.ExamResponse, error)
	ListByUser(ctx context.Context, userID uint) ([]dto.ExamResponse, error)
	SubmitAnswer(ctx context.Context, examID, callerID uint, payload dto.AnswerSubmitRequest) (dto.AnswerResultResponse, error)
	SubmitRecording(ctx context.Context, examID, callerID uint, payload dto.RecordingSubmitRequest) error
	Complete(ctx context.Context, examID, callerID uint) (dto.ExamResponse, error)
	Terminate(ctx context.Context, examID uint) (dto.ExamResponse, error)
	CompleteExpired(ctx context.Context, examID uint) error
	CompleteOverdue(ctx context.Context) error

	// SetScheduler wires the auto-submit scheduler after construction; the
	// scheduler in turn needs this service to finalise exams.
	SetScheduler(scheduler AutoSubmitScheduler)
}

type examService struct {
	exams     repository.ExamRepository
	questions repository.QuestionRepository
	evaluator AnswerEvaluator
	policy    ScorePolicy
	events    ExamEventPublisher
	scheduler AutoSubmitScheduler
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// NewExamService constructs the exam lifecycle service. Scheduler and events
// may be nil in tests.
func NewExamService(
	exams repository.ExamRepository,
	questions repository.QuestionRepository,
	evaluator AnswerEvaluator,
	policy ScorePolicy,
	events ExamEventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) ExamService {
	if policy == nil {
		policy = WeightedScorePolicy{}
	}
	return &examService{
		exams:     exams,
		questions: questions,
		evaluator: evaluator,
		policy:    policy,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "exam_service").Logger(),
		now:       time.Now,
		locks:     make(map[uint]*sync.Mutex),
	}
}

func (s *examService) SetScheduler(scheduler AutoSubmitScheduler) {
	s.scheduler = scheduler
}

func (s *examService) Start(ctx context.Context, userID uint, payload dto.ExamStartRequest) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}
	if payload.Duration <= 0 {
		return dto.ExamResponse{}, ErrInvalidDuration
	}

	snapshot, err := s.snapshotQuestions(ctx)
	if err != nil {
		return dto.ExamResponse{}, err
	}

	start := s.now().UTC()
	exam := models.Exam{
		UserID:       userID,
		StartTime:    start,
		Duration:     payload.Duration,
		DeadlineAt:   start.Add(time.Duration(payload.Duration) * time.Minute),
		Questions:    snapshot,
		Answers:      []models.ExamAnswer{},
		AllowedUsers: payload.AllowedUsers,
		Status:       models.ExamStatusInProgress,
	}
	if err := s.exams.Create(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	if s.scheduler != nil {
		s.scheduler.Arm(exam.ID, exam.DeadlineAt)
	}
	observability.ExamsStarted().Inc()
	s.publish(ctx, ExamEvent{Type: ExamEventStarted, ExamID: exam.ID, UserID: exam.UserID})

	s.logger.Info().
		Uint("exam_id", exam.ID).
		Uint("user_id", userID).
		Int("duration_min", payload.Duration).
		Msg("exam started")
	return dto.NewExamResponse(exam), nil
}

// snapshotQuestions resolves the current active question bank into the
// immutable per-exam question list.
func (s *examService) snapshotQuestions(ctx context.Context) ([]models.ExamQuestion, error) {
	questions, err := s.questions.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := make([]models.ExamQuestion, 0, len(questions))
	for _, question := range questions {
		if question.Status != models.QuestionStatusActive {
			continue
		}
		snapshot = append(snapshot, models.ExamQuestion{
			QuestionID:     question.ID,
			Section:        question.Section,
			QuestionNumber: question.QuestionNumber,
		})
	}
	return snapshot, nil
}

func (s *examService) Get(ctx context.Context, examID, callerID uint, isAdmin bool) (dto.ExamResponse, error) {
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return dto.ExamResponse{}, err
	}
	if !canViewExam(exam, callerID, isAdmin) {
		return dto.ExamResponse{}, ErrExamForbidden
	}
	return dto.NewExamResponse(exam), nil
}

func (s *examService) ListByUser(ctx context.Context, userID uint) ([]dto.ExamResponse, error) {
	exams, err := s.exams.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.ExamResponse, 0, len(exams))
	for _, exam := range exams {
		responses = append(responses, dto.NewExamResponse(exam))
	}
	return responses, nil
}

func (s *examService) SubmitAnswer(ctx context.Context, examID, callerID uint, payload dto.AnswerSubmitRequest) (dto.AnswerResultResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerResultResponse{}, err
	}

	unlock := s.lockExam(examID)
	defer unlock()

	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return dto.AnswerResultResponse{}, err
	}
	if exam.UserID != callerID {
		return dto.AnswerResultResponse{}, ErrExamForbidden
	}
	if !exam.IsInProgress() || !s.now().Before(exam.Deadline()) {
		return dto.AnswerResultResponse{}, ErrExamNotInProgress
	}

	entry, ok := exam.FindQuestion(payload.Section, payload.QuestionNumber)
	if !ok {
		return dto.AnswerResultResponse{}, ErrQuestionNotFound
	}
	question, err := s.questions.GetByID(ctx, entry.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerResultResponse{}, ErrQuestionNotFound
		}
		return dto.AnswerResultResponse{}, err
	}

	evaluation, err := s.evaluator.Evaluate(ctx, question, AnswerSubmission{
		Answer:   payload.Answer,
		Code:     payload.Code,
		Language: payload.Language,
	})
	if err != nil {
		return dto.AnswerResultResponse{}, err
	}

	answer := models.ExamAnswer{
		QuestionID:      entry.QuestionID,
		Section:         payload.Section,
		QuestionNumber:  payload.QuestionNumber,
		Answer:          payload.Answer,
		Code:            payload.Code,
		Language:        payload.Language,
		IsCorrect:       evaluation.IsCorrect,
		TotalTestCases:  evaluation.TotalTestCases,
		TestCasesPassed: evaluation.TestCasesPassed,
	}
	upsertAnswer(&exam, answer)

	if err := s.exams.Update(ctx, &exam); err != nil {
		return dto.AnswerResultResponse{}, err
	}

	return dto.AnswerResultResponse{
		IsCorrect:       evaluation.IsCorrect,
		TotalTestCases:  evaluation.TotalTestCases,
		TestCasesPassed: evaluation.TestCasesPassed,
	}, nil
}

// upsertAnswer replaces an earlier answer to the same question, so
// re-answering updates in place instead of stacking duplicates.
func upsertAnswer(exam *models.Exam, answer models.ExamAnswer) {
	for i, existing := range exam.Answers {
		if existing.Section == answer.Section && existing.QuestionNumber == answer.QuestionNumber {
			exam.Answers[i] = answer
			return
		}
	}
	exam.Answers = append(exam.Answers, answer)
}

func (s *examService) SubmitRecording(ctx context.Context, examID, callerID uint, payload dto.RecordingSubmitRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}
	if !recordingRefPattern.MatchString(payload.VideoRef) {
		return ErrInvalidRecordingRef
	}

	unlock := s.lockExam(examID)
	defer unlock()

	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return err
	}
	if exam.UserID != callerID {
		return ErrExamForbidden
	}
	if !exam.IsInProgress() {
		return ErrExamNotInProgress
	}

	exam.VideoRecording = payload.VideoRef
	return s.exams.Update(ctx, &exam)
}

func (s *examService) Complete(ctx context.Context, examID, callerID uint) (dto.ExamResponse, error) {
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return dto.ExamResponse{}, err
	}
	if exam.UserID != callerID {
		return dto.ExamResponse{}, ErrExamForbidden
	}

	exam, err = s.finalize(ctx, examID, models.ExamStatusCompleted)
	if err != nil {
		return dto.ExamResponse{}, err
	}
	return dto.NewExamResponse(exam), nil
}

func (s *examService) Terminate(ctx context.Context, examID uint) (dto.ExamResponse, error) {
	exam, err := s.finalize(ctx, examID, models.ExamStatusTerminated)
	if err != nil {
		return dto.ExamResponse{}, err
	}
	return dto.NewExamResponse(exam), nil
}

// CompleteExpired finalises an exam whose deadline fired. Used by the
// auto-submit scheduler; already-final exams are left untouched.
func (s *examService) CompleteExpired(ctx context.Context, examID uint) error {
	_, err := s.finalize(ctx, examID, models.ExamStatusCompleted)
	if errors.Is(err, ErrExamNotFound) {
		return nil
	}
	return err
}

// CompleteOverdue sweeps in-progress exams whose deadline has passed. It
// backstops the in-process timers across restarts.
func (s *examService) CompleteOverdue(ctx context.Context) error {
	overdue, err := s.exams.ListOverdue(ctx, s.now())
	if err != nil {
		return err
	}
	for _, exam := range overdue {
		if err := s.CompleteExpired(ctx, exam.ID); err != nil {
			s.logger.Error().Err(err).Uint("exam_id", exam.ID).Msg("failed to auto-submit overdue exam")
		}
	}
	if len(overdue) > 0 {
		s.logger.Info().Int("count", len(overdue)).Msg("auto-submitted overdue exams")
	}
	return nil
}

// finalize performs the single-winner transition into a terminal status and,
// on the winning call, computes and persists the score. Losing calls return
// the exam as it already is.
func (s *examService) finalize(ctx context.Context, examID uint, status string) (models.Exam, error) {
	unlock := s.lockExam(examID)
	defer unlock()

	endTime := s.now().UTC()
	var (
		won bool
		err error
	)
	switch status {
	case models.ExamStatusTerminated:
		won, err = s.exams.MarkTerminated(ctx, examID, endTime)
	default:
		won, err = s.exams.MarkCompleted(ctx, examID, endTime)
	}
	if err != nil {
		return models.Exam{}, err
	}

	// The exam is terminal either way now; its mutex has no further use.
	s.forgetLock(examID)

	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return models.Exam{}, err
	}
	if !won {
		return exam, nil
	}

	if s.scheduler != nil {
		s.scheduler.Cancel(examID)
	}

	score := s.policy.Score(exam)
	if err := s.exams.UpdateScore(ctx, examID, score); err != nil {
		// The status flip already landed; retry the score write once before
		// surfacing the exam with a stale score.
		s.logger.Warn().Err(err).Uint("exam_id", examID).Msg("score write failed, retrying")
		if err := s.exams.UpdateScore(ctx, examID, score); err != nil {
			s.logger.Error().Err(err).Uint("exam_id", examID).Msg("score write failed after retry")
			return exam, nil
		}
	}
	exam.Score = score

	observability.ExamsFinalized().WithLabelValues(status).Inc()

	eventType := ExamEventCompleted
	if status == models.ExamStatusTerminated {
		eventType = ExamEventTerminated
	}
	s.publish(ctx, ExamEvent{Type: eventType, ExamID: exam.ID, UserID: exam.UserID, Score: score})

	s.logger.Info().
		Uint("exam_id", exam.ID).
		Uint("user_id", exam.UserID).
		Str("status", status).
		Float64("score", score).
		Msg("exam finalised")
	return exam, nil
}

func (s *examService) loadExam(ctx context.Context, examID uint) (models.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Exam{}, ErrExamNotFound
		}
		return models.Exam{}, err
	}
	return exam, nil
}

func (s *examService) publish(ctx context.Context, event ExamEvent) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, event)
}

// lockExam serialises mutations of a single exam within this process.
func (s *examService) lockExam(examID uint) func() {
	s.mu.Lock()
	lock, ok := s.locks[examID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[examID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// forgetLock drops the per-exam mutex so the lock map does not accumulate an
// entry for every exam ever finalised.
func (s *examService) forgetLock(examID uint) {
	s.mu.Lock()
	delete(s.locks, examID)
	s.mu.Unlock()
}

func canViewExam(exam models.Exam, callerID uint, isAdmin bool) bool {
	if isAdmin || exam.UserID == callerID {
		return true
	}
	for _, id := range exam.AllowedUsers {
		if id == callerID {
			return true
		}
	}
	return false
}
