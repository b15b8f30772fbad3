package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/exam-go-api/internal/dto"
	"github.com/noah-isme/exam-go-api/internal/models"
	"github.com/noah-isme/exam-go-api/internal/repository"
)

// CatalogService manages the question bank. Writes enforce the per-section
// shape invariant; reads redact answer keys and hidden test cases unless the
// caller is an admin.
type CatalogService interface {
	Create(ctx context.Context, creatorID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error)
	Update(ctx context.Context, id uint, payload dto.QuestionUpdateRequest) (dto.QuestionResponse, error)
	Delete(ctx context.Context, id uint) error
	ListBySection(ctx context.Context, section string, forAdmin bool) ([]dto.QuestionResponse, error)
	ListAllSections(ctx context.Context, forAdmin bool) (map[string][]dto.QuestionResponse, error)
}

type catalogService struct {
	questions repository.QuestionRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewCatalogService constructs a catalog service.
func NewCatalogService(questions repository.QuestionRepository, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) CatalogService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &catalogService{
		questions: questions,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "catalog_service").Logger(),
	}
}

func (s *catalogService) Create(ctx context.Context, creatorID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	question := models.Question{
		Section:        payload.Section,
		QuestionNumber: payload.QuestionNumber,
		Text:           strings.TrimSpace(s.sanitizer.Sanitize(payload.Text)),
		Options:        payload.Options,
		Answer:         payload.Answer,
		TestCases:      payload.TestCases,
		Status:         models.QuestionStatusActive,
		CreatedByID:    creatorID,
	}

	if err := validateShape(&question); err != nil {
		return dto.QuestionResponse{}, err
	}

	question.QuestionID = models.DisplayID(question.Section, question.QuestionNumber)
	applyVisibilityPolicy(&question)

	if err := s.questions.Create(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	s.invalidateSection(ctx, question.Section)
	return dto.NewQuestionResponse(question, true), nil
}

func (s *catalogService) Update(ctx context.Context, id uint, payload dto.QuestionUpdateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	question, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}

	previousSection := question.Section
	applyPatch(&question, payload, s.sanitizer)

	// Shape is re-validated against the merged result, so a section change
	// must come with a matching shape in the same request.
	if err := validateShape(&question); err != nil {
		return dto.QuestionResponse{}, err
	}

	question.QuestionID = models.DisplayID(question.Section, question.QuestionNumber)
	applyVisibilityPolicy(&question)

	if err := s.questions.Update(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	s.invalidateSection(ctx, previousSection)
	if question.Section != previousSection {
		s.invalidateSection(ctx, question.Section)
	}
	return dto.NewQuestionResponse(question, true), nil
}

func (s *catalogService) Delete(ctx context.Context, id uint) error {
	question, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	if err := s.questions.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	s.invalidateSection(ctx, question.Section)
	return nil
}

func (s *catalogService) ListBySection(ctx context.Context, section string, forAdmin bool) ([]dto.QuestionResponse, error) {
	if !models.IsKnownSection(section) {
		return nil, ErrUnknownSection
	}

	questions, err := s.loadSection(ctx, section)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.QuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, dto.NewQuestionResponse(question, forAdmin))
	}
	return responses, nil
}

func (s *catalogService) ListAllSections(ctx context.Context, forAdmin bool) (map[string][]dto.QuestionResponse, error) {
	result := make(map[string][]dto.QuestionResponse, len(models.AllSections()))
	for _, section := range models.AllSections() {
		responses, err := s.ListBySection(ctx, section, forAdmin)
		if err != nil {
			return nil, err
		}
		result[section] = responses
	}
	return result, nil
}

func (s *catalogService) loadSection(ctx context.Context, section string) ([]models.Question, error) {
	cacheKey := sectionCacheKey(section)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var questions []models.Question
			if unmarshalErr := json.Unmarshal([]byte(cached), &questions); unmarshalErr == nil {
				s.logger.Debug().Str("section", section).Msg("section cache hit")
				return questions, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Str("section", section).Msg("failed to read section cache")
		}
	}

	questions, err := s.questions.ListBySection(ctx, section)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(questions); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Str("section", section).Msg("failed to store section cache")
			}
		}
	}
	return questions, nil
}

func (s *catalogService) invalidateSection(ctx context.Context, section string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, sectionCacheKey(section)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("section", section).Msg("failed to invalidate section cache")
	}
}

func sectionCacheKey(section string) string {
	return fmt.Sprintf("catalog:section:%s", section)
}

// validateShape enforces the section invariant: objective sections carry
// exactly 4 options plus an answer and no test cases; coding carries a
// non-empty ordered test case list and neither options nor answer.
func validateShape(question *models.Question) error {
	if !models.IsKnownSection(question.Section) {
		return ErrUnknownSection
	}
	if strings.TrimSpace(question.Text) == "" {
		return fmt.Errorf("%w: question text is required", ErrInvalidQuestionShape)
	}

	if question.IsCoding() {
		if len(question.TestCases) == 0 {
			return fmt.Errorf("%w: at least one test case is required for coding questions", ErrInvalidQuestionShape)
		}
		// Coding questions never carry option data; stray fields are dropped
		// rather than rejected, matching create-then-clean update flows.
		question.Options = nil
		question.Answer = ""
		return nil
	}

	if len(question.Options) != 4 {
		return fmt.Errorf("%w: options must have exactly 4 choices", ErrInvalidQuestionShape)
	}
	if question.Answer == "" {
		return fmt.Errorf("%w: answer is required", ErrInvalidQuestionShape)
	}
	question.TestCases = nil
	return nil
}

// applyVisibilityPolicy hides every test case beyond the visible limit.
// Hidden test cases stay stored and are still used for grading.
func applyVisibilityPolicy(question *models.Question) {
	if !question.IsCoding() {
		return
	}
	for i := range question.TestCases {
		if i >= models.VisibleTestCaseLimit {
			question.TestCases[i].Hidden = true
		}
	}
}

func applyPatch(question *models.Question, payload dto.QuestionUpdateRequest, sanitizer *bluemonday.Policy) {
	if payload.Section != nil {
		question.Section = *payload.Section
	}
	if payload.QuestionNumber != nil {
		question.QuestionNumber = *payload.QuestionNumber
	}
	if payload.Text != nil {
		question.Text = strings.TrimSpace(sanitizer.Sanitize(*payload.Text))
	}
	if payload.Options != nil {
		question.Options = payload.Options
	}
	if payload.Answer != nil {
		question.Answer = *payload.Answer
	}
	if payload.TestCases != nil {
		question.TestCases = payload.TestCases
	}
	if payload.Status != nil {
		question.Status = *payload.Status
	}
}
