package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/exam-go-api/internal/dto"
	"github.com/noah-isme/exam-go-api/internal/models"
	"github.com/noah-isme/exam-go-api/internal/repository"
	"github.com/noah-isme/exam-go-api/pkg/ai"
)

// AdminService covers account administration and the examiner's overview of
// sessions and scores.
type AdminService interface {
	ListUsers(ctx context.Context, req dto.AdminListRequest) (dto.AdminUserListResponse, error)
	UpdateUser(ctx context.Context, id uint, payload dto.AdminUserUpdateRequest) (dto.UserResponse, error)
	DeleteUser(ctx context.Context, id uint) error
	ListExams(ctx context.Context, req dto.AdminListRequest) (dto.AdminExamListResponse, error)
	Stats(ctx context.Context) (dto.AdminStatsResponse, error)
	ReviewCodingAnswer(ctx context.Context, examID uint, payload dto.AnswerReviewRequest) (dto.AnswerReviewResponse, error)
}

type adminService struct {
	users     repository.UserRepository
	exams     repository.ExamRepository
	questions repository.QuestionRepository
	reviewer  ai.Reviewer
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAdminService constructs an admin service. The reviewer may be nil when
// no AI backend is configured.
func NewAdminService(
	users repository.UserRepository,
	exams repository.ExamRepository,
	questions repository.QuestionRepository,
	reviewer ai.Reviewer,
	validate *validator.Validate,
	logger zerolog.Logger,
) AdminService {
	return &adminService{
		users:     users,
		exams:     exams,
		questions: questions,
		reviewer:  reviewer,
		validator: validate,
		logger:    logger.With().Str("component", "admin_service").Logger(),
	}
}

func (s *adminService) ListUsers(ctx context.Context, req dto.AdminListRequest) (dto.AdminUserListResponse, error) {
	req.Normalize()

	users, total, err := s.users.List(ctx, (req.Page-1)*req.PageSize, req.PageSize)
	if err != nil {
		return dto.AdminUserListResponse{}, err
	}

	items := make([]dto.UserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, dto.NewUserResponse(user))
	}
	return dto.AdminUserListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *adminService) UpdateUser(ctx context.Context, id uint, payload dto.AdminUserUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	if payload.Name != nil {
		user.Name = *payload.Name
	}
	if payload.Role != nil {
		user.Role = *payload.Role
	}
	if payload.IsBlocked != nil {
		user.IsBlocked = *payload.IsBlocked
		// Blocking also evicts the active session.
		if user.IsBlocked {
			user.IsLoggedIn = false
		}
	}

	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

// DeleteUser refuses to remove an account that still owns exam records, so
// score history is never silently orphaned.
func (s *adminService) DeleteUser(ctx context.Context, id uint) error {
	hasExams, err := s.exams.ExistsByUser(ctx, id)
	if err != nil {
		return err
	}
	if hasExams {
		return ErrUserHasExams
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.logger.Info().Uint("user_id", id).Msg("account deleted")
	return nil
}

func (s *adminService) ListExams(ctx context.Context, req dto.AdminListRequest) (dto.AdminExamListResponse, error) {
	req.Normalize()

	exams, total, err := s.exams.List(ctx, (req.Page-1)*req.PageSize, req.PageSize)
	if err != nil {
		return dto.AdminExamListResponse{}, err
	}

	items := make([]dto.ExamResponse, 0, len(exams))
	for _, exam := range exams {
		items = append(items, dto.NewExamResponse(exam))
	}
	return dto.AdminExamListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *adminService) Stats(ctx context.Context) (dto.AdminStatsResponse, error) {
	stats, err := s.exams.Stats(ctx)
	if err != nil {
		return dto.AdminStatsResponse{}, err
	}
	return dto.NewAdminStatsResponse(stats), nil
}

// ReviewCodingAnswer asks the AI reviewer for qualitative feedback on a
// submitted coding answer. The review never changes the stored score.
func (s *adminService) ReviewCodingAnswer(ctx context.Context, examID uint, payload dto.AnswerReviewRequest) (dto.AnswerReviewResponse, error) {
	if s.reviewer == nil {
		return dto.AnswerReviewResponse{}, ErrReviewerUnavailable
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerReviewResponse{}, err
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerReviewResponse{}, ErrExamNotFound
		}
		return dto.AnswerReviewResponse{}, err
	}

	var answer *models.ExamAnswer
	for i := range exam.Answers {
		if exam.Answers[i].Section == payload.Section && exam.Answers[i].QuestionNumber == payload.QuestionNumber {
			answer = &exam.Answers[i]
			break
		}
	}
	if answer == nil {
		return dto.AnswerReviewResponse{}, ErrQuestionNotFound
	}

	question, err := s.questions.GetByID(ctx, answer.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerReviewResponse{}, ErrQuestionNotFound
		}
		return dto.AnswerReviewResponse{}, err
	}

	review, err := s.reviewer.Review(ctx, ai.ReviewInput{
		QuestionText:    question.Text,
		Language:        answer.Language,
		Source:          answer.Code,
		TestCasesPassed: answer.TestCasesPassed,
		TotalTestCases:  answer.TotalTestCases,
		AdditionalNotes: payload.Notes,
	})
	if err != nil {
		return dto.AnswerReviewResponse{}, err
	}

	return dto.AnswerReviewResponse{
		Score:    review.Score,
		Verdict:  review.Verdict,
		Feedback: review.Feedback,
		Details:  review.Details,
	}, nil
}
