package dto

import (
	"github.com/noah-isme/exam-go-api/internal/repository"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta computes derived pagination fields.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return PaginationMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}
}

// AdminListRequest defines pagination for admin list endpoints.
type AdminListRequest struct {
	Page     int
	PageSize int
}

// Normalize clamps pagination to sane bounds.
func (r *AdminListRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 || r.PageSize > 100 {
		r.PageSize = 20
	}
}

// AdminUserListResponse wraps a paginated user listing.
type AdminUserListResponse struct {
	Items      []UserResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// AdminExamListResponse wraps a paginated exam listing.
type AdminExamListResponse struct {
	Items      []ExamResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// AdminUserUpdateRequest captures partial updates to an account.
type AdminUserUpdateRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=2,max=255"`
	Role      *string `json:"role" validate:"omitempty,oneof=user admin"`
	IsBlocked *bool   `json:"is_blocked"`
}

// AdminStatsResponse aggregates score statistics over completed exams.
type AdminStatsResponse struct {
	TotalExams int64   `json:"total_exams"`
	AvgScore   float64 `json:"avg_score"`
	MaxScore   float64 `json:"max_score"`
	MinScore   float64 `json:"min_score"`
}

// NewAdminStatsResponse converts repository stats into a DTO.
func NewAdminStatsResponse(stats repository.ExamStats) AdminStatsResponse {
	return AdminStatsResponse{
		TotalExams: stats.TotalExams,
		AvgScore:   stats.AvgScore,
		MaxScore:   stats.MaxScore,
		MinScore:   stats.MinScore,
	}
}

// AnswerReviewRequest asks the AI reviewer for feedback on a coding answer.
type AnswerReviewRequest struct {
	Section        string `json:"section" validate:"required"`
	QuestionNumber int    `json:"question_number" validate:"required,gt=0"`
	Notes          string `json:"notes" validate:"omitempty,max=2000"`
}

// AnswerReviewResponse carries the reviewer's structured feedback.
type AnswerReviewResponse struct {
	Score    float64                `json:"score"`
	Verdict  string                 `json:"verdict"`
	Feedback string                 `json:"feedback"`
	Details  map[string]interface{} `json:"details,omitempty"`
}
