package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/exam-go-api/internal/models"
)

// ExamStats summarises completed exam scores for the admin overview.
type ExamStats struct {
	TotalExams int64   `json:"total_exams"`
	AvgScore   float64 `json:"avg_score"`
	MaxScore   float64 `json:"max_score"`
	MinScore   float64 `json:"min_score"`
}

// ExamRepository exposes persistence operations for exam sessions.
//
// MarkCompleted is the compare-and-swap that keeps completion idempotent: it
// only flips status when the exam is still in progress and reports whether
// this call won the transition.
type ExamRepository interface {
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	GetByID(ctx context.Context, id uint) (models.Exam, error)
	List(ctx context.Context, offset, limit int) ([]models.Exam, int64, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Exam, error)
	ListOverdue(ctx context.Context, now time.Time) ([]models.Exam, error)
	MarkCompleted(ctx context.Context, id uint, endTime time.Time) (bool, error)
	MarkTerminated(ctx context.Context, id uint, endTime time.Time) (bool, error)
	UpdateScore(ctx context.Context, id uint, score float64) error
	ExistsByUser(ctx context.Context, userID uint) (bool, error)
	Stats(ctx context.Context) (ExamStats, error)
}

// NewExamRepository constructs an exam repository.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

type examRepository struct {
	db *gorm.DB
}

func (r *examRepository) Create(ctx context.Context, exam *models.Exam) error {
	return r.db.WithContext(ctx).Create(exam).Error
}

func (r *examRepository) Update(ctx context.Context, exam *models.Exam) error {
	return r.db.WithContext(ctx).Save(exam).Error
}

func (r *examRepository) GetByID(ctx context.Context, id uint) (models.Exam, error) {
	var exam models.Exam
	if err := r.db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return models.Exam{}, err
	}
	return exam, nil
}

func (r *examRepository) List(ctx context.Context, offset, limit int) ([]models.Exam, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.Exam{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if offset > 0 {
		db = db.Offset(offset)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}

	var exams []models.Exam
	if err := db.Order("created_at DESC").Find(&exams).Error; err != nil {
		return nil, 0, err
	}
	return exams, total, nil
}

func (r *examRepository) ListByUser(ctx context.Context, userID uint) ([]models.Exam, error) {
	var exams []models.Exam
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&exams).Error
	if err != nil {
		return nil, err
	}
	return exams, nil
}

func (r *examRepository) ListOverdue(ctx context.Context, now time.Time) ([]models.Exam, error) {
	var exams []models.Exam
	err := r.db.WithContext(ctx).
		Where("status = ?", models.ExamStatusInProgress).
		Where("deadline_at <= ?", now).
		Find(&exams).Error
	if err != nil {
		return nil, err
	}
	return exams, nil
}

func (r *examRepository) MarkCompleted(ctx context.Context, id uint, endTime time.Time) (bool, error) {
	return r.transition(ctx, id, models.ExamStatusCompleted, endTime)
}

func (r *examRepository) MarkTerminated(ctx context.Context, id uint, endTime time.Time) (bool, error) {
	return r.transition(ctx, id, models.ExamStatusTerminated, endTime)
}

func (r *examRepository) transition(ctx context.Context, id uint, status string, endTime time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Where("status = ?", models.ExamStatusInProgress).
		Updates(map[string]interface{}{
			"status":   status,
			"end_time": endTime,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *examRepository) UpdateScore(ctx context.Context, id uint, score float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Update("score", score).Error
}

func (r *examRepository) ExistsByUser(ctx context.Context, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *examRepository) Stats(ctx context.Context) (ExamStats, error) {
	var stats ExamStats
	err := r.db.WithContext(ctx).
		Model(&models.Exam{}).
		Select("COUNT(*) AS total_exams, COALESCE(AVG(score), 0) AS avg_score, COALESCE(MAX(score), 0) AS max_score, COALESCE(MIN(score), 0) AS min_score").
		Where("status = ?", models.ExamStatusCompleted).
		Scan(&stats).Error
	if err != nil {
		return ExamStats{}, err
	}
	return stats, nil
}
