package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/exam-go-api/internal/models"
)

// QuestionRepository exposes persistence operations for the question bank.
type QuestionRepository interface {
	Create(ctx context.Context, question *models.Question) error
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (models.Question, error)
	GetBySectionNumber(ctx context.Context, section string, questionNumber int) (models.Question, error)
	ListBySection(ctx context.Context, section string) ([]models.Question, error)
	ListAll(ctx context.Context) ([]models.Question, error)
}

// NewQuestionRepository constructs a question repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

type questionRepository struct {
	db *gorm.DB
}

func (r *questionRepository) Create(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *questionRepository) Update(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Save(question).Error
}

func (r *questionRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Question{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return models.Question{}, err
	}
	return question, nil
}

func (r *questionRepository) GetBySectionNumber(ctx context.Context, section string, questionNumber int) (models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).
		Where("section = ?", section).
		Where("question_number = ?", questionNumber).
		First(&question).Error
	if err != nil {
		return models.Question{}, err
	}
	return question, nil
}

func (r *questionRepository) ListBySection(ctx context.Context, section string) ([]models.Question, error) {
	var questions []models.Question
	err := r.db.WithContext(ctx).
		Where("section = ?", section).
		Order("question_number ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepository) ListAll(ctx context.Context) ([]models.Question, error) {
	var questions []models.Question
	err := r.db.WithContext(ctx).
		Order("section ASC, question_number ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}
