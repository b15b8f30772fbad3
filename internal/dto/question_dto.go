package dto

import (
	"github.com/noah-isme/exam-go-api/internal/models"
)

// QuestionCreateRequest is the admin payload for adding a question.
type QuestionCreateRequest struct {
	Section        string            `json:"section" validate:"required"`
	QuestionNumber int               `json:"question_number" validate:"required,gt=0"`
	Text           string            `json:"text" validate:"required"`
	Options        []string          `json:"options"`
	Answer         string            `json:"answer"`
	TestCases      []models.TestCase `json:"test_cases"`
}

// QuestionUpdateRequest is a partial patch; nil fields stay untouched.
type QuestionUpdateRequest struct {
	Section        *string           `json:"section"`
	QuestionNumber *int              `json:"question_number" validate:"omitempty,gt=0"`
	Text           *string           `json:"text"`
	Options        []string          `json:"options"`
	Answer         *string           `json:"answer"`
	TestCases      []models.TestCase `json:"test_cases"`
	Status         *string           `json:"status" validate:"omitempty,oneof=active inactive"`
}

// QuestionResponse represents a question to API consumers. Exam takers never
// receive answer keys or the content of hidden test cases.
type QuestionResponse struct {
	ID             uint              `json:"id"`
	QuestionID     string            `json:"question_id"`
	Section        string            `json:"section"`
	QuestionNumber int               `json:"question_number"`
	Text           string            `json:"text"`
	Options        []string          `json:"options,omitempty"`
	Answer         string            `json:"answer,omitempty"`
	TestCases      []models.TestCase `json:"test_cases,omitempty"`
	HiddenCases    int               `json:"hidden_test_cases,omitempty"`
	Status         string            `json:"status"`
}

// NewQuestionResponse builds a response DTO, redacting grading material for
// non-admin viewers.
func NewQuestionResponse(question models.Question, forAdmin bool) QuestionResponse {
	response := QuestionResponse{
		ID:             question.ID,
		QuestionID:     question.QuestionID,
		Section:        question.Section,
		QuestionNumber: question.QuestionNumber,
		Text:           question.Text,
		Options:        question.Options,
		Status:         question.Status,
	}

	if forAdmin {
		response.Answer = question.Answer
		response.TestCases = question.TestCases
		return response
	}

	hidden := 0
	visible := make([]models.TestCase, 0, len(question.TestCases))
	for _, testCase := range question.TestCases {
		if testCase.Hidden {
			hidden++
			continue
		}
		visible = append(visible, testCase)
	}
	if len(visible) > 0 {
		response.TestCases = visible
	}
	response.HiddenCases = hidden
	return response
}
