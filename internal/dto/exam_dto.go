package dto

import (
	"time"

	"github.com/noah-isme/exam-go-api/internal/models"
)

// ExamStartRequest starts a new exam session for the caller.
type ExamStartRequest struct {
	Duration     int    `json:"duration"`
	AllowedUsers []uint `json:"allowed_users"`
}

// AnswerSubmitRequest records one response during an exam. Objective answers
// use Answer, coding answers use Code (and optionally Language).
type AnswerSubmitRequest struct {
	Section        string `json:"section" validate:"required"`
	QuestionNumber int    `json:"question_number" validate:"required,gt=0"`
	Answer         string `json:"answer"`
	Code           string `json:"code"`
	Language       string `json:"language"`
}

// AnswerResultResponse reports how the submission was graded. Only aggregate
// pass counts are exposed, never per-test-case infrastructure detail.
type AnswerResultResponse struct {
	IsCorrect       bool `json:"is_correct"`
	TotalTestCases  int  `json:"total_test_cases,omitempty"`
	TestCasesPassed int  `json:"test_cases_passed,omitempty"`
}

// RecordingSubmitRequest attaches an uploaded proctoring video reference.
type RecordingSubmitRequest struct {
	VideoRef string `json:"video_ref" validate:"required"`
}

// RecordingUploadResponse reports a stored proctoring video.
type RecordingUploadResponse struct {
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
	Checksum  string `json:"checksum"`
}

// ExamAnswerResponse is one graded answer in an exam report.
type ExamAnswerResponse struct {
	QuestionID      uint   `json:"question_id"`
	Section         string `json:"section"`
	QuestionNumber  int    `json:"question_number"`
	Answer          string `json:"answer,omitempty"`
	Code            string `json:"code,omitempty"`
	IsCorrect       bool   `json:"is_correct"`
	TotalTestCases  int    `json:"total_test_cases"`
	TestCasesPassed int    `json:"test_cases_passed"`
}

// ExamResponse represents an exam session to API consumers.
type ExamResponse struct {
	ID             uint                  `json:"id"`
	UserID         uint                  `json:"user_id"`
	StartTime      time.Time             `json:"start_time"`
	Duration       int                   `json:"duration"`
	DeadlineAt     time.Time             `json:"deadline_at"`
	EndTime        *time.Time            `json:"end_time"`
	Status         string                `json:"status"`
	Score          float64               `json:"score"`
	VideoRecording string                `json:"video_recording,omitempty"`
	Questions      []models.ExamQuestion `json:"questions"`
	Answers        []ExamAnswerResponse  `json:"answers"`
}

// NewExamResponse builds an exam DTO from the model.
func NewExamResponse(exam models.Exam) ExamResponse {
	answers := make([]ExamAnswerResponse, 0, len(exam.Answers))
	for _, answer := range exam.Answers {
		answers = append(answers, ExamAnswerResponse{
			QuestionID:      answer.QuestionID,
			Section:         answer.Section,
			QuestionNumber:  answer.QuestionNumber,
			Answer:          answer.Answer,
			Code:            answer.Code,
			IsCorrect:       answer.IsCorrect,
			TotalTestCases:  answer.TotalTestCases,
			TestCasesPassed: answer.TestCasesPassed,
		})
	}

	return ExamResponse{
		ID:             exam.ID,
		UserID:         exam.UserID,
		StartTime:      exam.StartTime,
		Duration:       exam.Duration,
		DeadlineAt:     exam.Deadline(),
		EndTime:        exam.EndTime,
		Status:         exam.Status,
		Score:          exam.Score,
		VideoRecording: exam.VideoRecording,
		Questions:      exam.Questions,
		Answers:        answers,
	}
}
