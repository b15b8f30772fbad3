package models

import (
	"time"

	"gorm.io/datatypes"
)

// Exam statuses. Both completed and terminated are terminal, no transition
// leaves either of them.
const (
	ExamStatusInProgress = "in-progress"
	ExamStatusCompleted  = "completed"
	ExamStatusTerminated = "terminated"
)

// ExamQuestion is one entry of the exam's question snapshot. The question id
// is resolved once at exam start so that question-bank edits made while the
// exam is running cannot change what an answer refers to.
type ExamQuestion struct {
	QuestionID     uint   `json:"question_id"`
	Section        string `json:"section"`
	QuestionNumber int    `json:"question_number"`
}

// ExamAnswer is one graded response. Coding answers carry the test case
// tally so partial credit can be computed at scoring time.
type ExamAnswer struct {
	QuestionID      uint   `json:"question_id"`
	Section         string `json:"section"`
	QuestionNumber  int    `json:"question_number"`
	Answer          string `json:"answer,omitempty"`
	Code            string `json:"code,omitempty"`
	Language        string `json:"language,omitempty"`
	IsCorrect       bool   `json:"is_correct"`
	TotalTestCases  int    `json:"total_test_cases"`
	TestCasesPassed int    `json:"test_cases_passed"`
}

// Exam represents one exam session owned by a user.
type Exam struct {
	ID             uint                              `gorm:"primaryKey" json:"id"`
	UserID         uint                              `gorm:"not null;index" json:"user_id"`
	StartTime      time.Time                         `gorm:"not null" json:"start_time"`
	Duration       int                               `gorm:"not null" json:"duration"`
	DeadlineAt     time.Time                         `gorm:"not null;index" json:"deadline_at"`
	EndTime        *time.Time                        `json:"end_time"`
	Questions      datatypes.JSONSlice[ExamQuestion] `json:"questions"`
	Answers        datatypes.JSONSlice[ExamAnswer]   `json:"answers"`
	AllowedUsers   datatypes.JSONSlice[uint]         `json:"allowed_users"`
	VideoRecording string                            `gorm:"size:512" json:"video_recording"`
	Status         string                            `gorm:"size:32;not null;index" json:"status"`
	Score          float64                           `gorm:"default:0" json:"score"`
	CreatedAt      time.Time                         `json:"created_at"`
	UpdatedAt      time.Time                         `json:"updated_at"`
}

// IsInProgress reports whether the exam still accepts answers.
func (e Exam) IsInProgress() bool {
	return e.Status == ExamStatusInProgress
}

// Deadline returns the wall-clock instant at which the exam auto-submits.
func (e Exam) Deadline() time.Time {
	if !e.DeadlineAt.IsZero() {
		return e.DeadlineAt
	}
	return e.StartTime.Add(time.Duration(e.Duration) * time.Minute)
}

// FindQuestion resolves a snapshot entry by section and question number.
func (e Exam) FindQuestion(section string, questionNumber int) (ExamQuestion, bool) {
	for _, q := range e.Questions {
		if q.Section == section && q.QuestionNumber == questionNumber {
			return q, true
		}
	}
	return ExamQuestion{}, false
}
