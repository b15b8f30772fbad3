package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Question sections. Objective sections carry options and an answer key,
// the coding section carries test cases instead.
const (
	SectionMCQ      = "mcqs"
	SectionAptitude = "aptitude"
	SectionAI       = "ai"
	SectionCoding   = "coding"
)

// Question statuses.
const (
	QuestionStatusActive   = "active"
	QuestionStatusInactive = "inactive"
)

// VisibleTestCaseLimit bounds how many test cases of a coding question are
// exposed to exam takers. Test cases beyond the limit stay stored and are
// still used for grading, they are only hidden from display.
const VisibleTestCaseLimit = 2

// TestCase is an input/expected-output pair used to grade a coding answer.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Hidden         bool   `json:"hidden"`
}

// Question represents a single entry of the question bank.
type Question struct {
	ID             uint                           `gorm:"primaryKey" json:"id"`
	QuestionID     string                         `gorm:"size:64;not null" json:"question_id"`
	Section        string                         `gorm:"size:32;not null;uniqueIndex:idx_section_number" json:"section"`
	QuestionNumber int                            `gorm:"not null;uniqueIndex:idx_section_number" json:"question_number"`
	Text           string                         `gorm:"type:text;not null" json:"text"`
	Options        datatypes.JSONSlice[string]    `json:"options"`
	Answer         string                         `gorm:"size:255" json:"answer"`
	TestCases      datatypes.JSONSlice[TestCase]  `json:"test_cases"`
	Status         string                         `gorm:"size:16;not null;default:active" json:"status"`
	CreatedByID    uint                           `gorm:"index" json:"created_by_id"`
	CreatedAt      time.Time                      `json:"created_at"`
	UpdatedAt      time.Time                      `json:"updated_at"`
}

// IsCoding reports whether the question is graded by test cases.
func (q Question) IsCoding() bool {
	return q.Section == SectionCoding
}

// DisplayID derives the human-facing identifier from section and number.
func DisplayID(section string, number int) string {
	return fmt.Sprintf("%s-%d", section, number)
}

// ObjectiveSections lists the sections answered by option selection.
func ObjectiveSections() []string {
	return []string{SectionMCQ, SectionAptitude, SectionAI}
}

// AllSections lists every known section in presentation order.
func AllSections() []string {
	return []string{SectionMCQ, SectionAptitude, SectionAI, SectionCoding}
}

// IsKnownSection reports whether the given section name is valid.
func IsKnownSection(section string) bool {
	for _, s := range AllSections() {
		if s == section {
			return true
		}
	}
	return false
}
