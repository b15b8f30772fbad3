package service

import (
	"math"

	"github.com/noah-isme/exam-go-api/internal/models"
)

// Weighted scoring constants. Objective answers are worth a flat number of
// points, coding answers scale a fixed weight by the test-case pass ratio.
const (
	objectiveAnswerPoints = 2.0
	codingAnswerPoints    = 20.0
)

// ScorePolicy computes the final score of an exam from its answer records.
type ScorePolicy interface {
	Score(exam models.Exam) float64
}

// WeightedScorePolicy is the authoritative policy: 2 points per correct
// objective answer, (passed/total)*20 per coding answer, summed and rounded
// to 2 decimal places. Non-finite totals clamp to 0.
type WeightedScorePolicy struct{}

// Score implements ScorePolicy.
func (WeightedScorePolicy) Score(exam models.Exam) float64 {
	var total float64
	for _, answer := range exam.Answers {
		if answer.Section == models.SectionCoding {
			if answer.TotalTestCases > 0 {
				total += float64(answer.TestCasesPassed) / float64(answer.TotalTestCases) * codingAnswerPoints
			}
			continue
		}
		if answer.IsCorrect {
			total += objectiveAnswerPoints
		}
	}
	return clampScore(total)
}

// PercentageScorePolicy reproduces the simpler correct/total*100 formula.
// It conflates section weights and is kept only for compatibility; the
// weighted policy is the default.
type PercentageScorePolicy struct{}

// Score implements ScorePolicy.
func (PercentageScorePolicy) Score(exam models.Exam) float64 {
	if len(exam.Answers) == 0 {
		return 0
	}
	correct := 0
	for _, answer := range exam.Answers {
		if answer.IsCorrect {
			correct++
		}
	}
	return clampScore(float64(correct) / float64(len(exam.Answers)) * 100)
}

func clampScore(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return math.Round(value*100) / 100
}
