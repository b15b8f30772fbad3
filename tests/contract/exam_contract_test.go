package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-go-api/internal/dto"
	"github.com/noah-isme/exam-go-api/internal/handler"
	"github.com/noah-isme/exam-go-api/internal/models"
	"github.com/noah-isme/exam-go-api/internal/service"
)

type stubExamService struct {
	exam dto.ExamResponse
}

func (s stubExamService) Start(context.Context, uint, dto.ExamStartRequest) (dto.ExamResponse, error) {
	return s.exam, nil
}

func (s stubExamService) Get(context.Context, uint, uint, bool) (dto.ExamResponse, error) {
	return s.exam, nil
}

func (s stubExamService) ListByUser(context.Context, uint) ([]dto.ExamResponse, error) {
	return []dto.ExamResponse{s.exam}, nil
}

func (s stubExamService) SubmitAnswer(context.Context, uint, uint, dto.AnswerSubmitRequest) (dto.AnswerResultResponse, error) {
	return dto.AnswerResultResponse{}, nil
}

func (s stubExamService) SubmitRecording(context.Context, uint, uint, dto.RecordingSubmitRequest) error {
	return nil
}

func (s stubExamService) Complete(context.Context, uint, uint) (dto.ExamResponse, error) {
	return s.exam, nil
}

func (s stubExamService) Terminate(context.Context, uint) (dto.ExamResponse, error) {
	return s.exam, nil
}

func (s stubExamService) CompleteExpired(context.Context, uint) error {
	return nil
}

func (s stubExamService) CompleteOverdue(context.Context) error {
	return nil
}

func (s stubExamService) SetScheduler(service.AutoSubmitScheduler) {}

func TestExamSessionContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "exam_session.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	start := time.Now().UTC().Truncate(time.Second)
	end := start.Add(25 * time.Minute)
	serviceStub := stubExamService{exam: dto.ExamResponse{
		ID:         4,
		UserID:     9,
		StartTime:  start,
		Duration:   30,
		DeadlineAt: start.Add(30 * time.Minute),
		EndTime:    &end,
		Status:     models.ExamStatusCompleted,
		Score:      19.33,
		Questions: []models.ExamQuestion{
			{QuestionID: 1, Section: models.SectionMCQ, QuestionNumber: 1},
			{QuestionID: 2, Section: models.SectionCoding, QuestionNumber: 1},
		},
		Answers: []dto.ExamAnswerResponse{
			{QuestionID: 1, Section: models.SectionMCQ, QuestionNumber: 1, Answer: "Paris", IsCorrect: true},
			{QuestionID: 2, Section: models.SectionCoding, QuestionNumber: 1, Code: "print(1)", TotalTestCases: 3, TestCasesPassed: 2},
		},
	}}
	exams := handler.NewExamHandler(serviceStub, nil, zerolog.Nop())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(9))
		return c.Next()
	})
	exams.Register(app.Group("/api/v1/exams"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exams/4", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
