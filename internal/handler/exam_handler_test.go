package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/exam-go-api/internal/dto"
	"github.com/noah-isme/exam-go-api/internal/models"
	"github.com/noah-isme/exam-go-api/internal/repository"
	"github.com/noah-isme/exam-go-api/internal/service"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Question{}, &models.Exam{}))
	return db
}

// testAuth stands in for the JWT middleware and reads the caller identity
// from request headers.
func testAuth(c *fiber.Ctx) error {
	if raw := c.Get("X-Test-User"); raw != "" {
		if id, err := strconv.Atoi(raw); err == nil {
			c.Locals("user_id", uint(id))
		}
	}
	if role := c.Get("X-Test-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}, userID uint, role string) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("X-Test-User", strconv.Itoa(int(userID)))
	}
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeData(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
}

type examAPI struct {
	app       *fiber.App
	questions repository.QuestionRepository
}

func newExamAPI(t *testing.T) examAPI {
	t.Helper()
	db := newTestDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())

	examRepo := repository.NewExamRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	evaluator := service.NewAnswerEvaluator(nil, zerolog.Nop(), service.EvaluatorConfig{})
	events := service.NewExamEventPublisher(nil, "", zerolog.Nop())
	exams := service.NewExamService(examRepo, questionRepo, evaluator, nil, events, validate, zerolog.Nop())

	app := fiber.New()
	app.Use(testAuth)
	NewExamHandler(exams, nil, zerolog.Nop()).Register(app.Group("/api/v1/exams"))

	return examAPI{app: app, questions: questionRepo}
}

func (a examAPI) seedQuestion(t *testing.T) {
	t.Helper()
	question := models.Question{
		QuestionID:     models.DisplayID(models.SectionMCQ, 1),
		Section:        models.SectionMCQ,
		QuestionNumber: 1,
		Text:           "What is the capital of France?",
		Options:        []string{"Paris", "Lyon", "Nice", "Toulouse"},
		Answer:         "Paris",
		Status:         models.QuestionStatusActive,
	}
	require.NoError(t, a.questions.Create(context.Background(), &question))
}

func TestExamLifecycleOverHTTP(t *testing.T) {
	api := newExamAPI(t)
	api.seedQuestion(t)

	resp := doJSON(t, api.app, fiber.MethodPost, "/api/v1/exams", dto.ExamStartRequest{Duration: 30}, 1, "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var exam dto.ExamResponse
	decodeData(t, resp, &exam)
	require.Equal(t, models.ExamStatusInProgress, exam.Status)
	require.Len(t, exam.Questions, 1)

	answerPath := fmt.Sprintf("/api/v1/exams/%d/answers", exam.ID)
	resp = doJSON(t, api.app, fiber.MethodPost, answerPath, dto.AnswerSubmitRequest{
		Section:        models.SectionMCQ,
		QuestionNumber: 1,
		Answer:         "Paris",
	}, 1, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result dto.AnswerResultResponse
	decodeData(t, resp, &result)
	require.True(t, result.IsCorrect)

	resp = doJSON(t, api.app, fiber.MethodPost, fmt.Sprintf("/api/v1/exams/%d/complete", exam.ID), nil, 1, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var completed dto.ExamResponse
	decodeData(t, resp, &completed)
	require.Equal(t, models.ExamStatusCompleted, completed.Status)
	require.Equal(t, 2.0, completed.Score)

	// The session no longer accepts answers.
	resp = doJSON(t, api.app, fiber.MethodPost, answerPath, dto.AnswerSubmitRequest{
		Section:        models.SectionMCQ,
		QuestionNumber: 1,
		Answer:         "Lyon",
	}, 1, "")
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestStartRejectsNonPositiveDuration(t *testing.T) {
	api := newExamAPI(t)

	resp := doJSON(t, api.app, fiber.MethodPost, "/api/v1/exams", dto.ExamStartRequest{Duration: 0}, 1, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmitAnswerValidation(t *testing.T) {
	api := newExamAPI(t)
	api.seedQuestion(t)

	resp := doJSON(t, api.app, fiber.MethodPost, "/api/v1/exams", dto.ExamStartRequest{Duration: 30}, 1, "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var exam dto.ExamResponse
	decodeData(t, resp, &exam)

	resp = doJSON(t, api.app, fiber.MethodPost, fmt.Sprintf("/api/v1/exams/%d/answers", exam.ID), dto.AnswerSubmitRequest{
		QuestionNumber: 1,
		Answer:         "Paris",
	}, 1, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetExamAccessControl(t *testing.T) {
	api := newExamAPI(t)
	api.seedQuestion(t)

	resp := doJSON(t, api.app, fiber.MethodPost, "/api/v1/exams", dto.ExamStartRequest{Duration: 30}, 1, "")
	var exam dto.ExamResponse
	decodeData(t, resp, &exam)
	path := fmt.Sprintf("/api/v1/exams/%d", exam.ID)

	resp = doJSON(t, api.app, fiber.MethodGet, path, nil, 1, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, api.app, fiber.MethodGet, path, nil, 2, "")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, api.app, fiber.MethodGet, path, nil, 2, models.RoleAdmin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestSubmitRecordingReference(t *testing.T) {
	api := newExamAPI(t)
	api.seedQuestion(t)

	resp := doJSON(t, api.app, fiber.MethodPost, "/api/v1/exams", dto.ExamStartRequest{Duration: 30}, 1, "")
	var exam dto.ExamResponse
	decodeData(t, resp, &exam)
	path := fmt.Sprintf("/api/v1/exams/%d/recording", exam.ID)

	resp = doJSON(t, api.app, fiber.MethodPost, path, dto.RecordingSubmitRequest{VideoRef: "not a url"}, 1, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, api.app, fiber.MethodPost, path, dto.RecordingSubmitRequest{VideoRef: "https://cdn.example.com/rec/1.webm"}, 1, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestUploadRecordingWithoutStorage(t *testing.T) {
	api := newExamAPI(t)

	resp := doJSON(t, api.app, fiber.MethodPost, "/api/v1/exams/1/recording/upload", nil, 1, "")
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestExamInvalidIDParam(t *testing.T) {
	api := newExamAPI(t)

	resp := doJSON(t, api.app, fiber.MethodGet, "/api/v1/exams/abc", nil, 1, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, api.app, fiber.MethodGet, "/api/v1/exams/0", nil, 1, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
