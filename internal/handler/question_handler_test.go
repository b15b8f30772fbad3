package handler

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-go-api/internal/dto"
	"github.com/noah-isme/exam-go-api/internal/models"
	"github.com/noah-isme/exam-go-api/internal/repository"
	"github.com/noah-isme/exam-go-api/internal/service"
)

func newQuestionAPI(t *testing.T) *fiber.App {
	t.Helper()
	db := newTestDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	catalog := service.NewCatalogService(repository.NewQuestionRepository(db), nil, time.Minute, validate, zerolog.Nop())

	app := fiber.New()
	app.Use(testAuth)
	h := NewQuestionHandler(catalog, zerolog.Nop())
	h.Register(app.Group("/api/v1/questions"))
	h.RegisterAdmin(app.Group("/api/v1/admin/questions"))
	return app
}

func TestQuestionCreateAndRedaction(t *testing.T) {
	app := newQuestionAPI(t)

	resp := doJSON(t, app, fiber.MethodPost, "/api/v1/admin/questions", dto.QuestionCreateRequest{
		Section:        models.SectionCoding,
		QuestionNumber: 1,
		Text:           "Double the input",
		TestCases: []models.TestCase{
			{Input: "1", ExpectedOutput: "2"},
			{Input: "2", ExpectedOutput: "4"},
			{Input: "3", ExpectedOutput: "6"},
		},
	}, 1, models.RoleAdmin)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created dto.QuestionResponse
	decodeData(t, resp, &created)
	require.Equal(t, "coding-1", created.QuestionID)
	require.Len(t, created.TestCases, 3)

	// Takers get the visible test cases plus a hidden count.
	resp = doJSON(t, app, fiber.MethodGet, "/api/v1/questions/coding", nil, 2, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listed []dto.QuestionResponse
	decodeData(t, resp, &listed)
	require.Len(t, listed, 1)
	require.Len(t, listed[0].TestCases, models.VisibleTestCaseLimit)
	require.Equal(t, 1, listed[0].HiddenCases)
	require.Empty(t, listed[0].Answer)
}

func TestQuestionCreateRejectsBadShape(t *testing.T) {
	app := newQuestionAPI(t)

	resp := doJSON(t, app, fiber.MethodPost, "/api/v1/admin/questions", dto.QuestionCreateRequest{
		Section:        models.SectionMCQ,
		QuestionNumber: 1,
		Text:           "Broken",
		Options:        []string{"a", "b"},
		Answer:         "a",
	}, 1, models.RoleAdmin)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestQuestionListAllGroupsBySection(t *testing.T) {
	app := newQuestionAPI(t)

	resp := doJSON(t, app, fiber.MethodPost, "/api/v1/admin/questions", dto.QuestionCreateRequest{
		Section:        models.SectionMCQ,
		QuestionNumber: 1,
		Text:           "2 + 2?",
		Options:        []string{"3", "4", "5", "6"},
		Answer:         "4",
	}, 1, models.RoleAdmin)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodGet, "/api/v1/questions", nil, 2, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var sections map[string][]dto.QuestionResponse
	decodeData(t, resp, &sections)
	require.Len(t, sections[models.SectionMCQ], 1)
	require.Empty(t, sections[models.SectionCoding])
}

func TestQuestionUpdateAndDelete(t *testing.T) {
	app := newQuestionAPI(t)

	resp := doJSON(t, app, fiber.MethodPost, "/api/v1/admin/questions", dto.QuestionCreateRequest{
		Section:        models.SectionAptitude,
		QuestionNumber: 2,
		Text:           "Original",
		Options:        []string{"a", "b", "c", "d"},
		Answer:         "a",
	}, 1, models.RoleAdmin)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created dto.QuestionResponse
	decodeData(t, resp, &created)

	path := fmt.Sprintf("/api/v1/admin/questions/%d", created.ID)
	newText := "Updated"
	resp = doJSON(t, app, fiber.MethodPut, path, dto.QuestionUpdateRequest{Text: &newText}, 1, models.RoleAdmin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var updated dto.QuestionResponse
	decodeData(t, resp, &updated)
	require.Equal(t, "Updated", updated.Text)

	resp = doJSON(t, app, fiber.MethodDelete, path, nil, 1, models.RoleAdmin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodDelete, path, nil, 1, models.RoleAdmin)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestQuestionUnknownSection(t *testing.T) {
	app := newQuestionAPI(t)

	resp := doJSON(t, app, fiber.MethodGet, "/api/v1/questions/essay", nil, 2, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
