package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-go-api/internal/dto"
	"github.com/noah-isme/exam-go-api/internal/service"
	"github.com/noah-isme/exam-go-api/internal/utils"
)

// ExamHandler exposes the exam session lifecycle to exam takers.
type ExamHandler struct {
	exams      service.ExamService
	recordings service.RecordingService
	logger     zerolog.Logger
}

// NewExamHandler constructs an exam handler. The recording service may be
// nil when no upload storage is configured; recording uploads then return
// an error while URL references still work.
func NewExamHandler(exams service.ExamService, recordings service.RecordingService, logger zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		exams:      exams,
		recordings: recordings,
		logger:     logger.With().Str("component", "exam_handler").Logger(),
	}
}

// Register wires the exam routes.
func (h *ExamHandler) Register(router fiber.Router) {
	router.Post("", h.start)
	router.Get("", h.listMine)
	router.Get("/:id", h.get)
	router.Post("/:id/answers", h.submitAnswer)
	router.Post("/:id/recording", h.submitRecording)
	router.Post("/:id/recording/upload", h.uploadRecording)
	router.Post("/:id/complete", h.complete)
}

func (h *ExamHandler) start(c *fiber.Ctx) error {
	var payload dto.ExamStartRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	exam, err := h.exams.Start(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "exam started", exam)
}

func (h *ExamHandler) listMine(c *fiber.Ctx) error {
	exams, err := h.exams.ListByUser(c.Context(), userIDFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "exams retrieved", exams)
}

func (h *ExamHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	exam, err := h.exams.Get(c.Context(), id, userIDFromContext(c), isAdminFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "exam retrieved", exam)
}

func (h *ExamHandler) submitAnswer(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	var payload dto.AnswerSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.exams.SubmitAnswer(c.Context(), id, userIDFromContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "answer recorded", result)
}

func (h *ExamHandler) submitRecording(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	var payload dto.RecordingSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.exams.SubmitRecording(c.Context(), id, userIDFromContext(c), payload); err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "recording attached", nil)
}

// uploadRecording stores the multipart video and attaches the resulting URL
// in one round trip.
func (h *ExamHandler) uploadRecording(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}
	if h.recordings == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "recording storage not configured")
	}

	file, err := c.FormFile("recording")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "recording file is required")
	}

	stored, err := h.recordings.Upload(c.Context(), id, file)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	if err := h.exams.SubmitRecording(c.Context(), id, userIDFromContext(c), dto.RecordingSubmitRequest{VideoRef: stored.URL}); err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "recording uploaded", stored)
}

func (h *ExamHandler) complete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	exam, err := h.exams.Complete(c.Context(), id, userIDFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "exam completed", exam)
}
