package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-go-api/internal/dto"
	"github.com/noah-isme/exam-go-api/internal/service"
	"github.com/noah-isme/exam-go-api/internal/utils"
)

// AdminHandler exposes account administration, the exam overview and the
// AI answer review.
type AdminHandler struct {
	admin  service.AdminService
	exams  service.ExamService
	logger zerolog.Logger
}

// NewAdminHandler constructs an admin handler.
func NewAdminHandler(admin service.AdminService, exams service.ExamService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		exams:  exams,
		logger: logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register wires the admin routes.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/users", h.listUsers)
	router.Patch("/users/:id", h.updateUser)
	router.Delete("/users/:id", h.deleteUser)
	router.Get("/exams", h.listExams)
	router.Get("/stats", h.stats)
	router.Post("/exams/:id/terminate", h.terminateExam)
	router.Post("/exams/:id/review", h.reviewAnswer)
}

func (h *AdminHandler) listUsers(c *fiber.Ctx) error {
	req, err := listRequestFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination")
	}

	users, err := h.admin.ListUsers(c.Context(), req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "users retrieved", users)
}

func (h *AdminHandler) updateUser(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	var payload dto.AdminUserUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.admin.UpdateUser(c.Context(), id, payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "user updated", user)
}

func (h *AdminHandler) deleteUser(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.admin.DeleteUser(c.Context(), id); err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "user deleted", nil)
}

func (h *AdminHandler) listExams(c *fiber.Ctx) error {
	req, err := listRequestFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination")
	}

	exams, err := h.admin.ListExams(c.Context(), req)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "exams retrieved", exams)
}

func (h *AdminHandler) stats(c *fiber.Ctx) error {
	stats, err := h.admin.Stats(c.Context())
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "stats retrieved", stats)
}

func (h *AdminHandler) terminateExam(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	exam, err := h.exams.Terminate(c.Context(), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "exam terminated", exam)
}

func (h *AdminHandler) reviewAnswer(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	var payload dto.AnswerReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	review, err := h.admin.ReviewCodingAnswer(c.Context(), id, payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "answer reviewed", review)
}

func listRequestFromQuery(c *fiber.Ctx) (dto.AdminListRequest, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return dto.AdminListRequest{}, err
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return dto.AdminListRequest{}, err
	}
	return dto.AdminListRequest{Page: page, PageSize: pageSize}, nil
}
