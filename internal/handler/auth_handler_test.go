package handler

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-go-api/internal/dto"
	"github.com/noah-isme/exam-go-api/internal/repository"
	"github.com/noah-isme/exam-go-api/internal/service"
)

func newAuthAPI(t *testing.T) *fiber.App {
	t.Helper()
	db := newTestDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())
	auth := service.NewAuthService(repository.NewUserRepository(db), validate, service.AuthConfig{JWTSecret: "test-secret"}, zerolog.Nop())

	app := fiber.New()
	app.Use(testAuth)
	h := NewAuthHandler(auth, zerolog.Nop())
	h.Register(app.Group("/api/v1/auth"))
	h.RegisterProtected(app.Group("/api/v1/auth"))
	return app
}

func TestRegisterAndLoginOverHTTP(t *testing.T) {
	app := newAuthAPI(t)

	resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Password: "password123",
	}, 0, "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var user dto.UserResponse
	decodeData(t, resp, &user)
	require.Equal(t, "ada@example.com", user.Email)

	resp = doJSON(t, app, fiber.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "ada@example.com",
		Password: "password123",
	}, 0, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var session dto.AuthResponse
	decodeData(t, resp, &session)
	require.NotEmpty(t, session.Token)

	// A second login while the session is active is refused.
	resp = doJSON(t, app, fiber.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "ada@example.com",
		Password: "password123",
	}, 0, "")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodPost, "/api/v1/auth/logout", nil, user.ID, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "ada@example.com",
		Password: "password123",
	}, 0, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	app := newAuthAPI(t)

	resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Name:     "Ada",
		Email:    "not-an-email",
		Password: "password123",
	}, 0, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "short",
	}, 0, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLoginWrongPasswordOverHTTP(t *testing.T) {
	app := newAuthAPI(t)

	resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "password123",
	}, 0, "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, fiber.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong-password",
	}, 0, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCurrentUser(t *testing.T) {
	app := newAuthAPI(t)

	resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "password123",
	}, 0, "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var registered dto.UserResponse
	decodeData(t, resp, &registered)

	resp = doJSON(t, app, fiber.MethodGet, "/api/v1/auth/me", nil, registered.ID, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var me dto.UserResponse
	decodeData(t, resp, &me)
	require.Equal(t, registered.ID, me.ID)
	require.Equal(t, "ada@example.com", me.Email)
}

func TestLogoutRequiresIdentity(t *testing.T) {
	app := newAuthAPI(t)

	resp := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/logout", nil, 0, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
