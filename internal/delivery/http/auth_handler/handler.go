package authHandler

import (
	"context"
	"fmt"
	"net/http"

	"geoauth/domain/entity"
	"geoauth/internal/delivery/http/reqctx"
	"geoauth/internal/usecase/auth"
	"geoauth/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	AuthUsecase AuthUsecase
}

type AuthUsecase interface {
	// Register creates a user and returns it with its first token.
	Register(ctx context.Context, email, secret string) (entity.PublicUser, string, error)

	// Login checks credentials and returns a fresh token.
	Login(ctx context.Context, email, secret string, client auth.ClientInfo) (entity.PublicUser, string, error)

	// Logout revokes a single token.
	Logout(ctx context.Context, userID uuid.UUID, token string) error

	// CurrentUser returns the owner of a valid token.
	CurrentUser(ctx context.Context, token string) (entity.PublicUser, error)
}

func NewAuthHandler(authUsecase AuthUsecase) *AuthHandler {
	return &AuthHandler{AuthUsecase: authUsecase}
}

// DTOs
type RegisterRequest struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	// Password is the field name older clients send.
	Password string `json:"password"`
}

type LoginRequest struct {
	Email     string `json:"email"`
	Secret    string `json:"secret"`
	Password  string `json:"password"`
	IP        string `json:"ip"`
	IPAddress string `json:"ipAddress"`
}

type AuthResponse struct {
	Success bool              `json:"success"`
	User    entity.PublicUser `json:"user"`
	Token   string            `json:"token"`
}

type MeResponse struct {
	Success bool              `json:"success"`
	User    entity.PublicUser `json:"user"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", customerrors.ErrInvalidBody, err)
	}
	user, token, err := h.AuthUsecase.Register(c.Request().Context(), req.Email, firstNonEmpty(req.Secret, req.Password))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, AuthResponse{Success: true, User: user, Token: token})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", customerrors.ErrInvalidBody, err)
	}

	client := auth.ClientInfo{Addr: reqctx.Client(c), UserAgent: c.Request().UserAgent()}
	client.Addr.Claimed = firstNonEmpty(req.IP, req.IPAddress)

	user, token, err := h.AuthUsecase.Login(c.Request().Context(), req.Email, firstNonEmpty(req.Secret, req.Password), client)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AuthResponse{Success: true, User: user, Token: token})
}

func (h *AuthHandler) Me(c echo.Context) error {
	user, err := h.AuthUsecase.CurrentUser(c.Request().Context(), reqctx.Token(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MeResponse{Success: true, User: user})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	user := reqctx.User(c)
	if err := h.AuthUsecase.Logout(c.Request().Context(), user.ID, reqctx.Token(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Logged out successfully"})
}
