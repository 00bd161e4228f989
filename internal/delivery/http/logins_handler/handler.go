package loginsHandler

import (
	"context"
	"fmt"
	"net/http"

	"geoauth/domain/entity"
	"geoauth/internal/delivery/http/reqctx"
	"geoauth/internal/usecase/logins"
	"geoauth/pkg/clientip"
	"geoauth/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type LoginsUsecase interface {
	Record(ctx context.Context, in logins.LoginInput) (entity.LoginEvent, error)
	List(ctx context.Context, userID uuid.UUID) ([]entity.LoginEvent, error)
}

type LoginsHandler struct {
	LoginsUsecase LoginsUsecase
}

func NewLoginsHandler(loginsUsecase LoginsUsecase) *LoginsHandler {
	return &LoginsHandler{LoginsUsecase: loginsUsecase}
}

type TrackRequest struct {
	IPAddress string `json:"ipAddress"`
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
}

type ListResponse struct {
	Success bool                `json:"success"`
	Logins  []entity.LoginEvent `json:"logins"`
}

// LegacyListResponse is the shape served on /api/login-history.
type LegacyListResponse struct {
	Success bool                `json:"success"`
	Data    []entity.LoginEvent `json:"data"`
}

type TrackResponse struct {
	Success bool              `json:"success"`
	Login   entity.LoginEvent `json:"login"`
}

func (h *LoginsHandler) List(c echo.Context) error {
	events, err := h.LoginsUsecase.List(c.Request().Context(), reqctx.User(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse{Success: true, Logins: events})
}

func (h *LoginsHandler) LegacyList(c echo.Context) error {
	events, err := h.LoginsUsecase.List(c.Request().Context(), reqctx.User(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LegacyListResponse{Success: true, Data: events})
}

// Track records a login event for the caller with the address and agent the
// client reports, falling back to what the request itself shows.
func (h *LoginsHandler) Track(c echo.Context) error {
	var req TrackRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", customerrors.ErrInvalidBody, err)
	}

	addr := reqctx.Client(c)
	addr.Claimed = req.IPAddress
	if addr.Claimed == "" {
		addr.Claimed = req.IP
	}
	agent := req.UserAgent
	if agent == "" {
		agent = c.Request().UserAgent()
	}

	event, err := h.LoginsUsecase.Record(c.Request().Context(), logins.LoginInput{
		UserID:    reqctx.User(c).ID,
		IP:        clientip.Resolve(addr),
		UserAgent: agent,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TrackResponse{Success: true, Login: event})
}
