package historyHandler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"geoauth/domain/entity"
	"geoauth/internal/delivery/http/reqctx"
	"geoauth/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type HistoryUsecase interface {
	List(ctx context.Context, userID uuid.UUID) ([]entity.HistorySummary, error)
	Get(ctx context.Context, userID uuid.UUID, id string) (entity.HistoryRecord, error)
	Delete(ctx context.Context, userID uuid.UUID, id string) error
	DeleteMany(ctx context.Context, userID uuid.UUID, ids []string) (int64, error)
}

type HistoryHandler struct {
	HistoryUsecase HistoryUsecase
}

func NewHistoryHandler(historyUsecase HistoryUsecase) *HistoryHandler {
	return &HistoryHandler{HistoryUsecase: historyUsecase}
}

type ListResponse struct {
	Success bool                    `json:"success"`
	History []entity.HistorySummary `json:"history"`
}

// HistoryDetail is one record with its geo fields flattened.
type HistoryDetail struct {
	ID uuid.UUID `json:"id"`
	IP string    `json:"ip"`
	entity.GeoRecord
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DetailResponse struct {
	Success bool          `json:"success"`
	History HistoryDetail `json:"history"`
}

type DeleteManyRequest struct {
	IDs []string `json:"ids"`
}

type DeleteResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount,omitempty"`
}

func (h *HistoryHandler) List(c echo.Context) error {
	items, err := h.HistoryUsecase.List(c.Request().Context(), reqctx.User(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse{Success: true, History: items})
}

func (h *HistoryHandler) Get(c echo.Context) error {
	rec, err := h.HistoryUsecase.Get(c.Request().Context(), reqctx.User(c).ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DetailResponse{
		Success: true,
		History: HistoryDetail{
			ID:        rec.ID,
			IP:        rec.IP,
			GeoRecord: rec.Geo,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		},
	})
}

func (h *HistoryHandler) Delete(c echo.Context) error {
	if err := h.HistoryUsecase.Delete(c.Request().Context(), reqctx.User(c).ID, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DeleteResponse{Success: true, Message: "History item deleted"})
}

func (h *HistoryHandler) DeleteMany(c echo.Context) error {
	var req DeleteManyRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", customerrors.ErrInvalidBody, err)
	}
	n, err := h.HistoryUsecase.DeleteMany(c.Request().Context(), reqctx.User(c).ID, req.IDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DeleteResponse{
		Success:      true,
		Message:      fmt.Sprintf("%d history items deleted", n),
		DeletedCount: n,
	})
}
