package geoHandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"geoauth/domain/entity"
	"geoauth/internal/delivery/http/reqctx"
	"geoauth/pkg/clientip"
	"geoauth/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type GeoUsecase interface {
	Lookup(ctx context.Context, userID uuid.UUID, ip string) (entity.GeoRecord, error)
	MyLocation(ctx context.Context, userID uuid.UUID, callerIP string) (string, entity.GeoRecord, error)
	SaveSearch(ctx context.Context, userID uuid.UUID, ip string, geo entity.GeoRecord) (entity.HistoryRecord, error)
}

type GeoHandler struct {
	GeoUsecase GeoUsecase
}

func NewGeoHandler(geoUsecase GeoUsecase) *GeoHandler {
	return &GeoHandler{GeoUsecase: geoUsecase}
}

// GeoResponse flattens the geolocation fields next to the looked-up address.
type GeoResponse struct {
	Success bool   `json:"success"`
	IP      string `json:"ip"`
	entity.GeoRecord
}

type SaveSearchRequest struct {
	IP      string          `json:"ip"`
	GeoData json.RawMessage `json:"geoData"`
}

type SaveSearchResponse struct {
	Success     bool                 `json:"success"`
	Message     string               `json:"message"`
	HistoryItem entity.HistoryRecord `json:"historyItem"`
}

func (h *GeoHandler) Lookup(c echo.Context) error {
	ip := c.QueryParam("ip")
	rec, err := h.GeoUsecase.Lookup(c.Request().Context(), reqctx.User(c).ID, ip)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, GeoResponse{Success: true, IP: ip, GeoRecord: rec})
}

func (h *GeoHandler) MyLocation(c echo.Context) error {
	caller := clientip.Forwarded(reqctx.Client(c))
	ip, rec, err := h.GeoUsecase.MyLocation(c.Request().Context(), reqctx.User(c).ID, caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, GeoResponse{Success: true, IP: ip, GeoRecord: rec})
}

func (h *GeoHandler) SaveSearch(c echo.Context) error {
	var req SaveSearchRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %v", customerrors.ErrInvalidBody, err)
	}

	raw := bytes.TrimSpace(req.GeoData)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return customerrors.ErrMissingFields
	}
	geo, err := entity.ParseGeoRecord(raw)
	if err != nil {
		return fmt.Errorf("%w: geoData: %v", customerrors.ErrInvalidBody, err)
	}

	rec, err := h.GeoUsecase.SaveSearch(c.Request().Context(), reqctx.User(c).ID, req.IP, geo)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SaveSearchResponse{Success: true, Message: "Search saved to history", HistoryItem: rec})
}
