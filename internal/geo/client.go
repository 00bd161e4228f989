// Package geo talks to the ip-api.com geolocation service.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"geoauth/domain/entity"
	"geoauth/internal/metrics"
	"geoauth/pkg/customerrors"
)

const lookupFields = "status,message,country,countryCode,region,regionName,city,zip,lat,lon,timezone,isp,org,as,query"

// maxBody caps how much of a provider response we read.
const maxBody = 64 << 10

// Client looks up IP addresses against an ip-api.com compatible endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
}

func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		metrics: m,
	}
}

// Lookup fetches the geolocation of ip. A "fail" status, a non-200 response,
// a timeout or an undecodable body all come back as an upstream error.
func (c *Client) Lookup(ctx context.Context, ip string) (_ entity.GeoRecord, err error) {
	status := "ok"
	defer func(start time.Time) {
		if err != nil && status == "ok" {
			status = "error"
		}
		c.metrics.ObserveGeo(status, start)
	}(time.Now())

	endpoint := fmt.Sprintf("%s/json/%s?fields=%s", c.baseURL, url.PathEscape(ip), lookupFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return entity.GeoRecord{}, customerrors.Upstream("build request: %v", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return entity.GeoRecord{}, customerrors.Upstream("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entity.GeoRecord{}, customerrors.Upstream("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return entity.GeoRecord{}, customerrors.Upstream("read body: %v", err)
	}

	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return entity.GeoRecord{}, customerrors.Upstream("decode body: %v", err)
	}
	if result.Status != "success" {
		status = "fail"
		return entity.GeoRecord{}, customerrors.Upstream("provider: %s", result.Message)
	}

	rec, err := entity.ParseGeoRecord(raw)
	if err != nil {
		return entity.GeoRecord{}, customerrors.Upstream("decode record: %v", err)
	}
	return rec, nil
}
