package geo

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"geoauth/domain/entity"
	"geoauth/pkg/clientip"
	"geoauth/pkg/customerrors"

	"github.com/google/uuid"
)

// DefaultFallbackIP is looked up for callers whose own address is a placeholder.
const DefaultFallbackIP = "8.8.8.8"

var dottedQuad = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

type Provider interface {
	Lookup(ctx context.Context, ip string) (entity.GeoRecord, error)
}

type HistoryLedger interface {
	RecordLookup(ctx context.Context, userID uuid.UUID, ip string, geo entity.GeoRecord) *entity.HistoryRecord
	Save(ctx context.Context, userID uuid.UUID, ip string, geo entity.GeoRecord) (entity.HistoryRecord, error)
}

type Service struct {
	provider   Provider
	history    HistoryLedger
	fallbackIP string
}

func NewService(provider Provider, history HistoryLedger, fallbackIP string) *Service {
	if fallbackIP == "" {
		fallbackIP = DefaultFallbackIP
	}
	return &Service{provider: provider, history: history, fallbackIP: fallbackIP}
}

// ValidateIPv4 accepts dotted-quad addresses whose octets are all in 0..255.
func ValidateIPv4(ip string) error {
	if !dottedQuad.MatchString(ip) {
		return customerrors.ErrInvalidIPFormat
	}
	for _, octet := range strings.Split(ip, ".") {
		if n, err := strconv.Atoi(octet); err != nil || n > 255 {
			return customerrors.ErrInvalidIPFormat
		}
	}
	return nil
}

// Lookup geolocates ip for userID and records the search. The history write
// is best-effort; only validation and provider failures reach the caller.
func (s *Service) Lookup(ctx context.Context, userID uuid.UUID, ip string) (entity.GeoRecord, error) {
	ip = strings.TrimSpace(ip)
	if err := ValidateIPv4(ip); err != nil {
		return entity.GeoRecord{}, err
	}
	return s.lookupAndRecord(ctx, userID, ip)
}

// MyLocation geolocates the caller's own address, substituting the fallback
// address when the caller is on loopback or unknown. It returns the address used.
func (s *Service) MyLocation(ctx context.Context, userID uuid.UUID, callerIP string) (string, entity.GeoRecord, error) {
	ip := strings.TrimSpace(callerIP)
	if clientip.IsPlaceholder(ip) {
		ip = s.fallbackIP
	}
	rec, err := s.lookupAndRecord(ctx, userID, ip)
	return ip, rec, err
}

// SaveSearch stores a client supplied lookup result.
func (s *Service) SaveSearch(ctx context.Context, userID uuid.UUID, ip string, geo entity.GeoRecord) (entity.HistoryRecord, error) {
	return s.history.Save(ctx, userID, ip, geo)
}

func (s *Service) lookupAndRecord(ctx context.Context, userID uuid.UUID, ip string) (entity.GeoRecord, error) {
	rec, err := s.provider.Lookup(ctx, ip)
	if err != nil {
		return entity.GeoRecord{}, err
	}
	s.history.RecordLookup(ctx, userID, ip, rec)
	return rec, nil
}
