// Package logins keeps the append-only login history. Each user has at most
// one current event: recording a new one demotes the previous.
package logins

import (
	"context"
	"log/slog"
	"strings"

	"geoauth/domain/entity"
	"geoauth/internal/geo"
	"geoauth/pkg/clientip"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"
)

// UnknownAgent is stored when the request carried no User-Agent.
const UnknownAgent = "Unknown"

type Repo interface {
	InsertCurrent(ctx context.Context, event entity.LoginEvent) (entity.LoginEvent, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.LoginEvent, error)
}

// LoginInput describes one login as seen by the transport layer. IP is
// already resolved; use clientip.Resolve.
type LoginInput struct {
	UserID    uuid.UUID
	IP        string
	UserAgent string
}

type Ledger struct {
	repo   Repo
	geo    geo.Lookuper
	logger *slog.Logger
}

func NewLedger(repo Repo, lookup geo.Lookuper, logger *slog.Logger) *Ledger {
	return &Ledger{repo: repo, geo: lookup, logger: logger}
}

// Record stores a new current login event. The location is looked up before
// the store transaction starts and is left empty if the lookup fails.
func (l *Ledger) Record(ctx context.Context, in LoginInput) (entity.LoginEvent, error) {
	ip := strings.TrimSpace(in.IP)
	if ip == "" {
		ip = clientip.Unknown
	}
	agent := strings.TrimSpace(in.UserAgent)
	if agent == "" {
		agent = UnknownAgent
	}

	event := entity.LoginEvent{
		ID:        uuid.New(),
		UserID:    in.UserID,
		IPAddress: ip,
		UserAgent: agent,
		Device:    DescribeDevice(agent),
		Location:  l.locate(ctx, ip),
	}
	return l.repo.InsertCurrent(ctx, event)
}

func (l *Ledger) locate(ctx context.Context, ip string) entity.LoginLocation {
	if l.geo == nil || clientip.IsPlaceholder(ip) {
		return entity.LoginLocation{}
	}
	rec, err := l.geo.Lookup(ctx, ip)
	if err != nil {
		l.logger.Warn("Login geolocation failed", slog.String("ip", ip), slog.Any("error", err))
		return entity.LoginLocation{}
	}
	return rec.Location()
}

// List returns the user's login events, newest first.
func (l *Ledger) List(ctx context.Context, userID uuid.UUID) ([]entity.LoginEvent, error) {
	return l.repo.ListByUser(ctx, userID)
}

// DescribeDevice turns a User-Agent header into "Browser ver, OS ver, Kind".
func DescribeDevice(agent string) string {
	if agent == "" || agent == UnknownAgent {
		return "Unknown Device"
	}

	ua := useragent.Parse(agent)
	var parts []string
	if ua.Name != "" {
		parts = append(parts, strings.TrimSpace(ua.Name+" "+ua.Version))
	}
	if ua.OS != "" {
		parts = append(parts, strings.TrimSpace(ua.OS+" "+ua.OSVersion))
	}
	switch {
	case ua.Mobile:
		parts = append(parts, "Mobile")
	case ua.Tablet:
		parts = append(parts, "Tablet")
	case ua.Desktop:
		parts = append(parts, "Desktop")
	case ua.Bot:
		parts = append(parts, "Bot")
	}

	if len(parts) == 0 {
		if len(agent) > 100 {
			return agent[:100] + "..."
		}
		return agent
	}
	return strings.Join(parts, ", ")
}
