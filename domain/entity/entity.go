package entity

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. The secret hash and the active token set
// never leave the service; use Public for anything crossing the HTTP boundary.
type User struct {
	ID           uuid.UUID `json:"-"`
	Email        string    `json:"-"`
	PasswordHash string    `json:"-"`
	Tokens       []string  `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// PublicUser is the only user representation allowed in responses.
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// HasToken reports whether token is still in the active set.
func (u User) HasToken(token string) bool {
	for _, t := range u.Tokens {
		if t == token {
			return true
		}
	}
	return false
}

// GeoRecord is the typed view of an ip-api.com payload. Raw keeps the provider
// document as received so it can be stored alongside the mapped fields.
type GeoRecord struct {
	Country     string          `json:"country,omitempty"`
	CountryCode string          `json:"countryCode,omitempty"`
	Region      string          `json:"region,omitempty"`
	RegionName  string          `json:"regionName,omitempty"`
	City        string          `json:"city,omitempty"`
	Zip         string          `json:"zip,omitempty"`
	Lat         float64         `json:"lat"`
	Lon         float64         `json:"lon"`
	Timezone    string          `json:"timezone,omitempty"`
	ISP         string          `json:"isp,omitempty"`
	Org         string          `json:"org,omitempty"`
	AS          string          `json:"as,omitempty"`
	Query       string          `json:"query,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// ParseGeoRecord maps a provider (or client supplied) JSON document onto a
// GeoRecord, keeping the original bytes in Raw.
func ParseGeoRecord(raw []byte) (GeoRecord, error) {
	var g GeoRecord
	if err := json.Unmarshal(raw, &g); err != nil {
		return GeoRecord{}, err
	}
	g.Raw = append(json.RawMessage(nil), raw...)
	return g, nil
}

// Payload returns the document to persist: the raw provider payload when we
// have one, the mapped fields otherwise.
func (g GeoRecord) Payload() ([]byte, error) {
	if len(g.Raw) > 0 {
		return []byte(g.Raw), nil
	}
	return json.Marshal(g)
}

// IsEmpty reports whether the record carries no geolocation data at all.
func (g GeoRecord) IsEmpty() bool {
	switch strings.TrimSpace(string(g.Raw)) {
	case "", "null", "{}":
	default:
		return false
	}
	return g.Country == "" && g.City == "" && g.RegionName == "" && g.Region == "" &&
		g.Lat == 0 && g.Lon == 0 && g.Query == ""
}

// Location reduces a geo record to the snapshot kept on login events.
func (g GeoRecord) Location() LoginLocation {
	return LoginLocation{
		City:     g.City,
		Region:   g.RegionName,
		Country:  g.Country,
		Loc:      strconv.FormatFloat(g.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(g.Lon, 'f', -1, 64),
		Timezone: g.Timezone,
	}
}

// HistoryRecord is one IP lookup per (user, ip) pair.
type HistoryRecord struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user"`
	IP        string    `json:"ip"`
	Geo       GeoRecord `json:"geoData"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HistorySummary is the list view of a history record, without the geo payload.
type HistorySummary struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LoginLocation is the best-effort geolocation snapshot taken at login time.
type LoginLocation struct {
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`
	Loc      string `json:"loc,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

func (l LoginLocation) IsEmpty() bool {
	return l == LoginLocation{}
}

// LoginEvent is an append-only login record. At most one event per user is current.
type LoginEvent struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user"`
	IPAddress string        `json:"ipAddress"`
	UserAgent string        `json:"userAgent"`
	Device    string        `json:"device"`
	Location  LoginLocation `json:"location"`
	IsCurrent bool          `json:"isCurrent"`
	CreatedAt time.Time     `json:"createdAt"`
}
