// Package testutil holds in-memory stand-ins for the postgres repositories and
// the geolocation provider, for use-case and HTTP tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"geoauth/domain/entity"
	"geoauth/pkg/customerrors"

	"github.com/google/uuid"
)

// clock hands out strictly increasing timestamps so ordering by creation time is deterministic.
type clock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

type FakeUserRepo struct {
	lock     sync.RWMutex
	clock    clock
	users    map[uuid.UUID]entity.User
	emailIDs map[string]uuid.UUID
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[uuid.UUID]entity.User),
		emailIDs: make(map[string]uuid.UUID),
	}
}

func (r *FakeUserRepo) CreateUser(ctx context.Context, user entity.User) (entity.User, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.emailIDs[user.Email]; ok {
		return entity.User{}, customerrors.ErrDuplicateEmail
	}
	now := r.clock.now()
	user.CreatedAt, user.UpdatedAt = now, now
	user.Tokens = append([]string{}, user.Tokens...)
	r.users[user.ID] = user
	r.emailIDs[user.Email] = user.ID
	return copyUser(user), nil
}

func (r *FakeUserRepo) GetUserByEmail(ctx context.Context, email string) (entity.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	id, ok := r.emailIDs[email]
	if !ok {
		return entity.User{}, customerrors.ErrUserNotFound
	}
	return copyUser(r.users[id]), nil
}

func (r *FakeUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (entity.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return entity.User{}, customerrors.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *FakeUserRepo) AddToken(ctx context.Context, id uuid.UUID, token string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	u, ok := r.users[id]
	if !ok {
		return customerrors.ErrUserNotFound
	}
	u.Tokens = append(u.Tokens, token)
	u.UpdatedAt = r.clock.now()
	r.users[id] = u
	return nil
}

func (r *FakeUserRepo) RemoveToken(ctx context.Context, id uuid.UUID, token string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil
	}
	kept := u.Tokens[:0:0]
	for _, t := range u.Tokens {
		if t != token {
			kept = append(kept, t)
		}
	}
	u.Tokens = kept
	r.users[id] = u
	return nil
}

func copyUser(u entity.User) entity.User {
	u.Tokens = append([]string{}, u.Tokens...)
	return u
}

type FakeHistoryRepo struct {
	lock    sync.RWMutex
	clock   clock
	records map[uuid.UUID]entity.HistoryRecord
	// Err, when set, is returned by every call.
	Err error
}

func NewFakeHistoryRepo() *FakeHistoryRepo {
	return &FakeHistoryRepo{records: make(map[uuid.UUID]entity.HistoryRecord)}
}

func (r *FakeHistoryRepo) Upsert(ctx context.Context, userID uuid.UUID, ip string, geo entity.GeoRecord) (entity.HistoryRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.Err != nil {
		return entity.HistoryRecord{}, r.Err
	}

	now := r.clock.now()
	for id, rec := range r.records {
		if rec.UserID == userID && rec.IP == ip {
			rec.Geo = geo
			rec.UpdatedAt = now
			r.records[id] = rec
			return rec, nil
		}
	}
	rec := entity.HistoryRecord{ID: uuid.New(), UserID: userID, IP: ip, Geo: geo, CreatedAt: now, UpdatedAt: now}
	r.records[rec.ID] = rec
	return rec, nil
}

func (r *FakeHistoryRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.HistorySummary, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.Err != nil {
		return nil, r.Err
	}

	items := []entity.HistorySummary{}
	for _, rec := range r.records {
		if rec.UserID == userID {
			items = append(items, entity.HistorySummary{ID: rec.ID, UserID: rec.UserID, IP: rec.IP, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (r *FakeHistoryRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (entity.HistoryRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.Err != nil {
		return entity.HistoryRecord{}, r.Err
	}

	rec, ok := r.records[id]
	if !ok || rec.UserID != userID {
		return entity.HistoryRecord{}, customerrors.ErrNotFound
	}
	return rec, nil
}

func (r *FakeHistoryRepo) Delete(ctx context.Context, userID, id uuid.UUID) (int64, error) {
	return r.DeleteMany(ctx, userID, []uuid.UUID{id})
}

func (r *FakeHistoryRepo) DeleteMany(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}

	var n int64
	for _, id := range ids {
		if rec, ok := r.records[id]; ok && rec.UserID == userID {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored records for userID.
func (r *FakeHistoryRepo) Count(userID uuid.UUID) int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	n := 0
	for _, rec := range r.records {
		if rec.UserID == userID {
			n++
		}
	}
	return n
}

type FakeLoginRepo struct {
	lock   sync.Mutex
	clock  clock
	events []entity.LoginEvent
	// Err, when set, is returned by every call.
	Err error
}

func NewFakeLoginRepo() *FakeLoginRepo {
	return &FakeLoginRepo{}
}

func (r *FakeLoginRepo) InsertCurrent(ctx context.Context, event entity.LoginEvent) (entity.LoginEvent, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.Err != nil {
		return entity.LoginEvent{}, r.Err
	}

	for i := range r.events {
		if r.events[i].UserID == event.UserID {
			r.events[i].IsCurrent = false
		}
	}
	event.IsCurrent = true
	event.CreatedAt = r.clock.now()
	r.events = append(r.events, event)
	return event, nil
}

func (r *FakeLoginRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.LoginEvent, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	events := []entity.LoginEvent{}
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].UserID == userID {
			events = append(events, r.events[i])
		}
	}
	return events, nil
}

// StubGeo answers lookups from a fixed table; unknown addresses fail like the provider does.
type StubGeo struct {
	lock    sync.Mutex
	Records map[string]entity.GeoRecord
	calls   []string
}

func NewStubGeo() *StubGeo {
	return &StubGeo{Records: make(map[string]entity.GeoRecord)}
}

func (g *StubGeo) Lookup(ctx context.Context, ip string) (entity.GeoRecord, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.calls = append(g.calls, ip)
	rec, ok := g.Records[ip]
	if !ok {
		return entity.GeoRecord{}, customerrors.Upstream("invalid query")
	}
	return rec, nil
}

// Calls returns the addresses looked up so far.
func (g *StubGeo) Calls() []string {
	g.lock.Lock()
	defer g.lock.Unlock()
	return append([]string{}, g.calls...)
}

// GeoFixture returns a record shaped like an ip-api.com success payload.
func GeoFixture(city, country string) entity.GeoRecord {
	rec, err := entity.ParseGeoRecord([]byte(`{"status":"success","country":"` + country + `","regionName":"Region","city":"` + city + `","lat":1.5,"lon":2.5,"timezone":"UTC","isp":"Example ISP"}`))
	if err != nil {
		panic(err)
	}
	return rec
}
