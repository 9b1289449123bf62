package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"animebot/pkg/domain"
)

// MemoryStore keeps all collections in-process. It mirrors MongoStore
// semantics closely enough to back the workflow tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]domain.User
	catalog  map[string]domain.Title
	settings domain.Settings
	seeded   bool
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[int64]domain.User),
		catalog: make(map[string]domain.Title),
	}
}

func (m *MemoryStore) EnsureUser(_ context.Context, id int64, firstName, username string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		u = domain.User{ID: id, CreatedAt: time.Now().UTC()}
	}
	u.FirstName = firstName
	u.Username = username
	m.users[id] = u
	return copyUser(u), nil
}

func (m *MemoryStore) GetUser(_ context.Context, id int64) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *MemoryStore) ListPendingUsers(_ context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.User
	for _, u := range m.users {
		if u.Pending != nil {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Pending.SubmittedAt.Before(out[j].Pending.SubmittedAt)
	})
	return out, nil
}

func (m *MemoryStore) SetPending(_ context.Context, id int64, p domain.PendingPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if u.Pending != nil {
		return ErrPaymentPending
	}
	u.Pending = &p
	m.users[id] = u
	return nil
}

func (m *MemoryStore) ClearPending(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Pending = nil
	m.users[id] = u
	return nil
}

func (m *MemoryStore) Activate(_ context.Context, id int64, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	ts := until.UTC()
	u.Subscribed = true
	u.ExpiresAt = &ts
	u.Pending = nil
	m.users[id] = u
	return nil
}

func (m *MemoryStore) Deactivate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Subscribed = false
	m.users[id] = u
	return nil
}

func (m *MemoryStore) GetTitle(_ context.Context, id string) (domain.Title, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.catalog[id]
	if !ok {
		return domain.Title{}, ErrNotFound
	}
	return copyTitle(t), nil
}

func (m *MemoryStore) ListTitles(_ context.Context) ([]domain.TitleRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.TitleRef, 0, len(m.catalog))
	for _, t := range m.catalog {
		out = append(out, domain.TitleRef{ID: t.ID, Name: t.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) UpsertEpisode(_ context.Context, titleID string, meta TitleMeta, seasonKey, episodeKey string, qualities map[string]domain.MediaHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.catalog[titleID]
	if !ok {
		t = domain.Title{
			ID:       titleID,
			Name:     meta.Name,
			PosterID: meta.PosterID,
			Synopsis: meta.Synopsis,
			Kind:     meta.Kind,
		}
	}
	if t.Seasons == nil {
		t.Seasons = make(map[string]domain.Season)
	}
	season := t.Seasons[seasonKey]
	if season.Episodes == nil {
		season.Episodes = make(map[string]domain.Episode)
	}
	ep := season.Episodes[episodeKey]
	if ep.Qualities == nil {
		ep.Qualities = make(map[string]domain.MediaHandle)
	}
	for q, h := range qualities {
		ep.Qualities[q] = h
	}
	season.Episodes[episodeKey] = ep
	t.Seasons[seasonKey] = season
	m.catalog[titleID] = t
	return nil
}

func (m *MemoryStore) GetSettings(_ context.Context) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.seeded {
		m.settings.Links = make(map[string]string)
		m.seeded = true
	}
	return copySettings(m.settings), nil
}

func (m *MemoryStore) SetSettingsField(_ context.Context, field SettingsField, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch field {
	case FieldPaymentQR:
		m.settings.PaymentQRID = value
	case FieldDonationQR:
		m.settings.DonationQRID = value
	case FieldPriceText:
		m.settings.PriceText = value
	}
	return nil
}

func (m *MemoryStore) SetLink(_ context.Context, name, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings.Links == nil {
		m.settings.Links = make(map[string]string)
		m.seeded = true
	}
	m.settings.Links[name] = url
	return nil
}

func copyUser(u domain.User) domain.User {
	if u.ExpiresAt != nil {
		ts := *u.ExpiresAt
		u.ExpiresAt = &ts
	}
	if u.Pending != nil {
		p := *u.Pending
		u.Pending = &p
	}
	return u
}

func copyTitle(t domain.Title) domain.Title {
	seasons := make(map[string]domain.Season, len(t.Seasons))
	for sk, s := range t.Seasons {
		eps := make(map[string]domain.Episode, len(s.Episodes))
		for ek, e := range s.Episodes {
			qs := make(map[string]domain.MediaHandle, len(e.Qualities))
			for qk, h := range e.Qualities {
				qs[qk] = h
			}
			eps[ek] = domain.Episode{Qualities: qs}
		}
		seasons[sk] = domain.Season{Episodes: eps}
	}
	t.Seasons = seasons
	return t
}

func copySettings(s domain.Settings) domain.Settings {
	links := make(map[string]string, len(s.Links))
	for k, v := range s.Links {
		links[k] = v
	}
	s.Links = links
	return s
}
