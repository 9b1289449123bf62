package store

import (
	"context"
	"errors"
	"time"

	"animebot/pkg/domain"
)

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPaymentPending is returned when a user already has an outstanding
	// payment proof on file.
	ErrPaymentPending = errors.New("payment already pending")
)

// SettingsField names a single scalar field of the settings document.
type SettingsField string

const (
	FieldPaymentQR  SettingsField = "payment_qr_id"
	FieldDonationQR SettingsField = "donation_qr_id"
	FieldPriceText  SettingsField = "price_text"
)

// TitleMeta carries the title-level fields written only when the title
// document is first created.
type TitleMeta struct {
	Name     string
	PosterID string
	Synopsis string
	Kind     domain.TitleKind
}

// Store defines persistence operations over the three logical collections:
// catalog, users, and the settings singleton. All mutations are single
// document calls; callers rely on that for atomicity.
type Store interface {
	// users
	EnsureUser(ctx context.Context, id int64, firstName, username string) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	ListPendingUsers(ctx context.Context) ([]domain.User, error)
	SetPending(ctx context.Context, id int64, p domain.PendingPayment) error
	ClearPending(ctx context.Context, id int64) error
	Activate(ctx context.Context, id int64, until time.Time) error
	Deactivate(ctx context.Context, id int64) error

	// catalog
	GetTitle(ctx context.Context, id string) (domain.Title, error)
	ListTitles(ctx context.Context) ([]domain.TitleRef, error)
	UpsertEpisode(ctx context.Context, titleID string, meta TitleMeta, seasonKey, episodeKey string, qualities map[string]domain.MediaHandle) error

	// settings
	GetSettings(ctx context.Context) (domain.Settings, error)
	SetSettingsField(ctx context.Context, field SettingsField, value string) error
	SetLink(ctx context.Context, name, url string) error
}
