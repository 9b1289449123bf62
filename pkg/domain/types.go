package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type TitleKind string

const (
	KindSeries TitleKind = "series"
	KindMovie  TitleKind = "movie"
)

type MediaKind string

const (
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// PathDelimiter separates segments inside catalog navigation tokens.
// Slugs never contain it; season/episode/quality keys are validated
// against it at authoring time.
const PathDelimiter = ":"

// MovieSeasonKey is the fixed season label used when a title is a movie.
const MovieSeasonKey = "Movie"

// QualityTiers is the fixed set offered during authoring, in display order.
var QualityTiers = []string{"480p", "720p", "1080p", "4K"}

// MediaHandle references a previously uploaded asset. Kind records the
// transport call the asset arrived through; re-delivery must use the same
// call, the two are not interchangeable.
type MediaHandle struct {
	FileID string    `bson:"file_id" json:"fileId"`
	Kind   MediaKind `bson:"kind" json:"kind"`
}

type Episode struct {
	Qualities map[string]MediaHandle `bson:"qualities" json:"qualities"`
}

type Season struct {
	Episodes map[string]Episode `bson:"episodes" json:"episodes"`
}

// Title is a top-level catalog entry. ID is derived from Name via Slug and
// doubles as the document key.
type Title struct {
	ID       string            `bson:"_id" json:"id"`
	Name     string            `bson:"name" json:"name"`
	PosterID string            `bson:"poster_id" json:"posterId"`
	Synopsis string            `bson:"synopsis,omitempty" json:"synopsis,omitempty"`
	Kind     TitleKind         `bson:"kind" json:"kind"`
	Seasons  map[string]Season `bson:"seasons" json:"seasons"`
}

// TitleRef is the listing projection of a Title.
type TitleRef struct {
	ID   string `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
}

// PendingPayment is a user's outstanding payment-proof submission. At most
// one exists per user at a time.
type PendingPayment struct {
	ProofFileID string    `bson:"proof_file_id" json:"proofFileId"`
	SubmittedAt time.Time `bson:"submitted_at" json:"submittedAt"`
}

type User struct {
	ID         int64           `bson:"_id" json:"id"`
	FirstName  string          `bson:"first_name" json:"firstName"`
	Username   string          `bson:"username,omitempty" json:"username,omitempty"`
	Subscribed bool            `bson:"subscribed" json:"subscribed"`
	ExpiresAt  *time.Time      `bson:"expires_at,omitempty" json:"expiresAt,omitempty"`
	Pending    *PendingPayment `bson:"pending,omitempty" json:"pending,omitempty"`
	CreatedAt  time.Time       `bson:"created_at" json:"createdAt"`
}

// Settings is the singleton admin-controlled configuration record. Fields
// stay empty until the admin sets them.
type Settings struct {
	PaymentQRID  string            `bson:"payment_qr_id,omitempty" json:"paymentQrId,omitempty"`
	DonationQRID string            `bson:"donation_qr_id,omitempty" json:"donationQrId,omitempty"`
	PriceText    string            `bson:"price_text,omitempty" json:"priceText,omitempty"`
	Links        map[string]string `bson:"links" json:"links"`
}

// Slug derives the catalog identifier for a display name: lowercase, drop
// everything but letters, digits and spaces, collapse runs of spaces to a
// single underscore. Deterministic, so re-adding the same name always maps
// to the same Title.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), "_")
}

const maxKeyLen = 32

// ValidateKey checks an admin-supplied season/episode/quality label. Keys
// must be usable both as token segments and as document field names, so the
// path delimiter and document path metacharacters are refused.
func ValidateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if len([]rune(key)) > maxKeyLen {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, PathDelimiter+".$") {
		return ErrKeyReservedChar
	}
	return nil
}

// SortKeys orders season/episode labels for display: all-numeric labels
// numerically, then everything else lexically. Mixed sets put numeric
// labels first so "2" sorts before "Special".
func SortKeys(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	num := func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		return n, err == nil
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		an, aok := num(a)
		bn, bok := num(b)
		switch {
		case aok && bok:
			return an < bn
		case aok:
			return true
		case bok:
			return false
		default:
			return a < b
		}
	})
	return out
}

// IsQualityTier reports whether q is one of the offered tiers.
func IsQualityTier(q string) bool {
	for _, t := range QualityTiers {
		if q == t {
			return true
		}
	}
	return false
}
