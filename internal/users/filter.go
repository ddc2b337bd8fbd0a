package users

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"hyperadmin/internal/apperr"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Filter is the predicate set for List. Zero values mean "no constraint".
type Filter struct {
	SubscriptionTier Tier
	Status           Status
	WalletType       string
	MinPoints        *int64
	MaxPoints        *int64
	DiscordUsername  string
	CreatedAfter     time.Time
	CreatedBefore    time.Time
}

type Page struct {
	Skip  int
	Limit int
}

func DefaultPage() Page {
	return Page{Skip: 0, Limit: DefaultLimit}
}

// ParseFilter reads the recognized list parameters from q. Parameters it
// does not know are ignored; a recognized parameter with a malformed value
// is a validation error.
func ParseFilter(q url.Values) (Filter, Page, error) {
	var f Filter
	if v := q.Get("subscription_tier"); v != "" {
		f.SubscriptionTier = Tier(v)
	}
	if v := q.Get("status"); v != "" {
		f.Status = Status(v)
	}
	f.WalletType = strings.TrimSpace(q.Get("wallet_type"))
	f.DiscordUsername = q.Get("discord_username")

	var err error
	if f.MinPoints, err = optionalInt(q, "min_points"); err != nil {
		return Filter{}, Page{}, err
	}
	if f.MaxPoints, err = optionalInt(q, "max_points"); err != nil {
		return Filter{}, Page{}, err
	}
	if f.CreatedAfter, err = optionalTime(q, "created_after"); err != nil {
		return Filter{}, Page{}, err
	}
	if f.CreatedBefore, err = optionalTime(q, "created_before"); err != nil {
		return Filter{}, Page{}, err
	}

	p, err := ParsePage(q)
	if err != nil {
		return Filter{}, Page{}, err
	}
	return f, p, nil
}

// ParsePage reads skip and limit.
func ParsePage(q url.Values) (Page, error) {
	p := DefaultPage()
	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Page{}, apperr.Invalid("skip", "must be a non-negative integer")
		}
		p.Skip = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxLimit {
			return Page{}, apperr.Invalid("limit", "must be an integer between 1 and "+strconv.Itoa(MaxLimit))
		}
		p.Limit = n
	}
	return p, nil
}

func optionalInt(q url.Values, key string) (*int64, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, apperr.Invalid(key, "must be an integer")
	}
	return &n, nil
}

func optionalTime(q url.Values, key string) (time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperr.Invalid(key, "must be an RFC3339 timestamp")
	}
	return t, nil
}

// Matches reports whether u satisfies every predicate in f. The Postgres
// store pushes the same predicates into SQL.
func (f Filter) Matches(u User) bool {
	if f.SubscriptionTier != "" && u.Subscription.Tier != f.SubscriptionTier {
		return false
	}
	if f.Status != "" && u.Status != f.Status {
		return false
	}
	if f.WalletType != "" && u.MintWallets[f.WalletType] == "" {
		return false
	}
	if f.MinPoints != nil && u.Points < *f.MinPoints {
		return false
	}
	if f.MaxPoints != nil && u.Points > *f.MaxPoints {
		return false
	}
	if f.DiscordUsername != "" && !containsFold(u.DiscordUsername, f.DiscordUsername) {
		return false
	}
	if !f.CreatedAfter.IsZero() && u.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && u.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	return true
}

// matchesQuery is the free-text search predicate.
func matchesQuery(u User, query string) bool {
	for _, field := range []string{
		u.DiscordUsername, u.DiscordID, u.WalletAddress,
		u.Socials.X, u.Socials.TG, u.Socials.YT,
	} {
		if containsFold(field, query) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
