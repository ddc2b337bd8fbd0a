package users

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"hyperadmin/internal/apperr"
)

// CardStorage holds uploaded card images.
type CardStorage interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (url string, err error)
	Delete(ctx context.Context, url string) error
}

// Service maps API requests onto the Store. Store errors are returned
// unchanged; each store call runs under its own deadline.
type Service struct {
	store   Store
	cards   CardStorage
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Service)

// WithCardStorage enables UploadCardImage.
func WithCardStorage(cs CardStorage) Option {
	return func(s *Service) { s.cards = cs }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(store Store, timeout time.Duration, opts ...Option) *Service {
	s := &Service{store: store, timeout: timeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CardUploadsEnabled() bool {
	return s.cards != nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	if err := in.Validate(); err != nil {
		return User{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.Insert(ctx, in)
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.GetByID(ctx, id)
}

func (s *Service) GetByDiscordID(ctx context.Context, discordID string) (User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.GetByDiscordID(ctx, discordID)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (User, error) {
	if err := in.Validate(); err != nil {
		return User{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.UpdateByID(ctx, id, in)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.DeleteByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, p Page) (ListResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	us, total, err := s.store.List(ctx, f, p)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Total: total, Users: NewViews(us)}, nil
}

func (s *Service) Search(ctx context.Context, query string, p Page) (ListResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return ListResult{}, apperr.Invalid("query", "is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	us, total, err := s.store.Search(ctx, query, p)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Total: total, Users: NewViews(us)}, nil
}

// UploadCardImage stores body as the user's card image and replaces the
// previous one. Removing the old object is best effort.
func (s *Service) UploadCardImage(ctx context.Context, id, filename, contentType string, body io.Reader) (User, error) {
	if s.cards == nil {
		return User{}, fmt.Errorf("card storage is not configured")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return User{}, apperr.Invalid("file", "must be an image")
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.CardImageURL != "" {
		if err := s.cards.Delete(ctx, u.CardImageURL); err != nil {
			s.logger.WarnContext(ctx, "delete previous card image", "user_id", id, "err", err)
		}
	}

	url, err := s.cards.Put(ctx, cardKey(id, filename), contentType, body)
	if err != nil {
		return User{}, fmt.Errorf("upload card image: %w", err)
	}
	return s.Update(ctx, id, UpdateInput{CardImageURL: &url})
}

func cardKey(userID, filename string) string {
	key := "user-cards/" + userID + "/" + uuid.NewString()
	if ext := strings.TrimPrefix(path.Ext(filename), "."); ext != "" {
		key += "." + strings.ToLower(ext)
	}
	return key
}
