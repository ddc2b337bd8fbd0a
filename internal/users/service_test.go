package users

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperadmin/internal/apperr"
	"hyperadmin/internal/logging"
)

// slowStore blocks every call until the context is done.
type slowStore struct{ Store }

func (slowStore) GetByID(ctx context.Context, id string) (User, error) {
	<-ctx.Done()
	return User{}, ctx.Err()
}

// countingStore records whether the store was reached.
type countingStore struct {
	*MemoryStore
	inserts int
}

func (c *countingStore) Insert(ctx context.Context, in CreateInput) (User, error) {
	c.inserts++
	return c.MemoryStore.Insert(ctx, in)
}

type fakeCards struct {
	puts    map[string]string
	deleted []string
	putErr  error
	delErr  error
}

func (f *fakeCards) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	b, _ := io.ReadAll(body)
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[key] = string(b)
	return "https://cdn.test/" + key, nil
}

func (f *fakeCards) Delete(ctx context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	return f.delErr
}

func TestServiceAppliesStoreTimeout(t *testing.T) {
	svc := NewService(slowStore{}, 20*time.Millisecond)

	start := time.Now()
	_, err := svc.Get(context.Background(), "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestServiceValidatesBeforeStore(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	svc := NewService(store, time.Second)

	_, err := svc.Create(context.Background(), CreateInput{})
	_, ok := apperr.AsValidation(err)
	assert.True(t, ok)
	assert.Zero(t, store.inserts)

	_, err = svc.Create(context.Background(), CreateInput{DiscordUsername: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.inserts)
}

func TestServiceSearchRequiresQuery(t *testing.T) {
	svc := NewService(NewMemoryStore(), time.Second)
	_, err := svc.Search(context.Background(), "   ", DefaultPage())
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "query", ve.Field)
}

func TestServiceListWrapsViews(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, time.Second)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateInput{DiscordUsername: "alice", DiscordAccessToken: "secret-token"})
	require.NoError(t, err)

	res, err := svc.List(ctx, Filter{}, DefaultPage())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Users, 1)
	assert.Equal(t, "alice", res.Users[0].DiscordUsername)
	assert.NotNil(t, res.Users[0].Roles)
}

func TestUploadCardImage(t *testing.T) {
	cards := &fakeCards{}
	svc := NewService(NewMemoryStore(), time.Second, WithCardStorage(cards), WithLogger(logging.Discard()))
	ctx := context.Background()
	require.True(t, svc.CardUploadsEnabled())

	u, err := svc.Create(ctx, CreateInput{DiscordUsername: "alice"})
	require.NoError(t, err)

	first, err := svc.UploadCardImage(ctx, u.ID, "card.PNG", "image/png", strings.NewReader("one"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.CardImageURL, "https://cdn.test/user-cards/"+u.ID+"/"))
	assert.True(t, strings.HasSuffix(first.CardImageURL, ".png"))
	assert.Empty(t, cards.deleted)

	cards.delErr = errors.New("gone already")
	second, err := svc.UploadCardImage(ctx, u.ID, "card.jpg", "image/jpeg", strings.NewReader("two"))
	require.NoError(t, err)
	assert.NotEqual(t, first.CardImageURL, second.CardImageURL)
	assert.Equal(t, []string{first.CardImageURL}, cards.deleted)
	assert.Len(t, cards.puts, 2)
}

func TestUploadCardImageErrors(t *testing.T) {
	ctx := context.Background()

	plain := NewService(NewMemoryStore(), time.Second)
	assert.False(t, plain.CardUploadsEnabled())
	_, err := plain.UploadCardImage(ctx, "x", "a.png", "image/png", strings.NewReader(""))
	assert.Error(t, err)

	cards := &fakeCards{}
	svc := NewService(NewMemoryStore(), time.Second, WithCardStorage(cards))
	_, err = svc.UploadCardImage(ctx, "x", "a.txt", "text/plain", strings.NewReader(""))
	_, ok := apperr.AsValidation(err)
	assert.True(t, ok)

	_, err = svc.UploadCardImage(ctx, "missing", "a.png", "image/png", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, cards.puts)

	u, err := svc.Create(ctx, CreateInput{DiscordUsername: "alice"})
	require.NoError(t, err)
	cards.putErr = errors.New("bucket unavailable")
	_, err = svc.UploadCardImage(ctx, u.ID, "a.png", "image/png", strings.NewReader(""))
	assert.ErrorIs(t, err, cards.putErr)
}
