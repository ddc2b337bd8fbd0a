package users

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumnNames = []string{
	"id", "discord_id", "discord_username", "avatar_url", "wallet_address", "points",
	"card_image_url", "subscription_tier", "status", "roles", "socials", "mint_wallets",
	"discord_access_token", "discord_refresh_token", "discord_token_expires_at",
	"created_at", "updated_at", "last_active",
}

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewPostgresStore(db)
	s.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	return s, mock
}

func userRow(id, discordID, username string, points int64, created time.Time) []driver.Value {
	var did any
	if discordID != "" {
		did = discordID
	}
	return []driver.Value{
		id, did, username, "", "", points,
		"", "free", "active", []byte("{og,vip}"), []byte(`{"x":"@` + username + `"}`), []byte(`{"eth":"0x1"}`),
		"", "", nil,
		created, created, nil,
	}
}

func anyArgs(n int) []driver.Value {
	out := make([]driver.Value, n)
	for i := range out {
		out[i] = sqlmock.AnyArg()
	}
	return out
}

func TestPostgresInsert(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectExec(`INSERT INTO users \(id, discord_id, discord_username`).
		WithArgs(anyArgs(17)...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	u, err := s.Insert(context.Background(), CreateInput{DiscordID: "100", DiscordUsername: "alice"})
	require.NoError(t, err)
	_, err = uuid.Parse(u.ID)
	assert.NoError(t, err)
	assert.Equal(t, StatusActive, u.Status)
	assert.Equal(t, s.now(), u.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertConflict(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(anyArgs(17)...).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "users_discord_id_key"})

	_, err := s.Insert(context.Background(), CreateInput{DiscordID: "100", DiscordUsername: "alice"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPostgresGetByID(t *testing.T) {
	s, mock := newMockPostgres(t)
	id := uuid.NewString()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, discord_id, .* FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userColumnNames).AddRow(userRow(id, "100", "alice", 7, created)...))

	u, err := s.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "100", u.DiscordID)
	assert.Equal(t, int64(7), u.Points)
	assert.Equal(t, []string{"og", "vip"}, u.Roles)
	assert.Equal(t, "@alice", u.Socials.X)
	assert.Equal(t, map[string]string{"eth": "0x1"}, u.MintWallets)
	assert.Nil(t, u.LastActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetNotFound(t *testing.T) {
	s, mock := newMockPostgres(t)

	// Malformed ids never reach the database.
	_, err := s.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(`FROM users WHERE discord_id = \$1`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(userColumnNames))
	_, err = s.GetByDiscordID(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetWrapsDriverError(t *testing.T) {
	s, mock := newMockPostgres(t)
	boom := errors.New("connection reset by peer")
	mock.ExpectQuery(`FROM users WHERE discord_id`).WillReturnError(boom)

	_, err := s.GetByDiscordID(context.Background(), "100")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestPostgresUpdate(t *testing.T) {
	s, mock := newMockPostgres(t)
	id := uuid.NewString()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`UPDATE users SET points = \$1, status = \$2, updated_at = \$3 WHERE id = \$4 RETURNING id,`).
		WithArgs(int64(42), "banned", s.now(), id).
		WillReturnRows(sqlmock.NewRows(userColumnNames).AddRow(userRow(id, "", "alice", 42, created)...))

	u, err := s.UpdateByID(context.Background(), id, UpdateInput{Points: ptr(int64(42)), Status: ptr(StatusBanned)})
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.Points)
	assert.Empty(t, u.DiscordID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateMissing(t *testing.T) {
	s, mock := newMockPostgres(t)
	id := uuid.NewString()
	mock.ExpectQuery(`UPDATE users SET`).WillReturnRows(sqlmock.NewRows(userColumnNames))

	_, err := s.UpdateByID(context.Background(), id, UpdateInput{Points: ptr(int64(1))})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresEmptyUpdateReadsRecord(t *testing.T) {
	s, mock := newMockPostgres(t)
	id := uuid.NewString()
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userColumnNames).AddRow(userRow(id, "", "alice", 1, time.Now())...))

	u, err := s.UpdateByID(context.Background(), id, UpdateInput{})
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	s, mock := newMockPostgres(t)
	id := uuid.NewString()
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.DeleteByID(context.Background(), id))
	assert.ErrorIs(t, s.DeleteByID(context.Background(), id), ErrNotFound)
	assert.ErrorIs(t, s.DeleteByID(context.Background(), "bad"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListBuildsPredicates(t *testing.T) {
	s, mock := newMockPostgres(t)
	f := Filter{
		SubscriptionTier: TierHyperium,
		MinPoints:        ptr(int64(10)),
		DiscordUsername:  "ali_x",
	}
	const cond = `WHERE 1=1 AND subscription_tier = \$1 AND points >= \$2 AND discord_username ILIKE \$3`
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users ` + cond).
		WithArgs("hyperium", int64(10), `%ali\_x%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT id, .* FROM users ` + cond + ` ORDER BY seq ASC LIMIT \$4 OFFSET \$5`).
		WithArgs("hyperium", int64(10), `%ali\_x%`, 2, 1).
		WillReturnRows(sqlmock.NewRows(userColumnNames).
			AddRow(userRow(uuid.NewString(), "1", "ali_x1", 20, time.Now())...).
			AddRow(userRow(uuid.NewString(), "2", "ali_x2", 30, time.Now())...))

	us, total, err := s.List(context.Background(), f, Page{Skip: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, us, 2)
	assert.Equal(t, "ali_x1", us[0].DiscordUsername)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListEmptyPage(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY seq ASC`).WillReturnRows(sqlmock.NewRows(userColumnNames))

	us, total, err := s.List(context.Background(), Filter{}, DefaultPage())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, us)
	assert.Empty(t, us)
}

func TestPostgresSearch(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE \(discord_username ILIKE \$1`).
		WithArgs("%abc%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`OR socials ->> 'yt' ILIKE \$1\) ORDER BY seq ASC LIMIT \$2 OFFSET \$3`).
		WithArgs("%abc%", DefaultLimit, 0).
		WillReturnRows(sqlmock.NewRows(userColumnNames).AddRow(userRow(uuid.NewString(), "", "abc", 0, time.Now())...))

	us, total, err := s.Search(context.Background(), "abc", DefaultPage())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, us, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\%\_off\\%`, likePattern(`50%_off\`))
}
