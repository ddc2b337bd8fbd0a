package auth

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestStoreGetByUsername(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, username, password_hash, role, created_at FROM admins WHERE username = \$1`).
		WithArgs("root").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "role", "created_at"}).
			AddRow(int64(7), "root", "$2a$hash", "read_only", created))

	a, err := store.GetByUsername(context.Background(), "root")
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.ID)
	assert.Equal(t, RoleReadOnly, a.Role)
	assert.Equal(t, created, a.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetByUsernameNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM admins`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := store.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrAdminNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetByUsernameWrapsDriverErrors(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("connection refused")
	mock.ExpectQuery(`FROM admins`).WillReturnError(boom)

	_, err := store.GetByUsername(context.Background(), "root")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrAdminNotFound)
}

func TestStoreCreate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO admins \(username, password_hash, role, created_at\)`).
		WithArgs("root", "hash", "admin", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "role", "created_at"}).
			AddRow(int64(1), "root", "hash", "admin", time.Now()))

	a, err := store.Create(context.Background(), "root", "hash", RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryStoreRejectsDuplicates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.Create(ctx, "root", "h", RoleAdmin)
	require.NoError(t, err)
	_, err = s.Create(ctx, "root", "h2", RoleReadOnly)
	assert.Error(t, err)
}

func TestSeedFromFile(t *testing.T) {
	preHashed, err := bcrypt.GenerateFromPassword([]byte("viewer-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "admins.yaml")
	content := "admins:\n" +
		"  - username: root\n" +
		"    password: root-pass\n" +
		"  - username: viewer\n" +
		"    password_hash: '" + string(preHashed) + "'\n" +
		"    role: read_only\n" +
		"  - username: incomplete\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, SeedFromFile(ctx, store, path))
	// Seeding twice keeps existing admins.
	require.NoError(t, SeedFromFile(ctx, store, path))

	root, err := store.GetByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, root.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(root.PasswordHash), []byte("root-pass")))

	viewer, err := store.GetByUsername(ctx, "viewer")
	require.NoError(t, err)
	assert.Equal(t, RoleReadOnly, viewer.Role)
	assert.Equal(t, string(preHashed), viewer.PasswordHash)

	_, err = store.GetByUsername(ctx, "incomplete")
	assert.ErrorIs(t, err, ErrAdminNotFound)
}

func TestSeedFromFileRejectsUnknownRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admins:\n  - username: x\n    password: y\n    role: owner\n"), 0o600))

	err := SeedFromFile(context.Background(), NewMemoryStore(), path)
	assert.ErrorContains(t, err, "unknown role")
}

func TestSeedFromFileMissing(t *testing.T) {
	err := SeedFromFile(context.Background(), NewMemoryStore(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
