package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var ErrAdminNotFound = errors.New("admin not found")

// CredentialStore looks up and records admin credentials.
type CredentialStore interface {
	GetByUsername(ctx context.Context, username string) (*Admin, error)
	Create(ctx context.Context, username, passwordHash string, role Role) (*Admin, error)
}

// Store keeps admins in PostgreSQL.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*Admin, error) {
	const q = `SELECT id, username, password_hash, role, created_at FROM admins WHERE username = $1`
	row := s.db.QueryRowContext(ctx, q, username)
	a := &Admin{}
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return a, nil
}

func (s *Store) Create(ctx context.Context, username, passwordHash string, role Role) (*Admin, error) {
	const q = `
		INSERT INTO admins (username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, password_hash, role, created_at
	`
	a := &Admin{}
	if err := s.db.QueryRowContext(ctx, q, username, passwordHash, role, time.Now().UTC()).
		Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return a, nil
}

// MemoryStore keeps admins in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	admins map[string]Admin
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{admins: make(map[string]Admin)}
}

func (s *MemoryStore) GetByUsername(ctx context.Context, username string) (*Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[username]
	if !ok {
		return nil, ErrAdminNotFound
	}
	return &a, nil
}

func (s *MemoryStore) Create(ctx context.Context, username, passwordHash string, role Role) (*Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.admins[username]; ok {
		return nil, fmt.Errorf("create admin: username %q already exists", username)
	}
	s.nextID++
	a := Admin{
		ID:           s.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	s.admins[username] = a
	return &a, nil
}

type adminsFile struct {
	Admins []struct {
		Username     string `yaml:"username"`
		Password     string `yaml:"password"`
		PasswordHash string `yaml:"password_hash"`
		Role         Role   `yaml:"role"`
	} `yaml:"admins"`
}

// SeedFromFile creates every admin listed in the YAML file at path that
// does not exist yet. Entries carry either a plain password, which is
// hashed here, or a ready bcrypt password_hash.
func SeedFromFile(ctx context.Context, store CredentialStore, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var af adminsFile
	if err := yaml.Unmarshal(data, &af); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for _, a := range af.Admins {
		if a.Username == "" || (a.Password == "" && a.PasswordHash == "") {
			continue
		}
		role := a.Role
		if role == "" {
			role = RoleAdmin
		}
		if !role.Valid() {
			return fmt.Errorf("admin %q: unknown role %q", a.Username, role)
		}
		hash := a.PasswordHash
		if hash == "" {
			if hash, err = HashPassword(a.Password); err != nil {
				return err
			}
		}
		if err := createIfMissing(ctx, store, a.Username, hash, role); err != nil {
			return err
		}
	}
	return nil
}

// SeedAdmin creates a single admin unless the username is taken.
func SeedAdmin(ctx context.Context, store CredentialStore, username, password string, role Role) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return createIfMissing(ctx, store, username, hash, role)
}

func createIfMissing(ctx context.Context, store CredentialStore, username, hash string, role Role) error {
	if _, err := store.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, ErrAdminNotFound) {
		return err
	}
	_, err := store.Create(ctx, username, hash, role)
	return err
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
