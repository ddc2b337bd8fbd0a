package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const userColumns = `id, discord_id, discord_username, avatar_url, wallet_address, points,
	card_image_url, subscription_tier, status, roles, socials, mint_wallets,
	discord_access_token, discord_refresh_token, discord_token_expires_at,
	created_at, updated_at, last_active`

// PostgresStore persists users in the users table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostgresStore) Insert(ctx context.Context, in CreateInput) (User, error) {
	u := newUser(uuid.NewString(), in, s.now())

	socials, err := json.Marshal(u.Socials)
	if err != nil {
		return User{}, fmt.Errorf("encode socials: %w", err)
	}
	wallets, err := json.Marshal(u.MintWallets)
	if err != nil {
		return User{}, fmt.Errorf("encode mint wallets: %w", err)
	}

	const q = `
		INSERT INTO users (id, discord_id, discord_username, avatar_url, wallet_address, points,
			card_image_url, subscription_tier, status, roles, socials, mint_wallets,
			discord_access_token, discord_refresh_token, discord_token_expires_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = s.db.ExecContext(ctx, q,
		u.ID,
		nullString(u.DiscordID),
		u.DiscordUsername,
		u.AvatarURL,
		u.WalletAddress,
		u.Points,
		u.CardImageURL,
		string(u.Subscription.Tier),
		string(u.Status),
		pq.Array(u.Roles),
		string(socials),
		string(wallets),
		u.DiscordToken.AccessToken,
		u.DiscordToken.RefreshToken,
		nullTime(u.DiscordToken.ExpiresAt),
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrConflict
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.getOne(ctx, q, id)
}

func (s *PostgresStore) GetByDiscordID(ctx context.Context, discordID string) (User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE discord_id = $1`
	return s.getOne(ctx, q, discordID)
}

func (s *PostgresStore) getOne(ctx context.Context, q string, arg any) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) UpdateByID(ctx context.Context, id string, in UpdateInput) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	if in.IsEmpty() {
		return s.GetByID(ctx, id)
	}

	set, args, err := updateAssignments(in)
	if err != nil {
		return User{}, err
	}
	args = append(args, s.now())
	set = append(set, "updated_at = $"+itoa(len(args)))
	args = append(args, id)

	q := `UPDATE users SET ` + strings.Join(set, ", ") +
		` WHERE id = $` + itoa(len(args)) + ` RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// updateAssignments renders the SET list for the supplied fields in a
// fixed column order.
func updateAssignments(in UpdateInput) ([]string, []any, error) {
	var set []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, col+" = $"+itoa(len(args)))
	}

	if in.DiscordUsername != nil {
		add("discord_username", *in.DiscordUsername)
	}
	if in.AvatarURL != nil {
		add("avatar_url", *in.AvatarURL)
	}
	if in.WalletAddress != nil {
		add("wallet_address", *in.WalletAddress)
	}
	if in.CardImageURL != nil {
		add("card_image_url", *in.CardImageURL)
	}
	if in.Points != nil {
		add("points", *in.Points)
	}
	if in.Subscription != nil {
		add("subscription_tier", string(in.Subscription.Tier))
	}
	if in.Status != nil {
		add("status", string(*in.Status))
	}
	if in.Roles != nil {
		add("roles", pq.Array(in.Roles))
	}
	if in.Socials != nil {
		b, err := json.Marshal(in.Socials)
		if err != nil {
			return nil, nil, fmt.Errorf("encode socials: %w", err)
		}
		add("socials", string(b))
	}
	if in.MintWallets != nil {
		b, err := json.Marshal(in.MintWallets)
		if err != nil {
			return nil, nil, fmt.Errorf("encode mint wallets: %w", err)
		}
		add("mint_wallets", string(b))
	}
	if in.LastActive != nil {
		add("last_active", *in.LastActive)
	}
	if in.DiscordAccessToken != nil {
		add("discord_access_token", *in.DiscordAccessToken)
	}
	if in.DiscordRefreshToken != nil {
		add("discord_refresh_token", *in.DiscordRefreshToken)
	}
	if in.DiscordTokenExpiresAt != nil {
		add("discord_token_expires_at", *in.DiscordTokenExpiresAt)
	}
	return set, args, nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter, p Page) ([]User, int, error) {
	w := &where{clauses: []string{"1=1"}}
	if f.SubscriptionTier != "" {
		w.add("subscription_tier = %s", string(f.SubscriptionTier))
	}
	if f.Status != "" {
		w.add("status = %s", string(f.Status))
	}
	if f.WalletType != "" {
		w.add("COALESCE(mint_wallets ->> %s, '') <> ''", f.WalletType)
	}
	if f.MinPoints != nil {
		w.add("points >= %s", *f.MinPoints)
	}
	if f.MaxPoints != nil {
		w.add("points <= %s", *f.MaxPoints)
	}
	if f.DiscordUsername != "" {
		w.add("discord_username ILIKE %s", likePattern(f.DiscordUsername))
	}
	if !f.CreatedAfter.IsZero() {
		w.add("created_at >= %s", f.CreatedAfter)
	}
	if !f.CreatedBefore.IsZero() {
		w.add("created_at <= %s", f.CreatedBefore)
	}
	return s.page(ctx, w, p)
}

func (s *PostgresStore) Search(ctx context.Context, query string, p Page) ([]User, int, error) {
	w := &where{}
	w.add(`(discord_username ILIKE %[1]s
		OR COALESCE(discord_id, '') ILIKE %[1]s
		OR wallet_address ILIKE %[1]s
		OR socials ->> 'x' ILIKE %[1]s
		OR socials ->> 'tg' ILIKE %[1]s
		OR socials ->> 'yt' ILIKE %[1]s)`, likePattern(query))
	return s.page(ctx, w, p)
}

func (s *PostgresStore) page(ctx context.Context, w *where, p Page) ([]User, int, error) {
	cond := strings.Join(w.clauses, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE `+cond, w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	args := append(append([]any{}, w.args...), p.Limit, p.Skip)
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + cond +
		` ORDER BY seq ASC LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	res := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		res = append(res, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return res, total, nil
}

// where accumulates AND-ed predicates with positional arguments. Each
// clause is a format string whose verbs are replaced by the placeholder
// of its argument.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, "$"+itoa(len(w.args))))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		u            User
		discordID    sql.NullString
		tier, status string
		roles        pq.StringArray
		socials      []byte
		wallets      []byte
		tokenExpiry  sql.NullTime
		lastActive   sql.NullTime
	)
	if err := row.Scan(&u.ID, &discordID, &u.DiscordUsername, &u.AvatarURL, &u.WalletAddress,
		&u.Points, &u.CardImageURL, &tier, &status, &roles, &socials, &wallets,
		&u.DiscordToken.AccessToken, &u.DiscordToken.RefreshToken, &tokenExpiry,
		&u.CreatedAt, &u.UpdatedAt, &lastActive); err != nil {
		return User{}, err
	}
	u.DiscordID = discordID.String
	u.Subscription.Tier = Tier(tier)
	u.Status = Status(status)
	u.Roles = []string(roles)
	if len(socials) > 0 {
		if err := json.Unmarshal(socials, &u.Socials); err != nil {
			return User{}, fmt.Errorf("decode socials: %w", err)
		}
	}
	u.MintWallets = map[string]string{}
	if len(wallets) > 0 {
		if err := json.Unmarshal(wallets, &u.MintWallets); err != nil {
			return User{}, fmt.Errorf("decode mint wallets: %w", err)
		}
	}
	if tokenExpiry.Valid {
		t := tokenExpiry.Time
		u.DiscordToken.ExpiresAt = &t
	}
	if lastActive.Valid {
		t := lastActive.Time
		u.LastActive = &t
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns s into a substring pattern with LIKE wildcards escaped.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
