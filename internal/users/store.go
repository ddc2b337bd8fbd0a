package users

import "context"

// Store is the storage gateway for user records. Every method is a single
// record unit of work; implementations rely on the backing store for
// atomicity and for enforcing discord id uniqueness.
type Store interface {
	Insert(ctx context.Context, in CreateInput) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByDiscordID(ctx context.Context, discordID string) (User, error)
	UpdateByID(ctx context.Context, id string, in UpdateInput) (User, error)
	DeleteByID(ctx context.Context, id string) error
	// List and Search return records in insertion order together with the
	// number of matches before paging.
	List(ctx context.Context, f Filter, p Page) ([]User, int, error)
	Search(ctx context.Context, query string, p Page) ([]User, int, error)
}
