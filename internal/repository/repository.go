package repository

import (
	"context"

	"github.com/sakif/colab/internal/model"
)

// UserRepository is the account store.
//
// Implementations translate driver errors into apperror kinds:
// NotFound for missing rows, Conflict for unique violations and
// Unavailable for everything else.
type UserRepository interface {
	List(ctx context.Context) ([]model.User, error)
	// CreateIfUsernameAvailable inserts user only when no row holds its
	// username, in a single statement. On success user.ID and
	// user.CreatedAt are set.
	CreateIfUsernameAvailable(ctx context.Context, user *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// Rename changes the username of the row matching both userID and
	// username, so a caller working from a stale username can't rename
	// whoever holds that name now.
	Rename(ctx context.Context, userID int64, username, newUsername string) error
	GetProfile(ctx context.Context, userID int64) ([]model.Profile, error)
}

type ImageRepository interface {
	AddImage(ctx context.Context, image *model.Image) error
}

// Store is what the server needs from a backing database.
type Store interface {
	UserRepository
	ImageRepository
	Close() error
}
