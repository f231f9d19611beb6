package repository

import (
	"context"
	"errors"

	"github.com/sessionkit/identity-service/internal/domain/entity"
)

// Store outcomes form a closed set. Implementations translate their native
// error codes into these sentinels; anything unrecognized is passed through
// wrapped so callers can surface it as an internal failure instead of
// swallowing it.
var (
	ErrNotFound           = errors.New("record not found")
	ErrUniqueConflict     = errors.New("unique constraint violated")
	ErrMalformedReference = errors.New("malformed record reference")
)

// UserRepository defines the persistence operations for user identities.
// It owns error translation only and never mutates a User on its own.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetAll(ctx context.Context) ([]entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	Delete(ctx context.Context, id string) error
}
