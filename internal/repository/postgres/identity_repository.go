package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/subscription-sync/internal/repository"
	"github.com/Dhoini/subscription-sync/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// IdentityRepository ищет ID пользователя по email в profiles и auth.users
type IdentityRepository struct {
	db  DB
	log *logger.Logger
}

// NewIdentityRepository создает репозиторий поиска пользователей
func NewIdentityRepository(db DB, log *logger.Logger) *IdentityRepository {
	return &IdentityRepository{db: db, log: log}
}

// FindProfileUserID ищет пользователя по точному совпадению email в profiles
func (r *IdentityRepository) FindProfileUserID(ctx context.Context, email string) (string, error) {
	return r.findOne(ctx, `SELECT id::text FROM profiles WHERE email = $1 LIMIT 1`, email)
}

// FindAuthUserID ищет пользователя по точному совпадению email в auth.users
func (r *IdentityRepository) FindAuthUserID(ctx context.Context, email string) (string, error) {
	return r.findOne(ctx, `SELECT id::text FROM auth.users WHERE email = $1 LIMIT 1`, email)
}

func (r *IdentityRepository) findOne(ctx context.Context, query, email string) (string, error) {
	var userID string
	if err := r.db.QueryRow(ctx, query, email).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("failed to look up user by email: %w", err)
	}
	return userID, nil
}
