package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/webmonitor/internal/entity"
	"github.com/user/webmonitor/internal/repository"
)

const placeholderOwnerName = "WebMonitor"

// UserRepoImpl provides a concrete implementation for the UserRepository interface using PostgreSQL.
type UserRepoImpl struct {
	db *pgxpool.Pool
}

// NewUserRepo creates a new instance of UserRepoImpl.
func NewUserRepo(db *pgxpool.Pool) *UserRepoImpl {
	return &UserRepoImpl{db: db}
}

// Create inserts a user; CreatedAt is filled from the database.
func (r *UserRepoImpl) Create(ctx context.Context, u *entity.User) error {
	query := `INSERT INTO users (id, name, email) VALUES ($1, $2, $3) RETURNING created_at;`
	return r.db.QueryRow(ctx, query, u.ID, u.Name, u.Email).Scan(&u.CreatedAt)
}

// DefaultOwner returns the earliest user, inserting a placeholder on an empty table.
func (r *UserRepoImpl) DefaultOwner(ctx context.Context, fallbackEmail string) (*entity.User, error) {
	u, err := r.earliest(ctx)
	if !errors.Is(err, repository.ErrNotFound) {
		return u, err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO users (id, name, email) VALUES ($1, $2, $3) ON CONFLICT (email) DO NOTHING;`,
		uuid.New(), placeholderOwnerName, fallbackEmail,
	)
	if err != nil {
		return nil, err
	}
	return r.earliest(ctx)
}

func (r *UserRepoImpl) earliest(ctx context.Context) (*entity.User, error) {
	query := `SELECT id, name, email, created_at FROM users ORDER BY created_at, id LIMIT 1;`
	var u entity.User
	err := r.db.QueryRow(ctx, query).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

var _ repository.UserRepository = (*UserRepoImpl)(nil)
