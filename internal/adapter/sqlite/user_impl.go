package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/user/webmonitor/internal/entity"
	"github.com/user/webmonitor/internal/repository"
)

const placeholderOwnerName = "WebMonitor"

// UserRepoImpl implements repository.UserRepository on SQLite.
type UserRepoImpl struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepo(db *sql.DB) *UserRepoImpl {
	return &UserRepoImpl{db: db, now: time.Now}
}

func (r *UserRepoImpl) Create(ctx context.Context, u *entity.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		u.ID.String(), u.Name, u.Email, toMillis(u.CreatedAt),
	)
	return err
}

func (r *UserRepoImpl) DefaultOwner(ctx context.Context, fallbackEmail string) (*entity.User, error) {
	u, err := r.earliest(ctx)
	if !errors.Is(err, repository.ErrNotFound) {
		return u, err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?) ON CONFLICT (email) DO NOTHING`,
		uuid.NewString(), placeholderOwnerName, fallbackEmail, toMillis(r.now()),
	)
	if err != nil {
		return nil, err
	}
	return r.earliest(ctx)
}

func (r *UserRepoImpl) earliest(ctx context.Context) (*entity.User, error) {
	var (
		u       entity.User
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users ORDER BY created_at, id LIMIT 1`,
	).Scan(&u.ID, &u.Name, &u.Email, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

var _ repository.UserRepository = (*UserRepoImpl)(nil)
