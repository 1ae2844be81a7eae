package pgrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/learntube/backend/core/user"
)

const userColumns = "id, name, email, role, password_hash, created_at"

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.DB}
}

func (repo userRepository) toRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
	}
}

func (repo userRepository) fromRow(r userRow) user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         r.Role,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :name, :email, :role, :password_hash, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, repo.toRow(usr)); err != nil {
		if code, constraint := pqError(err); code == uniqueViolation && constraint == "users_email_key" {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	if filter.ID == "" && filter.Email == "" {
		return user.User{}, user.ErrNotFound
	}
	q := `SELECT ` + userColumns + ` FROM users
		WHERE ($1::text = '' OR id = $1) AND ($2::text = '' OR email = $2)
		LIMIT 1`

	var r userRow
	if err := repo.db.GetContext(ctx, &r, q, filter.ID, filter.Email); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return repo.fromRow(r), nil
}

func (repo *userRepository) QueryUsersByID(ctx context.Context, ids ...string) (map[string]user.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make(map[string]user.User, len(rows))
	for _, r := range rows {
		users[r.ID] = repo.fromRow(r)
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET name = $2, password_hash = $3 WHERE id = $1
		RETURNING ` + userColumns

	var r userRow
	if err := repo.db.GetContext(ctx, &r, q, usr.ID, usr.Name, usr.PasswordHash); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return repo.fromRow(r), nil
}
