package inmemdb

import (
	"context"

	"github.com/learntube/backend/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, r := range repo.db.table {
		if r.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	repo.db.seq++
	repo.db.table[usr.ID] = &userRow{row: row{seq: repo.db.seq}, User: usr}
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	if filter.ID == "" && filter.Email == "" {
		return user.User{}, user.ErrNotFound
	}

	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, r := range repo.db.table {
		if filter.ID != "" && r.ID != filter.ID {
			continue
		}
		if filter.Email != "" && r.Email != filter.Email {
			continue
		}
		return r.User, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsersByID(_ context.Context, ids ...string) (map[string]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make(map[string]user.User, len(ids))
	for _, id := range ids {
		if r, ok := repo.db.table[id]; ok {
			users[id] = r.User
		}
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	r, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	r.Name = usr.Name
	r.PasswordHash = usr.PasswordHash
	return r.User, nil
}
