package inmemdb

import (
	"context"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/user"
)

var userFields = map[string]comparator[user.User]{
	"id":         func(a, b user.User) int { return cmpInt(a.ID, b.ID) },
	"name":       func(a, b user.User) int { return cmpString(a.Name, b.Name) },
	"username":   func(a, b user.User) int { return cmpString(a.Username, b.Username) },
	"email":      func(a, b user.User) int { return cmpString(a.Email, b.Email) },
	"created_at": func(a, b user.User) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b user.User) int { return cmpTime(a.UpdatedAt, b.UpdatedAt) },
	"last_login": func(a, b user.User) int { return cmpTime(a.LastLogin, b.LastLogin) },
}

type userRepository struct {
	db *table[user.User]
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludeID int) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.all() {
		if usr.ID == excludeID {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr.ID = repo.db.nextID()
	repo.db.rows[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0, len(repo.db.rows))
	for _, usr := range repo.db.all() {
		if filter.Search != "" && !containsAny(filter.Search, usr.Name, usr.Username, usr.Email) {
			continue
		}
		if filter.Roles != nil && !hasAnyRole(usr, filter.Roles) {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		users = append(users, usr)
	}
	orderBy(users, withDefault(ordering, core.DBOrdering{Field: "created_at"}, core.DBOrdering{Field: "id"}), userFields)
	return users, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id int) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.rows[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if email != "" {
		for _, usr := range repo.db.all() {
			if usr.Email == email {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsernameOrEmail(_ context.Context, username string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if username != "" {
		for _, usr := range repo.db.all() {
			if usr.Username == username || usr.Email == username {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.rows[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...int) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.db.deleteIDs(ids), nil
}

// hasAnyRole reports whether one of the user roles starts with one of `roles` (eg. "admin:" matches "admin:owner").
func hasAnyRole(usr user.User, roles []string) bool {
	for _, role := range roles {
		if usr.RoleStartsWith(role) {
			return true
		}
	}
	return false
}
