package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/user"
)

const userColumns = "id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login"

var userOrdering = fieldSet("id", "name", "username", "email", "created_at", "updated_at", "last_login")

type userRow struct {
	ID           int         `db:"id"`
	Name         string      `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	IsActive     bool        `db:"is_active"`
	Roles        string      `db:"roles"` // comma separated
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     nullString(usr.Username),
		Email:        nullString(usr.Email),
		IsActive:     usr.IsActive,
		Roles:        strings.Join(usr.Roles, ","),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	var roles []string
	if r.Roles != "" {
		roles = strings.Split(r.Roles, ",")
	}
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive,
		Roles:        roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludeID int) error {
	var rows []userRow
	q := "SELECT " + userColumns + " FROM users WHERE (username = ? OR email = ?) AND id <> ? LIMIT 2"
	// NULL never equals NULL: empty values never match
	err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), nullString(username), nullString(email), excludeID)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if username != "" && r.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO users (name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login)
		VALUES (:name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`, toUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.ID = id
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var qb queryBuilder
	qb.search(filter.Search, "name", "username", "email")
	if len(filter.Roles) > 0 {
		// users with any role that starts with any of the provided roles
		conds := make([]string, 0, len(filter.Roles))
		args := make([]interface{}, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			conds = append(conds, "(',' || roles) LIKE ?")
			args = append(args, "%,"+role+"%")
		}
		qb.add("("+strings.Join(conds, " OR ")+")", args...)
	}
	if filter.IsActive != nil {
		qb.add("is_active = ?", *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		qb.add("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		qb.add("created_at <= ?", filter.CreatedTo.UTC())
	}

	q := "SELECT " + userColumns + " FROM users" + qb.String() +
		orderBy(ordering, userOrdering, core.DBOrdering{Field: "created_at"}, core.DBOrdering{Field: "id"})

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), qb.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) getUser(ctx context.Context, where string, args ...interface{}) (user.User, error) {
	var r userRow
	q := "SELECT " + userColumns + " FROM users WHERE " + where + " LIMIT 1"
	if err := repo.db.GetContext(ctx, &r, repo.db.Rebind(q), args...); err != nil {
		return user.User{}, trapNoRows(err, user.ErrNotFound, "finding user")
	}
	return r.user(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.getUser(ctx, "id = ?", id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if email == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, "email = ?", email)
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	if username == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, "username = ? OR email = ?", username, username)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := update(ctx, repo.db, `UPDATE users SET name = :name, username = :username, email = :email, is_active = :is_active,
		roles = :roles, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`, toUserRow(usr), user.ErrNotFound)
	if err != nil {
		if err == user.ErrNotFound {
			return user.User{}, err
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int) (int, error) {
	n, err := deleteIDs(ctx, repo.db, "users", ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return n, nil
}
