package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/user"
)

const userColumns = "id, first_name, last_name, username, email, role, is_active, created_at, updated_at"

type userRow struct {
	ID        string    `db:"id"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	Role      string    `db:"role"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:        r.ID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Username:  r.Username,
		Email:     r.Email,
		Role:      r.Role,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	usr.CreatedAt = usr.CreatedAt.UTC()
	usr.UpdatedAt = usr.UpdatedAt.UTC()

	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		usr.ID, usr.FirstName, usr.LastName, usr.Username, usr.Email, usr.Role, usr.IsActive, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var where conditions
	if filter.ID != "" {
		where.add("id = ?", filter.ID)
	}
	if filter.Email != "" {
		where.add("email = ?", filter.Email)
	}
	if len(where.clauses) == 0 {
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := get(ctx, repo.exec, &row, "SELECT "+userColumns+" FROM users"+where.String(), where.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return row.user(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var where conditions
	if filter.IsActive != nil {
		where.add("is_active = ?", *filter.IsActive)
	}
	if len(filter.Roles) > 0 {
		clause, args, err := sqlx.In("role IN (?)", filter.Roles)
		if err != nil {
			return nil, errors.Wrap(err, "filtering roles")
		}
		where.add(clause, args...)
	}

	var rows []userRow
	if err := selectAll(ctx, repo.exec, &rows, "SELECT "+userColumns+" FROM users", where, " ORDER BY first_name, last_name, username"); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.UpdatedAt = usr.UpdatedAt.UTC()
	err := execAffecting(ctx, repo.exec, user.ErrNotFound,
		"UPDATE users SET first_name = ?, last_name = ?, username = ?, email = ?, role = ?, is_active = ?, updated_at = ? WHERE id = ?",
		usr.FirstName, usr.LastName, usr.Username, usr.Email, usr.Role, usr.IsActive, usr.UpdatedAt, usr.ID,
	)
	if err != nil {
		return user.User{}, wrapExecErr(err, user.ErrNotFound, "updating user")
	}
	return usr, nil
}
