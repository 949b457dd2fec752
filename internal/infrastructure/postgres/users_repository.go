package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jmoiron/sqlx"
)

const pgUniqueViolation = "23505"

type UsersRepository struct {
	db *sqlx.DB
}

func NewUsersRepository(db *sqlx.DB) *UsersRepository {
	return &UsersRepository{db}
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.ErrUserExists
	}
	return err
}

func (r *UsersRepository) Create(user domain.User) error {
	dbUser := toUser(user)
	_, err := r.db.NamedExec(
		`INSERT INTO app_user (id, username, email, password, first_name, last_name, is_staff, is_active, is_superuser, date_joined, last_login)
		VALUES (:id, :username, :email, :password, :first_name, :last_name, :is_staff, :is_active, :is_superuser, :date_joined, :last_login)`,
		&dbUser,
	)
	return mapWriteError(err)
}

func (r *UsersRepository) Update(user domain.User) error {
	const q = `
	UPDATE
			app_user
	SET
			"username" = :username,
			"email" = :email,
			"password" = :password,
			"first_name" = :first_name,
			"last_name" = :last_name,
			"is_staff" = :is_staff,
			"is_active" = :is_active,
			"is_superuser" = :is_superuser,
			"date_joined" = :date_joined,
			"last_login" = :last_login
	WHERE
			id = :id
	`
	res, err := r.db.NamedExec(q, toUser(user))
	if err != nil {
		return mapWriteError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UsersRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM app_user WHERE id=$1", id)
	return err
}

func (r *UsersRepository) find(q string, args ...interface{}) (domain.User, error) {
	var user User
	if err := r.db.Get(&user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(user), nil
}

func (r *UsersRepository) GetByID(id string) (domain.User, error) {
	return r.find("SELECT * FROM app_user WHERE id=$1", id)
}

func (r *UsersRepository) GetByUsername(username string) (domain.User, error) {
	return r.find("SELECT * FROM app_user WHERE username=$1", username)
}

func (r *UsersRepository) GetByEmail(email string) (domain.User, error) {
	if email == "" {
		return domain.User{}, domain.ErrUserNotFound
	}
	var dbUsers []User
	if err := r.db.Select(&dbUsers, `SELECT * FROM app_user WHERE lower(email) = lower($1)`, email); err != nil {
		return domain.User{}, err
	}
	if len(dbUsers) == 0 {
		return domain.User{}, domain.ErrUserNotFound
	}
	if len(dbUsers) > 1 {
		return domain.User{}, fmt.Errorf("more than 1 account with email address %s", email)
	}
	return toDomainUser(dbUsers[0]), nil
}

func (r *UsersRepository) exists(q string, arg interface{}) (bool, error) {
	var exists bool
	err := r.db.QueryRow(q, arg).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	return exists, nil
}

func (r *UsersRepository) EmailExists(email string) (bool, error) {
	return r.exists("SELECT exists (SELECT 1 FROM app_user WHERE lower(email) = lower($1))", email)
}

func (r *UsersRepository) UsernameExists(username string) (bool, error) {
	return r.exists("SELECT exists (SELECT 1 FROM app_user WHERE username = $1)", username)
}

// whereClause builds filtering part of users query. Column names come only
// from validated query fields.
func whereClause(query domain.UsersQuery) (string, []interface{}) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	filters := domain.FilterableFields.Filter(func(f string) bool {
		_, ok := query.Filters[f]
		return ok
	})
	for _, field := range filters {
		conds = append(conds, fmt.Sprintf("%s = %s", field, arg(query.Filters[field])))
	}
	if len(query.SearchFields) > 0 {
		for _, term := range strings.Fields(query.Search) {
			pattern := arg("%" + escapeLike(term) + "%")
			termConds := make([]string, len(query.SearchFields))
			for i, field := range query.SearchFields {
				termConds[i] = fmt.Sprintf("%s ILIKE %s", field, pattern)
			}
			conds = append(conds, "("+strings.Join(termConds, " OR ")+")")
		}
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func orderClause(query domain.UsersQuery) string {
	ordering := query.Ordering
	if len(ordering) == 0 {
		ordering = domain.FieldNames{"username"}
	}
	items := make([]string, len(ordering))
	for i, o := range ordering {
		field, desc := domain.OrderingField(o)
		if desc {
			items[i] = field + " DESC"
		} else {
			items[i] = field + " ASC"
		}
	}
	return " ORDER BY " + strings.Join(items, ", ")
}

func listQuery(query domain.UsersQuery) (string, []interface{}) {
	where, args := whereClause(query)
	q := "SELECT * FROM app_user" + where + orderClause(query)
	if query.Limit > 0 {
		args = append(args, query.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if query.Offset > 0 {
		args = append(args, query.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return q, args
}

func countQuery(query domain.UsersQuery) (string, []interface{}) {
	where, args := whereClause(query)
	return "SELECT count(*) FROM app_user" + where, args
}

func (r *UsersRepository) List(query domain.UsersQuery) ([]domain.User, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	q, args := listQuery(query)
	var dbUsers []User
	if err := r.db.Select(&dbUsers, q, args...); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	users := make([]domain.User, len(dbUsers))
	for i, u := range dbUsers {
		users[i] = toDomainUser(u)
	}
	return users, nil
}

func (r *UsersRepository) Count(query domain.UsersQuery) (int, error) {
	if err := query.Validate(); err != nil {
		return 0, err
	}
	q, args := countQuery(query)
	var count int
	if err := r.db.Get(&count, q, args...); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}
