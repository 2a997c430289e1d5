package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/fitauth/internal/common"
	"github.com/dmitrijs2005/fitauth/internal/dbx"
	"github.com/dmitrijs2005/fitauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

const userColumns = `id, full_name, email, password_hash, is_verified, verification_token,
		reset_password_token, reset_password_expires, profile_pic, profile,
		created_at, updated_at, last_login`

type scanner interface {
	Scan(dest ...any) error
}

// PostgresRepository stores users in PostgreSQL. The unique index on
// lower(email) is the authority on duplicate registrations.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	profile, err := json.Marshal(user.Profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}

	query :=
		`INSERT INTO users (full_name, email, password_hash, is_verified, verification_token, profile_pic, profile)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at
		 `

	u := user.Clone()
	u.Email = strings.ToLower(u.Email)

	err = r.db.QueryRowContext(ctx, query,
		u.FullName, u.Email, u.PasswordHash, u.IsVerified, u.VerificationToken, u.ProfilePic, string(profile),
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE lower(email) = lower($1)
		 `
	return r.findOne(ctx, r.db, query, email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE id = $1
		 `
	return r.findOne(ctx, r.db, query, id)
}

func (r *PostgresRepository) FindByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE verification_token = $1
		 `
	return r.findOne(ctx, r.db, query, token)
}

func (r *PostgresRepository) UpdateFields(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.FullName != nil {
		set("full_name", *patch.FullName)
	}
	if patch.Profile != nil {
		profile, err := json.Marshal(patch.Profile)
		if err != nil {
			return nil, fmt.Errorf("encode profile: %w", err)
		}
		set("profile", string(profile))
	}
	if patch.ProfilePic != nil {
		set("profile_pic", *patch.ProfilePic)
	}
	if patch.PasswordHash != nil {
		set("password_hash", *patch.PasswordHash)
	}
	if patch.LastLogin != nil {
		set("last_login", *patch.LastLogin)
	}
	if patch.ResetPasswordToken != nil {
		set("reset_password_token", *patch.ResetPasswordToken)
	}
	if patch.ResetPasswordExpires != nil {
		set("reset_password_expires", *patch.ResetPasswordExpires)
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s
		 WHERE id = $%d
		 RETURNING %s`, strings.Join(sets, ", "), len(args), userColumns)

	return r.findOne(ctx, r.db, query, args...)
}

func (r *PostgresRepository) ConsumeVerificationToken(ctx context.Context, token string) (*models.User, error) {
	query := `UPDATE users SET is_verified = TRUE, verification_token = NULL, updated_at = now()
		 WHERE verification_token = $1
		 RETURNING ` + userColumns
	return r.findOne(ctx, r.db, query, token)
}

func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, token string, now time.Time, newHash string) (*models.User, error) {
	var (
		user    *models.User
		expired bool
	)

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var (
			id      string
			expires sql.NullTime
		)
		err := tx.QueryRowContext(ctx,
			`SELECT id, reset_password_expires FROM users
			 WHERE reset_password_token = $1
			 FOR UPDATE`, token).Scan(&id, &expires)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}

		if !expires.Valid || !now.Before(expires.Time) {
			expired = true
			_, err := tx.ExecContext(ctx,
				`UPDATE users SET reset_password_token = NULL, reset_password_expires = NULL, updated_at = now()
				 WHERE id = $1`, id)
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
			return nil
		}

		user, err = r.findOne(ctx, tx,
			`UPDATE users SET password_hash = $1, reset_password_token = NULL, reset_password_expires = NULL, updated_at = now()
			 WHERE id = $2
			 RETURNING `+userColumns, newHash, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, common.ErrTokenExpired
	}

	return user, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, email`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return out, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) findOne(ctx context.Context, db dbx.DBTX, query string, args ...any) (*models.User, error) {
	user, err := scanUser(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u       models.User
		expires sql.NullTime
		login   sql.NullTime
		verify  sql.NullString
		reset   sql.NullString
		pic     sql.NullString
		profile []byte
	)

	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.IsVerified, &verify,
		&reset, &expires, &pic, &profile, &u.CreatedAt, &u.UpdatedAt, &login)
	if err != nil {
		return nil, err
	}

	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &u.Profile); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
	}
	if verify.Valid {
		u.VerificationToken = &verify.String
	}
	if reset.Valid {
		u.ResetPasswordToken = &reset.String
	}
	if expires.Valid {
		u.ResetPasswordExpires = &expires.Time
	}
	if pic.Valid {
		u.ProfilePic = &pic.String
	}
	if login.Valid {
		u.LastLogin = &login.Time
	}

	return &u, nil
}
