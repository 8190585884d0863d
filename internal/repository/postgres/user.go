package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/sakif/colab/internal/apperror"
	"github.com/sakif/colab/internal/model"
)

const userColumns = `user_id, username, email, password_digest, firstname, lastname, COALESCE(user_bio, ''), created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordDigest,
		&u.FirstName, &u.LastName, &u.Bio, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY user_id`)
	if err != nil {
		return nil, unavailable("listing users", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, unavailable("scanning user row", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterating users", err)
	}
	return users, nil
}

// CreateIfUsernameAvailable uses ON CONFLICT (username) DO NOTHING so the
// duplicate check and the insert are one statement. No returned row means
// the username was taken; a 23505 on email means the address is in use.
func (db *DB) CreateIfUsernameAvailable(ctx context.Context, user *model.User) error {
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_digest, firstname, lastname)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (username) DO NOTHING
		 RETURNING user_id, created_at`,
		user.Username, user.Email, user.PasswordDigest, user.FirstName, user.LastName,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.Conflict("username", "user already exists")
		}
		if pgCode(err) == codeUniqueViolation {
			return apperror.Conflict("email", "email already in use")
		}
		return unavailable("inserting user "+user.Username, err)
	}
	return nil
}

func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, unavailable("getting user "+username, err)
	}
	return u, nil
}

func (db *DB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	key := strconv.FormatInt(id, 10)
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, unavailable("getting user "+key, err)
	}
	return u, nil
}

// Rename reports NotFound when no row matched both the id and the old
// username.
func (db *DB) Rename(ctx context.Context, userID int64, username, newUsername string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET username = $1 WHERE user_id = $2 AND username = $3`, newUsername, userID, username)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return apperror.Conflict("newName", "user already exists")
		}
		return unavailable("renaming user "+username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("renaming user "+username, err)
	}
	if n == 0 {
		return apperror.NotFound("user", username)
	}
	return nil
}

func (db *DB) GetProfile(ctx context.Context, userID int64) ([]model.Profile, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT users.username, COALESCE(users.user_bio, ''), COALESCE(images.img_url, '')
		 FROM users
		 LEFT JOIN images ON images.user_id = users.user_id
		 WHERE users.user_id = $1
		 ORDER BY images.image_id`, userID)
	if err != nil {
		return nil, unavailable("loading profile", err)
	}
	defer rows.Close()

	var profile []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.Username, &p.Bio, &p.ImgURL); err != nil {
			return nil, unavailable("scanning profile row", err)
		}
		profile = append(profile, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterating profile rows", err)
	}
	if len(profile) == 0 {
		return nil, apperror.NotFound("user", strconv.FormatInt(userID, 10))
	}
	return profile, nil
}
