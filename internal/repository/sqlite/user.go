package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/sakif/colab/internal/apperror"
	"github.com/sakif/colab/internal/model"
)

const userColumns = `user_id, username, email, password_digest, firstname, lastname,
	COALESCE(user_bio, ''), created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordDigest,
		&u.FirstName,
		&u.LastName,
		&u.Bio,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns every user ordered by id. There is no pagination.
func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY user_id`,
	)
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

// CreateIfUsernameAvailable inserts the user unless the username is taken.
//
// ATOMIC CONDITIONAL INSERT:
// "ON CONFLICT(username) DO NOTHING" turns a duplicate into a no-op, and
// RETURNING only yields a row when something was actually inserted. So a
// duplicate shows up as sql.ErrNoRows, with no window between check and
// insert for a concurrent request to slip through.
//
// The email column is UNIQUE too but is not covered by the ON CONFLICT
// target, so a duplicate email still fails with a constraint error.
func (db *DB) CreateIfUsernameAvailable(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_digest, firstname, lastname, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(username) DO NOTHING
		 RETURNING user_id`,
		user.Username,
		user.Email,
		user.PasswordDigest,
		user.FirstName,
		user.LastName,
		now,
	).Scan(&user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.Conflict("username", "user already exists")
		}
		if constraintViolation(err) == uniqueViolation {
			return apperror.Conflict("email", "email already in use")
		}
		return unavailable("inserting user "+user.Username, err)
	}

	user.CreatedAt = now
	return nil
}

// GetByUsername looks a user up by exact username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`,
		username,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, unavailable("getting user "+username, err)
	}
	return u, nil
}

// GetByID looks a user up by primary key.
func (db *DB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	key := strconv.FormatInt(id, 10)

	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, unavailable("getting user "+key, err)
	}
	return u, nil
}

// Rename changes a username in place.
//
// The UNIQUE constraint on username does the uniqueness check; no separate
// lookup is made. The row is matched on id AND current username: zero rows
// means the account is gone or was renamed in the meantime, reported as
// NotFound.
func (db *DB) Rename(ctx context.Context, userID int64, username, newUsername string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET username = ? WHERE user_id = ? AND username = ?`,
		newUsername, userID, username,
	)
	if err != nil {
		if constraintViolation(err) == uniqueViolation {
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

// GetProfile joins the user with their images.
//
// LEFT JOIN keeps the user row even when they have no images; img_url is
// then NULL and COALESCE turns it into "". Zero rows means no such user.
func (db *DB) GetProfile(ctx context.Context, userID int64) ([]model.Profile, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT users.username, COALESCE(users.user_bio, ''), COALESCE(images.img_url, '')
		 FROM users
		 LEFT JOIN images ON images.user_id = users.user_id
		 WHERE users.user_id = ?
		 ORDER BY images.image_id`,
		userID,
	)
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
