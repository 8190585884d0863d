package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/colab/internal/apperror"
	"github.com/sakif/colab/internal/model"
)

// newTestDB opens a fresh in-memory database for one test.
// t.Cleanup closes it when the test (and its subtests) finish.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:       username,
		Email:          username + "@example.com",
		PasswordDigest: "$2a$04$not-a-real-digest-" + username,
		FirstName:      "First",
		LastName:       "Last",
	}
	if err := db.CreateIfUsernameAvailable(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateIfUsernameAvailable(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Username:       "alice",
		Email:          "alice@example.com",
		PasswordDigest: "$2a$04$digest",
		FirstName:      "Alice",
		LastName:       "Liddell",
	}

	if err := db.CreateIfUsernameAvailable(context.Background(), user); err != nil {
		t.Fatalf("CreateIfUsernameAvailable() error = %v", err)
	}

	// First row in an empty table.
	if user.ID != 1 {
		t.Errorf("user.ID = %d, want 1", user.ID)
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateIfUsernameAvailable() did not set user.CreatedAt")
	}
}

func TestCreateIfUsernameAvailable_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	duplicate := &model.User{
		Username:       "alice",
		Email:          "someone-else@example.com",
		PasswordDigest: "$2a$04$digest",
	}
	err := db.CreateIfUsernameAvailable(context.Background(), duplicate)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
	if err.Error() != "user already exists" {
		t.Errorf("message = %q, want %q", err.Error(), "user already exists")
	}

	// Only the first row exists.
	users, err := db.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 1 {
		t.Errorf("len(users) = %d, want 1", len(users))
	}
}

func TestCreateIfUsernameAvailable_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	other := &model.User{
		Username:       "bob",
		Email:          "alice@example.com",
		PasswordDigest: "$2a$04$digest",
	}
	err := db.CreateIfUsernameAvailable(context.Background(), other)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Field != "email" {
		t.Errorf("error field = %+v, want email", appErr)
	}
}

// =========================================================================
// READ TESTS
// =========================================================================

func TestList(t *testing.T) {
	db := newTestDB(t)

	users, err := db.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	// Empty table is an empty slice, not nil, so it encodes as [].
	if users == nil || len(users) != 0 {
		t.Errorf("List() on empty db = %#v, want empty slice", users)
	}

	createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")

	users, err = db.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len(users) = %d, want 2", len(users))
	}
	if users[0].Username != "alice" || users[1].Username != "bob" {
		t.Errorf("List() order = [%s %s], want [alice bob]", users[0].Username, users[1].Username)
	}
	if users[0].PasswordDigest == "" {
		t.Error("List() did not load password_digest")
	}
}

func TestGetByUsername(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "alice")

	got, err := db.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %d, want %d", got.ID, created.ID)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("Email = %q, want alice@example.com", got.Email)
	}
	if got.Bio != "" {
		t.Errorf("Bio = %q, want empty (NULL column)", got.Bio)
	}
}

func TestGetByUsername_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByUsername(context.Background(), "nobody")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGetByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "alice")

	got, err := db.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, want alice", got.Username)
	}

	_, err = db.GetByID(context.Background(), 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID(999) error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// RENAME TESTS
// =========================================================================

func TestRename(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "alice")

	if err := db.Rename(context.Background(), created.ID, "alice", "alicia"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	got, err := db.GetByUsername(context.Background(), "alicia")
	if err != nil {
		t.Fatalf("GetByUsername(new) error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("renamed row ID = %d, want %d", got.ID, created.ID)
	}

	_, err = db.GetByUsername(context.Background(), "alice")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("old username still resolves: err = %v", err)
	}
}

func TestRename_MissingUser(t *testing.T) {
	db := newTestDB(t)

	err := db.Rename(context.Background(), 42, "ghost", "spirit")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// A username now held by a different account must not be renamed through
// the old owner's id.
func TestRename_UsernameHeldByOtherID(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	if err := db.Rename(context.Background(), alice.ID, "alice", "alicia"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	other := &model.User{Username: "alice", Email: "mallory@example.com", PasswordDigest: "x"}
	if err := db.CreateIfUsernameAvailable(context.Background(), other); err != nil {
		t.Fatalf("re-registering alice: %v", err)
	}

	err := db.Rename(context.Background(), alice.ID, "alice", "hijacked")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	got, err := db.GetByID(context.Background(), other.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("other account renamed to %q", got.Username)
	}
}

func TestRename_TakenName(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")

	err := db.Rename(context.Background(), alice.ID, "alice", "bob")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// PROFILE TESTS
// =========================================================================

func TestGetProfile_NoImages(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "alice")

	profile, err := db.GetProfile(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if len(profile) != 1 {
		t.Fatalf("len(profile) = %d, want 1", len(profile))
	}
	if profile[0].Username != "alice" || profile[0].ImgURL != "" {
		t.Errorf("profile[0] = %+v, want alice with empty img_url", profile[0])
	}
}

func TestGetProfile_MissingUser(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetProfile(context.Background(), 42)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
