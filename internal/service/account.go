// Package service holds the account business rules.
//
// AccountService sits between the HTTP handlers and the repositories:
//
//	UserHandler (HTTP) → AccountService (rules) → UserRepository (DB)
//	                   ↘ PasswordService (bcrypt)
//	                   ↘ PictureStore (S3 presign)
//
// KEY RESPONSIBILITIES:
//   - Validate input and return apperror kinds, never HTTP status codes
//   - Keep the check-then-create sequence safe under concurrent signups
//   - Decide who may rename which account
//   - Be easily testable with fake dependencies
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"

	"github.com/sakif/colab/internal/apperror"
	"github.com/sakif/colab/internal/auth"
	"github.com/sakif/colab/internal/model"
	"github.com/sakif/colab/internal/repository"
)

// Validation limits.
const (
	MinPasswordLen = 6
	MaxPasswordLen = auth.MaxPasswordLen
	MaxUsernameLen = 64
	MaxNameLen     = 100
)

// emailPattern is the address check the signup form has always used.
var emailPattern = regexp.MustCompile(`^([\w.%+-]+)@([\w-]+\.)+([\w]{2,})$`)

// PictureStore hands out upload slots for profile pictures.
type PictureStore interface {
	PresignUpload(ctx context.Context, userID int64) (model.PictureUpload, error)
}

// AccountService implements every account operation.
//
// DEPENDENCIES (injected via NewAccountService):
//   - users      repository.UserRepository  → account rows
//   - images     repository.ImageRepository → profile picture rows
//   - passwords  *auth.PasswordService      → bcrypt digests
//   - pictures   PictureStore               → presigned uploads (nil = disabled)
//   - logger     *slog.Logger               → business events
type AccountService struct {
	users     repository.UserRepository
	images    repository.ImageRepository
	passwords *auth.PasswordService
	pictures  PictureStore
	logger    *slog.Logger
}

func NewAccountService(
	users repository.UserRepository,
	images repository.ImageRepository,
	passwords *auth.PasswordService,
	pictures PictureStore,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		images:    images,
		passwords: passwords,
		pictures:  pictures,
		logger:    logger,
	}
}

// SignupInput is the create-account request. EmailConfirm is optional on
// the API; when present it must match Email.
type SignupInput struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	EmailConfirm string `json:"email_confirm,omitempty"`
	Password     string `json:"password"`
	FirstName    string `json:"firstname"`
	LastName     string `json:"lastname"`
}

// Validate runs the signup checks in the order the form reports them:
// password length, email shape, email confirmation, then the rest.
func (in SignupInput) Validate() error {
	return in.validate(false)
}

// ValidateForm is Validate for the signup page, where the confirmation
// field is always submitted and an empty one counts as a mismatch.
func (in SignupInput) ValidateForm() error {
	return in.validate(true)
}

func (in SignupInput) validate(requireConfirm bool) error {
	if len(in.Password) < MinPasswordLen {
		return apperror.ValidationFailed("password", "Password must be 6 characters or more")
	}
	if len(in.Password) > MaxPasswordLen {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be %d bytes or fewer", MaxPasswordLen))
	}
	if !emailPattern.MatchString(in.Email) {
		return apperror.ValidationFailed("email", "Please enter a valid email")
	}
	if (requireConfirm || in.EmailConfirm != "") && in.EmailConfirm != in.Email {
		return apperror.ValidationFailed("email_confirm", "Emails do not match")
	}
	if err := validateUsername("username", in.Username); err != nil {
		return err
	}
	if len(in.FirstName) > MaxNameLen || len(in.LastName) > MaxNameLen {
		return apperror.ValidationFailed("firstname",
			fmt.Sprintf("names must be %d characters or fewer", MaxNameLen))
	}
	return nil
}

func validateUsername(field, username string) error {
	if username == "" {
		return apperror.ValidationFailed(field, "username is required")
	}
	if len(username) > MaxUsernameLen {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("username must be %d characters or fewer", MaxUsernameLen))
	}
	return nil
}

// List returns every account in id order. Digests stay on the structs but
// are never serialized.
func (s *AccountService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: listing users: %w", err)
	}
	return users, nil
}

// CheckUsernameAvailable returns Conflict when username is taken.
func (s *AccountService) CheckUsernameAvailable(ctx context.Context, username string) error {
	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return apperror.Conflict("username", "user already exists")
	case errors.Is(err, apperror.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("service: checking username %s: %w", username, err)
	}
}

// Register creates an account.
//
// CHECK, THEN ATOMIC INSERT:
// CheckUsernameAvailable runs first so an obvious duplicate never pays for a
// bcrypt hash. It does not guarantee uniqueness on its own: two signups for
// the same name can both pass it. CreateIfUsernameAvailable is a single
// conditional INSERT, so exactly one of them wins and the other gets the
// same Conflict the pre-check would have returned.
func (s *AccountService) Register(ctx context.Context, in SignupInput) (*model.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if err := s.CheckUsernameAvailable(ctx, in.Username); err != nil {
		return nil, err
	}

	digest, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service: hashing password: %w", err)
	}

	user := &model.User{
		Username:       in.Username,
		Email:          in.Email,
		PasswordDigest: digest,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
	}
	if err := s.users.CreateIfUsernameAvailable(ctx, user); err != nil {
		return nil, fmt.Errorf("service: creating user %s: %w", in.Username, err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Authenticate is the local username/password strategy.
//
// An unknown username and a wrong password produce the same error, so the
// response doesn't reveal which usernames exist.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	invalid := apperror.Unauthorized("invalid username or password")
	if username == "" || password == "" {
		return nil, invalid
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service: loading user %s: %w", username, err)
	}

	if err := s.passwords.Verify(user.PasswordDigest, password); err != nil {
		s.logger.Debug("login rejected", slog.String("username", username))
		return nil, invalid
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return user, nil
}

// CurrentUser returns the session's account as a one-row slice, the shape
// the API has always returned. The lookup is by id: a token outlives its
// username once the account is renamed.
func (s *AccountService) CurrentUser(ctx context.Context, userID int64) ([]model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: fetching current user: %w", err)
	}
	return []model.User{*user}, nil
}

// Profile returns one row per picture, or a single row with an empty
// img_url when the user has none.
func (s *AccountService) Profile(ctx context.Context, userID int64) ([]model.Profile, error) {
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: fetching profile: %w", err)
	}
	return profile, nil
}

// Rename changes the username of account actorID. username names the
// account to rename and defaults to the actor's current username; naming
// anyone else is Forbidden.
func (s *AccountService) Rename(ctx context.Context, actorID int64, username, newName string) error {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("service: loading user %d: %w", actorID, err)
	}
	if username == "" {
		username = actor.Username
	}
	if username != actor.Username {
		return apperror.Forbidden("you can only rename your own account")
	}
	if err := validateUsername("newName", newName); err != nil {
		return err
	}
	if newName == username {
		return apperror.ValidationFailed("newName", "new username must differ from the current one")
	}

	if err := s.users.Rename(ctx, actorID, username, newName); err != nil {
		return fmt.Errorf("service: renaming %s: %w", username, err)
	}

	s.logger.Info("user renamed",
		slog.Int64("userID", actorID),
		slog.String("from", username),
		slog.String("to", newName),
	)
	return nil
}

// AddPicture records an already-hosted picture URL for userID.
func (s *AccountService) AddPicture(ctx context.Context, userID int64, imgURL string) (*model.Image, error) {
	u, err := url.Parse(imgURL)
	if imgURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperror.ValidationFailed("img_url", "img_url must be an http(s) URL")
	}

	img := &model.Image{UserID: userID, URL: imgURL}
	if err := s.images.AddImage(ctx, img); err != nil {
		return nil, fmt.Errorf("service: adding picture: %w", err)
	}

	s.logger.Info("picture added", slog.Int64("userID", userID), slog.Int64("imageID", img.ID))
	return img, nil
}

// PresignPicture reserves an object key and returns the presigned PUT the
// client uploads to. Nothing is recorded yet: once the upload succeeds the
// client confirms it by passing ImgURL to AddPicture, so a failed or
// abandoned upload never becomes the profile picture.
func (s *AccountService) PresignPicture(ctx context.Context, userID int64) (model.PictureUpload, error) {
	if s.pictures == nil {
		return model.PictureUpload{}, apperror.Unavailable("picture uploads are not configured", nil)
	}

	up, err := s.pictures.PresignUpload(ctx, userID)
	if err != nil {
		return model.PictureUpload{}, apperror.Unavailable("picture storage unavailable", err)
	}

	s.logger.Debug("picture upload presigned", slog.Int64("userID", userID), slog.String("key", up.Key))
	return up, nil
}
