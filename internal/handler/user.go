package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/colab/internal/apperror"
	"github.com/sakif/colab/internal/auth"
	"github.com/sakif/colab/internal/model"
	"github.com/sakif/colab/internal/service"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// UserHandler serves the /user JSON API.
//
// HANDLER RESPONSIBILITIES:
//   - HandleCreate   → POST  /user/new
//   - HandleLogin    → POST  /user/login
//   - HandleCurrent  → GET   /user/
//   - HandleLogout   → GET   /user/logout
//   - HandleList     → GET   /user/all
//   - HandleProfile  → GET   /user/profile
//   - HandleRename   → PATCH /user/
//   - HandleAddImage / HandlePresignImage → POST /user/images[/upload]
//
// Everything past create and login sits behind auth.RequireAuth, so the
// handlers can rely on a Session being in the context.
type UserHandler struct {
	accounts     *service.AccountService
	tokens       *auth.TokenService
	secureCookie bool
	logger       *slog.Logger
}

func NewUserHandler(
	accounts *service.AccountService,
	tokens *auth.TokenService,
	secureCookie bool,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		accounts:     accounts,
		tokens:       tokens,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// CreateResponse is the body of a successful POST /user/new.
type CreateResponse struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

// LoginResponse is the body of a successful POST /user/login.
type LoginResponse struct {
	User    model.PublicUser `json:"user"`
	Message string           `json:"message"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type renameRequest struct {
	Username string `json:"username"`
	NewName  string `json:"newName"`
}

type addImageRequest struct {
	ImgURL string `json:"img_url"`
}

// HandleCreate registers a new account.
//
// HTTP: POST /user/new
// REQUEST BODY: {"username","email","password","firstname","lastname"}
// RESPONSE:     {"user_id": 1, "message": "created user: alice"}
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CreateResponse{
		UserID:  user.ID,
		Message: "created user: " + user.Username,
	})
}

// HandleLogin runs the local strategy and starts a session.
//
// HTTP: POST /user/login
// REQUEST BODY: {"username": "alice", "password": "secret"}
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := startSession(w, h.tokens, h.secureCookie, user); err != nil {
		h.logger.Error("login: issuing token", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		User:    user.Public(),
		Message: user.Username + " is logged in",
	})
}

// HandleCurrent returns the session user's row.
//
// HTTP: GET /user/
func (h *UserHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)

	rows, err := h.accounts.CurrentUser(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, success(rows, "Fetched one user"))
}

// HandleLogout ends the session.
//
// HTTP: GET /user/logout
//
// The token's id goes on the revocation list, so the same token is rejected
// even by a client that ignores the expired cookie.
func (h *UserHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	h.tokens.Revoke(sess)
	auth.ClearTokenCookie(w, h.secureCookie)

	h.logger.Info("user logged out", slog.Int64("userID", sess.UserID))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("log out success"))
}

// HandleList returns every account.
//
// HTTP: GET /user/all
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, success(users, "Retrieved ALL users"))
}

// HandleProfile returns the session user's profile rows.
//
// HTTP: GET /user/profile
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)

	profile, err := h.accounts.Profile(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, success(profile, "Fetched current user's profile"))
}

// HandleRename changes the session user's username.
//
// HTTP: PATCH /user/
// REQUEST BODY: {"username": "alice", "newName": "alicia"}  (username optional)
//
// The old token names the old username, so a fresh one is issued and the
// old one revoked. The new token is signed before the rename commits; a
// signing failure must not leave a renamed account behind a 500.
func (h *UserHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)

	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, next, err := h.tokens.Generate(auth.Identity{UserID: sess.UserID, Username: req.NewName})
	if err != nil {
		h.logger.Error("rename: issuing token", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if err := h.accounts.Rename(r.Context(), sess.UserID, req.Username, req.NewName); err != nil {
		writeError(w, err)
		return
	}

	auth.SetTokenCookie(w, token, next.ExpiresAt, h.secureCookie)
	h.tokens.Revoke(sess)

	writeJSON(w, http.StatusOK, success(nil, "Changed one user"))
}

// HandleAddImage records a picture URL for the session user.
//
// HTTP: POST /user/images
// REQUEST BODY: {"img_url": "https://..."}
func (h *UserHandler) HandleAddImage(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)

	var req addImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	img, err := h.accounts.AddPicture(r.Context(), sess.UserID, req.ImgURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, success(img, "Added profile picture"))
}

// HandlePresignImage hands out a presigned S3 upload slot. The picture is
// not recorded until the client posts the returned img_url to /user/images.
//
// HTTP: POST /user/images/upload
func (h *UserHandler) HandlePresignImage(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)

	up, err := h.accounts.PresignPicture(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, success(up, "Upload URL issued"))
}

// HandleHealth is the liveness probe.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON reads one JSON object from the body into v.
//
// JSON DECODING:
// json.NewDecoder streams from r.Body; MaxBytesReader stops a client from
// making us buffer an arbitrarily large body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

// startSession issues a token for user and sets the session cookie.
func startSession(w http.ResponseWriter, tokens *auth.TokenService, secure bool, user *model.User) error {
	token, sess, err := tokens.Generate(auth.Identity{UserID: user.ID, Username: user.Username})
	if err != nil {
		return fmt.Errorf("handler: starting session: %w", err)
	}
	auth.SetTokenCookie(w, token, sess.ExpiresAt, secure)
	return nil
}

// mustSession reads the Session RequireAuth stored. Only call it on routes
// behind RequireAuth.
func mustSession(r *http.Request) auth.Session {
	sess, _ := auth.SessionFromContext(r.Context())
	return sess
}
