package handler

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sakif/colab/internal/apperror"
	"github.com/sakif/colab/internal/auth"
	"github.com/sakif/colab/internal/model"
	"github.com/sakif/colab/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageHandler serves the server-rendered UI: login/signup forms on the
// homepage and the profile page.
//
// TEMPLATE COMPOSITION:
// base.html defines the page shell with a {{template "content" .}}
// placeholder. Each page file defines its own "content", so every page is
// parsed as its own set together with base.html; parsing them all into one
// set would make the last "content" win.
type PageHandler struct {
	accounts     *service.AccountService
	tokens       *auth.TokenService
	secureCookie bool
	pages        map[string]*template.Template
	logger       *slog.Logger
}

// NewPageHandler parses the embedded templates once at startup.
func NewPageHandler(
	accounts *service.AccountService,
	tokens *auth.TokenService,
	secureCookie bool,
	logger *slog.Logger,
) (*PageHandler, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"home", "signup", "profile"} {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s template: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &PageHandler{
		accounts:     accounts,
		tokens:       tokens,
		secureCookie: secureCookie,
		pages:        pages,
		logger:       logger,
	}, nil
}

// pageForm echoes submitted values back into a re-rendered form.
// Passwords are never echoed.
type pageForm struct {
	Username     string
	Email        string
	EmailConfirm string
	FirstName    string
	LastName     string
}

type pageData struct {
	Title   string
	Error   string
	Form    pageForm
	User    *model.User
	Picture string
	Bio     string
}

// HandleHome shows the login form, or sends a logged-in visitor to their
// profile.
//
// HTTP: GET /
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	h.render(w, http.StatusOK, "home", pageData{Title: "Log in"})
}

// HandleSignupPage shows the signup form.
//
// HTTP: GET /signup
func (h *PageHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	h.render(w, http.StatusOK, "signup", pageData{Title: "Sign up"})
}

// HandleLogin submits the login form.
//
// HTTP: POST /login (form: loginUsername, loginPassword)
//
// A failed login re-renders the form with the message and empty fields.
func (h *PageHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, "home", "Log in", pageForm{}, apperror.ValidationFailed("form", "invalid form"))
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), r.PostFormValue("loginUsername"), r.PostFormValue("loginPassword"))
	if err != nil {
		h.renderError(w, "home", "Log in", pageForm{}, err)
		return
	}

	if err := startSession(w, h.tokens, h.secureCookie, user); err != nil {
		h.renderError(w, "home", "Log in", pageForm{}, err)
		return
	}
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// HandleSignup submits the signup form.
//
// HTTP: POST /signup
//
// Field checks run in form order (password, email, confirmation) before
// the account is created; the new account is logged straight in.
func (h *PageHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, "signup", "Sign up", pageForm{}, apperror.ValidationFailed("form", "invalid form"))
		return
	}

	in := service.SignupInput{
		Username:     r.PostFormValue("username"),
		Email:        r.PostFormValue("email"),
		EmailConfirm: r.PostFormValue("email_confirm"),
		Password:     r.PostFormValue("password"),
		FirstName:    r.PostFormValue("firstname"),
		LastName:     r.PostFormValue("lastname"),
	}
	form := pageForm{
		Username:     in.Username,
		Email:        in.Email,
		EmailConfirm: in.EmailConfirm,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	}

	if err := in.ValidateForm(); err != nil {
		h.renderError(w, "signup", "Sign up", form, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		h.renderError(w, "signup", "Sign up", form, err)
		return
	}

	if err := startSession(w, h.tokens, h.secureCookie, user); err != nil {
		h.renderError(w, "signup", "Sign up", form, err)
		return
	}
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// HandleProfile renders the session user's profile.
//
// HTTP: GET /profile
func (h *PageHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	rows, err := h.accounts.CurrentUser(r.Context(), sess.UserID)
	if err == nil {
		var profile []model.Profile
		profile, err = h.accounts.Profile(r.Context(), sess.UserID)
		if err == nil {
			data := pageData{Title: rows[0].Username, User: &rows[0]}
			for _, p := range profile {
				data.Bio = p.Bio
				if p.ImgURL != "" {
					data.Picture = p.ImgURL // latest wins
				}
			}
			h.render(w, http.StatusOK, "profile", data)
			return
		}
	}

	// A valid token for an account that no longer exists is treated as
	// logged out.
	if errors.Is(err, apperror.ErrNotFound) {
		auth.ClearTokenCookie(w, h.secureCookie)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderError(w, "home", "Log in", pageForm{}, err)
}

// HandleLogout revokes the session and returns to the homepage.
//
// HTTP: POST /logout
func (h *PageHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		h.tokens.Revoke(sess)
	}
	auth.ClearTokenCookie(w, h.secureCookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PageHandler) renderError(w http.ResponseWriter, page, title string, form pageForm, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("page request failed", slog.String("page", page), slog.String("error", err.Error()))
	}
	h.render(w, status, page, pageData{Title: title, Error: body.Message, Form: form})
}

func (h *PageHandler) render(w http.ResponseWriter, status int, page string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.pages[page].ExecuteTemplate(w, "base", data); err != nil {
		// Headers are already sent; all we can do is log.
		h.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}
