// Package client is a Go client for the /user JSON API.
//
// The server keeps the session in a cookie, so Client wraps an http.Client
// with a cookie jar: Login stores the token and every later call sends it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/sakif/colab/internal/model"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Kind    string // the "error" field, e.g. "conflict"; empty for text bodies
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// SignupRequest is the body of POST /user/new.
type SignupRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	EmailConfirm string `json:"email_confirm,omitempty"`
	Password     string `json:"password"`
	FirstName    string `json:"firstname"`
	LastName     string `json:"lastname"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("client: creating cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar, Timeout: 15 * time.Second},
	}, nil
}

// envelope is the {status, data, message} success shape.
type envelope[T any] struct {
	Status  string `json:"status"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

// Signup creates an account and returns its id. It does not log in.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (int64, error) {
	var out struct {
		UserID  int64  `json:"user_id"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/user/new", req, &out); err != nil {
		return 0, err
	}
	return out.UserID, nil
}

// Login authenticates and keeps the session cookie for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (model.PublicUser, error) {
	var out struct {
		User    model.PublicUser `json:"user"`
		Message string           `json:"message"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/user/login", body, &out); err != nil {
		return model.PublicUser{}, err
	}
	return out.User, nil
}

// Current returns the logged-in user's row.
func (c *Client) Current(ctx context.Context) (model.User, error) {
	var out envelope[[]model.User]
	if err := c.do(ctx, http.MethodGet, "/user/", nil, &out); err != nil {
		return model.User{}, err
	}
	if len(out.Data) == 0 {
		return model.User{}, &APIError{Status: http.StatusNotFound, Kind: "not_found", Message: "no current user"}
	}
	return out.Data[0], nil
}

func (c *Client) Profile(ctx context.Context) ([]model.Profile, error) {
	var out envelope[[]model.Profile]
	if err := c.do(ctx, http.MethodGet, "/user/profile", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) List(ctx context.Context) ([]model.User, error) {
	var out envelope[[]model.User]
	if err := c.do(ctx, http.MethodGet, "/user/all", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Rename changes the logged-in user's username. The server answers with a
// fresh session cookie, which the jar picks up.
func (c *Client) Rename(ctx context.Context, newName string) error {
	body := map[string]string{"newName": newName}
	return c.do(ctx, http.MethodPatch, "/user/", body, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/user/logout", nil, nil)
}

func (c *Client) AddImage(ctx context.Context, imgURL string) (model.Image, error) {
	var out envelope[model.Image]
	body := map[string]string{"img_url": imgURL}
	if err := c.do(ctx, http.MethodPost, "/user/images", body, &out); err != nil {
		return model.Image{}, err
	}
	return out.Data, nil
}

func (c *Client) PresignImage(ctx context.Context) (model.PictureUpload, error) {
	var out envelope[model.PictureUpload]
	if err := c.do(ctx, http.MethodPost, "/user/images/upload", nil, &out); err != nil {
		return model.PictureUpload{}, err
	}
	return out.Data, nil
}

// UploadPicture presigns a slot, PUTs body to it and then records the
// uploaded object as the profile picture. A failed upload records nothing.
func (c *Client) UploadPicture(ctx context.Context, body io.Reader, contentType string) (model.Image, error) {
	up, err := c.PresignImage(ctx)
	if err != nil {
		return model.Image{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, up.UploadURL, body)
	if err != nil {
		return model.Image{}, fmt.Errorf("client: building upload: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	// The presigned URL carries its own credentials; the session cookie
	// belongs to the API host only.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return model.Image{}, fmt.Errorf("client: uploading %s: %w", up.Key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Image{}, decodeError(resp)
	}

	return c.AddImage(ctx, up.ImgURL)
}

// do sends one request. in is JSON-encoded when non-nil; a 2xx JSON body
// is decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encoding %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: building %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decoding %s %s: %w", method, path, err)
	}
	return nil
}

// decodeError reads an {error, message} body, falling back to the raw text.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		apiErr.Kind = body.Error
		apiErr.Message = body.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
