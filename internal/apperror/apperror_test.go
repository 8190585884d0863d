// GO TESTING BASICS:
// 1. Test files MUST end in _test.go — Go's tooling auto-discovers them
// 2. Test functions MUST start with "Test" and take *testing.T as the only param
// 3. Same package as the code being tested (so we can access unexported stuff)
// 4. Run with: go test ./internal/apperror/ -v  (-v = verbose, shows each test name)
package apperror

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "alice"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("username", "username is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("username", "user already exists"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("invalid username or password"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "Unavailable wraps ErrUnavailable",
			err:       Unavailable("storage unavailable", sql.ErrConnDone),
			target:    ErrUnavailable,
			wantMatch: true,
		},
		{
			name:      "Unavailable keeps its cause in the chain",
			err:       Unavailable("storage unavailable", sql.ErrConnDone),
			target:    sql.ErrConnDone,
			wantMatch: true,
		},
		{
			name:      "wrapped Conflict still matches",
			err:       fmt.Errorf("registering user: %w", Conflict("username", "user already exists")),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("user", "alice"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Conflict does NOT match ErrUnavailable",
			err:       Conflict("email", "email already in use"),
			target:    ErrUnavailable,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and key",
			err:         NotFound("user", "alice"),
			wantMessage: "user alice not found",
		},
		{
			name:        "Conflict uses custom message",
			err:         Conflict("username", "user already exists"),
			wantMessage: "user already exists",
		},
		{
			name:        "Unavailable hides the cause",
			err:         Unavailable("storage unavailable", errors.New("dial tcp: refused")),
			wantMessage: "storage unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("user", "7")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}

	// Without a cause the sentinel itself is returned.
	if unwrapped := Unavailable("down", nil).Unwrap(); unwrapped != ErrUnavailable {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrUnavailable)
	}
}

func TestFieldIsSet(t *testing.T) {
	if err := ValidationFailed("email", "Please enter a valid email"); err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
	if err := Conflict("username", "user already exists"); err.Field != "username" {
		t.Errorf("Field = %q, want %q", err.Field, "username")
	}
}
