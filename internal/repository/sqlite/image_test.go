package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/colab/internal/apperror"
	"github.com/sakif/colab/internal/model"
)

func TestAddImage(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	urls := []string{
		"https://cdn.example.com/users/1/a.png",
		"https://cdn.example.com/users/1/b.png",
	}
	for _, u := range urls {
		img := &model.Image{UserID: user.ID, URL: u}
		if err := db.AddImage(context.Background(), img); err != nil {
			t.Fatalf("AddImage(%s) error = %v", u, err)
		}
		if img.ID == 0 {
			t.Error("AddImage() did not set image.ID")
		}
	}

	// One profile row per image, in insertion order.
	profile, err := db.GetProfile(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if len(profile) != len(urls) {
		t.Fatalf("len(profile) = %d, want %d", len(profile), len(urls))
	}
	for i, p := range profile {
		if p.ImgURL != urls[i] {
			t.Errorf("profile[%d].ImgURL = %q, want %q", i, p.ImgURL, urls[i])
		}
		if p.Username != "alice" {
			t.Errorf("profile[%d].Username = %q, want alice", i, p.Username)
		}
	}
}

func TestAddImage_MissingUser(t *testing.T) {
	db := newTestDB(t)

	err := db.AddImage(context.Background(), &model.Image{UserID: 77, URL: "https://x/y.png"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
