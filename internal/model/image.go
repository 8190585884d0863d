package model

import "time"

// Image is a profile picture attached to a user.
type Image struct {
	ID        int64     `json:"image_id"  db:"image_id"`
	UserID    int64     `json:"user_id"   db:"user_id"`
	URL       string    `json:"img_url"   db:"img_url"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Profile is one row of the profile query: the user joined with one of
// their images. A user without images yields a single row with an empty
// ImgURL.
type Profile struct {
	Username string `json:"username"`
	Bio      string `json:"user_bio"`
	ImgURL   string `json:"img_url"`
}

// PictureUpload describes a presigned upload slot for a new profile picture.
// The client PUTs the file to UploadURL; ImgURL is where it will be served.
type PictureUpload struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	ImgURL    string    `json:"img_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
