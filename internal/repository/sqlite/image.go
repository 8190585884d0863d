package sqlite

import (
	"context"
	"strconv"
	"time"

	"github.com/sakif/colab/internal/apperror"
	"github.com/sakif/colab/internal/model"
)

// AddImage stores a picture URL for a user. A user_id that does not exist
// trips the foreign key and is reported as NotFound.
func (db *DB) AddImage(ctx context.Context, image *model.Image) error {
	now := time.Now().UTC()

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO images (user_id, img_url, created_at)
		 VALUES (?, ?, ?)
		 RETURNING image_id`,
		image.UserID,
		image.URL,
		now,
	).Scan(&image.ID)
	if err != nil {
		if constraintViolation(err) == foreignKeyViolation {
			return apperror.NotFound("user", strconv.FormatInt(image.UserID, 10))
		}
		return unavailable("inserting image", err)
	}

	image.CreatedAt = now
	return nil
}
