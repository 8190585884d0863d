package postgres

import (
	"context"
	"strconv"

	"github.com/sakif/colab/internal/apperror"
	"github.com/sakif/colab/internal/model"
)

func (db *DB) AddImage(ctx context.Context, image *model.Image) error {
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO images (user_id, img_url)
		 VALUES ($1, $2)
		 RETURNING image_id, created_at`,
		image.UserID, image.URL,
	).Scan(&image.ID, &image.CreatedAt)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return apperror.NotFound("user", strconv.FormatInt(image.UserID, 10))
		}
		return unavailable("inserting image", err)
	}
	return nil
}
