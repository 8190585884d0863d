// Package picture hands out presigned S3 upload URLs for profile pictures.
//
// The server never proxies image bytes. A client asks for an upload slot,
// PUTs the file straight to the bucket with the presigned URL, then posts
// the object's public URL to /user/images once the upload has succeeded. Any S3-compatible store works
// (AWS, MinIO) as long as Endpoint/PathStyle are set to match.
package picture

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/xid"

	"github.com/sakif/colab/internal/model"
)

// DefaultExpiry is how long a presigned upload URL stays valid.
const DefaultExpiry = 15 * time.Minute

// Config describes the bucket pictures are uploaded to.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // empty means AWS
	AccessKey string
	SecretKey string
	// PublicURL is the base the stored img_url is built from,
	// e.g. https://cdn.example.com. Empty derives it from Endpoint/Bucket.
	PublicURL string
	Expiry    time.Duration
}

// Store presigns PUT requests against one bucket.
type Store struct {
	presign *s3.PresignClient
	cfg     Config
	now     func() time.Time
}

// New builds the S3 client once; presigning itself is offline.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("picture: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultExpiry
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("picture: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO and most self-hosted stores don't do virtual-host buckets.
			o.UsePathStyle = true
		}
	})

	return &Store{
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

// ObjectKey is where a user's next picture goes: users/<id>/<xid>.
func ObjectKey(userID int64) string {
	return "users/" + strconv.FormatInt(userID, 10) + "/" + xid.New().String()
}

// PresignUpload returns a presigned PUT for a fresh object key.
func (s *Store) PresignUpload(ctx context.Context, userID int64) (model.PictureUpload, error) {
	key := ObjectKey(userID)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.Expiry))
	if err != nil {
		return model.PictureUpload{}, fmt.Errorf("picture: presigning %s: %w", key, err)
	}

	return model.PictureUpload{
		Key:       key,
		UploadURL: req.URL,
		ImgURL:    s.publicURL(key),
		ExpiresAt: s.now().Add(s.cfg.Expiry).UTC(),
	}, nil
}

func (s *Store) publicURL(key string) string {
	switch {
	case s.cfg.PublicURL != "":
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + key
	case s.cfg.Endpoint != "":
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + key
	default:
		return "https://" + s.cfg.Bucket + ".s3." + s.cfg.Region + ".amazonaws.com/" + key
	}
}
