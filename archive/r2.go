// Package archive stores exported page snapshots in an S3-compatible
// bucket (Cloudflare R2 in production) and signs download links for them.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Roygautam8852/SyncSpace/config"
)

const keyPrefix = "rooms/"

var ErrBadKey = errors.New("not an archive key")

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type signer interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Archive struct {
	objects putter
	presign signer
	bucket  string
	now     func() time.Time
}

// Snapshot is the exported document.
type Snapshot struct {
	RoomID     string      `json:"roomId"`
	Page       config.Page `json:"page"`
	ExportedAt time.Time   `json:"exportedAt"`
}

func New(ctx context.Context, cfg config.Config) (*Archive, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.R2AccessKey,
			cfg.R2SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.R2Endpoint)
		o.UsePathStyle = true
	})

	return &Archive{
		objects: client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.R2Bucket,
		now:     time.Now,
	}, nil
}

func Key(roomID, pageID string, at time.Time) string {
	return fmt.Sprintf("%s%s/pages/%s/%d.json", keyPrefix, roomID, pageID, at.UnixNano())
}

// Export uploads one page and returns its object key.
func (a *Archive) Export(ctx context.Context, roomID string, page config.Page) (string, error) {
	now := a.now()
	body, err := json.Marshal(Snapshot{RoomID: roomID, Page: page, ExportedAt: now.UTC()})
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := Key(roomID, page.PageID, now)
	_, err = a.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

// DownloadURL signs a short-lived GET for an exported snapshot.
func (a *Archive) DownloadURL(ctx context.Context, key string) (string, error) {
	if !strings.HasPrefix(key, keyPrefix) || strings.Contains(key, "..") {
		return "", ErrBadKey
	}

	req, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = 1 * time.Hour
	})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}
