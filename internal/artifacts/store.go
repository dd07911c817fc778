// Package artifacts persists finalized interview recordings to object storage
// with bounded retry.
package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	// FolderVideos is the object prefix for combined recordings.
	FolderVideos = "videos"
	// FolderAnswers is the object prefix for audio-only recordings.
	FolderAnswers = "answers"

	// VideoContentType and AudioContentType match what the recorders produce.
	VideoContentType = "video/webm"
	AudioContentType = "audio/webm"
)

// VideoKey returns the object key videos/{sessionID}/{questionNumber}/video.webm.
func VideoKey(sessionID string, questionNumber int) string {
	return path.Join(FolderVideos, sessionID, strconv.Itoa(questionNumber), "video.webm")
}

// AudioKey returns the object key answers/{sessionID}/{questionNumber}/audio.webm.
func AudioKey(sessionID string, questionNumber int) string {
	return path.Join(FolderAnswers, sessionID, strconv.Itoa(questionNumber), "audio.webm")
}

// BlobStore persists a blob at a key. Put must overwrite an existing object so
// a retried upload after a partial failure is safe.
type BlobStore interface {
	Put(ctx context.Context, bucket, key, contentType string, data []byte) error
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	VideosBucket    string
	AnswersBucket   string
}

// S3Store is the S3-backed BlobStore. PutObject semantics are overwrite, which
// gives the required upsert behavior for free.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3Store creates an S3 client using credentials from config or env.
func NewS3Store(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Store, error) {
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
	} else if logger != nil {
		logger.Warn("S3 store using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return &S3Store{client: client, uploader: uploader, cfg: cfg, logger: logger}, nil
}

// VideosBucket returns the bucket for combined recordings.
func (s *S3Store) VideosBucket() string { return s.cfg.VideosBucket }

// AnswersBucket returns the bucket for audio-only recordings.
func (s *S3Store) AnswersBucket() string { return s.cfg.AnswersBucket }

// Put uploads the blob, overwriting any existing object at the key. Empty
// blobs are valid inputs (a question answered with no device stream).
func (s *S3Store) Put(ctx context.Context, bucket, key, contentType string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}
