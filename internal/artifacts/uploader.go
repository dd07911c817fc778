package artifacts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mocknhire/interview-gateway/internal/models"
)

const (
	// MaxAttempts bounds upload retries per artifact.
	MaxAttempts = 3
	// RetryDelay is the fixed wait between attempts.
	RetryDelay = time.Second
)

// Uploader pushes a question's two artifacts to object storage. Both are
// uploaded concurrently; each retries independently; the caller gets a single
// aggregated error if either exhausts its attempts.
type Uploader struct {
	store         BlobStore
	videosBucket  string
	answersBucket string
	attempts      int
	delay         time.Duration
	log           *zap.Logger
}

// NewUploader creates an uploader over the blob store.
func NewUploader(store BlobStore, videosBucket, answersBucket string, log *zap.Logger) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{
		store:         store,
		videosBucket:  videosBucket,
		answersBucket: answersBucket,
		attempts:      MaxAttempts,
		delay:         RetryDelay,
		log:           log,
	}
}

// SetRetryPolicy overrides attempts and delay (tests).
func (u *Uploader) SetRetryPolicy(attempts int, delay time.Duration) {
	u.attempts = attempts
	u.delay = delay
}

// Put persists one blob with bounded retry and fixed backoff. Terminal failure
// is reported only after all attempts are spent.
func (u *Uploader) Put(ctx context.Context, bucket, key, contentType string, data []byte) error {
	var lastErr error
	for attempt := 1; attempt <= u.attempts; attempt++ {
		lastErr = u.store.Put(ctx, bucket, key, contentType, data)
		if lastErr == nil {
			return nil
		}
		u.log.Warn("artifact upload attempt failed",
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if attempt == u.attempts {
			break
		}
		select {
		case <-time.After(u.delay):
		case <-ctx.Done():
			return fmt.Errorf("upload %s: %w", key, ctx.Err())
		}
	}
	return fmt.Errorf("upload %s after %d attempts: %w", key, u.attempts, lastErr)
}

// PutArtifact persists one artifact in the bucket and key layout its kind
// dictates.
func (u *Uploader) PutArtifact(ctx context.Context, a models.Artifact) error {
	bucket := u.videosBucket
	key := VideoKey(a.SessionID.String(), a.QuestionNumber)
	if a.Kind == models.ArtifactAudio {
		bucket = u.answersBucket
		key = AudioKey(a.SessionID.String(), a.QuestionNumber)
	}
	return u.Put(ctx, bucket, key, a.ContentType, a.Data)
}

// UploadQuestion uploads the video and audio artifacts for one finalized
// question concurrently. A failure in one never cancels the other; both run to
// completion and errors are combined.
func (u *Uploader) UploadQuestion(ctx context.Context, sessionID uuid.UUID, questionNumber int, video, audio []byte) error {
	artifacts := []models.Artifact{
		{SessionID: sessionID, QuestionNumber: questionNumber, Kind: models.ArtifactVideo, ContentType: VideoContentType, Data: video},
		{SessionID: sessionID, QuestionNumber: questionNumber, Kind: models.ArtifactAudio, ContentType: AudioContentType, Data: audio},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(artifacts))
	for i, a := range artifacts {
		wg.Add(1)
		go func(i int, a models.Artifact) {
			defer wg.Done()
			errs[i] = u.PutArtifact(ctx, a)
		}(i, a)
	}
	wg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return fmt.Errorf("question %d artifacts: %w", questionNumber, err)
	}
	return nil
}
