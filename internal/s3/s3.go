package s3

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/misolabs/miso-api/internal/config"
	"github.com/misolabs/miso-api/internal/logger"
	"go.uber.org/zap"
)

// newS3Client creates a new S3 client from the app config.
// When AWS access key and secret are provided, static credentials are used;
// otherwise the default credential chain is preserved (IAM role, instance
// profile, etc.) so ECS/EC2 task roles work without explicit keys.
func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.EnvVars.AWSRegion),
	}

	if cfg.EnvVars.AWSAccessKeyID != "" && cfg.EnvVars.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.EnvVars.AWSAccessKeyID,
			cfg.EnvVars.AWSSecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %v", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// FrameArchive uploads analyzed camera frames to S3 for later review of
// what the vision model saw. It satisfies service.FrameArchiver.
type FrameArchive struct {
	cfg      *config.Config
	uploader *manager.Uploader
}

// NewFrameArchive builds the archive. Returns an error when the AWS config
// cannot be loaded; callers should treat archiving as optional.
func NewFrameArchive(ctx context.Context, cfg *config.Config) (*FrameArchive, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &FrameArchive{
		cfg:      cfg,
		uploader: manager.NewUploader(client),
	}, nil
}

// ArchiveFrame uploads one frame. Archiving is best-effort: failures are
// logged and swallowed so they can never affect an analysis cycle.
func (a *FrameArchive) ArchiveFrame(ctx context.Context, frame []byte, capturedAt time.Time) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	key := frameKey(capturedAt)
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.EnvVars.FrameArchiveBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(frame),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		logger.Get().Warn("failed to archive frame",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// frameKey generates the S3 key for one captured frame.
func frameKey(capturedAt time.Time) string {
	return fmt.Sprintf("frames/%s/%s_%s.jpg",
		capturedAt.UTC().Format("2006-01-02"),
		capturedAt.UTC().Format("150405.000"),
		uuid.NewString()[:8],
	)
}
