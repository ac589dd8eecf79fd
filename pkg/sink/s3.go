package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/beam-cloud/runwatch/pkg/types"
)

const stateObjectName = "state.json"

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Sink writes each run's latest snapshot to <prefix>/<name>/state.json
type S3Sink struct {
	uploader uploader
	bucket   string
	prefix   string
}

func NewS3Sink(ctx context.Context, cfg types.S3Config) (*S3Sink, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithRetryMaxAttempts(3),
		config.WithRetryMode(aws.RetryModeStandard),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	log.Info().
		Str("bucket", cfg.Bucket).
		Str("prefix", cfg.Prefix).
		Str("endpoint", cfg.Endpoint).
		Msg("s3 sink initialized")

	return newS3Sink(manager.NewUploader(client), cfg.Bucket, cfg.Prefix), nil
}

func newS3Sink(u uploader, bucket, prefix string) *S3Sink {
	return &S3Sink{uploader: u, bucket: bucket, prefix: prefix}
}

func (s *S3Sink) Name() string {
	return "s3"
}

// ObjectKey returns where a run's snapshot is stored
func (s *S3Sink) ObjectKey(name string) string {
	return path.Join(s.prefix, name, stateObjectName)
}

func (s *S3Sink) Publish(ctx context.Context, u Update) error {
	data, err := json.Marshal(u.Current)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.ObjectKey(u.Name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"phase": u.Current.Phase.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", s.ObjectKey(u.Name), err)
	}
	return nil
}
