package assets

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/quillpress/quill/src/config"
	"github.com/quillpress/quill/src/models"
	"github.com/quillpress/quill/src/oops"
)

// S3Images serves self-hosted images out of a private bucket through
// presigned GET URLs. References are plain object keys.
type S3Images struct {
	Bucket string
	TTL    time.Duration

	presigner *s3.PresignClient
}

var _ Resolver = &S3Images{}

func NewS3Images(ctx context.Context, cfg config.S3Config) (*S3Images, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, oops.New(err, "failed to load AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &S3Images{
		Bucket:    cfg.Bucket,
		TTL:       ttl,
		presigner: s3.NewPresignClient(client),
	}, nil
}

// Presigned URLs cannot be resized, so opts are ignored.
func (s *S3Images) ImageURL(ref models.AssetRef, opts ImageOptions) (string, error) {
	key := strings.TrimPrefix(ref.Ref, "/")
	if key == "" {
		return "", badRef(ref.Ref)
	}

	req, err := s.presigner.PresignGetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.TTL))
	if err != nil {
		return "", oops.New(err, "failed to presign image %s", key)
	}

	return req.URL, nil
}
