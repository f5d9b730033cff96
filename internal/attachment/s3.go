package attachment

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/shineum/mailmessage/internal/email"
)

// ErrNotFound is returned when the S3 object does not exist.
var ErrNotFound = errors.New("attachment not found")

// ErrAccessDenied is returned when S3 rejects the request.
var ErrAccessDenied = errors.New("attachment access denied")

// GetObjectAPI is the S3 GetObject operation used by S3Loader.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds the settings for an S3 client.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint targets S3-compatible storage such as MinIO or R2.
	Endpoint  string
	PathStyle bool
}

// S3Loader reads attachments from S3 objects.
type S3Loader struct {
	client GetObjectAPI
}

// NewS3Loader creates an S3Loader backed by a real S3 client.
func NewS3Loader(ctx context.Context, cfg S3Config) (*S3Loader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		}
	})
	return NewS3LoaderWithClient(client), nil
}

// NewS3LoaderWithClient creates an S3Loader with a custom client, used for testing.
func NewS3LoaderWithClient(client GetObjectAPI) *S3Loader {
	return &S3Loader{client: client}
}

// Load fetches bucket/key and returns it as an attachment named after the
// key's base name. The object's Content-Type is used when S3 reports one.
func (l *S3Loader) Load(ctx context.Context, bucket, key string, disposition email.Disposition) (*email.Attachment, error) {
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapS3Error(err)
	}
	defer out.Body.Close()

	content, err := readLimited(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}

	name := path.Base(key)
	mimeType := aws.ToString(out.ContentType)
	if mimeType == "" || mimeType == "binary/octet-stream" {
		mimeType = DetectType(name, content)
	}
	var contentID string
	if disposition == email.DispositionInline {
		contentID = name
	}
	return email.NewAttachment(name, mimeType, disposition, content, contentID), nil
}

// LoadURI is Load for an "s3://bucket/key" reference.
func (l *S3Loader) LoadURI(ctx context.Context, uri string, disposition email.Disposition) (*email.Attachment, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, bucket, key, disposition)
}

// IsS3URI reports whether ref uses the s3:// scheme.
func IsS3URI(ref string) bool {
	return strings.HasPrefix(ref, "s3://")
}

// ParseS3URI splits "s3://bucket/key" into bucket and key.
func ParseS3URI(uri string) (string, string, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri must be s3://bucket/key: %q", uri)
	}
	return bucket, key, nil
}

func wrapS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}

	var notFound *types.NoSuchKey
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	return fmt.Errorf("failed to get object: %w", err)
}
