package bundle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds configuration for an S3 or R2 backed store.
type S3Config struct {
	Bucket          string
	Prefix          string // Key prefix, e.g. "models/"
	Endpoint        string // Custom endpoint for R2 or MinIO; empty for AWS
	Region          string // Defaults to "auto"
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store keeps bundles as objects named <prefix><name>/<artifact>.
//
// S3 has no multi-object transactions. Visibility is driven by config.json:
// it is written last and deleted first, and List only reports names that
// have all three objects.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store creates a store with an S3 client built from cfg.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := s3.Options{
		Region: region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}

	return NewS3StoreWithClient(s3.New(opts), cfg.Bucket, cfg.Prefix), nil
}

// NewS3StoreWithClient creates a store around an existing client.
func NewS3StoreWithClient(client S3API, bucket, prefix string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// Backend returns BackendS3.
func (s *S3Store) Backend() string { return BackendS3 }

func (s *S3Store) key(name, filename string) string {
	return s.prefix + path.Join(name, filename)
}

// List implements Store.
func (s *S3Store) List(ctx context.Context) ([]string, error) {
	files := make(map[string]map[string]bool)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list models: %w", err)
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			name, file, ok := strings.Cut(rel, "/")
			if !ok || strings.Contains(file, "/") || strings.HasPrefix(name, ".") {
				continue
			}
			if files[name] == nil {
				files[name] = make(map[string]bool)
			}
			files[name][file] = true
		}
	}

	var names []string
	for name, have := range files {
		ok := true
		for _, f := range RequiredArtifacts {
			if !have[f] {
				ok = false
				break
			}
		}
		if ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// Exists implements Store.
func (s *S3Store) Exists(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.prefix + name + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check model %s: %w", name, err)
	}
	return len(out.Contents) > 0, nil
}

// Read implements Store.
func (s *S3Store) Read(ctx context.Context, name, filename string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name, filename)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrBundleNotFound, name, filename)
		}
		return nil, fmt.Errorf("failed to read %s/%s: %w", name, filename, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", name, filename, err)
	}
	return data, nil
}

// Write implements Store. An existing bundle stops being listed as soon as
// its config is removed and reappears when the new config lands. If a put
// fails in between, the old bundle stays unlisted: its config is gone and
// its other artifacts may already be overwritten.
func (s *S3Store) Write(ctx context.Context, name string, artifacts []Artifact) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := s.deleteObject(ctx, name, FileConfig); err != nil {
		return err
	}

	var config *Artifact
	for i := range artifacts {
		if artifacts[i].Filename == FileConfig {
			config = &artifacts[i]
			continue
		}
		if err := s.put(ctx, name, artifacts[i]); err != nil {
			return err
		}
	}
	if config != nil {
		return s.put(ctx, name, *config)
	}
	return nil
}

func (s *S3Store) put(ctx context.Context, name string, a Artifact) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(name, a.Filename)),
		Body:          bytes.NewReader(a.Data),
		ContentLength: aws.Int64(int64(len(a.Data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", name, a.Filename, err)
	}
	return nil
}

// Delete implements Store.
func (s *S3Store) Delete(ctx context.Context, name string) error {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrBundleNotFound, name)
	}

	// config first so the bundle drops out of List immediately
	if err := s.deleteObject(ctx, name, FileConfig); err != nil {
		return err
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + name + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list model %s: %w", name, err)
		}
		for _, obj := range page.Contents {
			if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			}); err != nil && !isNotFound(err) {
				return fmt.Errorf("failed to delete %s: %w", aws.ToString(obj.Key), err)
			}
		}
	}
	return nil
}

func (s *S3Store) deleteObject(ctx context.Context, name, filename string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name, filename)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete %s/%s: %w", name, filename, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
