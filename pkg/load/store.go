// Package load publishes derived datasets: a parquet object per run in an
// object store and a freshly recreated warehouse table.
package load

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultPrefix is the key prefix for published objects.
const DefaultPrefix = "processed"

// ObjectKey names the object for one dataset at time t:
// {prefix}/{dataset}_{YYYYMMDD_HHMMSS}.parquet.
func ObjectKey(prefix, dataset string, t time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return path.Join(prefix, dataset+"_"+t.UTC().Format("20060102_150405")+".parquet")
}

// ObjectStore uploads a local file under key.
type ObjectStore interface {
	Put(ctx context.Context, key, localPath string) error
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configure the S3 object store.
type S3Options struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint targets an S3-compatible service; path-style addressing is
	// used when set.
	Endpoint string
}

// S3Store writes objects to one bucket.
type S3Store struct {
	client putObjectAPI
	bucket string
	log    *slog.Logger
}

// NewS3Store builds a client from the default AWS credential chain, or from
// static keys when both are given.
func NewS3Store(ctx context.Context, opt S3Options, log *slog.Logger) (*S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opt.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opt.Region))
	}
	if opt.AccessKey != "" && opt.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opt.AccessKey, opt.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opt.Endpoint != "" {
			o.BaseEndpoint = aws.String(opt.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, opt.Bucket, log), nil
}

func newS3Store(client putObjectAPI, bucket string, log *slog.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, log: orDiscard(log)}
}

func (s *S3Store) Put(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/vnd.apache.parquet"),
	})
	if err != nil {
		return fmt.Errorf("s3 put s3://%s/%s: %w", s.bucket, key, err)
	}
	s.log.InfoContext(ctx, "uploaded object", "bucket", s.bucket, "key", key)
	return nil
}

// LocalStore copies objects under a directory, keeping the key's path.
type LocalStore struct {
	dir string
	log *slog.Logger
}

func NewLocalStore(dir string, log *slog.Logger) *LocalStore {
	return &LocalStore{dir: dir, log: orDiscard(log)}
}

func (s *LocalStore) Put(ctx context.Context, key, localPath string) error {
	dst := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "stored object", "path", dst)
	return nil
}
