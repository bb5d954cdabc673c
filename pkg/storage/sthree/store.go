// Package sthree implements the flat object Store against AWS S3 or any
// S3-compatible object store (e.g. minio).
package sthree

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage/status"
)

// Option is a functor to pass optional parameters to the s3 store
type Option func(*s3FS)

// Bucket specifies the S3 bucket holding the objects
func Bucket(bucket string) Option {
	return func(fs *s3FS) {
		fs.bucket = bucket
	}
}

// AWSConfig specifies the AWS configuration (credentials, region, custom
// endpoint for S3-compatible stores, ...)
func AWSConfig(cfg *aws.Config) Option {
	return func(fs *s3FS) {
		fs.awsConfig = cfg
	}
}

// Logger specifies a logger for this store
func Logger(logger *zap.Logger) Option {
	return func(fs *s3FS) {
		if logger != nil {
			fs.l = logger
		}
	}
}

// New creates an S3 backed object store
func New(option Option, options ...Option) storage.Store {
	fs := &s3FS{l: zap.NewNop()}
	option(fs)
	for _, apply := range options {
		apply(fs)
	}

	fs.s3 = s3.New(session.Must(session.NewSession(fs.awsConfig)))
	fs.uploader = s3manager.NewUploaderWithClient(fs.s3)
	fs.downloader = s3manager.NewDownloaderWithClient(fs.s3)
	return fs
}

type s3FS struct {
	bucket     string
	awsConfig  *aws.Config
	s3         *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	l          *zap.Logger
}

func (s *s3FS) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if rerr, ok := err.(awserr.RequestFailure); ok && rerr.StatusCode() == 404 {
			return false, nil
		}
		return false, toSentinelErrors(err)
	}
	return true, nil
}

func (s *s3FS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	return obj.Body, nil
}

func (s *s3FS) Head(ctx context.Context, key string) (storage.Attrs, error) {
	head, err := s.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return storage.Attrs{}, toSentinelErrors(err)
	}
	attrs := storage.Attrs{
		Size:    aws.Int64Value(head.ContentLength),
		ModTime: aws.TimeValue(head.LastModified),
	}
	if len(head.Metadata) > 0 {
		attrs.Metadata = make(map[string]string, len(head.Metadata))
		for k, v := range head.Metadata {
			attrs.Metadata[k] = aws.StringValue(v)
		}
	}
	return attrs, nil
}

func (s *s3FS) Put(ctx context.Context, key string, rdr io.Reader, opts storage.PutOptions) error {
	if opts.Exclusive {
		// S3 has no native exclusive put; a Head check narrows but does
		// not close the race window
		has, err := s.Has(ctx, key)
		if err != nil {
			return err
		}
		if has {
			return status.ErrExists
		}
	}
	input := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   rdr,
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = make(map[string]*string, len(opts.Metadata))
		for k, v := range opts.Metadata {
			input.Metadata[k] = aws.String(v)
		}
	}
	_, err := s.uploader.UploadWithContext(ctx, input)
	if err != nil {
		s.l.Error("put object", zap.String("key", key), zap.Error(err))
	}
	return toSentinelErrors(err)
}

func (s *s3FS) Delete(ctx context.Context, key string) error {
	_, err := s.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return toSentinelErrors(err)
}

func (s *s3FS) KeysPrefix(ctx context.Context, token, prefix, delimiter string, count int) ([]string, string, error) {
	if count <= 0 || count > storage.MaxKeysPerPage {
		count = storage.MaxKeysPerPage
	}
	params := &s3.ListObjectsInput{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int64(int64(count)),
		Marker:  aws.String(token),
	}
	if delimiter != "" {
		params.Delimiter = aws.String(delimiter)
	}
	page, err := s.s3.ListObjectsWithContext(ctx, params)
	if err != nil {
		return nil, "", toSentinelErrors(err)
	}

	keys := make([]string, 0, len(page.Contents)+len(page.CommonPrefixes))
	for _, obj := range page.Contents {
		if key := aws.StringValue(obj.Key); key != "" {
			keys = append(keys, key)
		}
	}
	for _, cp := range page.CommonPrefixes {
		if p := aws.StringValue(cp.Prefix); p != "" {
			keys = append(keys, p)
		}
	}

	next := ""
	if aws.BoolValue(page.IsTruncated) {
		next = aws.StringValue(page.NextMarker)
		if next == "" && len(keys) > 0 {
			next = keys[len(keys)-1]
		}
	}
	return keys, next, nil
}

func (s *s3FS) Clear(ctx context.Context) error {
	params := &s3.ListObjectsInput{Bucket: aws.String(s.bucket)}
	del := s3manager.NewBatchDeleteWithClient(s.s3)
	err := del.Delete(ctx, s3manager.NewDeleteListIterator(s.s3, params))
	return toSentinelErrors(err)
}

func (s *s3FS) String() string {
	return "s3@" + s.bucket
}
