// Package gcs implements the flat object Store on Google Cloud Storage.
package gcs

import (
	"context"
	"io"

	gcsStorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage"
)

type gcs struct {
	client         *gcsStorage.Client
	readOnlyClient *gcsStorage.Client
	bucket         string
	l              *zap.Logger
}

// New creates a GCS backed object store on the given bucket.
// Credentials default to the GOOGLE_APPLICATION_CREDENTIALS environment
// variable when credentialFile is empty.
func New(ctx context.Context, bucket, credentialFile string, opts ...Option) (storage.Store, error) {
	googleStore := &gcs{
		bucket: bucket,
		l:      zap.NewNop(),
	}
	for _, apply := range opts {
		apply(googleStore)
	}

	readOnly := []option.ClientOption{option.WithScopes(gcsStorage.ScopeReadOnly)}
	fullControl := []option.ClientOption{option.WithScopes(gcsStorage.ScopeFullControl)}
	if credentialFile != "" {
		readOnly = append(readOnly, option.WithCredentialsFile(credentialFile))
		fullControl = append(fullControl, option.WithCredentialsFile(credentialFile))
	}

	var err error
	googleStore.readOnlyClient, err = gcsStorage.NewClient(ctx, readOnly...)
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	googleStore.client, err = gcsStorage.NewClient(ctx, fullControl...)
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	return googleStore, nil
}

func (g *gcs) String() string {
	return "gcs://" + g.bucket
}

func (g *gcs) Has(ctx context.Context, objectName string) (bool, error) {
	_, err := g.readOnlyClient.Bucket(g.bucket).Object(objectName).Attrs(ctx)
	if err != nil {
		if err == gcsStorage.ErrObjectNotExist {
			return false, nil
		}
		return false, toSentinelErrors(err)
	}
	return true, nil
}

func (g *gcs) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	objectReader, err := g.readOnlyClient.Bucket(g.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	return objectReader, nil
}

func (g *gcs) Head(ctx context.Context, objectName string) (storage.Attrs, error) {
	attrs, err := g.readOnlyClient.Bucket(g.bucket).Object(objectName).Attrs(ctx)
	if err != nil {
		return storage.Attrs{}, toSentinelErrors(err)
	}
	return storage.Attrs{
		Size:     attrs.Size,
		ModTime:  attrs.Updated,
		Metadata: attrs.Metadata,
	}, nil
}

func (g *gcs) Put(ctx context.Context, objectName string, reader io.Reader, opts storage.PutOptions) error {
	obj := g.client.Bucket(g.bucket).Object(objectName)
	if opts.Exclusive {
		obj = obj.If(gcsStorage.Conditions{DoesNotExist: true})
	}
	writer := obj.NewWriter(ctx)
	if len(opts.Metadata) > 0 {
		writer.Metadata = opts.Metadata
	}
	_, err := io.Copy(writer, reader)
	if err != nil {
		g.l.Error("put object", zap.String("key", objectName), zap.Error(err))
		_ = writer.Close()
		return toSentinelErrors(err)
	}
	return toSentinelErrors(writer.Close())
}

func (g *gcs) Delete(ctx context.Context, objectName string) error {
	err := g.client.Bucket(g.bucket).Object(objectName).Delete(ctx)
	if err == gcsStorage.ErrObjectNotExist {
		return nil
	}
	return toSentinelErrors(err)
}

func (g *gcs) KeysPrefix(ctx context.Context, token, prefix, delimiter string, count int) ([]string, string, error) {
	if count <= 0 || count > storage.MaxKeysPerPage {
		count = storage.MaxKeysPerPage
	}
	it := g.readOnlyClient.Bucket(g.bucket).Objects(ctx, &gcsStorage.Query{
		Prefix:      prefix,
		Delimiter:   delimiter,
		StartOffset: token,
	})

	keys := make([]string, 0, count)
	for len(keys) < count {
		attrs, err := it.Next()
		if err == iterator.Done {
			return keys, "", nil
		}
		if err != nil {
			return nil, "", toSentinelErrors(err)
		}
		switch {
		case attrs.Prefix != "":
			// common prefix entry, reported with its trailing delimiter.
			// The token guard keeps a prefix spanning a page boundary
			// from repeating on the next page.
			if attrs.Prefix > token {
				keys = append(keys, attrs.Prefix)
			}
		case attrs.Name > token:
			// StartOffset is inclusive, the paging contract is exclusive
			keys = append(keys, attrs.Name)
		}
	}
	return keys, keys[len(keys)-1], nil
}

func (g *gcs) Clear(ctx context.Context) error {
	it := g.client.Bucket(g.bucket).Objects(ctx, nil)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return toSentinelErrors(err)
		}
		if err = g.Delete(ctx, attrs.Name); err != nil {
			return err
		}
	}
}
