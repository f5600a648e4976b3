package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreOptions locate an S3-compatible endpoint.
type ObjectStoreOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewObjectStoreClient builds an S3 client and checks the credentials by
// listing buckets.
func NewObjectStoreClient(ctx context.Context, opts ObjectStoreOptions) (*minio.Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(opts.Endpoint, "https://"), "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	if _, err := client.ListBuckets(ctx); err != nil {
		return nil, fmt.Errorf("reach object store: %w", err)
	}
	return client, nil
}
