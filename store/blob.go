package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/openprocurement/archivarius-bridge/storage"
)

// sharedHTTPClient provides connection pooling across every blob upload,
// mirroring the teacher's storage package convention of a single shared
// client instead of one per request.
var sharedHTTPClient = &http.Client{Timeout: 60 * time.Second}

// BlobSecretStore is the S3-compatible SecretStore variant: every sealed
// record is stored as a private object keyed by BlobKey(id).
type BlobSecretStore struct {
	bucket   string
	uploader *manager.Uploader
	client   storage.S3Client
}

// BlobConfig configures a BlobSecretStore's connection to an S3-compatible
// endpoint.
type BlobConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// NewBlobSecretStore builds an S3 client for cfg's endpoint and returns a
// BlobSecretStore ready to receive sealed documents.
func NewBlobSecretStore(ctx context.Context, cfg BlobConfig) (*BlobSecretStore, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					SigningRegion:     region,
					HostnameImmutable: true,
				}, nil
			})),
	)
	if err != nil {
		return nil, fmt.Errorf("store: load blob store configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.HTTPClient = sharedHTTPClient
	})

	return &BlobSecretStore{
		bucket:   cfg.Bucket,
		uploader: manager.NewUploader(client),
		client:   client,
	}, nil
}

// NewBlobSecretStoreWithClient builds a BlobSecretStore around an existing
// storage.S3Client, used by tests to inject a fake implementation.
func NewBlobSecretStoreWithClient(bucket string, client storage.S3Client) *BlobSecretStore {
	return &BlobSecretStore{bucket: bucket, client: client}
}

// Put uploads sealed to BlobKey(id) with a private ACL and an
// application/json content type. An object already present at that key is
// treated as success: the secret archive never overwrites.
func (b *BlobSecretStore) Put(ctx context.Context, id string, sealed []byte) error {
	key, err := BlobKey(id)
	if err != nil {
		return fmt.Errorf("store: derive blob key for %s: %w", id, err)
	}

	if _, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}); err == nil {
		return nil
	} else if !isNotFoundKey(err) {
		return fmt.Errorf("store: check existing blob %s: %w", key, err)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(sealed),
		ContentType: aws.String("application/json"),
		ACL:         types.ObjectCannedACLPrivate,
	}

	if b.uploader != nil {
		if _, err := b.uploader.Upload(ctx, input); err != nil {
			return fmt.Errorf("store: put blob %s: %w", key, err)
		}
		return nil
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("store: put blob %s: %w", key, err)
	}
	return nil
}

// isNotFoundKey reports whether err is a HeadObject "absent key" response.
// S3 itself returns *types.NotFound for a missing HeadObject target (unlike
// GetObject, which returns *types.NoSuchKey); S3-compatible backends that
// skip the typed error model are matched by their raw 404 status instead.
func isNotFoundKey(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
