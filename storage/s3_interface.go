package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client defines the interface for the S3 operations the blob SecretStore
// variant performs: a HEAD to check whether a key is already occupied (the
// secret archive's write-once contract) and the PUT that occupies it.
// This interface abstracts the AWS S3 SDK client to enable dependency
// injection and testing with a fake implementation.
type S3Client interface {
	// HeadObject retrieves metadata from an object without returning the object itself
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)

	// PutObject uploads an object to S3
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}
