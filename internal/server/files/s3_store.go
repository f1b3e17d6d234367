package files

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/gophtalk/internal/common"
)

// S3ClientAPI is the part of the S3 client the store uses.
type S3ClientAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Config holds the object storage settings.
type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Prefix       string
}

// S3BlobStore keeps files in an S3-compatible bucket.
type S3BlobStore struct {
	Client S3ClientAPI
	Bucket string
	Prefix string
}

// NewS3BlobStore builds a client with static credentials. A non-empty
// BaseEndpoint points it at a MinIO-style server.
func NewS3BlobStore(ctx context.Context, c S3Config) (*S3BlobStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3BlobStore{Client: client, Bucket: c.Bucket, Prefix: c.Prefix}, nil
}

func (s *S3BlobStore) key(id string) *string {
	return aws.String(s.Prefix + id)
}

func (s *S3BlobStore) Put(ctx context.Context, id string, content []byte) error {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.Bucket),
		Key:           s.key(id),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
	})
	return err
}

func (s *S3BlobStore) Open(ctx context.Context, id string) (*Blob, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    s.key(id),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}

	b := &Blob{Body: out.Body, Size: aws.ToInt64(out.ContentLength), ModTime: time.Now()}
	if out.LastModified != nil {
		b.ModTime = *out.LastModified
	}
	return b, nil
}

func (s *S3BlobStore) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    s.key(id),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
