package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// objectAPI is the subset of the S3 client the archiver uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures NewS3Archiver. Endpoint is set for S3-compatible
// stores such as MinIO and switches to path-style addressing.
type S3Options struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
}

// S3Archiver writes import files to an S3 bucket.
type S3Archiver struct {
	client objectAPI
	bucket string
	prefix string
}

// NewS3Archiver builds an S3 client from opts. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain.
func NewS3Archiver(ctx context.Context, opts S3Options) (*S3Archiver, error) {
	if opts.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}

	loadOpts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Archiver(client, opts.Bucket, opts.Prefix), nil
}

func newS3Archiver(client objectAPI, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Archive uploads obj unless an object with the same content already
// exists, and returns its key.
func (a *S3Archiver) Archive(ctx context.Context, obj Object) (string, error) {
	key := Key(a.prefix, obj.Data, obj.FileName)

	exists, err := a.exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		return key, nil
	}

	body := Compress(obj.Data)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentLength:   aws.Int64(int64(len(body))),
		ContentType:     aws.String("application/zstd"),
		ContentEncoding: aws.String("zstd"),
		Metadata: map[string]string{
			"batch-id":      obj.BatchID,
			"file-name":     obj.FileName,
			"content-type":  obj.ContentType,
			"original-size": strconv.Itoa(len(obj.Data)),
			"blake3":        ContentHash(obj.Data),
		},
	})
	if err != nil {
		return "", fmt.Errorf("put archive object %s: %w", key, err)
	}
	return key, nil
}

// Load fetches and decompresses an archived file.
func (a *S3Archiver) Load(ctx context.Context, key string) ([]byte, error) {
	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get archive object %s: %w", key, err)
	}
	defer resp.Body.Close()

	compressed, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read archive object %s: %w", key, err)
	}
	return Decompress(compressed)
}

func (a *S3Archiver) exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("head archive object %s: %w", key, err)
}
