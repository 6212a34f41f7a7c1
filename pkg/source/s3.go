package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// EnvS3Endpoint overrides the S3 endpoint, e.g. for MinIO. Path-style
// addressing is used when it is set.
const EnvS3Endpoint = "FORCEGRAPH_S3_ENDPOINT"

// ObjectStore is the subset of the S3 client used for graph sources
type ObjectStore interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	storeMu sync.Mutex
	store   ObjectStore
)

// SetObjectStore replaces the S3 client used by s3:// sources. A nil store
// restores the default client built from the AWS environment.
func SetObjectStore(s ObjectStore) {
	storeMu.Lock()
	defer storeMu.Unlock()
	store = s
}

func objectStore(ctx context.Context) (ObjectStore, error) {
	storeMu.Lock()
	defer storeMu.Unlock()
	if store != nil {
		return store, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	store = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := os.Getenv(EnvS3Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return store, nil
}

// bucketKey splits s3://bucket/key
func bucketKey(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", raw, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("parse %s: want s3://bucket/key", raw)
	}
	return u.Host, key, nil
}

func fetchS3(ctx context.Context, raw string) ([]byte, error) {
	bucket, key, err := bucketKey(raw)
	if err != nil {
		return nil, err
	}
	client, err := objectStore(ctx)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", raw, err)
	}
	defer out.Body.Close()
	return readLimited(out.Body)
}

func putS3(ctx context.Context, raw string, data []byte) error {
	bucket, key, err := bucketKey(raw)
	if err != nil {
		return err
	}
	client, err := objectStore(ctx)
	if err != nil {
		return err
	}

	contentType := "application/json"
	switch name := strings.TrimSuffix(key, compressedSuffix); {
	case strings.HasSuffix(key, compressedSuffix):
		contentType = "application/x-snappy-framed"
	case isYAML(name):
		contentType = "application/yaml"
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", raw, err)
	}
	return nil
}
