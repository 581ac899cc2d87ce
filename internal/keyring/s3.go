package keyring

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/awnumar/memguard"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Source locates a keyring object in an S3-compatible bucket (MinIO in
// development).
type S3Source struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
	Key          string
}

type objectStore interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectStore {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

func (src S3Source) client(ctx context.Context) (objectStore, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(src.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			src.AccessKey,
			src.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if src.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(src.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// LoadS3 fetches and parses the keyring object described by src.
func LoadS3(ctx context.Context, src S3Source) (*Keyring, error) {
	c, err := src.client(ctx)
	if err != nil {
		return nil, fmt.Errorf("keyring: s3 config: %w", err)
	}

	out, err := c.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(src.Bucket),
		Key:    aws.String(src.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("keyring: s3 get %s/%s: %w", src.Bucket, src.Key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("keyring: s3 read: %w", err)
	}
	defer memguard.WipeBytes(data)

	return Parse(data)
}

// UploadS3 stores the keyring as the object described by src.
func (k *Keyring) UploadS3(ctx context.Context, src S3Source) error {
	data, err := k.Encode()
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(data)

	c, err := src.client(ctx)
	if err != nil {
		return fmt.Errorf("keyring: s3 config: %w", err)
	}

	_, err = c.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(src.Bucket),
		Key:         aws.String(src.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("keyring: s3 put %s/%s: %w", src.Bucket, src.Key, err)
	}
	return nil
}
