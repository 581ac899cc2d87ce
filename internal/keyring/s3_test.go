package keyring

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	objects map[string][]byte
	getErr  error
	putErr  error
}

func (f *fakeObjectStore) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjectStore) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

var testSource = S3Source{
	Region:       "us-east-1",
	AccessKey:    "minioadmin",
	SecretKey:    "minioadmin",
	BaseEndpoint: "http://127.0.0.1:9000",
	Bucket:       "denauth",
	Key:          "keys/keyring.json",
}

func withFakeS3(t *testing.T, store *fakeObjectStore) *s3.Options {
	t.Helper()

	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		if lo.Credentials == nil {
			t.Fatalf("credentials provider not applied")
		}
		return aws.Config{}, nil
	}

	var captured s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectStore {
		for _, fn := range optFns {
			fn(&captured)
		}
		return store
	}
	return &captured
}

func TestUploadS3LoadS3_Roundtrip(t *testing.T) {
	store := &fakeObjectStore{objects: map[string][]byte{}}
	opts := withFakeS3(t, store)
	ctx := context.Background()

	kr, err := Generate()
	require.NoError(t, err)
	require.NoError(t, kr.UploadS3(ctx, testSource))
	require.Contains(t, store.objects, "denauth/keys/keyring.json")

	loaded, err := LoadS3(ctx, testSource)
	require.NoError(t, err)
	assert.True(t, loaded.PublicKey.Equal(kr.PublicKey))

	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestLoadS3_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("config", func(t *testing.T) {
		withFakeS3(t, &fakeObjectStore{})
		loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("load-fail")
		}
		_, err := LoadS3(ctx, testSource)
		require.ErrorContains(t, err, "load-fail")
	})

	t.Run("get", func(t *testing.T) {
		withFakeS3(t, &fakeObjectStore{getErr: errors.New("access denied")})
		_, err := LoadS3(ctx, testSource)
		require.ErrorContains(t, err, "access denied")
	})

	t.Run("put", func(t *testing.T) {
		withFakeS3(t, &fakeObjectStore{putErr: errors.New("bucket missing")})
		kr, err := Generate()
		require.NoError(t, err)
		require.ErrorContains(t, kr.UploadS3(ctx, testSource), "bucket missing")
	})
}
