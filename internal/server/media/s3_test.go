package media

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/fitauth/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *sc.Config {
	return &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "avatars",
	}
}

func restoreSeams(t *testing.T) {
	t.Helper()
	origLoad, origNewS3, origNewPre := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient
	origPut, origGet := presignPutObject, presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
		presignGetObject = origGet
	})
}

func stubClients(t *testing.T) {
	t.Helper()
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client { return &s3.Client{} }
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
}

func TestNewS3Store_DisabledWithoutBucket(t *testing.T) {
	cfg := testConfig()
	cfg.S3Bucket = ""
	assert.Nil(t, NewS3Store(cfg))
	assert.NotNil(t, NewS3Store(testConfig()))
}

func TestObjectKey(t *testing.T) {
	s := NewS3Store(testConfig())
	s.now = func() time.Time { return time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC) }

	k1 := s.ObjectKey("u-1")
	k2 := s.ObjectKey("u-1")
	assert.True(t, strings.HasPrefix(k1, "avatars/u-1/2024/03/07/"), k1)
	assert.NotEqual(t, k1, k2)
}

func TestPresignClient_AppliesConfig(t *testing.T) {
	restoreSeams(t)
	s := NewS3Store(testConfig())

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		require.NotEmpty(t, optFns)
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		assert.NotNil(t, lo.Credentials)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		require.NotNil(t, c)
		return &s3.PresignClient{}
	}

	pc, err := s.presignClient(context.Background())
	require.NoError(t, err)
	require.NotNil(t, pc)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestPresignClient_LoadError(t *testing.T) {
	restoreSeams(t)
	s := NewS3Store(testConfig())

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}

	_, _, err := s.PresignUpload(context.Background(), "u-1")
	assert.EqualError(t, err, "load-fail")
	_, err = s.PresignDownload(context.Background(), "k")
	assert.EqualError(t, err, "load-fail")
}

func TestPresignUpload_Success(t *testing.T) {
	restoreSeams(t)
	stubClients(t)
	s := NewS3Store(testConfig())

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		assert.Equal(t, "avatars", aws.ToString(in.Bucket))
		assert.True(t, strings.HasPrefix(aws.ToString(in.Key), "avatars/u-1/"))
		var po s3.PresignOptions
		for _, fn := range optFns {
			fn(&po)
		}
		assert.Equal(t, presignExpiry, po.Expires)
		return &v4.PresignedHTTPRequest{URL: "https://put.example/" + aws.ToString(in.Key)}, nil
	}

	key, url, err := s.PresignUpload(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "https://put.example/"+key, url)
}

func TestPresignUpload_Error(t *testing.T) {
	restoreSeams(t)
	stubClients(t)
	s := NewS3Store(testConfig())

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign-put-fail")
	}

	_, _, err := s.PresignUpload(context.Background(), "u-1")
	assert.EqualError(t, err, "presign-put-fail")
}

func TestPresignDownload(t *testing.T) {
	restoreSeams(t)
	stubClients(t)
	s := NewS3Store(testConfig())

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if aws.ToString(in.Key) == "missing" {
			return nil, errors.New("presign-get-fail")
		}
		return &v4.PresignedHTTPRequest{URL: "https://get.example/" + aws.ToString(in.Key)}, nil
	}

	url, err := s.PresignDownload(context.Background(), "avatars/u-1/x")
	require.NoError(t, err)
	assert.Equal(t, "https://get.example/avatars/u-1/x", url)

	_, err = s.PresignDownload(context.Background(), "missing")
	assert.EqualError(t, err, "presign-get-fail")
}
