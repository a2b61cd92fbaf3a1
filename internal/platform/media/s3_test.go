package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/core"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestPublicBase(t *testing.T) {
	assert.Equal(t, "https://cdn.uteshop.vn", publicBase(Config{Bucket: "b", PublicBaseURL: "https://cdn.uteshop.vn/"}))
	assert.Equal(t, "http://localhost:9000/b", publicBase(Config{Bucket: "b", Endpoint: "http://localhost:9000"}))
	assert.Equal(t, "https://b.s3.ap-southeast-1.amazonaws.com", publicBase(Config{Bucket: "b", Region: "ap-southeast-1"}))
}

func TestUpload(t *testing.T) {
	p := &fakePutter{}
	s := &S3Store{client: p, bucket: "media", baseURL: "https://cdn.test"}

	url, err := s.Upload(context.Background(), "/products/p1/a.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/products/p1/a.png", url)
	assert.Equal(t, "media", aws.ToString(p.in.Bucket))
	assert.Equal(t, "products/p1/a.png", aws.ToString(p.in.Key))
	assert.Equal(t, "image/png", aws.ToString(p.in.ContentType))
	assert.Equal(t, "png", p.body)
}

func TestUploadFailure(t *testing.T) {
	s := &S3Store{client: &fakePutter{err: errors.New("no such bucket")}, bucket: "media", baseURL: "x"}
	_, err := s.Upload(context.Background(), "k", strings.NewReader(""), 0, "image/png")
	assert.ErrorIs(t, err, core.ErrUnavailable)
}

func TestNewS3WithoutBucket(t *testing.T) {
	s, err := NewS3(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, s)
}
