package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	inputs  []*s3.PutObjectInput
	bodies  [][]byte
	deleted []string
	err     error
}

func (f *fakePutter) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func testConfig() Config {
	return Config{Bucket: "bucket", Region: "eu", AccessKey: "a", SecretKey: "s", PublicBaseURL: "https://cdn.example.com/", Prefix: "rooms"}
}

func TestUploadBuildsPublicURL(t *testing.T) {
	putter := &fakePutter{}
	u := newUploader(testConfig(), putter)

	url, err := u.Upload(context.Background(), "inputs", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://cdn.example.com/rooms/inputs/"))
	require.True(t, strings.HasSuffix(url, ".png"))

	require.Len(t, putter.inputs, 1)
	require.Equal(t, "bucket", aws.ToString(putter.inputs[0].Bucket))
	require.Equal(t, "image/png", aws.ToString(putter.inputs[0].ContentType))
}

func TestUploadRejectsEmptyData(t *testing.T) {
	u := newUploader(testConfig(), &fakePutter{})
	_, err := u.Upload(context.Background(), "inputs", nil, "image/png")
	require.Error(t, err)
}

func TestUploadWrapsS3Error(t *testing.T) {
	u := newUploader(testConfig(), &fakePutter{err: errors.New("denied")})
	_, err := u.Upload(context.Background(), "inputs", []byte("x"), "image/jpeg")
	require.ErrorContains(t, err, "upload to s3")
}

func TestPersistCopiesRemoteFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("rendered"))
	}))
	defer srv.Close()

	putter := &fakePutter{}
	u := newUploader(testConfig(), putter)

	url, err := u.Persist(context.Background(), "outputs", srv.URL+"/out.webp")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(url, ".webp"))
	require.Equal(t, []byte("rendered"), putter.bodies[0])
}

func TestPersistFailsOnUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	putter := &fakePutter{}
	_, err := newUploader(testConfig(), putter).Persist(context.Background(), "outputs", srv.URL)
	require.ErrorContains(t, err, "status=404")
	require.Empty(t, putter.inputs)
}

func TestPersistRejectsOversizedOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte(strings.Repeat("x", 17)))
	}))
	defer srv.Close()

	putter := &fakePutter{}
	u := newUploader(testConfig(), putter)
	u.maxBytes = 16

	_, err := u.Persist(context.Background(), "outputs", srv.URL)
	require.ErrorContains(t, err, "larger than 16 bytes")
	require.Empty(t, putter.inputs)

	u.maxBytes = 17
	_, err = u.Persist(context.Background(), "outputs", srv.URL)
	require.NoError(t, err)
	require.Len(t, putter.bodies[0], 17)
}

func TestRemoveDeletesBucketObject(t *testing.T) {
	putter := &fakePutter{}
	u := newUploader(testConfig(), putter)

	url, err := u.Upload(context.Background(), "outputs", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	require.NoError(t, u.Remove(context.Background(), url))
	require.Equal(t, []string{aws.ToString(putter.inputs[0].Key)}, putter.deleted)

	require.Error(t, u.Remove(context.Background(), "https://replicate.delivery/out.png"))
	require.Len(t, putter.deleted, 1)
}

func TestInlineStore(t *testing.T) {
	url, err := Inline{}.Upload(context.Background(), "inputs", []byte("abc"), "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, "data:image/jpeg;base64,YWJj", url)

	same, err := Inline{}.Persist(context.Background(), "outputs", "https://replicate.delivery/x.png")
	require.NoError(t, err)
	require.Equal(t, "https://replicate.delivery/x.png", same)
	require.NoError(t, Inline{}.Remove(context.Background(), same))
}

func TestNewUploaderValidates(t *testing.T) {
	_, err := NewUploader(Config{})
	require.ErrorContains(t, err, "bucket")
}
