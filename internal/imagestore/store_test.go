package imagestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir, "/files/shopify/")
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "shirt_abc.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	ref, err := store.Put(ctx, "shirt_abc.jpg", []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "/files/shopify/shirt_abc.jpg", ref)

	ok, err = store.Exists(ctx, "shirt_abc.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := os.ReadFile(filepath.Join(dir, "shirt_abc.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	store := NewS3WithClient(fake, "mirror", "/images/", "https://cdn.example.com/")
	ctx := context.Background()

	ok, err := store.Exists(ctx, "a_1.png")
	require.NoError(t, err)
	assert.False(t, ok)

	ref, err := store.Put(ctx, "a_1.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/images/a_1.png", ref)
	assert.Equal(t, "image/png", fake.types["images/a_1.png"])

	ok, err = store.Exists(ctx, "a_1.png")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "ftp"})
	assert.Error(t, err)
}
