package storage_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/uniswap-edge/internal/adapters/storage"
	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/test/helpers"
)

var errMultipart = errors.New("multipart upload not expected")

// fakeS3 is an in-memory object store behind the S3API surface
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut func(key string) bool
	down    bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	if f.failPut != nil && f.failPut(key) {
		return nil, errors.New("slow down")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, obj := range in.Delete.Objects {
		delete(f.objects, aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+len(delim)]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.down {
		return nil, errors.New("no route to host")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func newS3Cache(t *testing.T, prefix string) (*storage.S3CacheStorage, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	cfg := &storage.S3Config{Bucket: "edge-cache", Prefix: prefix}
	return storage.NewS3CacheStorage(fake, cfg, helpers.TestLogger()), fake
}

func response(url, body string) *domain.CachedResponse {
	return &domain.CachedResponse{
		URL:        url,
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       []byte(body),
		StoredAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestS3CacheStorage_PutAndMatch(t *testing.T) {
	ctx := context.Background()
	store, _ := newS3Cache(t, "/gateway/")

	require.NoError(t, store.Put(ctx, "uniswap-cache-v1", "http://upstream.test/api/post/page?current=1", response("", `{"records":[]}`)))

	got, err := store.Match(ctx, "uniswap-cache-v1", "http://upstream.test/api/post/page?current=1")
	require.NoError(t, err)
	assert.Equal(t, "http://upstream.test/api/post/page?current=1", got.URL)
	assert.Equal(t, `{"records":[]}`, string(got.Body))
	assert.Equal(t, "text/html", got.Header.Get("Content-Type"))

	_, err = store.Match(ctx, "uniswap-cache-v1", "http://upstream.test/api/post/page?current=2")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	_, err = store.Match(ctx, "uniswap-static-v1", "http://upstream.test/api/post/page?current=1")
	assert.ErrorIs(t, err, domain.ErrCacheMiss, "buckets are isolated")
}

func TestS3CacheStorage_KeysAndDelete(t *testing.T) {
	ctx := context.Background()
	store, fake := newS3Cache(t, "gateway")

	require.NoError(t, store.PutAll(ctx, "uniswap-static-v1", []*domain.CachedResponse{
		response("http://upstream.test/", "root"),
		response("http://upstream.test/index.html", "index"),
	}))
	require.NoError(t, store.Put(ctx, "uniswap-cache-v1", "http://upstream.test/api/x", response("", "x")))
	// an object outside the prefix is not a bucket
	fake.objects["other/thing"] = []byte("?")

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"uniswap-cache-v1", "uniswap-static-v1"}, keys)

	existed, err := store.Delete(ctx, "uniswap-static-v1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, "uniswap-static-v1")
	require.NoError(t, err)
	assert.False(t, existed)

	keys, err = store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"uniswap-cache-v1"}, keys)
	assert.Equal(t, 2, fake.count())
}

func TestS3CacheStorage_PutAllUndoesPartialWrite(t *testing.T) {
	ctx := context.Background()
	store, fake := newS3Cache(t, "")

	var entries []*domain.CachedResponse
	for _, path := range []string{"/", "/index.html", "/manifest.json", "/favicon.svg", "/logo-icon.svg"} {
		entries = append(entries, response("http://upstream.test"+path, path))
	}

	failing := 0
	fake.failPut = func(key string) bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		failing++
		return failing == 3
	}

	err := store.PutAll(ctx, "uniswap-static-v1", entries)
	require.Error(t, err)
	assert.Zero(t, fake.count())

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestS3CacheStorage_Ping(t *testing.T) {
	store, fake := newS3Cache(t, "")

	require.NoError(t, store.Ping(context.Background()))
	fake.down = true
	assert.Error(t, store.Ping(context.Background()))
}
