package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/dmitrijs2005/camuploader/internal/logging"
	"github.com/dmitrijs2005/camuploader/internal/segments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	putErrs []error
	puts    int
	objects map[string][]byte
	types   map[string]string
	blockFn func(ctx context.Context) error
	sizeFn  func(key string) (int64, error)
}

func newFakeStore(putErrs ...error) *fakeStore {
	return &fakeStore{putErrs: putErrs, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStore) Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error {
	f.mu.Lock()
	f.puts++
	var err error
	if len(f.putErrs) > 0 {
		err, f.putErrs = f.putErrs[0], f.putErrs[1:]
	}
	block := f.blockFn
	f.mu.Unlock()

	if block != nil {
		if err := block(ctx); err != nil {
			return err
		}
	}
	data, rerr := io.ReadAll(body)
	if rerr != nil {
		return rerr
	}
	if int64(len(data)) != size {
		return errors.New("short body")
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeStore) Size(ctx context.Context, key string) (int64, error) {
	if f.sizeFn != nil {
		return f.sizeFn(key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return 0, &smithy.GenericAPIError{Code: "NotFound", Message: "not found"}
	}
	return int64(len(data)), nil
}

func (f *fakeStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func writeSegment(t *testing.T, camera, name, content string) segments.Segment {
	t.Helper()
	dir := filepath.Join(t.TempDir(), camera)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ts, err := segments.ParseTimestamp(name)
	require.NoError(t, err)
	return segments.Segment{
		Camera:    camera,
		Path:      path,
		Name:      name,
		Ext:       filepath.Ext(name),
		Size:      int64(len(content)),
		ModTime:   time.Now().Add(-10 * time.Minute),
		Timestamp: ts,
	}
}

func testSettings() Settings {
	return Settings{
		MaxAttempts:    3,
		AttemptTimeout: time.Second,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Verify:         true,
	}
}

// countingExecutor wraps the opener so tests can assert on local reads.
func countingExecutor(store ObjectStore, s Settings) (*Executor, *int) {
	e := NewExecutor(store, s, logging.Discard())
	opens := 0
	e.Open = func(name string) (File, error) {
		opens++
		return openFile(name)
	}
	return e, &opens
}

func TestUpload_Success(t *testing.T) {
	store := newFakeStore()
	e, opens := countingExecutor(store, testSettings())
	seg := writeSegment(t, "front-door", "20240118_120000.mp4", "video-bytes")

	got, err := e.Upload(context.Background(), seg)
	require.NoError(t, err)

	assert.Equal(t, Confirmed{Key: "front-door/2024/01/18/20240118_120000.mp4", Size: 11, Attempts: 1}, got)
	assert.Equal(t, []byte("video-bytes"), store.objects[got.Key])
	assert.Equal(t, "video/mp4", store.types[got.Key])
	assert.Equal(t, 1, *opens)

	_, err = os.Stat(seg.Path)
	require.NoError(t, err, "executor must never delete")
}

func TestUpload_TransientThenSuccess(t *testing.T) {
	store := newFakeStore(errors.New("connection reset"), errors.New("503 slow down"))
	e, opens := countingExecutor(store, testSettings())
	seg := writeSegment(t, "front-door", "20240118_120000.mp4", "video-bytes")

	got, err := e.Upload(context.Background(), seg)
	require.NoError(t, err)

	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, 3, store.putCount())
	assert.Len(t, store.objects, 1)
	assert.Equal(t, []byte("video-bytes"), store.objects[got.Key], "every attempt must resend the whole file")
	assert.Equal(t, 1, *opens)
}

func TestUpload_TransientExhausted(t *testing.T) {
	boom := errors.New("connection refused")
	store := newFakeStore(boom, boom, boom, boom)
	e, _ := countingExecutor(store, testSettings())
	seg := writeSegment(t, "front-door", "20240118_120000.mp4", "x")

	_, err := e.Upload(context.Background(), seg)

	var te *TransientUploadError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Attempts)
	assert.Equal(t, "front-door/2024/01/18/20240118_120000.mp4", te.Key)
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 3, store.putCount())
	assert.Empty(t, store.objects)
}

func TestUpload_PermanentNotRetried(t *testing.T) {
	forbidden := &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusForbidden}},
			Err:      errors.New("forbidden"),
		},
	}

	tests := []struct {
		name string
		err  error
		code string
	}{
		{"no such bucket", &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "missing"}, "NoSuchBucket"},
		{"bad key id", &smithy.GenericAPIError{Code: "InvalidAccessKeyId"}, "InvalidAccessKeyId"},
		{"http 403", forbidden, "Forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(tt.err, tt.err, tt.err)
			e, _ := countingExecutor(store, testSettings())
			seg := writeSegment(t, "cam", "20240118_120000.mp4", "x")

			_, err := e.Upload(context.Background(), seg)

			var pe *PermanentConfigError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.code, pe.Code)
			assert.True(t, IsPermanent(err))
			assert.False(t, IsRetryable(err))
			assert.Equal(t, 1, store.putCount())
		})
	}
}

func TestUpload_MissingFile(t *testing.T) {
	store := newFakeStore()
	e, _ := countingExecutor(store, testSettings())
	seg := writeSegment(t, "cam", "20240118_120000.mp4", "x")
	require.NoError(t, os.Remove(seg.Path))

	_, err := e.Upload(context.Background(), seg)

	var le *LocalReadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, seg.Path, le.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 0, store.putCount())
}

func TestUpload_AttemptTimeoutIsPartialWrite(t *testing.T) {
	store := newFakeStore()
	store.blockFn = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	s := testSettings()
	s.MaxAttempts = 2
	s.AttemptTimeout = 20 * time.Millisecond
	e, _ := countingExecutor(store, s)
	seg := writeSegment(t, "cam", "20240118_120000.mp4", "x")

	_, err := e.Upload(context.Background(), seg)

	var te *TransientUploadError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Attempts)
	var pw *PartialWriteError
	assert.ErrorAs(t, err, &pw)
	assert.True(t, IsRetryable(err))
	assert.Empty(t, store.objects)
}

func TestUpload_ShutdownAbandons(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newFakeStore()
	store.blockFn = func(c context.Context) error {
		cancel()
		<-c.Done()
		return c.Err()
	}
	e, _ := countingExecutor(store, testSettings())
	seg := writeSegment(t, "cam", "20240118_120000.mp4", "x")

	_, err := e.Upload(ctx, seg)

	require.ErrorIs(t, err, ErrAbandoned)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 1, store.putCount())
}

func TestUpload_VerifyMismatch(t *testing.T) {
	store := newFakeStore()
	store.sizeFn = func(string) (int64, error) { return 3, nil }
	s := testSettings()
	s.MaxAttempts = 1
	e, _ := countingExecutor(store, s)
	seg := writeSegment(t, "cam", "20240118_120000.mp4", "longer-than-three")

	_, err := e.Upload(context.Background(), seg)

	var pw *PartialWriteError
	require.ErrorAs(t, err, &pw)
	assert.Contains(t, pw.Error(), "stored 3 bytes")
}

func TestUpload_VerifyDisabled(t *testing.T) {
	store := newFakeStore()
	store.sizeFn = func(string) (int64, error) { return 0, errors.New("must not be called") }
	s := testSettings()
	s.Verify = false
	e, _ := countingExecutor(store, s)
	seg := writeSegment(t, "cam", "20240118_120000.mp4", "abc")

	_, err := e.Upload(context.Background(), seg)
	require.NoError(t, err)
}

func TestUpload_KeyPrefix(t *testing.T) {
	store := newFakeStore()
	s := testSettings()
	s.Keys = segments.KeyMapper{Prefix: "site-a"}
	e, _ := countingExecutor(store, s)
	seg := writeSegment(t, "front-door", "20240118_120000.mp4", "abc")

	got, err := e.Upload(context.Background(), seg)
	require.NoError(t, err)
	assert.Equal(t, "site-a/front-door/2024/01/18/20240118_120000.mp4", got.Key)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "video/mp4", ContentTypeFor(".MP4"))
	assert.Equal(t, "video/x-matroska", ContentTypeFor("mkv"))
	assert.Equal(t, "application/json", ContentTypeFor(".json"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor(".zzzunknown"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor(""))
}
