// Package upload moves a single segment into object storage and confirms
// it landed. Deleting the local copy is left to the caller.
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/camuploader/internal/logging"
	"github.com/dmitrijs2005/camuploader/internal/segments"
	"github.com/sethvargo/go-retry"
)

// ObjectStore is the remote side. Put must only return nil once the object
// is durably stored under key.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error
	Size(ctx context.Context, key string) (int64, error)
}

// File is what the executor needs from an opened segment.
type File interface {
	io.ReaderAt
	io.Closer
	Stat() (os.FileInfo, error)
}

// Confirmed describes a stored segment.
type Confirmed struct {
	Key      string
	Size     int64
	Attempts int
}

// Settings bound one attempt sequence.
type Settings struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Verify         bool
	Keys           segments.KeyMapper
}

type Executor struct {
	store    ObjectStore
	settings Settings
	logger   logging.Logger

	// Open is swapped in tests to count local reads.
	Open func(name string) (File, error)
}

func NewExecutor(store ObjectStore, s Settings, logger logging.Logger) *Executor {
	if s.MaxAttempts < 1 {
		s.MaxAttempts = 1
	}
	if s.BaseDelay <= 0 {
		s.BaseDelay = time.Second
	}
	if s.MaxDelay < s.BaseDelay {
		s.MaxDelay = s.BaseDelay
	}
	if s.AttemptTimeout <= 0 {
		s.AttemptTimeout = 2 * time.Minute
	}
	return &Executor{
		store:    store,
		settings: s,
		logger:   logger.With("module", "upload_executor"),
		Open:     openFile,
	}
}

func openFile(name string) (File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// KeyFor exposes the key the executor will use for seg.
func (e *Executor) KeyFor(seg segments.Segment) string {
	return e.settings.Keys.KeyFor(seg)
}

func (e *Executor) backoff() retry.Backoff {
	b := retry.NewExponential(e.settings.BaseDelay)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(e.settings.MaxDelay, b)
	return retry.WithMaxRetries(uint64(e.settings.MaxAttempts-1), b)
}

// Upload stores seg under its mapped key. The file is opened once; every
// attempt re-reads it from offset zero.
//
// Errors: *LocalReadError, *PermanentConfigError, *TransientUploadError
// (possibly wrapping *PartialWriteError) or ErrAbandoned when ctx ends.
func (e *Executor) Upload(ctx context.Context, seg segments.Segment) (Confirmed, error) {
	key := e.KeyFor(seg)

	f, err := e.Open(seg.Path)
	if err != nil {
		return Confirmed{}, &LocalReadError{Path: seg.Path, Err: err}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Confirmed{}, &LocalReadError{Path: seg.Path, Err: err}
	}
	size := fi.Size()
	contentType := ContentTypeFor(seg.Ext)

	attempts := 0
	err = retry.Do(ctx, e.backoff(), func(ctx context.Context) error {
		attempts++
		err := e.attempt(ctx, key, f, size, contentType)
		if err == nil {
			return nil
		}
		if ctx.Err() == nil && IsRetryable(err) {
			e.logger.Warn(ctx, "upload attempt failed", "key", key, "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})

	switch {
	case err == nil:
		return Confirmed{Key: key, Size: size, Attempts: attempts}, nil
	case ctx.Err() != nil:
		return Confirmed{}, fmt.Errorf("%w: %s: %w", ErrAbandoned, key, ctx.Err())
	case IsPermanent(err), IsLocalRead(err):
		return Confirmed{}, err
	}
	return Confirmed{}, &TransientUploadError{Key: key, Attempts: attempts, Err: err}
}

func (e *Executor) attempt(ctx context.Context, key string, f File, size int64, contentType string) error {
	actx, cancel := context.WithTimeout(ctx, e.settings.AttemptTimeout)
	defer cancel()

	body := io.NewSectionReader(f, 0, size)
	if err := e.store.Put(actx, key, body, size, contentType); err != nil {
		return classify(ctx, key, err)
	}

	if !e.settings.Verify {
		return nil
	}
	remote, err := e.store.Size(actx, key)
	if err != nil {
		return classify(ctx, key, err)
	}
	if remote != size {
		return &PartialWriteError{Key: key, Err: fmt.Errorf("stored %d bytes, sent %d", remote, size)}
	}
	return nil
}
