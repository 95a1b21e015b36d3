// Package coordinator runs the scan → gate → upload → delete loop over all
// cameras.
//
// Each cycle lists every camera directory, keeps the segments the gate
// accepts, and hands each one to its own goroutine. A weighted semaphore
// bounds how many uploads run at once; the scan itself never waits for them.
// A path is marked in flight from dispatch until its task ends, so a slow
// upload is never started twice by overlapping cycles.
//
// There is no retry queue. A file that failed is still on disk, and the
// next cycle finds it again.
package coordinator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/camuploader/internal/logging"
	"github.com/dmitrijs2005/camuploader/internal/segments"
	"github.com/dmitrijs2005/camuploader/internal/upload"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Store is the local side: listing and removing segment files.
type Store interface {
	Cameras(ctx context.Context) ([]string, error)
	List(ctx context.Context, camera string) ([]segments.Segment, error)
	Remove(path string) error
}

// Gate decides whether a segment is closed.
type Gate interface {
	IsEligible(seg segments.Segment) bool
}

// Uploader stores one segment remotely.
type Uploader interface {
	Upload(ctx context.Context, seg segments.Segment) (upload.Confirmed, error)
}

type Options struct {
	// Cameras to scan. Empty means every directory under the storage root.
	Cameras           []string
	CheckInterval     time.Duration
	Concurrency       int
	MaxFileFailures   int
	ShutdownGrace     time.Duration
	DeleteAfterUpload bool
}

// Stats are cumulative since the coordinator was built.
type Stats struct {
	Uploaded  int64
	Deleted   int64
	Failed    int64
	Abandoned int64
	Bytes     int64
	InFlight  int
	Halted    bool
}

type stamp struct {
	size    int64
	modTime time.Time
}

type Coordinator struct {
	store    Store
	gate     Gate
	uploader Uploader
	opts     Options
	logger   logging.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]struct{}
	failures map[string]int
	failed   map[string]struct{}
	uploaded map[string]stamp
	halted   error

	nUploaded  atomic.Int64
	nDeleted   atomic.Int64
	nFailed    atomic.Int64
	nAbandoned atomic.Int64
	nBytes     atomic.Int64
}

func New(store Store, gate Gate, uploader Uploader, opts Options, logger logging.Logger) *Coordinator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = 5 * time.Minute
	}
	return &Coordinator{
		store:    store,
		gate:     gate,
		uploader: uploader,
		opts:     opts,
		logger:   logger.With("module", "coordinator"),
		sem:      semaphore.NewWeighted(int64(opts.Concurrency)),
		inFlight: make(map[string]struct{}),
		failures: make(map[string]int),
		failed:   make(map[string]struct{}),
		uploaded: make(map[string]stamp),
	}
}

// Run scans immediately and then every CheckInterval until ctx is done.
// On shutdown no new uploads start; running ones get ShutdownGrace to finish
// before their context is cancelled. Run returns once every task has ended.
func (c *Coordinator) Run(ctx context.Context) error {
	uploadCtx, cancelUploads := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelUploads()

	c.logger.Info(ctx, "starting upload coordinator",
		"interval", c.opts.CheckInterval.String(),
		"concurrency", c.opts.Concurrency,
		"delete_after_upload", c.opts.DeleteAfterUpload)

	ticker := time.NewTicker(c.opts.CheckInterval)
	defer ticker.Stop()

	for {
		if _, err := c.scan(ctx, uploadCtx); err != nil && ctx.Err() == nil {
			c.logger.Error(ctx, "scan failed", "error", err)
		}

		select {
		case <-ctx.Done():
			c.drain(cancelUploads)
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Coordinator) drain(cancelUploads context.CancelFunc) {
	ctx := context.Background()
	c.logger.Info(ctx, "stopping upload coordinator", "in_flight", c.Stats().InFlight)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(c.opts.ShutdownGrace)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		c.logger.Warn(ctx, "shutdown grace elapsed, abandoning uploads", "in_flight", c.Stats().InFlight)
		cancelUploads()
		<-done
	}
	c.logger.Info(ctx, "upload coordinator stopped")
}

// ScanOnce runs a single cycle with uploads bound to ctx and reports how
// many segments were dispatched. Use Wait to block until they finish.
func (c *Coordinator) ScanOnce(ctx context.Context) (int, error) {
	return c.scan(ctx, ctx)
}

// Wait blocks until every dispatched upload has ended.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	inFlight, halted := len(c.inFlight), c.halted != nil
	c.mu.Unlock()

	return Stats{
		Uploaded:  c.nUploaded.Load(),
		Deleted:   c.nDeleted.Load(),
		Failed:    c.nFailed.Load(),
		Abandoned: c.nAbandoned.Load(),
		Bytes:     c.nBytes.Load(),
		InFlight:  inFlight,
		Halted:    halted,
	}
}

func (c *Coordinator) cameras(ctx context.Context) ([]string, error) {
	if len(c.opts.Cameras) > 0 {
		return c.opts.Cameras, nil
	}
	return c.store.Cameras(ctx)
}

func (c *Coordinator) scan(ctx, uploadCtx context.Context) (int, error) {
	log := c.logger.With("cycle", uuid.NewString())

	cams, err := c.cameras(ctx)
	if err != nil {
		return 0, err
	}

	var eligible []segments.Segment
	seen := make(map[string]struct{})
	complete := true
	for _, cam := range cams {
		segs, err := c.store.List(ctx, cam)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			log.Warn(ctx, "listing camera failed", "camera", cam, "error", err)
			complete = false
			continue
		}
		for _, s := range segs {
			seen[s.Path] = struct{}{}
			if !c.gate.IsEligible(s) {
				log.Debug(ctx, "segment not quiet yet", "camera", cam, "file", s.Name)
				continue
			}
			eligible = append(eligible, s)
		}
	}
	if complete {
		c.forget(seen)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Timestamp.Before(eligible[j].Timestamp)
	})

	c.mu.Lock()
	halted := c.halted
	c.mu.Unlock()

	dispatched := 0
	for _, s := range eligible {
		if ctx.Err() != nil {
			break
		}
		// while halted only the oldest file goes out, as a probe
		if halted != nil && dispatched > 0 {
			break
		}
		if !c.claim(s) {
			continue
		}
		dispatched++
		c.wg.Add(1)
		go c.process(ctx, uploadCtx, s, log)
	}

	if halted != nil {
		log.Error(ctx, "uploads halted by storage configuration error",
			"alert", true, "error", halted, "pending", len(eligible))
	}
	if len(eligible) > 0 {
		log.Info(ctx, "scan complete", "cameras", len(cams), "eligible", len(eligible), "dispatched", dispatched)
	}
	return dispatched, nil
}

// claim marks seg in flight unless it already is, has been given up on, or
// was uploaded unchanged while files are kept.
func (c *Coordinator) claim(s segments.Segment) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inFlight[s.Path]; busy {
		return false
	}
	if _, gaveUp := c.failed[s.Path]; gaveUp {
		return false
	}
	if st, ok := c.uploaded[s.Path]; ok && st.size == s.Size && st.modTime.Equal(s.ModTime) {
		return false
	}
	c.inFlight[s.Path] = struct{}{}
	return true
}

func (c *Coordinator) release(path string) {
	c.mu.Lock()
	delete(c.inFlight, path)
	c.mu.Unlock()
}

// forget drops bookkeeping for files no longer on disk.
func (c *Coordinator) forget(seen map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prune(c.failures, seen)
	prune(c.failed, seen)
	prune(c.uploaded, seen)
}

func prune[V any](m map[string]V, keep map[string]struct{}) {
	for p := range m {
		if _, ok := keep[p]; !ok {
			delete(m, p)
		}
	}
}

func (c *Coordinator) process(ctx, uploadCtx context.Context, s segments.Segment, log logging.Logger) {
	defer c.wg.Done()
	defer c.release(s.Path)

	// still queued when shutdown arrives: drop it, the file stays on disk
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer c.sem.Release(1)

	log = log.With("camera", s.Camera, "file", s.Name)

	conf, err := c.uploader.Upload(uploadCtx, s)
	if err != nil {
		c.fail(uploadCtx, s, err, log)
		return
	}
	c.succeed(uploadCtx, s, conf, log)
}

func (c *Coordinator) succeed(ctx context.Context, s segments.Segment, conf upload.Confirmed, log logging.Logger) {
	c.nUploaded.Add(1)
	c.nBytes.Add(conf.Size)

	c.mu.Lock()
	delete(c.failures, s.Path)
	wasHalted := c.halted != nil
	c.halted = nil
	if !c.opts.DeleteAfterUpload {
		c.uploaded[s.Path] = stamp{size: s.Size, modTime: s.ModTime}
	}
	c.mu.Unlock()

	if wasHalted {
		log.Info(ctx, "uploads resumed", "key", conf.Key)
	}

	if !c.opts.DeleteAfterUpload {
		log.Info(ctx, "segment uploaded", "key", conf.Key, "bytes", conf.Size, "attempts", conf.Attempts)
		return
	}

	// confirmed put for this exact key; only now may the local copy go
	if err := c.store.Remove(s.Path); err != nil {
		log.Error(ctx, "segment uploaded but local delete failed", "key", conf.Key, "error", err)
		return
	}
	c.nDeleted.Add(1)
	log.Info(ctx, "segment uploaded and deleted", "key", conf.Key, "bytes", conf.Size, "attempts", conf.Attempts)
}

func (c *Coordinator) fail(ctx context.Context, s segments.Segment, err error, log logging.Logger) {
	switch {
	case upload.IsLocalRead(err):
		log.Debug(ctx, "segment already handled", "error", err)
		c.mu.Lock()
		delete(c.failures, s.Path)
		c.mu.Unlock()
		return

	case errors.Is(err, upload.ErrAbandoned):
		c.nAbandoned.Add(1)
		log.Info(ctx, "upload abandoned on shutdown", "error", err)
		return

	case upload.IsPermanent(err):
		c.nFailed.Add(1)
		c.mu.Lock()
		first := c.halted == nil
		c.halted = err
		c.mu.Unlock()
		if first {
			log.Error(ctx, "storage rejected upload, halting all uploads", "alert", true, "error", err)
		}
		return
	}

	c.nFailed.Add(1)

	c.mu.Lock()
	c.failures[s.Path]++
	n := c.failures[s.Path]
	gaveUp := c.opts.MaxFileFailures > 0 && n >= c.opts.MaxFileFailures
	if gaveUp {
		c.failed[s.Path] = struct{}{}
	}
	c.mu.Unlock()

	if gaveUp {
		log.Error(ctx, "segment permanently failed, leaving it on disk", "path", s.Path, "failures", n, "error", err)
		return
	}
	log.Warn(ctx, "segment upload failed, retrying next scan", "failures", n, "error", err)
}
