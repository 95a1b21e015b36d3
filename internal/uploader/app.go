// Package uploader wires the segment store, the S3 object store, the upload
// executor and the coordinator into one process and runs it until SIGINT,
// SIGTERM or SIGQUIT.
package uploader

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/camuploader/internal/coordinator"
	"github.com/dmitrijs2005/camuploader/internal/logging"
	"github.com/dmitrijs2005/camuploader/internal/segments"
	"github.com/dmitrijs2005/camuploader/internal/storage"
	"github.com/dmitrijs2005/camuploader/internal/upload"
	"github.com/dmitrijs2005/camuploader/internal/uploader/config"
)

const pingTimeout = 10 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	config      *config.Config
	logger      logging.Logger
	bucket      pinger
	coordinator *coordinator.Coordinator
}

// NewApp builds every component from cfg. A missing storage root or an
// unusable S3 client config is fatal; an unreachable bucket is not, since
// the recorder keeps writing and uploads can catch up later.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	store := segments.NewStore(cfg.LocalPath, cfg.Extensions, logger)
	if err := store.CheckRoot(); err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx, storage.Options{
		Region:          cfg.S3Region,
		BaseEndpoint:    cfg.S3BaseEndpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    cfg.S3UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 init error: %w", err)
	}
	bucket := storage.NewS3Store(client, cfg.S3Bucket)

	executor := upload.NewExecutor(bucket, upload.Settings{
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeout,
		BaseDelay:      cfg.RetryBaseDelay,
		MaxDelay:       cfg.RetryMaxDelay,
		Verify:         cfg.VerifyUpload,
		Keys:           segments.KeyMapper{Prefix: cfg.KeyPrefix},
	}, logger)

	coord := coordinator.New(store, segments.NewQuietGate(cfg.QuietThreshold), executor, coordinator.Options{
		Cameras:           cfg.EnabledCameras(),
		CheckInterval:     cfg.CheckInterval,
		Concurrency:       cfg.UploadConcurrency,
		MaxFileFailures:   cfg.MaxFileFailures,
		ShutdownGrace:     cfg.ShutdownGrace,
		DeleteAfterUpload: cfg.DeleteAfterUpload,
	}, logger)

	return &App{config: cfg, logger: logger, bucket: bucket, coordinator: coord}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) checkBucket(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := app.bucket.Ping(ctx); err != nil {
		app.logger.Warn(ctx, "bucket check failed, uploads will keep retrying", "bucket", app.config.S3Bucket, "error", err)
		return
	}
	app.logger.Info(ctx, "bucket reachable", "bucket", app.config.S3Bucket)
}

// Run blocks until ctx is cancelled or a shutdown signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting segment uploader...",
		"local_path", app.config.LocalPath,
		"bucket", app.config.S3Bucket,
		"quiet_threshold", app.config.QuietThreshold.String())

	app.initSignalHandler(cancelFunc)
	app.checkBucket(ctx)

	err := app.coordinator.Run(ctx)

	st := app.coordinator.Stats()
	app.logger.Info(context.Background(), "segment uploader stopped",
		"uploaded", st.Uploaded, "deleted", st.Deleted, "failed", st.Failed,
		"abandoned", st.Abandoned, "bytes", st.Bytes)
	return err
}
