package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNoLocalPath    = errors.New("local storage path is required")
	ErrNoBucket       = errors.New("s3 bucket is required")
	ErrBadDuration    = errors.New("duration must be positive")
	ErrBadAttempts    = errors.New("max attempts must be at least 1")
	ErrBadConcurrency = errors.New("upload concurrency must be at least 1")
	ErrBadCamera      = errors.New("invalid camera entry")
	ErrNoCameras      = errors.New("cameras are configured but none is enabled")
)

// Camera is one configured recording source. Its Name is also the directory
// under LocalPath the recorder writes to.
type Camera struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Config holds the resolved runtime settings for the segment uploader.
//
// Fields:
//   - LocalPath: root holding one directory per camera.
//   - Cameras: configured cameras; when empty every directory under
//     LocalPath is treated as an enabled camera.
//   - Extensions: segment file extensions to consider (".mp4").
//   - QuietThreshold: minimum time since last modification before a file is
//     presumed closed by the recorder.
//   - CheckInterval: time between scan cycles.
//   - MaxAttempts / RetryBaseDelay / RetryMaxDelay: bounded backoff for one
//     upload attempt sequence.
//   - AttemptTimeout: deadline for a single put.
//   - UploadConcurrency: uploads allowed to run at once.
//   - MaxFileFailures: failed cycles after which a file is reported as
//     permanently failed; 0 keeps retrying forever.
//   - ShutdownGrace: how long running uploads may finish after shutdown.
//   - VerifyUpload: HEAD the object after put and compare sizes.
//   - DeleteAfterUpload: remove the local file once the upload is confirmed.
//   - S3*: object storage endpoint, credentials and bucket.
//   - KeyPrefix: optional prefix prepended to every object key.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	LocalPath         string
	Cameras           []Camera
	Extensions        []string
	QuietThreshold    time.Duration
	CheckInterval     time.Duration
	MaxAttempts       int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	AttemptTimeout    time.Duration
	UploadConcurrency int
	MaxFileFailures   int
	ShutdownGrace     time.Duration
	VerifyUpload      bool
	DeleteAfterUpload bool
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3Region          string
	S3BaseEndpoint    string
	S3UsePathStyle    bool
	KeyPrefix         string
	LogLevel          string
}

// LoadDefaults populates Config with the defaults of a single-host install
// talking to a local MinIO.
func (c *Config) LoadDefaults() {
	c.LocalPath = "/var/lib/camera-backup/segments"
	c.Cameras = nil
	c.Extensions = []string{".mp4"}
	c.QuietThreshold = 5 * time.Minute
	c.CheckInterval = 5 * time.Minute
	c.MaxAttempts = 3
	c.RetryBaseDelay = 1 * time.Second
	c.RetryMaxDelay = 30 * time.Second
	c.AttemptTimeout = 2 * time.Minute
	c.UploadConcurrency = 4
	c.MaxFileFailures = 10
	c.ShutdownGrace = 30 * time.Second
	c.VerifyUpload = true
	c.DeleteAfterUpload = true
	c.S3AccessKeyID = ""
	c.S3SecretAccessKey = ""
	c.S3Bucket = "camera-backup"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.S3UsePathStyle = true
	c.KeyPrefix = ""
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags. The result
// is validated; any error is fatal for startup.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that would keep the uploader from
// doing useful work.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LocalPath) == "" {
		return ErrNoLocalPath
	}
	if strings.TrimSpace(c.S3Bucket) == "" {
		return ErrNoBucket
	}
	if c.MaxAttempts < 1 {
		return ErrBadAttempts
	}
	if c.UploadConcurrency < 1 {
		return ErrBadConcurrency
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"quiet_threshold", c.QuietThreshold},
		{"check_interval", c.CheckInterval},
		{"retry_base_delay", c.RetryBaseDelay},
		{"retry_max_delay", c.RetryMaxDelay},
		{"attempt_timeout", c.AttemptTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s: %w", d.name, ErrBadDuration)
		}
	}
	if c.ShutdownGrace < 0 {
		return fmt.Errorf("shutdown_grace: %w", ErrBadDuration)
	}

	seen := make(map[string]struct{}, len(c.Cameras))
	for _, cam := range c.Cameras {
		name := strings.TrimSpace(cam.Name)
		if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("%w: %q", ErrBadCamera, cam.Name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate %q", ErrBadCamera, cam.Name)
		}
		seen[name] = struct{}{}
	}
	if len(c.Cameras) > 0 && len(c.EnabledCameras()) == 0 {
		return ErrNoCameras
	}
	return nil
}

// EnabledCameras returns the names of cameras with Enabled set.
func (c *Config) EnabledCameras() []string {
	var names []string
	for _, cam := range c.Cameras {
		if cam.Enabled {
			names = append(names, cam.Name)
		}
	}
	return names
}
