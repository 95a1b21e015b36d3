package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/camuploader/internal/flagx"
	"github.com/dmitrijs2005/camuploader/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations use
// timex.Duration so both "5m" and integer nanoseconds are accepted. After
// unmarshalling, the values are copied into the runtime Config.
type JsonConfig struct {
	LocalPath         string         `json:"local_path"`
	Cameras           []Camera       `json:"cameras"`
	Extensions        []string       `json:"extensions"`
	QuietThreshold    timex.Duration `json:"quiet_threshold"`
	CheckInterval     timex.Duration `json:"check_interval"`
	MaxAttempts       int            `json:"max_attempts"`
	RetryBaseDelay    timex.Duration `json:"retry_base_delay"`
	RetryMaxDelay     timex.Duration `json:"retry_max_delay"`
	AttemptTimeout    timex.Duration `json:"attempt_timeout"`
	UploadConcurrency int            `json:"upload_concurrency"`
	MaxFileFailures   int            `json:"max_file_failures"`
	ShutdownGrace     timex.Duration `json:"shutdown_grace"`
	VerifyUpload      bool           `json:"verify_upload"`
	DeleteAfterUpload bool           `json:"delete_after_upload"`
	S3AccessKeyID     string         `json:"s3_access_key_id"`
	S3SecretAccessKey string         `json:"s3_secret_access_key"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	S3UsePathStyle    bool           `json:"s3_use_path_style"`
	KeyPrefix         string         `json:"key_prefix"`
	LogLevel          string         `json:"log_level"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		LocalPath:         c.LocalPath,
		Cameras:           c.Cameras,
		Extensions:        c.Extensions,
		QuietThreshold:    timex.Duration{Duration: c.QuietThreshold},
		CheckInterval:     timex.Duration{Duration: c.CheckInterval},
		MaxAttempts:       c.MaxAttempts,
		RetryBaseDelay:    timex.Duration{Duration: c.RetryBaseDelay},
		RetryMaxDelay:     timex.Duration{Duration: c.RetryMaxDelay},
		AttemptTimeout:    timex.Duration{Duration: c.AttemptTimeout},
		UploadConcurrency: c.UploadConcurrency,
		MaxFileFailures:   c.MaxFileFailures,
		ShutdownGrace:     timex.Duration{Duration: c.ShutdownGrace},
		VerifyUpload:      c.VerifyUpload,
		DeleteAfterUpload: c.DeleteAfterUpload,
		S3AccessKeyID:     c.S3AccessKeyID,
		S3SecretAccessKey: c.S3SecretAccessKey,
		S3Bucket:          c.S3Bucket,
		S3Region:          c.S3Region,
		S3BaseEndpoint:    c.S3BaseEndpoint,
		S3UsePathStyle:    c.S3UsePathStyle,
		KeyPrefix:         c.KeyPrefix,
		LogLevel:          c.LogLevel,
	}
}

// parseJson overlays the file named by -c/-config onto config. Keys absent
// from the file keep whatever config already holds. No flag means nothing
// to load.
func parseJson(config *Config) error {
	path := flagx.ConfigPath()
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	// seeded with the current values so missing keys are left alone
	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	config.LocalPath = c.LocalPath
	config.Cameras = c.Cameras
	config.Extensions = c.Extensions
	config.QuietThreshold = c.QuietThreshold.Duration
	config.CheckInterval = c.CheckInterval.Duration
	config.MaxAttempts = c.MaxAttempts
	config.RetryBaseDelay = c.RetryBaseDelay.Duration
	config.RetryMaxDelay = c.RetryMaxDelay.Duration
	config.AttemptTimeout = c.AttemptTimeout.Duration
	config.UploadConcurrency = c.UploadConcurrency
	config.MaxFileFailures = c.MaxFileFailures
	config.ShutdownGrace = c.ShutdownGrace.Duration
	config.VerifyUpload = c.VerifyUpload
	config.DeleteAfterUpload = c.DeleteAfterUpload
	config.S3AccessKeyID = c.S3AccessKeyID
	config.S3SecretAccessKey = c.S3SecretAccessKey
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3UsePathStyle = c.S3UsePathStyle
	config.KeyPrefix = c.KeyPrefix
	config.LogLevel = c.LogLevel
	return nil
}
