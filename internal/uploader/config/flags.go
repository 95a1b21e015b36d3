package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/camuploader/internal/flagx"
)

var valuedFlags = []string{"-l", "-camera", "-q", "-i", "-n", "-t", "-w", "-b", "-e", "-g", "-u", "-p", "-x", "-v"}

// parseFlags overlays command-line flags onto config. Only the flags listed
// in the package doc are looked at; -c/-config is left to parseJson.
//
// -camera replaces the camera list with the given names, all enabled. -k
// turns delete-after-upload off.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], valuedFlags, "-k")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	var cameras flagx.StringList
	keep := !config.DeleteAfterUpload

	fs.StringVar(&config.LocalPath, "l", config.LocalPath, "local storage root")
	fs.Var(&cameras, "camera", "enabled camera name (repeatable)")
	fs.DurationVar(&config.QuietThreshold, "q", config.QuietThreshold, "quiet threshold")
	fs.DurationVar(&config.CheckInterval, "i", config.CheckInterval, "check interval")
	fs.IntVar(&config.MaxAttempts, "n", config.MaxAttempts, "upload attempts per cycle")
	fs.DurationVar(&config.AttemptTimeout, "t", config.AttemptTimeout, "per-attempt timeout")
	fs.IntVar(&config.UploadConcurrency, "w", config.UploadConcurrency, "concurrent uploads")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3AccessKeyID, "u", config.S3AccessKeyID, "S3 access key id")
	fs.StringVar(&config.S3SecretAccessKey, "p", config.S3SecretAccessKey, "S3 secret access key")
	fs.StringVar(&config.KeyPrefix, "x", config.KeyPrefix, "object key prefix")
	fs.BoolVar(&keep, "k", keep, "keep local files after upload")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	config.DeleteAfterUpload = !keep
	if len(cameras) > 0 {
		config.Cameras = make([]Camera, 0, len(cameras))
		for _, name := range cameras {
			config.Cameras = append(config.Cameras, Camera{Name: name, Enabled: true})
		}
	}
	return nil
}
