// Package config loads runtime configuration for the segment uploader.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-l string     local storage root (one directory per camera)
//	-camera name  enabled camera, repeatable; replaces the configured list
//	-q duration   quiet threshold before a segment is considered closed
//	-i duration   interval between scans
//	-n int        upload attempts per cycle
//	-t duration   per-attempt timeout
//	-w int        concurrent uploads
//	-b string     S3 bucket
//	-e string     S3 base endpoint ("http://127.0.0.1:9000/")
//	-g string     S3 region
//	-u string     S3 access key id
//	-p string     S3 secret access key
//	-x string     object key prefix
//	-k            keep local files after upload
//	-v string     log level
//
// # JSON schema
//
// Durations use timex.Duration, so "5m" and integer nanoseconds both work.
// Keys missing from the file keep their default:
//
//	{
//	  "local_path": "/var/lib/camera-backup/segments",
//	  "cameras": [{"name": "front-door", "enabled": true}],
//	  "quiet_threshold": "5m",
//	  "check_interval": "5m",
//	  "delete_after_upload": true,
//	  "s3_bucket": "camera-backup",
//	  "s3_base_endpoint": "https://account.r2.cloudflarestorage.com"
//	}
package config
