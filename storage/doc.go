// Package storage is the publish target behind pipeline sinks.
//
// A Storage receives finished artifacts by relative, slash-separated path.
// Backends register themselves by provider name:
//
//   - storage/local: a directory on disk, written with temp file + rename
//   - storage/s3: Amazon S3 and S3-compatible services
//
// Import the backend for its side effect before calling New:
//
//	import _ "github.com/kbukum/assetflow/storage/local"
//
//	st, err := storage.New(storage.Config{Provider: "local", BasePath: "dist"}, log)
package storage
