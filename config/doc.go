// Package config loads assetflow configuration.
//
// Values are layered, lowest first: defaults, the config file, .env files,
// ASSETFLOW_* environment variables, then explicitly set command-line flags.
//
// # Usage
//
//	cfg, err := config.Load(config.WithConfigFile(path), config.WithFlags(fs))
//
// Environment variables map onto nested keys by underscores, so
// ASSETFLOW_BUILD_DESTINATION_ROOT sets build.destination_root and
// ASSETFLOW_STORAGE_CDN_BUCKET sets storage.cdn.bucket.
package config
