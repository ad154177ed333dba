// Package version reports the assetflow build version.
//
// Version, git commit, branch, and build time are set at compile time
// via -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/assetflow/version.Version=1.0.0" ./cmd/assetflow
//
// Unset values fall back to the VCS stamps in debug.ReadBuildInfo.
package version
