// Package actions provides the non-pipeline task kinds a taskfile can
// reference with `action:`: bump, exec and clean.
package actions
