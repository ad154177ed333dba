// Package stages holds the built-in pipeline stages and the registry the
// taskfile loader resolves `use:` names against.
//
// Each stage is configured explicitly from its own `with:` block:
//
//	stages:
//	  - use: rename
//	    with: {basename: site}
//	  - use: minify
//
// Stages that need a real compiler or optimizer delegate to an external
// command through `exec`, or to a Lua script through `lua`.
package stages
