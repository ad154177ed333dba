// Package taskfile loads task definitions from YAML or TOML and builds them
// into a dag.Graph.
//
// A taskfile lists tasks in order. Each task either runs a pipeline (src,
// stages, sinks) or an action, or neither, in which case it only groups its
// dependencies:
//
//	default: [build]
//	options:
//	  source_root: app
//	  destination_root: dist
//	tasks:
//	  - name: styles
//	    src: ["styles/*.scss"]
//	    stages:
//	      - use: exec
//	        with: {command: sass, args: ["--stdin"], ext: .css}
//	      - use: minify
//	  - name: bump
//	    action: bump
//	    with: {files: [package.json]}
//	  - name: build
//	    deps: [styles]
//	watch:
//	  - name: styles
//	    globs: ["app/styles/**/*.scss"]
//	    tasks: [styles]
//
// Includes are loaded first and their tasks come before the including
// file's tasks. Relative paths resolve against the file that declares them.
package taskfile
