// Command assetflow builds static-site assets from a taskfile.
//
//	assetflow [flags] [targets...]
//
// With no targets the taskfile's default targets run, or every task when it
// declares none.
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
