// Command oasguard checks contract documents and serves them behind the
// validation middleware.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
