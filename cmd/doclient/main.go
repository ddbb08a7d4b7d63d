// Command doclient is a terminal client for the document backend. It keeps
// the session token in a local SQLite file so consecutive invocations share
// one session.
package main

import (
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
