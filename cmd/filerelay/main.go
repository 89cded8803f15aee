// filerelay relays file read-access events into derived file writes.
package main

import (
	"os"

	"github.com/hupe1980/filerelay/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
