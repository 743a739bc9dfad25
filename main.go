// main.go
//
// Entry point for the framelat CLI. Subcommands (run, names) live in cmd/.

package main

import (
	"github.com/inference-sim/framelat/cmd"
)

func main() {
	cmd.Execute()
}
