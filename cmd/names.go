package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/inference-sim/framelat/frame"
)

// namesCmd lists every metric bucket a frame report can emit into
var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "List every latency bucket name",
	Run: func(cmd *cobra.Command, args []string) {
		writeBucketNames(cmd.OutOrStdout())
	},
}

func writeBucketNames(w io.Writer) {
	for _, name := range frame.BucketNames() {
		fmt.Fprintln(w, name)
	}
}
