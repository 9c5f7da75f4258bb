package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/usagesync/internal/version"
)

func main() {
	if os.Getenv("USAGESYNC_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	root := cobra.Command{
		Use:   "usagesync",
		Short: "usagesync is a terminal dashboard that tracks AI provider usage and quotas.",
		Run: func(_ *cobra.Command, _ []string) {
			runDashboard()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.String())
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
