package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docstore",
	Short: "HTTP document store",
	Long: `docstore keeps named, owned, namespaced documents with an opaque payload
and serves them over HTTP. State lives in the configured storage backend
(fs, sqlite, mongo, redis or minio) and is recovered on startup.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(newServeCmd(), newCheckCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
