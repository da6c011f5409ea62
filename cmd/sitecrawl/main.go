// Command sitecrawl runs the site-scoped crawl and search-index
// service: serve starts the HTTP API, scheduler, and supervisor;
// migrate applies pending database migrations and exits.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crawlstack/sitecrawl/internal/build"
)

var rootCmd = &cobra.Command{
	Use:   "sitecrawl",
	Short: "Site-scoped web crawl and search-index service.",
	Long: `sitecrawl crawls a configured set of sites within their own domain,
builds a searchable index of what it finds, and exposes both crawl
management and search over a small REST API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(build.FullVersion())
	},
}

func main() {
	Execute()
}
