package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag   string
	tokenFlag string
	rootCmd   = &cobra.Command{
		Use:   "appviewctl",
		Short: "CLI client for the appview XRPC API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "appview base URL")
	rootCmd.PersistentFlags().StringVarP(&tokenFlag, "token", "t", "", "bearer token (omit for anonymous reads)")

	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newPostsCmd())
	rootCmd.AddCommand(newTimelineCmd())
	rootCmd.AddCommand(newThreadCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
