package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <actor>",
		Short: "Fetch an actor's profile by handle or DID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{"actor": {args[0]}}
			return getXRPC(apiFlag, tokenFlag, "app.bsky.actor.getProfile", params, os.Stdout)
		},
	}
}

func newPostsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "posts <at-uri>...",
		Short: "Fetch hydrated post views",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{"uris": args}
			return getXRPC(apiFlag, tokenFlag, "app.bsky.feed.getPosts", params, os.Stdout)
		},
	}
}

func newTimelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Fetch the viewer's following feed (requires --token)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokenFlag == "" {
				return fmt.Errorf("--token is required for timeline")
			}
			limit, _ := cmd.Flags().GetInt("limit")
			cursor, _ := cmd.Flags().GetString("cursor")
			params := url.Values{"limit": {strconv.Itoa(limit)}}
			if cursor != "" {
				params.Set("cursor", cursor)
			}
			return getXRPC(apiFlag, tokenFlag, "app.bsky.feed.getTimeline", params, os.Stdout)
		},
	}
	cmd.Flags().IntP("limit", "l", 50, "page size")
	cmd.Flags().StringP("cursor", "c", "", "continuation cursor")
	return cmd
}

func newThreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thread <at-uri>",
		Short: "Fetch the thread around a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			depth, _ := cmd.Flags().GetInt("depth")
			params := url.Values{"uri": {args[0]}, "depth": {strconv.Itoa(depth)}}
			return getXRPC(apiFlag, tokenFlag, "app.bsky.feed.getPostThread", params, os.Stdout)
		},
	}
	cmd.Flags().IntP("depth", "d", 6, "reply nesting depth")
	return cmd
}
