package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abdulachik/memexplain/internal/config"
	"github.com/abdulachik/memexplain/internal/media"
	"github.com/spf13/cobra"
)

var videosCmd = &cobra.Command{
	Use:   "videos [topic]",
	Short: "Find explainer videos for a meme",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runVideos,
}

var videosMax int

func init() {
	videosCmd.Flags().IntVarP(&videosMax, "max", "n", media.DefaultMaxResults, "maximum results (1-10)")
	rootCmd.AddCommand(videosCmd)
}

func runVideos(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	yt := media.NewYouTube(media.Config{BaseURL: cfg.YouTubeBaseURL, Timeout: cfg.ScrapeTimeout})
	resp, err := yt.Videos(ctx, strings.Join(args, " "), videosMax)
	if err != nil {
		return fmt.Errorf("search videos: %w", err)
	}

	if resp.TotalResults == 0 {
		fmt.Println("No videos found.")
		return nil
	}

	for i, v := range resp.YouTubeVideos {
		fmt.Printf("%d. %s [%s]\n", i+1, v.Title, v.Type)
		fmt.Printf("   %s\n", v.URL)
		fmt.Printf("   by %s\n", v.Channel)
	}
	return nil
}
