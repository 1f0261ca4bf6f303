package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/reelpost/internal/media"
)

const defaultFetchOutput = "track.mp3"

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <query>...",
		Short: "Download media with the configured fetch command",
		Long: `Run the configured fetch_command for a search query.

The command succeeds only if it leaves a file at the output path. The
default command uses yt-dlp to save the audio of the first search result.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runFetch,
	}

	cmd.Flags().StringP("output", "o", defaultFetchOutput, "output file path")

	return cmd
}

// fetchOutput is the JSON schema for `fetch --json`.
type fetchOutput struct {
	Query string `json:"query"`
	Path  string `json:"path"`
	Size  int64  `json:"size"`
}

func runFetch(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	output, _ := cmd.Flags().GetString("output")
	query := strings.Join(args, " ")

	f, err := media.NewFetcher(cc.Cfg.FetchCommand, cc.Logger)
	if err != nil {
		return err
	}

	cc.Statusf("Fetching %q...\n", query)

	if err := f.Fetch(cmd.Context(), query, output); err != nil {
		return err
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("checking %s: %w", output, err)
	}

	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		return printJSON(w, fetchOutput{Query: query, Path: output, Size: info.Size()})
	}

	fmt.Fprintf(w, "%s (%s)\n", output, formatSize(info.Size()))

	return nil
}
