package main

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/reelpost/internal/history"
)

const (
	defaultHistoryLimit = 20
	captionColumnWidth  = 40
	hoursPerDay         = 24
)

// sincePattern accepts Go-style durations extended with a day unit, e.g.
// "7d" or "1d12h".
var (
	sincePattern = regexp.MustCompile(`^(\d+[dhms])+$`)
	sinceUnit    = regexp.MustCompile(`(\d+)([dhms])`)
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List published posts",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "maximum number of posts to show (0 for all)")
	cmd.Flags().Bool("all-accounts", false, "include posts from every account")
	cmd.Flags().String("since", "", "only show posts newer than this age (e.g. 12h, 7d)")

	return cmd
}

// historyEntry is one element of `history --json`.
type historyEntry struct {
	ID        int64     `json:"id"`
	Account   string    `json:"account"`
	MediaPath string    `json:"media_path"`
	Kind      string    `json:"kind"`
	Reel      bool      `json:"reel"`
	Caption   string    `json:"caption"`
	MediaID   string    `json:"media_id"`
	URL       string    `json:"url"`
	PostedAt  time.Time `json:"posted_at"`
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	all, _ := cmd.Flags().GetBool("all-accounts")
	since, _ := cmd.Flags().GetString("since")

	if limit < 0 {
		return errors.New("--limit must not be negative")
	}

	var cutoff time.Time

	if since != "" {
		age, err := parseSince(since)
		if err != nil {
			return fmt.Errorf("--since: %w", err)
		}

		cutoff = time.Now().Add(-age)
	}

	acct := cc.Cfg.Account
	if all {
		acct = ""
	}

	ledger, err := history.Open(ctx, cc.Cfg.HistoryPath(), cc.Logger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	posts, err := ledger.List(ctx, acct, limit)
	if err != nil {
		return err
	}

	// Posts are newest first, so the cutoff trims a suffix.
	for i, p := range posts {
		if p.PostedAt.Before(cutoff) {
			posts = posts[:i]
			break
		}
	}

	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		entries := make([]historyEntry, 0, len(posts))
		for _, p := range posts {
			entries = append(entries, historyEntry{
				ID:        p.ID,
				Account:   p.Account,
				MediaPath: p.MediaPath,
				Kind:      string(p.Kind),
				Reel:      p.Reel,
				Caption:   p.Caption,
				MediaID:   p.MediaID,
				URL:       p.URL,
				PostedAt:  p.PostedAt,
			})
		}

		return printJSON(w, entries)
	}

	if len(posts) == 0 {
		cc.Statusf("No posts yet.\n")
		return nil
	}

	rows := make([][]string, 0, len(posts))
	for _, p := range posts {
		kind := string(p.Kind)
		if p.Reel {
			kind = "reel"
		}

		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10),
			formatTime(p.PostedAt),
			p.Account,
			kind,
			p.URL,
			truncate(p.Caption, captionColumnWidth),
		})
	}

	printTable(w, []string{"ID", "POSTED", "ACCOUNT", "KIND", "URL", "CAPTION"}, rows)

	return nil
}

// parseSince parses an age such as "90m", "12h" or "7d".
func parseSince(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, errors.New("duration must be positive")
		}

		return d, nil
	}

	if !sincePattern.MatchString(s) {
		return 0, errors.New("expected format like 30m, 12h, 7d or 1d12h")
	}

	var total time.Duration

	for _, m := range sinceUnit.FindAllStringSubmatch(s, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("invalid number %q: %w", m[1], err)
		}

		switch m[2] {
		case "d":
			total += time.Duration(n) * hoursPerDay * time.Hour
		case "h":
			total += time.Duration(n) * time.Hour
		case "m":
			total += time.Duration(n) * time.Minute
		case "s":
			total += time.Duration(n) * time.Second
		}
	}

	if total <= 0 {
		return 0, errors.New("duration must be positive")
	}

	return total, nil
}
