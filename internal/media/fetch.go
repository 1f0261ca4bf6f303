package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
)

// DefaultFetchCommand searches for a track and saves its audio as mp3.
const DefaultFetchCommand = `yt-dlp --extract-audio --audio-format mp3 ` +
	`-o "{output_stem}.%(ext)s" "ytsearch1:audio {query}"`

var (
	// ErrNoOutput means the fetch command did not produce the expected file.
	// It is the only failure signal: exit status alone is not trusted.
	ErrNoOutput = errors.New("media: fetch produced no output")

	// ErrEmptyCommand is returned by NewFetcher for a blank template.
	ErrEmptyCommand = errors.New("media: fetch command is empty")
)

// Fetcher runs an external command that downloads media to a path.
type Fetcher struct {
	args   []string
	logger *slog.Logger
}

// NewFetcher parses a command template. The template is split like a shell
// command line; {query}, {output} and {output_stem} are replaced inside each
// argument when Fetch runs.
func NewFetcher(template string, logger *slog.Logger) (*Fetcher, error) {
	args, err := shlex.Split(template)
	if err != nil {
		return nil, fmt.Errorf("media: parsing fetch command: %w", err)
	}

	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{args: args, logger: logger}, nil
}

// Fetch runs the command for query and reports success only if output
// exists afterwards. A stale file at output is removed first.
func (f *Fetcher) Fetch(ctx context.Context, query, output string) error {
	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("media: removing stale %s: %w", output, err)
	}

	args := f.expand(query, output)

	f.logger.Info("running fetch command",
		slog.String("command", args[0]),
		slog.String("query", query),
		slog.String("output", output),
	)

	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // command comes from user config
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if _, err := os.Stat(output); err == nil {
		if runErr != nil {
			f.logger.Warn("fetch command failed but produced output",
				slog.String("error", runErr.Error()),
			)
		}

		return nil
	}

	msg := strings.TrimSpace(stderr.String())
	if msg == "" && runErr != nil {
		msg = runErr.Error()
	}

	if msg == "" {
		return fmt.Errorf("%w: %s", ErrNoOutput, output)
	}

	return fmt.Errorf("%w: %s: %s", ErrNoOutput, output, msg)
}

func (f *Fetcher) expand(query, output string) []string {
	stem := strings.TrimSuffix(output, filepath.Ext(output))

	r := strings.NewReplacer(
		"{query}", query,
		"{output_stem}", stem,
		"{output}", output,
	)

	out := make([]string, len(f.args))
	for i, a := range f.args {
		out[i] = r.Replace(a)
	}

	return out
}
