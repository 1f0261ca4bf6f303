package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/reelpost/internal/account"
	"github.com/tonimelisma/reelpost/internal/caption"
	"github.com/tonimelisma/reelpost/internal/history"
	"github.com/tonimelisma/reelpost/internal/media"
)

func newPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post <media>",
		Short: "Publish a photo or video",
		Long: `Publish a photo or video with a caption.

Videos need a cover image (--cover). With --generate-caption the caption is
written by the captioning model from the photo, or from the cover of a video.`,
		Args: cobra.ExactArgs(1),
		RunE: runPost,
	}

	cmd.Flags().String("caption", "", "caption text")
	cmd.Flags().Bool("generate-caption", false, "generate the caption from the media")
	cmd.Flags().String("cover", "", "cover image for a video")
	cmd.Flags().Bool("reel", false, "publish a video as a reel")
	cmd.MarkFlagsMutuallyExclusive("caption", "generate-caption")

	return cmd
}

// postOutput is the JSON schema for `post --json`.
type postOutput struct {
	MediaID string `json:"media_id"`
	Code    string `json:"code"`
	URL     string `json:"url"`
	Kind    string `json:"kind"`
	Reel    bool   `json:"reel"`
	Caption string `json:"caption"`
}

// postRequest is a validated post command line.
type postRequest struct {
	Path     string
	Kind     media.Kind
	Caption  string
	Generate bool
	Cover    string
	Reel     bool
}

func parsePostRequest(cmd *cobra.Command, args []string) (postRequest, error) {
	req := postRequest{Path: args[0]}
	req.Caption, _ = cmd.Flags().GetString("caption")
	req.Generate, _ = cmd.Flags().GetBool("generate-caption")
	req.Cover, _ = cmd.Flags().GetString("cover")
	req.Reel, _ = cmd.Flags().GetBool("reel")

	kind, err := media.Classify(req.Path)
	if err != nil {
		return req, err
	}

	req.Kind = kind

	switch kind {
	case media.KindPhoto:
		if req.Cover != "" {
			return req, errors.New("--cover only applies to videos")
		}

		if req.Reel {
			return req, errors.New("--reel only applies to videos")
		}
	case media.KindVideo:
		if req.Cover == "" {
			return req, account.ErrMissingCover
		}
	}

	return req, nil
}

func runPost(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()
	logger := cc.Logger

	req, err := parsePostRequest(cmd, args)
	if err != nil {
		return err
	}

	unlock, err := lockSession(cc.Cfg.SessionPath())
	if err != nil {
		return err
	}
	defer unlock()

	as := newAccountSession(cc)

	b, err := as.acquire(ctx, cc, cc.Cfg.Account)
	if err != nil {
		return err
	}

	if req.Generate {
		req.Caption, err = generateCaption(ctx, cc, req.captionSource())
		if err != nil {
			return err
		}

		cc.Statusf("Caption: %s\n", req.Caption)
	}

	cc.Statusf("Uploading %s...\n", req.Path)

	var m *account.Media

	switch req.Kind {
	case media.KindPhoto:
		m, err = as.Client.PublishPhoto(ctx, b, req.Path, req.Caption)
	case media.KindVideo:
		m, err = as.Client.PublishVideo(ctx, b, account.VideoPost{
			Path:    req.Path,
			Cover:   req.Cover,
			Caption: req.Caption,
			AsReel:  req.Reel,
		})
	}

	if err != nil {
		return fmt.Errorf("publishing %s: %w", req.Path, err)
	}

	logger.Info("published",
		slog.String("media_id", m.MediaID()),
		slog.String("kind", string(req.Kind)),
		slog.Bool("reel", req.Reel),
	)

	recordPost(ctx, cc, history.Post{
		Account:   b.Account,
		MediaPath: req.Path,
		Kind:      req.Kind,
		Reel:      req.Reel,
		Caption:   req.Caption,
		MediaID:   m.MediaID(),
		URL:       m.URL(),
	})

	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		return printJSON(w, postOutput{
			MediaID: m.MediaID(),
			Code:    m.Code,
			URL:     m.URL(),
			Kind:    string(req.Kind),
			Reel:    req.Reel,
			Caption: req.Caption,
		})
	}

	fmt.Fprintln(w, m.URL())

	return nil
}

// captionSource is the image the captioning model looks at.
func (r postRequest) captionSource() string {
	if r.Kind == media.KindVideo {
		return r.Cover
	}

	return r.Path
}

func newCaptioner(ctx context.Context, cc *CLIContext) (*caption.Captioner, error) {
	return caption.New(ctx, caption.Options{
		APIKey:     cc.Cfg.GeminiAPIKey,
		Model:      cc.Cfg.CaptionModel,
		Prompt:     cc.Cfg.CaptionPrompt,
		HTTPClient: newHTTPClient(cc.Cfg),
	}, cc.Logger)
}

func generateCaption(ctx context.Context, cc *CLIContext, path string) (string, error) {
	c, err := newCaptioner(ctx, cc)
	if err != nil {
		return "", err
	}

	cc.Statusf("Generating caption with %s...\n", c.Model())

	return c.Describe(ctx, path)
}

// recordPost adds a published post to the history ledger. The post is
// already live, so a ledger failure is only reported.
func recordPost(ctx context.Context, cc *CLIContext, p history.Post) {
	ledger, err := history.Open(ctx, cc.Cfg.HistoryPath(), cc.Logger)
	if err != nil {
		cc.Logger.Warn("could not open post history", slog.String("error", err.Error()))
		return
	}
	defer ledger.Close()

	if _, err := ledger.Record(ctx, p); err != nil {
		cc.Logger.Warn("could not record post in history", slog.String("error", err.Error()))
	}
}
