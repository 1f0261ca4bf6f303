package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newCaptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caption [media]",
		Short: "Generate a caption without posting",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCaption,
	}

	cmd.Flags().Bool("test", false, "send a short text-only request to check the API key and model")

	return cmd
}

// captionOutput is the JSON schema for `caption --json`.
type captionOutput struct {
	Model   string `json:"model"`
	Media   string `json:"media,omitempty"`
	Caption string `json:"caption"`
}

func runCaption(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()
	test, _ := cmd.Flags().GetBool("test")

	if test == (len(args) == 1) {
		return errors.New("give a media file or --test, but not both")
	}

	c, err := newCaptioner(ctx, cc)
	if err != nil {
		return err
	}

	out := captionOutput{Model: c.Model()}

	if test {
		out.Caption, err = c.Ping(ctx)
	} else {
		out.Media = args[0]
		out.Caption, err = c.Describe(ctx, args[0])
	}

	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		return printJSON(w, out)
	}

	fmt.Fprintln(w, out.Caption)

	return nil
}
