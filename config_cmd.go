package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/reelpost/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the config file path",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), cc.configPath())

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a key in the config file",
		Long: `Set a string key in the config file, creating the file if needed.
Other lines, including comments, are left untouched.`,
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE:        runConfigSet,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), config.Effective(cc.Cfg))
	}

	return config.RenderEffective(cc.Cfg, cmd.OutOrStdout())
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	path := cc.configPath()

	if err := config.SetKey(path, args[0], args[1]); err != nil {
		return err
	}

	cc.Statusf("Set %s in %s\n", args[0], path)

	return nil
}
