/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/cratemeta/pkg/buildinfo"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the cratemeta version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			extended, _ := cmd.Flags().GetBool("extended")
			out := cmd.OutOrStdout()

			if _, err := fmt.Fprintf(out, "cratemeta %s\n", buildinfo.Version()); err != nil {
				return err
			}
			if !extended {
				return nil
			}
			if mv := buildinfo.ModuleVersion(); mv != "" {
				_, _ = fmt.Fprintf(out, "Module version: %s\n", mv)
			}
			_, _ = fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			_, err := fmt.Fprintf(out, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return err
		},
	}
	cmd.Flags().Bool("extended", false, "Show Go version and platform")
	return cmd
}
