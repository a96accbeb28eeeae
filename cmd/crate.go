/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/cratemeta/internal/render"
	"github.com/fulmenhq/cratemeta/pkg/exitcode"
)

func newCrateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crate",
		Short: "Print the metadata of a single package",
		Long: `Print the cargo metadata narrowed to one package: the packages named --name
whose manifest_path is exactly --manifest-path.

Without flags both values come from CARGO_MANIFEST_DIR and CARGO_PKG_NAME, which
may be supplied through --env-file to reproduce what a build script sees.
Manifest paths are compared byte for byte; pass the path cargo reports.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCrate(cmd)
		},
	}
	cmd.Flags().String("manifest-path", "", "Path to Cargo.toml")
	cmd.Flags().String("name", "", "Package name")
	return cmd
}

func (a *app) runCrate(cmd *cobra.Command) error {
	manifest, _ := cmd.Flags().GetString("manifest-path")
	name, _ := cmd.Flags().GetString("name")
	if (manifest == "") != (name == "") {
		return exitcode.WithCode(exitcode.ConfigError, errors.New("--manifest-path and --name must be given together"))
	}

	g, err := a.gateway()
	if err != nil {
		return err
	}

	if manifest == "" {
		if manifest, err = g.ManifestPath(); err != nil {
			return err
		}
		if name, err = g.PackageName(); err != nil {
			return err
		}
	}

	doc, err := query(cmd.Context(), g, manifest)
	if err != nil {
		return err
	}
	doc.Root = doc.Root.Narrow(name, manifest)
	if len(doc.Root.Packages) == 0 {
		return exitcode.WithCode(exitcode.ValidationError, fmt.Errorf("no package %q with manifest_path %s", name, manifest))
	}

	return render.Write(cmd.OutOrStdout(), a.cfg.Format, []render.Document{doc})
}
