/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fulmenhq/cratemeta/internal/render"
	"github.com/fulmenhq/cratemeta/pkg/cratemeta"
	"github.com/fulmenhq/cratemeta/pkg/exitcode"
	"github.com/fulmenhq/cratemeta/pkg/logger"
)

// maxConcurrentQueries bounds the cargo processes one invocation runs at once
const maxConcurrentQueries = 4

func newWorkspaceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Print the metadata of every package in a workspace",
		Long: `Print the unfiltered cargo metadata for one or more manifests.

Without --manifest-path the manifest is $CARGO_MANIFEST_DIR/Cargo.toml, as seen
by a build script. Several manifests are queried concurrently and printed in
the order given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWorkspace(cmd)
		},
	}
	cmd.Flags().StringSlice("manifest-path", nil, "Path to Cargo.toml (repeatable)")
	cmd.Flags().String("filter", "", "Only keep packages whose name matches this glob (e.g. 'gen-*')")
	return cmd
}

func (a *app) runWorkspace(cmd *cobra.Command) error {
	manifests, _ := cmd.Flags().GetStringSlice("manifest-path")
	filter, _ := cmd.Flags().GetString("filter")

	if filter != "" {
		if !doublestar.ValidatePattern(filter) {
			return exitcode.WithCode(exitcode.ConfigError, fmt.Errorf("invalid --filter pattern %q", filter))
		}
		if a.cfg.Format == "raw" {
			return exitcode.WithCode(exitcode.ConfigError, errors.New("--filter cannot be combined with --format raw"))
		}
	}

	g, err := a.gateway()
	if err != nil {
		return err
	}

	if len(manifests) == 0 {
		manifest, err := g.ManifestPath()
		if err != nil {
			return err
		}
		manifests = []string{manifest}
	}

	docs, err := queryAll(cmd.Context(), g, manifests)
	if err != nil {
		return err
	}

	if filter != "" {
		for i := range docs {
			docs[i].Root = filterByName(docs[i].Root, filter)
		}
	}

	return render.Write(cmd.OutOrStdout(), a.cfg.Format, docs)
}

// queryAll loads every manifest concurrently; results keep argument order.
func queryAll(ctx context.Context, g *cratemeta.Gateway, manifests []string) ([]render.Document, error) {
	docs := make([]render.Document, len(manifests))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentQueries)
	for i, manifest := range manifests {
		eg.Go(func() error {
			doc, err := query(ctx, g, manifest)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// query runs the tool once and decodes the output, keeping the raw bytes.
func query(ctx context.Context, g *cratemeta.Gateway, manifest string) (render.Document, error) {
	raw, err := g.Raw(ctx, manifest)
	if err != nil {
		return render.Document{}, err
	}
	root, err := cratemeta.Decode[cratemeta.Value](raw)
	if err != nil {
		var e *cratemeta.Error
		if errors.As(err, &e) && e.Subject == "" {
			e.Subject = manifest
		}
		return render.Document{}, err
	}
	logger.Debug("loaded workspace", logger.String("manifest", manifest), logger.Int("packages", len(root.Packages)))
	return render.Document{Manifest: manifest, Root: root, Raw: raw}, nil
}

// filterByName keeps the packages whose name matches pattern, in order.
func filterByName(root *cratemeta.Root[cratemeta.Value], pattern string) *cratemeta.Root[cratemeta.Value] {
	kept := make([]cratemeta.Package[cratemeta.Value], 0, len(root.Packages))
	for _, p := range root.Packages {
		if ok, _ := doublestar.Match(pattern, p.Name); ok {
			kept = append(kept, p)
		}
	}
	return &cratemeta.Root[cratemeta.Value]{Packages: kept, TargetDirectory: root.TargetDirectory}
}
