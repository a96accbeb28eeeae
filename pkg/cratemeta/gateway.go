/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cratemeta

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/fulmenhq/cratemeta/pkg/logger"
)

const (
	// ManifestFile is the manifest name appended to CARGO_MANIFEST_DIR
	ManifestFile = "Cargo.toml"
	// EnvManifestDir is set by cargo for build scripts to the package directory
	EnvManifestDir = "CARGO_MANIFEST_DIR"
	// EnvPkgName is set by cargo for build scripts to the package name
	EnvPkgName = "CARGO_PKG_NAME"
	// EnvCargo overrides the build tool executable when non-empty
	EnvCargo = "CARGO"
	// DefaultProgram is used when neither an option nor $CARGO names one
	DefaultProgram = "cargo"
)

// metadataArgs precede the manifest path on every invocation.
var metadataArgs = []string{
	"metadata",
	"--offline",
	"--locked",
	"--frozen",
	"--no-deps",
	"--format-version=1",
	"--manifest-path",
}

// Gateway runs `cargo metadata` and decodes its output. The zero value is
// not usable; construct one with New. A Gateway holds no per-call state
// and may be shared between goroutines.
type Gateway struct {
	runner    Runner
	lookupEnv func(string) (string, bool)
	program   string
	strict    bool
}

// Option configures a Gateway
type Option func(*Gateway)

// WithRunner replaces the process layer.
func WithRunner(r Runner) Option {
	return func(g *Gateway) {
		if r != nil {
			g.runner = r
		}
	}
}

// WithLookupEnv replaces os.LookupEnv for ambient context resolution,
// including the $CARGO override.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.lookupEnv = fn
		}
	}
}

// WithProgram forces the build tool executable, taking precedence over $CARGO.
func WithProgram(program string) Option {
	return func(g *Gateway) {
		g.program = program
	}
}

// WithStrictExit makes a non-zero tool exit fail with KindExitStatus even
// when stdout holds a decodable document.
func WithStrictExit(strict bool) Option {
	return func(g *Gateway) {
		g.strict = strict
	}
}

// New creates a Gateway that spawns real processes and reads the process environment.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		runner:    ExecRunner{},
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Program returns the executable the gateway launches.
func (g *Gateway) Program() string {
	if g.program != "" {
		return g.program
	}
	if cargo, ok := g.lookupEnv(EnvCargo); ok && cargo != "" {
		return cargo
	}
	return DefaultProgram
}

// Args returns the full argument vector for manifestPath.
func (g *Gateway) Args(manifestPath string) []string {
	args := make([]string, 0, len(metadataArgs)+1)
	args = append(args, metadataArgs...)
	return append(args, manifestPath)
}

// ManifestPath resolves $CARGO_MANIFEST_DIR/Cargo.toml.
func (g *Gateway) ManifestPath() (string, error) {
	dir, ok := g.lookupEnv(EnvManifestDir)
	if !ok {
		return "", newError(KindMissingEnv, "resolve manifest", EnvManifestDir, nil)
	}
	return filepath.Join(dir, ManifestFile), nil
}

// PackageName resolves $CARGO_PKG_NAME.
func (g *Gateway) PackageName() (string, error) {
	name, ok := g.lookupEnv(EnvPkgName)
	if !ok {
		return "", newError(KindMissingEnv, "resolve package name", EnvPkgName, nil)
	}
	return name, nil
}

// Raw runs the metadata command once and returns its stdout, checked to be UTF-8.
func (g *Gateway) Raw(ctx context.Context, manifestPath string) ([]byte, error) {
	if err := checkManifestPath(manifestPath); err != nil {
		return nil, err
	}

	program := g.Program()
	args := g.Args(manifestPath)
	logger.Debug("running cargo metadata", logger.String("program", program), logger.String("args", strings.Join(args, " ")))

	out, err := g.runner.Run(ctx, program, args)
	if err != nil {
		return nil, newError(KindSpawn, "run", program, err)
	}

	if out.ExitCode != 0 {
		stderr := string(bytes.TrimSpace(out.Stderr))
		if g.strict {
			e := newError(KindExitStatus, "run", program, nil)
			e.ExitCode = out.ExitCode
			if stderr != "" {
				e.Err = errors.New(stderr)
			}
			return nil, e
		}
		logger.Debug("cargo metadata exited non-zero; decoding stdout anyway", logger.Int("exit_code", out.ExitCode), logger.String("stderr", stderr))
	}

	if _, _, err := transform.Bytes(encoding.UTF8Validator, out.Stdout); err != nil {
		return nil, newError(KindEncoding, "read output", program, err)
	}
	return out.Stdout, nil
}

// checkManifestPath rejects paths that cannot be rendered as a process argument.
func checkManifestPath(p string) error {
	if p == "" {
		return newError(KindInvalidPath, "check manifest", ManifestFile, errors.New("empty path"))
	}
	if strings.IndexByte(p, 0) >= 0 {
		return newError(KindInvalidPath, "check manifest", p, errors.New("path contains NUL byte"))
	}
	if _, _, err := transform.String(encoding.UTF8Validator, p); err != nil {
		return newError(KindInvalidPath, "check manifest", ManifestFile, err)
	}
	return nil
}

// LoadWorkspaceFor returns the full metadata document for the manifest at manifestPath.
func LoadWorkspaceFor[M any](ctx context.Context, g *Gateway, manifestPath string) (*Root[M], error) {
	if g == nil {
		g = New()
	}
	out, err := g.Raw(ctx, manifestPath)
	if err != nil {
		return nil, err
	}

	root, err := Decode[M](out)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Subject == "" {
			e.Subject = manifestPath
		}
		return nil, err
	}
	logger.Debug("decoded cargo metadata", logger.String("manifest", manifestPath), logger.Int("packages", len(root.Packages)))
	return root, nil
}

// LoadCrateFor returns the metadata document narrowed to the packages named
// name whose manifest_path equals manifestPath byte for byte. An empty
// package list is not an error.
func LoadCrateFor[M any](ctx context.Context, g *Gateway, manifestPath, name string) (*Root[M], error) {
	root, err := LoadWorkspaceFor[M](ctx, g, manifestPath)
	if err != nil {
		return nil, err
	}
	root = root.Narrow(name, manifestPath)
	if len(root.Packages) == 0 {
		logger.Debug("no package matched", logger.String("name", name), logger.String("manifest", manifestPath))
	}
	return root, nil
}

// LoadWorkspace is LoadWorkspaceFor with the manifest taken from $CARGO_MANIFEST_DIR.
func LoadWorkspace[M any](ctx context.Context, g *Gateway) (*Root[M], error) {
	if g == nil {
		g = New()
	}
	manifest, err := g.ManifestPath()
	if err != nil {
		return nil, err
	}
	return LoadWorkspaceFor[M](ctx, g, manifest)
}

// LoadCrate is LoadCrateFor with the manifest and name taken from
// $CARGO_MANIFEST_DIR and $CARGO_PKG_NAME.
func LoadCrate[M any](ctx context.Context, g *Gateway) (*Root[M], error) {
	if g == nil {
		g = New()
	}
	manifest, err := g.ManifestPath()
	if err != nil {
		return nil, err
	}
	name, err := g.PackageName()
	if err != nil {
		return nil, err
	}
	return LoadCrateFor[M](ctx, g, manifest, name)
}

// CrateMetadata returns the metadata of the crate whose build script is
// running, without the other members of its workspace.
func CrateMetadata[M any]() (*Root[M], error) {
	return LoadCrate[M](context.Background(), New())
}

// CargoMetadata returns the metadata of the crate whose build script is
// running together with every package of its workspace.
func CargoMetadata[M any]() (*Root[M], error) {
	return LoadWorkspace[M](context.Background(), New())
}

// CrateMetadataFor returns the metadata for manifestPath filtered to the
// package called name.
//
//	manifest := filepath.Join(os.Getenv("CARGO_MANIFEST_DIR"), "Cargo.toml")
//	root, err := cratemeta.CrateMetadataFor[MyConfig](manifest, os.Getenv("CARGO_PKG_NAME"))
func CrateMetadataFor[M any](manifestPath, name string) (*Root[M], error) {
	return LoadCrateFor[M](context.Background(), New(), manifestPath, name)
}

// CargoMetadataFor returns the unfiltered metadata for manifestPath.
func CargoMetadataFor[M any](manifestPath string) (*Root[M], error) {
	return LoadWorkspaceFor[M](context.Background(), New(), manifestPath)
}
