package cratemeta

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWorkspaceFor_FullDocument(t *testing.T) {
	runner := newFakeRunner(twoPackageDoc)
	g := New(WithRunner(runner), WithLookupEnv(envOf(nil)))

	root, err := LoadWorkspaceFor[Value](context.Background(), g, "/w/Cargo.toml")
	require.NoError(t, err)

	require.Len(t, root.Packages, 2)
	assert.Equal(t, "a", root.Packages[0].Name)
	assert.Equal(t, "b", root.Packages[1].Name)
	assert.Equal(t, "/w/target", root.TargetDirectory)
	assert.Equal(t, 1, runner.spawns())
}

func TestLoadCrateFor_Filtering(t *testing.T) {
	tests := []struct {
		name      string
		manifest  string
		pkg       string
		wantNames []string
	}{
		{"narrowed to self", "/w/a/Cargo.toml", "a", []string{"a"}},
		{"name matches other manifest", "/w/a/Cargo.toml", "b", nil},
		{"path not rendered identically", "/w/a/../a/Cargo.toml", "a", nil},
		{"workspace root manifest", "/w/Cargo.toml", "a", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(WithRunner(newFakeRunner(twoPackageDoc)), WithLookupEnv(envOf(nil)))

			root, err := LoadCrateFor[Value](context.Background(), g, tt.manifest, tt.pkg)
			require.NoError(t, err)
			assert.Equal(t, "/w/target", root.TargetDirectory)

			var names []string
			for _, p := range root.Packages {
				names = append(names, p.Name)
				assert.Equal(t, tt.manifest, p.ManifestPath)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestGateway_ArgumentVector(t *testing.T) {
	runner := newFakeRunner(twoPackageDoc)
	g := New(WithRunner(runner), WithLookupEnv(envOf(nil)))

	_, err := LoadWorkspaceFor[Value](context.Background(), g, "/w/Cargo.toml")
	require.NoError(t, err)

	call := runner.lastCall()
	assert.Equal(t, "cargo", call.program)
	assert.Equal(t, []string{
		"metadata", "--offline", "--locked", "--frozen", "--no-deps",
		"--format-version=1", "--manifest-path", "/w/Cargo.toml",
	}, call.args)
}

func TestGateway_ProgramSelection(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		opts    []Option
		program string
	}{
		{"unset uses cargo", nil, nil, "cargo"},
		{"empty uses cargo", map[string]string{EnvCargo: ""}, nil, "cargo"},
		{"override from env", map[string]string{EnvCargo: "/usr/local/bin/mycargo"}, nil, "/usr/local/bin/mycargo"},
		{"explicit option wins", map[string]string{EnvCargo: "/usr/local/bin/mycargo"}, []Option{WithProgram("/opt/cargo")}, "/opt/cargo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner(twoPackageDoc)
			opts := append([]Option{WithRunner(runner), WithLookupEnv(envOf(tt.env))}, tt.opts...)
			g := New(opts...)

			assert.Equal(t, tt.program, g.Program())
			_, err := LoadWorkspaceFor[Value](context.Background(), g, "/w/Cargo.toml")
			require.NoError(t, err)
			assert.Equal(t, tt.program, runner.lastCall().program)
		})
	}
}

func TestGateway_ProgramFromProcessEnv(t *testing.T) {
	t.Setenv(EnvCargo, "/usr/local/bin/mycargo")
	t.Setenv(EnvManifestDir, "/w/a")
	t.Setenv(EnvPkgName, "a")

	runner := newFakeRunner(twoPackageDoc)
	root, err := LoadCrate[Value](context.Background(), New(WithRunner(runner)))
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/mycargo", runner.lastCall().program)
	require.Len(t, root.Packages, 1)
	assert.Equal(t, "a", root.Packages[0].Name)
}

func TestLoadCrate_AmbientContext(t *testing.T) {
	manifestDir := filepath.FromSlash("/w/a")
	runner := newFakeRunner(twoPackageDoc)
	g := New(WithRunner(runner), WithLookupEnv(envOf(map[string]string{
		EnvManifestDir: manifestDir,
		EnvPkgName:     "a",
	})))

	manifest, err := g.ManifestPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(manifestDir, "Cargo.toml"), manifest)

	root, err := LoadCrate[Value](context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, manifest, runner.lastCall().args[len(runner.lastCall().args)-1])
	if filepath.Separator == '/' {
		require.Len(t, root.Packages, 1)
		assert.Equal(t, "a", root.Packages[0].Name)
	}
}

func TestLoadWorkspace_AmbientContext(t *testing.T) {
	runner := newFakeRunner(twoPackageDoc)
	g := New(WithRunner(runner), WithLookupEnv(envOf(map[string]string{EnvManifestDir: "/w"})))

	root, err := LoadWorkspace[Value](context.Background(), g)
	require.NoError(t, err)
	assert.Len(t, root.Packages, 2)
	assert.Equal(t, 1, runner.spawns())
}

func TestMissingAmbientContext(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		load    func(*Gateway) error
		missing string
	}{
		{
			name: "crate without manifest dir",
			env:  map[string]string{EnvPkgName: "a"},
			load: func(g *Gateway) error {
				_, err := LoadCrate[Value](context.Background(), g)
				return err
			},
			missing: EnvManifestDir,
		},
		{
			name: "workspace without manifest dir",
			env:  nil,
			load: func(g *Gateway) error {
				_, err := LoadWorkspace[Value](context.Background(), g)
				return err
			},
			missing: EnvManifestDir,
		},
		{
			name: "crate without package name",
			env:  map[string]string{EnvManifestDir: "/w/a"},
			load: func(g *Gateway) error {
				_, err := LoadCrate[Value](context.Background(), g)
				return err
			},
			missing: EnvPkgName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner(twoPackageDoc)
			g := New(WithRunner(runner), WithLookupEnv(envOf(tt.env)))

			err := tt.load(g)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingEnv)
			assert.Contains(t, err.Error(), tt.missing)
			assert.Equal(t, 0, runner.spawns())
		})
	}
}

func TestCrateMetadata_ProcessEnvUnset(t *testing.T) {
	// t.Setenv registers restoration; Unsetenv then removes it for this test only.
	t.Setenv(EnvManifestDir, "")
	require.NoError(t, os.Unsetenv(EnvManifestDir))

	_, err := CrateMetadata[Value]()
	require.Error(t, err)
	assert.Equal(t, KindMissingEnv, KindOf(err))
	assert.Contains(t, err.Error(), EnvManifestDir)

	_, err = CargoMetadata[Value]()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvManifestDir)
}

func TestGateway_InvalidManifestPath(t *testing.T) {
	for name, path := range map[string]string{
		"empty":        "",
		"nul byte":     "/w/a\x00/Cargo.toml",
		"invalid utf8": "/w/\xff/Cargo.toml",
	} {
		t.Run(name, func(t *testing.T) {
			runner := newFakeRunner(twoPackageDoc)
			g := New(WithRunner(runner), WithLookupEnv(envOf(nil)))

			_, err := LoadCrateFor[Value](context.Background(), g, path, "a")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPath)
			assert.Equal(t, 0, runner.spawns())
		})
	}
}

func TestGateway_SpawnFailure(t *testing.T) {
	runner := newFakeRunner("")
	runner.err = errors.New("exec: \"cargo\": executable file not found in $PATH")
	g := New(WithRunner(runner), WithLookupEnv(envOf(nil)))

	_, err := LoadWorkspaceFor[Value](context.Background(), g, "/w/Cargo.toml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpawn)
	assert.Contains(t, err.Error(), "executable file not found")
}

func TestGateway_NonUTF8Output(t *testing.T) {
	runner := &fakeRunner{out: Output{Stdout: []byte{'{', 0xff, 0xfe, '}'}}}
	g := New(WithRunner(runner), WithLookupEnv(envOf(nil)))

	_, err := LoadWorkspaceFor[Value](context.Background(), g, "/w/Cargo.toml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncoding)
	assert.Equal(t, KindEncoding, KindOf(err))
}

func TestGateway_DecodeErrorNamesManifest(t *testing.T) {
	g := New(WithRunner(newFakeRunner(`{"packages":[]}`)), WithLookupEnv(envOf(nil)))

	_, err := LoadWorkspaceFor[Value](context.Background(), g, "/w/Cargo.toml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Contains(t, err.Error(), "/w/Cargo.toml")
}

func TestGateway_ExitStatus(t *testing.T) {
	newRunner := func() *fakeRunner {
		r := newFakeRunner(twoPackageDoc)
		r.out.ExitCode = 101
		r.out.Stderr = []byte("warning: something odd\n")
		return r
	}

	t.Run("permissive by default", func(t *testing.T) {
		g := New(WithRunner(newRunner()), WithLookupEnv(envOf(nil)))
		root, err := LoadWorkspaceFor[Value](context.Background(), g, "/w/Cargo.toml")
		require.NoError(t, err)
		assert.Len(t, root.Packages, 2)
	})

	t.Run("strict rejects non-zero exit", func(t *testing.T) {
		g := New(WithRunner(newRunner()), WithLookupEnv(envOf(nil)), WithStrictExit(true))
		_, err := LoadWorkspaceFor[Value](context.Background(), g, "/w/Cargo.toml")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExitStatus)

		var e *Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, 101, e.ExitCode)
		assert.Contains(t, err.Error(), "something odd")
	})

	t.Run("non-zero exit with garbage still fails decode", func(t *testing.T) {
		r := newRunner()
		r.out.Stdout = []byte("error: failed to parse manifest")
		g := New(WithRunner(r), WithLookupEnv(envOf(nil)))
		_, err := LoadWorkspaceFor[Value](context.Background(), g, "/w/Cargo.toml")
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestGateway_Raw(t *testing.T) {
	g := New(WithRunner(newFakeRunner(twoPackageDoc)), WithLookupEnv(envOf(nil)))

	out, err := g.Raw(context.Background(), "/w/Cargo.toml")
	require.NoError(t, err)
	assert.Equal(t, twoPackageDoc, string(out))
}

func TestGateway_ConcurrentCallsAreIndependent(t *testing.T) {
	runner := newFakeRunner(twoPackageDoc)
	g := New(WithRunner(runner), WithLookupEnv(envOf(nil)))

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := LoadCrateFor[Value](context.Background(), g, "/w/b/Cargo.toml", "b")
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, n, runner.spawns())
}

func TestLoadNilGatewayUsesDefaults(t *testing.T) {
	t.Setenv(EnvManifestDir, "")
	require.NoError(t, os.Unsetenv(EnvManifestDir))

	_, err := LoadWorkspace[Value](context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingEnv)
}
