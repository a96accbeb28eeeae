package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/cratemeta/pkg/cratemeta"
	"github.com/fulmenhq/cratemeta/pkg/logger"
)

const workspaceA = `{"packages":[{"name":"a","authors":[],"version":"0.1.0",
"description":null,"manifest_path":"/w/a/Cargo.toml","targets":[{"kind":["lib"],"crate_types":["lib"],"name":"a"}],
"metadata":null},{"name":"b","authors":[],"version":"0.2.0",
"description":"second","manifest_path":"/w/b/Cargo.toml","targets":[],
"metadata":{"kind":"thing"}}],"target_directory":"/w/target"}`

const workspaceX = `{"packages":[{"name":"x","authors":["Jane"],"version":"1.0.0",
"manifest_path":"/x/Cargo.toml","targets":[{"kind":["bin"],"crate_types":["bin"],"name":"x"}]}],
"target_directory":"/x/target"}`

// scriptedRunner answers by the manifest path, the last argument.
// Unknown manifests produce cargo's failure shape: empty stdout, exit 101.
type scriptedRunner struct {
	mu         sync.Mutex
	byManifest map[string]cratemeta.Output
	err        error
	programs   []string
	manifests  []string
}

func newScriptedRunner(docs map[string]string) *scriptedRunner {
	r := &scriptedRunner{byManifest: map[string]cratemeta.Output{}}
	for manifest, doc := range docs {
		r.byManifest[manifest] = cratemeta.Output{Stdout: []byte(doc)}
	}
	return r
}

func (r *scriptedRunner) Run(_ context.Context, program string, args []string) (*cratemeta.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	manifest := args[len(args)-1]
	r.programs = append(r.programs, program)
	r.manifests = append(r.manifests, manifest)
	if r.err != nil {
		return nil, r.err
	}
	out, ok := r.byManifest[manifest]
	if !ok {
		return &cratemeta.Output{Stderr: []byte("error: manifest path `" + manifest + "` does not exist"), ExitCode: 101}, nil
	}
	return &out, nil
}

func (r *scriptedRunner) spawns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.manifests)
}

// execCLI runs a fresh command tree against runner with an isolated HOME
// and no ambient config file.
func execCLI(t *testing.T, runner cratemeta.Runner, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Cleanup(logger.Reset)

	root := newRootCommand(&app{runner: runner})
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
