package cratemeta

import (
	"context"
	"sync"
)

// twoPackageDoc is a workspace with members a and b.
const twoPackageDoc = `{"packages":[{"name":"a","authors":[],"version":"0.1.0",
"description":null,"manifest_path":"/w/a/Cargo.toml","targets":[],
"metadata":null},{"name":"b","authors":[],"version":"0.2.0",
"description":null,"manifest_path":"/w/b/Cargo.toml","targets":[],
"metadata":null}],"target_directory":"/w/target"}`

type fakeCall struct {
	program string
	args    []string
}

// fakeRunner records invocations and replays a canned result.
type fakeRunner struct {
	mu    sync.Mutex
	calls []fakeCall
	out   Output
	err   error
}

func newFakeRunner(stdout string) *fakeRunner {
	return &fakeRunner{out: Output{Stdout: []byte(stdout)}}
}

func (f *fakeRunner) Run(_ context.Context, program string, args []string) (*Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{program: program, args: append([]string(nil), args...)})
	if f.err != nil {
		return nil, f.err
	}
	out := f.out
	return &out, nil
}

func (f *fakeRunner) spawns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) lastCall() fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return fakeCall{}
	}
	return f.calls[len(f.calls)-1]
}

// envOf returns a lookup function over a fixed environment.
func envOf(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}
