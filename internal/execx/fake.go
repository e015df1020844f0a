package execx

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeResult is one scripted response for the fake executor.
type FakeResult struct {
	Stdout string
	Stderr string
	Err    error
}

// FakeExecutor is a scriptable CommandExecutor for tests. Responses are keyed
// by a space-joined prefix of the command line ("tmux has-session" matches
// any has-session invocation); the longest matching prefix wins. Unscripted
// commands succeed with empty output.
type FakeExecutor struct {
	mu      sync.Mutex
	results map[string]FakeResult
	calls   []string
}

// NewFakeExecutor returns an empty fake.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{results: make(map[string]FakeResult)}
}

// Script registers a response for commands starting with the given prefix.
func (f *FakeExecutor) Script(prefix string, res FakeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[prefix] = res
}

// ScriptOutput registers a successful response with the given stdout.
func (f *FakeExecutor) ScriptOutput(prefix, stdout string) {
	f.Script(prefix, FakeResult{Stdout: stdout})
}

// ScriptError registers a failing response.
func (f *FakeExecutor) ScriptError(prefix, stderr string) {
	f.Script(prefix, FakeResult{Stderr: stderr, Err: fmt.Errorf("exit status 1")})
}

// Calls returns every command line executed so far.
func (f *FakeExecutor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]string, len(f.calls))
	copy(calls, f.calls)
	return calls
}

// CallCount returns how many executed command lines start with prefix.
func (f *FakeExecutor) CallCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *FakeExecutor) lookup(name string, args []string) FakeResult {
	line := strings.Join(append([]string{name}, args...), " ")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, line)

	best := ""
	for prefix := range f.results {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return FakeResult{}
	}
	return f.results[best]
}

func (f *FakeExecutor) Run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	res := f.lookup(name, args)
	return []byte(res.Stdout), []byte(res.Stderr), res.Err
}

func (f *FakeExecutor) Output(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	res := f.lookup(name, args)
	return []byte(res.Stdout), res.Err
}

func (f *FakeExecutor) CombinedOutput(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	res := f.lookup(name, args)
	return []byte(res.Stdout + res.Stderr), res.Err
}

func (f *FakeExecutor) RunInput(ctx context.Context, dir, input, name string, args ...string) ([]byte, error) {
	res := f.lookup(name, args)
	return []byte(res.Stdout + res.Stderr), res.Err
}
