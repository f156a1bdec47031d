package cmdexec

import (
	"context"
	"strings"
	"sync"
)

// Recorder is a Runner for tests. It records every command it receives
// and answers from a table of scripted responses, defaulting to success
// with empty output.
type Recorder struct {
	mu        sync.Mutex
	calls     []Command
	responses map[string]scriptedResponse
}

type scriptedResponse struct {
	result Result
	err    error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		responses: make(map[string]scriptedResponse),
	}
}

// Respond scripts the response for any command whose "name args..."
// string has the given prefix. Later, more specific prefixes win over
// shorter ones.
func (r *Recorder) Respond(prefix string, result Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[prefix] = scriptedResponse{result: result, err: err}
}

// Run implements Runner.
func (r *Recorder) Run(_ context.Context, cmd Command) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, cmd)

	line := cmd.Name
	if len(cmd.Args) > 0 {
		line += " " + strings.Join(cmd.Args, " ")
	}

	var best string
	for prefix := range r.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		resp := r.responses[best]
		return resp.result, resp.err
	}

	return Result{}, nil
}

// Calls returns a copy of all recorded commands in invocation order.
func (r *Recorder) Calls() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallLines renders each recorded command as "name arg1 arg2 ...",
// which keeps test assertions readable.
func (r *Recorder) CallLines() []string {
	calls := r.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		line := c.Name
		if len(c.Args) > 0 {
			line += " " + strings.Join(c.Args, " ")
		}
		lines[i] = line
	}
	return lines
}
