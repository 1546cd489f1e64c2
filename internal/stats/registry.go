package stats

import (
	"strings"
	"sync"
)

// Registry maps sanitized usernames to their runners. The host constructs
// one registry at startup and passes it to whatever needs account lookup;
// there is no package-level instance.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]*Runner
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[string]*Runner)}
}

// SanitizeUsername normalizes a username for lookup: lowercase with spaces
// and hyphens folded to underscores.
func SanitizeUsername(username string) string {
	s := strings.ToLower(username)
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "-", "_")
}

// Add registers a runner under its coordinator's username.
func (r *Registry) Add(runner *Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[SanitizeUsername(runner.Coordinator().Username())] = runner
}

// Lookup finds the runner for a username, tolerating case and separator
// differences.
func (r *Registry) Lookup(username string) (*Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[SanitizeUsername(username)]
	return runner, ok
}

// Usernames lists the registered account names.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.runners))
	for _, runner := range r.runners {
		names = append(names, runner.Coordinator().Username())
	}
	return names
}
