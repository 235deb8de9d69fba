package app

import "sync"

// PullCompleted is the terminal status left in the tracker when a download
// finishes normally.
const PullCompleted = "Completed"

// ProgressTracker keeps the latest free-text status per in-flight model
// download. Entries are created on pull start and overwritten per event;
// they are never auto-pruned, so a finished entry stays at "Completed" or
// its error string until the process exits.
type ProgressTracker struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{entries: map[string]string{}}
}

func (t *ProgressTracker) Set(name, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[name] = status
}

func (t *ProgressTracker) Get(name string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	status, ok := t.entries[name]
	return status, ok
}

// Snapshot returns a copy of all entries.
func (t *ProgressTracker) Snapshot() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string, len(t.entries))
	for name, status := range t.entries {
		out[name] = status
	}
	return out
}
