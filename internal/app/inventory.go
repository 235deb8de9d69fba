package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// minRefreshInterval bounds how often either model list is re-fetched
	// for non-forced refreshes.
	minRefreshInterval = 5 * time.Second

	// pollInterval is the cadence of the passive running-models poll.
	pollInterval = 10 * time.Second

	msgOllamaNotRunning = "Ollama is not running. Please start Ollama and try again."
)

// Backend is the daemon surface the coordinator and the chat session depend
// on. *OllamaClient is the production implementation; tests inject fakes.
type Backend interface {
	CheckConnection(ctx context.Context) bool
	ListModels(ctx context.Context) ([]Model, error)
	ListRunningModels(ctx context.Context) ([]RunningModel, error)
	PullModel(ctx context.Context, name string) (<-chan PullUpdate, error)
	DeleteModel(ctx context.Context, name string) error
	Chat(ctx context.Context, model string, messages []ChatMessage, options map[string]any) (*ChatResponse, error)
	LoadModel(ctx context.Context, name string) error
	UnloadModel(ctx context.Context, name string) error
}

// InventoryOptions tunes the coordinator's timing. Zero values take the
// package defaults.
type InventoryOptions struct {
	RefreshInterval time.Duration
	PollInterval    time.Duration
}

// Inventory owns the authoritative snapshot of installed and running
// models. All state is guarded by one mutex; readers always get copies.
// A background poller refreshes the running list while the daemon is
// reachable; it is started by NewInventory and stopped by Close.
type Inventory struct {
	client   Backend
	log      zerolog.Logger
	progress *ProgressTracker

	refreshInterval time.Duration
	pollInterval    time.Duration

	mu                 sync.Mutex
	models             []Model
	running            []RunningModel
	errorMessage       string
	backendRunning     bool
	loading            bool
	lastModelsRefresh  time.Time
	lastRunningRefresh time.Time
	observers          []func()

	done      chan struct{}
	closeOnce sync.Once
}

func NewInventory(client Backend, log zerolog.Logger, opts InventoryOptions) *Inventory {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = minRefreshInterval
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = pollInterval
	}
	inv := &Inventory{
		client:          client,
		log:             log,
		refreshInterval: opts.RefreshInterval,
		pollInterval:    opts.PollInterval,
		progress:        NewProgressTracker(),
		done:            make(chan struct{}),
	}
	go inv.poll()
	return inv
}

// Close stops the background poller. Safe to call more than once.
func (inv *Inventory) Close() {
	inv.closeOnce.Do(func() { close(inv.done) })
}

// Subscribe registers a callback invoked after every published state
// change. Callbacks run outside the coordinator's lock and must not block.
func (inv *Inventory) Subscribe(fn func()) {
	inv.mu.Lock()
	inv.observers = append(inv.observers, fn)
	inv.mu.Unlock()
}

func (inv *Inventory) publish() {
	inv.mu.Lock()
	observers := make([]func(), len(inv.observers))
	copy(observers, inv.observers)
	inv.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

func (inv *Inventory) poll() {
	ticker := time.NewTicker(inv.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-inv.done:
			return
		case <-ticker.C:
			inv.mu.Lock()
			due := inv.backendRunning && time.Since(inv.lastRunningRefresh) >= inv.refreshInterval
			inv.mu.Unlock()
			if due {
				inv.LoadRunningModels(context.Background(), false)
			}
		}
	}
}

// CheckConnection probes the daemon and, when reachable, triggers an
// initial load of both lists. On failure it publishes the steady
// "not running" banner without clearing any cached data.
func (inv *Inventory) CheckConnection(ctx context.Context) {
	ok := inv.client.CheckConnection(ctx)
	inv.mu.Lock()
	inv.backendRunning = ok
	if !ok {
		inv.errorMessage = msgOllamaNotRunning
		inv.loading = false
	}
	inv.mu.Unlock()
	inv.publish()

	if ok {
		inv.LoadModels(ctx, false)
		inv.LoadRunningModels(ctx, false)
	} else {
		inv.log.Warn().Msg("ollama daemon unreachable")
	}
}

// LoadModels refreshes the installed-model list. Non-forced calls within
// the refresh window are skipped while the cache is non-empty, so rapid
// re-entry from the view layer does not hammer the daemon. On failure the
// stale cache is kept and an error message is published.
func (inv *Inventory) LoadModels(ctx context.Context, force bool) {
	inv.mu.Lock()
	if !force && time.Since(inv.lastModelsRefresh) < inv.refreshInterval && len(inv.models) > 0 {
		inv.mu.Unlock()
		return
	}
	inv.loading = true
	inv.errorMessage = ""
	wasRunning := inv.backendRunning
	inv.mu.Unlock()
	inv.publish()

	if !wasRunning {
		if !inv.client.CheckConnection(ctx) {
			inv.mu.Lock()
			inv.errorMessage = msgOllamaNotRunning
			inv.loading = false
			inv.mu.Unlock()
			inv.publish()
			return
		}
		inv.mu.Lock()
		inv.backendRunning = true
		inv.mu.Unlock()
	}

	models, err := inv.client.ListModels(ctx)
	inv.mu.Lock()
	if err != nil {
		inv.errorMessage = "Failed to load models: " + err.Error()
	} else {
		inv.models = models
		inv.lastModelsRefresh = time.Now()
	}
	inv.loading = false
	inv.mu.Unlock()
	inv.publish()

	if err != nil {
		inv.log.Error().Err(err).Msg("load models failed")
	} else {
		inv.log.Debug().Int("count", len(models)).Msg("refreshed installed models")
	}
}

// LoadRunningModels refreshes the running-model list with the same throttle
// window as LoadModels, tracked independently. A failed refresh publishes
// an error only when the cache is empty; otherwise the stale list stands.
func (inv *Inventory) LoadRunningModels(ctx context.Context, force bool) {
	inv.mu.Lock()
	if !force && time.Since(inv.lastRunningRefresh) < inv.refreshInterval && len(inv.running) > 0 {
		inv.mu.Unlock()
		return
	}
	inv.mu.Unlock()

	running, err := inv.client.ListRunningModels(ctx)
	inv.mu.Lock()
	if err != nil {
		if len(inv.running) == 0 {
			inv.errorMessage = "Failed to load running models: " + err.Error()
		}
	} else {
		inv.running = running
		inv.lastRunningRefresh = time.Now()
		if strings.Contains(inv.errorMessage, "running models") {
			inv.errorMessage = ""
		}
	}
	inv.mu.Unlock()
	inv.publish()

	if err != nil {
		inv.log.Error().Err(err).Msg("load running models failed")
	}
}

// PullModel downloads a model, feeding the progress tracker with each
// status the daemon reports. The call blocks until the stream ends; run it
// from its own goroutine. Completion leaves the entry at "Completed" and
// forces a model-list refresh; failure leaves an error marker with no
// automatic retry. Concurrent pulls of one name race last-writer-wins on
// the tracker entry.
func (inv *Inventory) PullModel(ctx context.Context, name string) {
	inv.progress.Set(name, "Starting download...")
	inv.publish()
	inv.log.Info().Str("model", name).Msg("pull started")

	updates, err := inv.client.PullModel(ctx, name)
	if err != nil {
		inv.progress.Set(name, "Error: "+err.Error())
		inv.publish()
		inv.log.Error().Err(err).Str("model", name).Msg("pull failed")
		return
	}

	for update := range updates {
		if update.Err != nil {
			inv.progress.Set(name, "Error: "+update.Err.Error())
			inv.publish()
			inv.log.Error().Err(update.Err).Str("model", name).Msg("pull failed")
			return
		}
		inv.progress.Set(name, update.Status)
		inv.publish()
	}

	inv.progress.Set(name, PullCompleted)
	inv.publish()
	inv.log.Info().Str("model", name).Msg("pull completed")
	inv.LoadModels(ctx, true)
}

// DeleteModel removes a model from the daemon and, on success, drops it
// from the cached list. Deleting a name the cache does not hold is a no-op
// on the cache.
func (inv *Inventory) DeleteModel(ctx context.Context, name string) {
	if err := inv.client.DeleteModel(ctx, name); err != nil {
		inv.mu.Lock()
		inv.errorMessage = "Failed to delete model: " + err.Error()
		inv.mu.Unlock()
		inv.publish()
		inv.log.Error().Err(err).Str("model", name).Msg("delete failed")
		return
	}
	inv.mu.Lock()
	kept := inv.models[:0]
	for _, m := range inv.models {
		if m.Name != name {
			kept = append(kept, m)
		}
	}
	inv.models = kept
	inv.mu.Unlock()
	inv.publish()
	inv.log.Info().Str("model", name).Msg("model deleted")
}

// LoadModel asks the daemon to load a model and refreshes the running list
// on success.
func (inv *Inventory) LoadModel(ctx context.Context, name string) {
	if err := inv.client.LoadModel(ctx, name); err != nil {
		inv.mu.Lock()
		inv.errorMessage = "Failed to load model: " + err.Error()
		inv.mu.Unlock()
		inv.publish()
		inv.log.Error().Err(err).Str("model", name).Msg("load failed")
		return
	}
	inv.LoadRunningModels(ctx, true)
}

// UnloadModel evicts a model and refreshes the running list on success.
func (inv *Inventory) UnloadModel(ctx context.Context, name string) {
	if err := inv.client.UnloadModel(ctx, name); err != nil {
		inv.mu.Lock()
		inv.errorMessage = "Failed to unload model: " + err.Error()
		inv.mu.Unlock()
		inv.publish()
		inv.log.Error().Err(err).Str("model", name).Msg("unload failed")
		return
	}
	inv.LoadRunningModels(ctx, true)
}

// RefreshAll resets both throttle timestamps, re-probes the daemon, and on
// success re-runs both list loads. Backs the explicit refresh action.
func (inv *Inventory) RefreshAll(ctx context.Context) {
	inv.mu.Lock()
	inv.lastModelsRefresh = time.Time{}
	inv.lastRunningRefresh = time.Time{}
	inv.mu.Unlock()

	ok := inv.client.CheckConnection(ctx)
	inv.mu.Lock()
	inv.backendRunning = ok
	inv.mu.Unlock()
	inv.publish()

	if ok {
		inv.LoadModels(ctx, false)
		inv.LoadRunningModels(ctx, false)
	}
}

// IsModelRunning reports whether name appears in the current running cache.
func (inv *Inventory) IsModelRunning(name string) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, m := range inv.running {
		if m.Name == name {
			return true
		}
	}
	return false
}

// Models returns a copy of the installed-model cache.
func (inv *Inventory) Models() []Model {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([]Model, len(inv.models))
	copy(out, inv.models)
	return out
}

// RunningModels returns a copy of the running-model cache.
func (inv *Inventory) RunningModels() []RunningModel {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([]RunningModel, len(inv.running))
	copy(out, inv.running)
	return out
}

// PullProgress returns a copy of the per-model download status map.
func (inv *Inventory) PullProgress() map[string]string {
	return inv.progress.Snapshot()
}

// ErrorMessage returns the most recent user-facing error, or "".
func (inv *Inventory) ErrorMessage() string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.errorMessage
}

// BackendRunning reports the last probed connection state.
func (inv *Inventory) BackendRunning() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.backendRunning
}

// Loading reports whether an installed-list refresh is in flight.
func (inv *Inventory) Loading() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.loading
}
