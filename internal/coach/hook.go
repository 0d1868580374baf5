package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/apperr"
)

const hookManifest = "hook.json"

// ErrHookNotFound is returned when a requested hook cannot be found.
var ErrHookNotFound = errors.New("hook not found")

// HookManifest describes an external coaching executable.
type HookManifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`
	// Kinds limits the messages sent to the hook. Empty means every kind.
	Kinds []Kind `json:"kinds,omitempty"`
}

// Hook is a discovered coaching executable.
type Hook struct {
	Manifest   HookManifest
	Path       string
	Executable string
}

// Accepts reports whether the hook wants messages of kind k.
func (h *Hook) Accepts(k Kind) bool {
	if len(h.Manifest.Kinds) == 0 {
		return true
	}
	for _, want := range h.Manifest.Kinds {
		if want == k {
			return true
		}
	}
	return false
}

// HookRequest is written to the hook's stdin.
type HookRequest struct {
	Message Message `json:"message"`
}

// HookResponse is read from the hook's stdout.
type HookResponse struct {
	Success bool   `json:"success"`
	Busy    bool   `json:"busy,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HookRegistry discovers hooks in a directory. Each subdirectory holding a
// hook.json manifest is one hook.
type HookRegistry struct {
	dir   string
	hooks map[string]*Hook
	mu    sync.RWMutex
}

// NewHookRegistry creates a registry for dir.
func NewHookRegistry(dir string) *HookRegistry {
	return &HookRegistry{
		dir:   dir,
		hooks: make(map[string]*Hook),
	}
}

// Discover rescans the hook directory. A missing directory yields no hooks.
func (r *HookRegistry) Discover() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks = make(map[string]*Hook)

	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		hookPath := filepath.Join(r.dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(hookPath, hookManifest))
		if err != nil {
			continue
		}

		var manifest HookManifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			log.WithError(err).WithField("hook", entry.Name()).Warn("skipping hook with invalid manifest")
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			continue
		}

		r.hooks[manifest.Name] = &Hook{
			Manifest:   manifest,
			Path:       hookPath,
			Executable: filepath.Join(hookPath, manifest.Executable),
		}
	}

	return nil
}

// Get returns a hook by name.
func (r *HookRegistry) Get(name string) (*Hook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.hooks[name]
	if !ok {
		return nil, ErrHookNotFound
	}
	return h, nil
}

// List returns every discovered hook sorted by name.
func (r *HookRegistry) List() []*Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hooks := make([]*Hook, 0, len(r.hooks))
	for _, h := range r.hooks {
		hooks = append(hooks, h)
	}
	sort.Slice(hooks, func(i, j int) bool {
		return hooks[i].Manifest.Name < hooks[j].Manifest.Name
	})
	return hooks
}

// Dir returns the hook directory.
func (r *HookRegistry) Dir() string {
	return r.dir
}

// HookDispatcher runs a hook executable for every accepted message, passing
// a HookRequest on stdin and reading a HookResponse from stdout.
type HookDispatcher struct {
	hook    *Hook
	timeout time.Duration
}

// NewHookDispatcher creates a dispatcher for hook with a per-call timeout.
func NewHookDispatcher(hook *Hook, timeout time.Duration) *HookDispatcher {
	return &HookDispatcher{
		hook:    hook,
		timeout: timeout,
	}
}

// Dispatch implements Dispatcher. Messages of kinds the hook does not accept
// are skipped.
func (d *HookDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if !d.hook.Accepts(msg.Kind) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.hook.Executable)
	cmd.Dir = d.hook.Path
	// children of the hook may keep stdout open after it is killed
	cmd.WaitDelay = time.Second

	reqJSON, err := json.Marshal(HookRequest{Message: msg})
	if err != nil {
		return fmt.Errorf("marshal hook request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.ErrDispatchBusy.WithCause(fmt.Errorf("hook %s timed out after %s", d.hook.Manifest.Name, d.timeout))
	}
	if err != nil {
		if s := stderr.String(); s != "" {
			return apperr.ErrDispatchFailed.WithCause(fmt.Errorf("hook %s: %w, stderr: %s", d.hook.Manifest.Name, err, s))
		}
		return apperr.ErrDispatchFailed.WithCause(fmt.Errorf("hook %s: %w", d.hook.Manifest.Name, err))
	}

	var resp HookResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return apperr.ErrDispatchFailed.WithCause(fmt.Errorf("parse hook %s response: %w, stdout: %s", d.hook.Manifest.Name, err, stdout.String()))
	}
	switch {
	case resp.Busy:
		return apperr.ErrDispatchBusy.WithCause(fmt.Errorf("hook %s busy", d.hook.Manifest.Name))
	case !resp.Success:
		return apperr.ErrDispatchFailed.WithCause(fmt.Errorf("hook %s: %s", d.hook.Manifest.Name, resp.Error))
	}
	return nil
}

// HookDispatchers creates one dispatcher per registered hook.
func (r *HookRegistry) HookDispatchers(timeout time.Duration) []Dispatcher {
	hooks := r.List()
	out := make([]Dispatcher, 0, len(hooks))
	for _, h := range hooks {
		out = append(out, NewHookDispatcher(h, timeout))
	}
	return out
}
