package flow

import (
	"context"
	"strings"
	"sync"

	action "github.com/goliatone/go-action"
)

// HookFailureMode controls what a failing hook does to the invocation.
type HookFailureMode string

const (
	HookFailureModeFailOpen   HookFailureMode = "fail_open"
	HookFailureModeFailClosed HookFailureMode = "fail_closed"
)

// ParseHookFailureMode accepts fail_open and fail_closed. An empty value
// maps to fallback.
func ParseHookFailureMode(s string, fallback HookFailureMode) (HookFailureMode, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	if !isValidHookFailureMode(HookFailureMode(s)) {
		return fallback, cloneFlowError(ErrHookFailed, "unknown hook failure mode "+s, nil, nil)
	}
	return normalizeHookFailureMode(HookFailureMode(s), fallback), nil
}

func normalizeHookFailureMode(mode, fallback HookFailureMode) HookFailureMode {
	switch HookFailureMode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case HookFailureModeFailClosed:
		return HookFailureModeFailClosed
	case HookFailureModeFailOpen:
		return HookFailureModeFailOpen
	default:
		return fallback
	}
}

func isValidHookFailureMode(mode HookFailureMode) bool {
	switch HookFailureMode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case HookFailureModeFailOpen, HookFailureModeFailClosed:
		return true
	default:
		return false
	}
}

// HookEvent is what a hook sees about the invocation.
type HookEvent struct {
	Action  string
	Owner   action.Owner
	Context *action.Context
}

// Hook runs around every action whose name matches its pattern.
type Hook func(ctx context.Context, evt HookEvent) error

type hookEntry struct {
	pattern string
	hook    Hook
}

// Hooks holds framework level before and after hooks. Patterns are an
// exact action name, a prefix ending in "*", or "*".
type Hooks struct {
	mu         sync.RWMutex
	before     []hookEntry
	after      []hookEntry
	sealed     bool
	beforeMode HookFailureMode
	afterMode  HookFailureMode
}

// NewHooks returns an empty registry. Before hooks fail closed and after
// hooks fail open.
func NewHooks() *Hooks {
	return &Hooks{
		beforeMode: HookFailureModeFailClosed,
		afterMode:  HookFailureModeFailOpen,
	}
}

var defaultHooks = NewHooks()

// DefaultHooks is the process wide registry.
func DefaultHooks() *Hooks { return defaultHooks }

// RegisterBefore adds hook to the process wide registry.
func RegisterBefore(pattern string, hook Hook) error {
	return defaultHooks.RegisterBefore(pattern, hook)
}

// RegisterAfter adds hook to the process wide registry.
func RegisterAfter(pattern string, hook Hook) error {
	return defaultHooks.RegisterAfter(pattern, hook)
}

func (h *Hooks) RegisterBefore(pattern string, hook Hook) error {
	return h.register(&h.before, pattern, hook)
}

func (h *Hooks) RegisterAfter(pattern string, hook Hook) error {
	return h.register(&h.after, pattern, hook)
}

func (h *Hooks) register(list *[]hookEntry, pattern string, hook Hook) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || hook == nil {
		return cloneFlowError(ErrInvalidFactory, "hook pattern and callback are required", nil, map[string]any{
			"pattern": pattern,
		})
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sealed {
		return cloneFlowError(ErrHookRegistrySealed, "", nil, map[string]any{
			"pattern": pattern,
		})
	}
	*list = append(*list, hookEntry{pattern: pattern, hook: hook})
	return nil
}

// SetFailureModes changes how before and after hook failures are handled.
func (h *Hooks) SetFailureModes(before, after HookFailureMode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeMode = normalizeHookFailureMode(before, HookFailureModeFailClosed)
	h.afterMode = normalizeHookFailureMode(after, HookFailureModeFailOpen)
}

// FailureModes returns the before and after modes.
func (h *Hooks) FailureModes() (HookFailureMode, HookFailureMode) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.beforeMode, h.afterMode
}

// Seal ends registration. Later Register calls fail.
func (h *Hooks) Seal() {
	h.mu.Lock()
	h.sealed = true
	h.mu.Unlock()
}

func (h *Hooks) Sealed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sealed
}

// Reset drops every hook and reopens registration.
func (h *Hooks) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.before = nil
	h.after = nil
	h.sealed = false
	h.beforeMode = HookFailureModeFailClosed
	h.afterMode = HookFailureModeFailOpen
}

// Before returns the before hooks matching name in registration order.
func (h *Hooks) Before(name string) []Hook {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return matchHooks(h.before, name)
}

// After returns the after hooks matching name in registration order.
func (h *Hooks) After(name string) []Hook {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return matchHooks(h.after, name)
}

func matchHooks(entries []hookEntry, name string) []Hook {
	var out []Hook
	for _, entry := range entries {
		if matchPattern(entry.pattern, name) {
			out = append(out, entry.hook)
		}
	}
	return out
}

func matchPattern(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(name, prefix)
	}
	return pattern == name
}

func (h *Hooks) runBefore(ctx context.Context, evt HookEvent, logger action.Logger, onFailure func(error)) error {
	mode, _ := h.FailureModes()
	return fanoutHooks(ctx, h.Before(evt.Action), evt, mode, "before", logger, onFailure)
}

func (h *Hooks) runAfter(ctx context.Context, evt HookEvent, logger action.Logger, onFailure func(error)) error {
	_, mode := h.FailureModes()
	return fanoutHooks(ctx, h.After(evt.Action), evt, mode, "after", logger, onFailure)
}

// fanoutHooks calls every hook. Fail closed returns on the first error;
// fail open hands the error to onFailure and keeps going.
func fanoutHooks(ctx context.Context, hooks []Hook, evt HookEvent, mode HookFailureMode, phase string, logger action.Logger, onFailure func(error)) error {
	if len(hooks) == 0 {
		return nil
	}
	logger = action.NormalizeLogger(logger).WithContext(ctx)
	fields := map[string]any{
		"action": evt.Action,
		"phase":  phase,
	}
	if evt.Owner != nil {
		fields["owner"] = evt.Owner.OwnerKey()
	}
	logger = action.WithLoggerFields(logger, fields)

	for idx, hook := range hooks {
		err := action.Guard(func() error { return hook(ctx, evt) })
		if err == nil {
			continue
		}
		if mode == HookFailureModeFailClosed {
			return cloneFlowError(ErrHookFailed, phase+" hook failed", err, fields)
		}
		logger.Warn("lifecycle hook failed", "index", idx, "error", err)
		if onFailure != nil {
			onFailure(cloneFlowError(ErrHookFailed, phase+" hook failed", err, fields))
		}
	}
	return nil
}
