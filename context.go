package action

import (
	"sync"
)

// Entry is a single key/value pair handed to a Context.
// Values are cloned on insertion unless Shared is set or the
// value is value-like.
type Entry struct {
	Key    string
	Value  any
	Shared bool
}

// With builds an entry whose value is cloned on insertion.
func With(key string, value any) Entry {
	return Entry{Key: key, Value: value}
}

// Share builds an entry whose value is stored by reference.
func Share(key string, value any) Entry {
	return Entry{Key: key, Value: value, Shared: true}
}

// Context is the per-invocation data carrier: typed values in, one
// success flag out. The identity name never changes after construction.
type Context struct {
	mu         sync.RWMutex
	name       string
	policy     ClonePolicy
	keys       []string
	values     map[string]any
	successful bool
}

// NewContext builds a context using the strict clone policy.
func NewContext(name string, entries ...Entry) (*Context, error) {
	return NewContextWithPolicy(name, CloneStrict, entries...)
}

// NewContextWithPolicy builds a context, copying every entry according
// to policy. The first entry that cannot be stored aborts construction.
func NewContextWithPolicy(name string, policy ClonePolicy, entries ...Entry) (*Context, error) {
	c := &Context{
		name:   name,
		policy: policy,
		values: make(map[string]any, len(entries)),
	}
	for _, entry := range entries {
		if err := c.AddEntry(entry); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Name returns the identity name.
func (c *Context) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Policy returns the clone policy applied to inserted values.
func (c *Context) Policy() ClonePolicy {
	if c == nil {
		return CloneStrict
	}
	return c.policy
}

// Add stores a cloned copy of value under key.
func (c *Context) Add(key string, value any) error {
	return c.AddEntry(With(key, value))
}

// AddEntry stores an entry honoring its Shared flag.
func (c *Context) AddEntry(entry Entry) error {
	value := entry.Value
	if !entry.Shared {
		cloned, err := cloneValue(entry.Key, value, c.policy)
		if err != nil {
			return err
		}
		value = cloned
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.values[entry.Key]; exists {
		return &DuplicateKeyError{Context: c.name, Key: entry.Key}
	}
	c.keys = append(c.keys, entry.Key)
	c.values[entry.Key] = value
	return nil
}

// Lookup returns the raw stored value.
func (c *Context) Lookup(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether key is present.
func (c *Context) Has(key string) bool {
	_, ok := c.Lookup(key)
	return ok
}

// Keys returns the keys in insertion order.
func (c *Context) Keys() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of stored entries.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// Clear removes every entry. The name and the success flag are kept.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = nil
	c.values = make(map[string]any)
}

// MarkSuccessful flips the success flag. It reports false when the flag
// was already set for this invocation.
func (c *Context) MarkSuccessful() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.successful {
		return false
	}
	c.successful = true
	return true
}

// Successful reports the success flag.
func (c *Context) Successful() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.successful
}

// ResetResult clears the success flag so the context can back a retry.
func (c *Context) ResetResult() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successful = false
}

// Get returns the value stored under key as T.
func Get[T any](c *Context, key string) (T, error) {
	var zero T
	raw, ok := c.Lookup(key)
	if !ok {
		return zero, &MissingKeyError{Context: c.Name(), Key: key, Reason: MissingReasonAbsent}
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, &MissingKeyError{
			Context:  c.Name(),
			Key:      key,
			Reason:   MissingReasonTypeMismatch,
			Expected: typeString[T](),
			Actual:   typeOf(raw),
		}
	}
	return typed, nil
}

// TryGet returns the value stored under key as T and whether it matched.
func TryGet[T any](c *Context, key string) (T, bool) {
	v, err := Get[T](c, key)
	return v, err == nil
}

// GetOr returns the value stored under key or fallback.
func GetOr[T any](c *Context, key string, fallback T) T {
	if v, ok := TryGet[T](c, key); ok {
		return v
	}
	return fallback
}
