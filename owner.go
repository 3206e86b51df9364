package action

import "sync"

// Owner is the view capability an action is bound to. OwnerKey groups
// actions that must run one at a time.
type Owner interface {
	OwnerKey() string
	StartLoading()
	StopLoading()
}

// Invalidator is implemented by owners that hold pending UI state which
// must be dropped before an action starts.
type Invalidator interface {
	InvalidatePending()
}

// LoadingCounter is a reference counted busy indicator. Nested starts
// are idempotent until the outermost stop.
type LoadingCounter struct {
	mu       sync.Mutex
	depth    int
	onChange func(loading bool)
}

// NewLoadingCounter returns a counter that calls onChange when the busy
// state flips. onChange may be nil.
func NewLoadingCounter(onChange func(loading bool)) *LoadingCounter {
	return &LoadingCounter{onChange: onChange}
}

// Start increments the counter.
func (l *LoadingCounter) Start() {
	l.mu.Lock()
	l.depth++
	flipped := l.depth == 1
	cb := l.onChange
	l.mu.Unlock()

	if flipped && cb != nil {
		cb(true)
	}
}

// Stop decrements the counter. Extra stops are ignored.
func (l *LoadingCounter) Stop() {
	l.mu.Lock()
	if l.depth == 0 {
		l.mu.Unlock()
		return
	}
	l.depth--
	flipped := l.depth == 0
	cb := l.onChange
	l.mu.Unlock()

	if flipped && cb != nil {
		cb(false)
	}
}

// Loading reports whether at least one start is outstanding.
func (l *LoadingCounter) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth > 0
}

// Depth returns the number of outstanding starts.
func (l *LoadingCounter) Depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth
}

// StaticOwner is an Owner with a fixed key backed by a LoadingCounter.
// It is useful for headless callers and tests.
type StaticOwner struct {
	Key     string
	Loading *LoadingCounter
}

// NewStaticOwner builds a StaticOwner with its own counter.
func NewStaticOwner(key string) *StaticOwner {
	return &StaticOwner{Key: key, Loading: NewLoadingCounter(nil)}
}

func (o *StaticOwner) OwnerKey() string { return o.Key }
func (o *StaticOwner) StartLoading()    { o.Loading.Start() }
func (o *StaticOwner) StopLoading()     { o.Loading.Stop() }
