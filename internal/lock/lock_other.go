//go:build !unix

package lock

import "sync"

var (
	registryMu sync.Mutex
	registry   = map[string]*sync.Mutex{}
)

// Lock serializes holders within this process only
type Lock struct {
	path string
	mu   *sync.Mutex
}

func acquire(path string) (*Lock, error) {
	registryMu.Lock()
	mu, ok := registry[path]
	if !ok {
		mu = &sync.Mutex{}
		registry[path] = mu
	}
	registryMu.Unlock()

	mu.Lock()
	return &Lock{path: path, mu: mu}, nil
}

// Release unlocks. Calling it twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.mu == nil {
		return nil
	}
	l.mu.Unlock()
	l.mu = nil
	return nil
}
