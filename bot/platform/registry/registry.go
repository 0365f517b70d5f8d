package registry

import (
	"errors"
	"regexp"
	"sync"
)

// Platform represents a music streaming platform recognized in shared links.
type Platform interface {
	// Name returns the platform's unique identifier.
	Name() string

	// Pattern returns a regular expression fragment matching the platform's
	// host names (without scheme or path). It is matched case-insensitively.
	Pattern() string
}

type entry struct {
	platform Platform
	host     *regexp.Regexp
}

// Registry manages registered Platform implementations in a thread-safe manner.
type Registry struct {
	mu        sync.RWMutex
	platforms map[string]Platform
	// Order preserving list for MatchURL to maintain registration order
	ordered []entry
}

// New creates a new Registry instance.
func New() *Registry {
	return &Registry{
		platforms: make(map[string]Platform),
		ordered:   make([]entry, 0),
	}
}

// Register adds a platform to the registry.
// Returns an error if the platform is nil, has an empty name or pattern, has an
// invalid pattern, or is already registered.
func (r *Registry) Register(p Platform) error {
	if p == nil {
		return errors.New("platform cannot be nil")
	}

	name := p.Name()
	if name == "" {
		return errors.New("platform name cannot be empty")
	}
	if p.Pattern() == "" {
		return errors.New("platform pattern cannot be empty: " + name)
	}

	host, err := regexp.Compile(`(?i)^(?:https?://)?(?:` + p.Pattern() + `)(?:[/?#:]|$)`)
	if err != nil {
		return errors.New("invalid platform pattern for " + name + ": " + err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.platforms[name]; exists {
		return errors.New("platform already registered: " + name)
	}

	r.platforms[name] = p
	r.ordered = append(r.ordered, entry{platform: p, host: host})

	return nil
}

// GetAll returns all registered platforms in registration order.
// The returned slice is a copy and safe for concurrent use.
func (r *Registry) GetAll() []Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Platform, 0, len(r.ordered))
	for _, e := range r.ordered {
		result = append(result, e.platform)
	}

	return result
}

// MatchURL finds the first platform whose host pattern matches the start of url.
// Platforms are checked in registration order.
func (r *Registry) MatchURL(url string) (Platform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.ordered {
		if e.host.MatchString(url) {
			return e.platform, true
		}
	}

	return nil, false
}

// Len returns the number of registered platforms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}
