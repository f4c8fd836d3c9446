package identity

import "sync"

// Provider holds the current user ID and notifies subscribers when it
// changes. The empty string means nobody is logged in.
type Provider struct {
	mu        sync.Mutex
	current   string
	nextID    int
	listeners map[int]func(string)
}

// NewProvider creates a Provider starting at userID ("" for logged out).
func NewProvider(userID string) *Provider {
	return &Provider{
		current:   userID,
		listeners: make(map[int]func(string)),
	}
}

// Current returns the current user ID.
func (p *Provider) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Subscribe registers fn for identity changes.
func (p *Provider) Subscribe(fn func(userID string)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// Set switches to userID, notifying subscribers if it differs.
func (p *Provider) Set(userID string) {
	p.mu.Lock()
	if p.current == userID {
		p.mu.Unlock()
		return
	}
	p.current = userID
	fns := make([]func(string), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(userID)
	}
}

// Clear logs out.
func (p *Provider) Clear() {
	p.Set("")
}
