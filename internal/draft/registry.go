package draft

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("authoring session not found")

// Registry holds the open authoring sessions. Sessions idle for longer than
// the TTL are dropped together with their staged files.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Draft
	ttl      time.Duration
	staging  *Staging
	stop     chan struct{}
	once     sync.Once
}

// NewRegistry creates a registry and starts its cleanup loop.
func NewRegistry(ttl time.Duration, staging *Staging) *Registry {
	r := &Registry{
		sessions: make(map[string]*Draft),
		ttl:      ttl,
		staging:  staging,
		stop:     make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

// Open starts a session for userID from st.
func (r *Registry) Open(userID string, st State) *Draft {
	d := Load(uuid.New().String(), userID, st)

	r.mu.Lock()
	r.sessions[d.ID()] = d
	r.mu.Unlock()

	slog.Info("authoring session opened", "session_id", d.ID(), "user_id", userID, "loop_id", st.LoopID)
	return d
}

// Get returns the session id of userID. Sessions of other users are reported as missing.
func (r *Registry) Get(id, userID string) (*Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.sessions[id]
	if !ok || d.UserID() != userID {
		return nil, ErrSessionNotFound
	}
	return d, nil
}

// Discard closes a session and frees its staged files.
func (r *Registry) Discard(id, userID string) error {
	r.mu.Lock()
	d, ok := r.sessions[id]
	if !ok || d.UserID() != userID {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	r.staging.Release(d.Reset()...)
	slog.Info("authoring session discarded", "session_id", id, "user_id", userID)
	return nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle since before now minus the TTL. Sessions with a
// publish in flight are kept.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.ttl)

	r.mu.Lock()
	var expired []*Draft
	for id, d := range r.sessions {
		if d.Publishing() || d.Touched().After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		expired = append(expired, d)
	}
	r.mu.Unlock()

	for _, d := range expired {
		r.staging.Release(d.Reset()...)
	}
	if len(expired) > 0 {
		slog.Info("expired authoring sessions removed", "count", len(expired))
	}
	return len(expired)
}

// Close stops the cleanup loop.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.stop) })
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			r.Sweep(now)
		case <-r.stop:
			return
		}
	}
}
