package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sysaura/internal/models"
)

// TargetAccess answers whether an identity may read a target. It returns an
// error wrapping ErrNotFound when the target does not exist.
type TargetAccess interface {
	CanAccess(ctx context.Context, identity models.Identity, targetID string) (bool, error)
}

// Registry tracks authenticated sessions and which targets each live
// connection is subscribed to.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	targets  map[string]map[string]struct{} // target -> subscribers
	subs     map[string]map[string]struct{} // subscriber -> targets
	access   TargetAccess
}

// NewRegistry creates an empty registry. Without access, non-admin sessions
// can only subscribe to the local target.
func NewRegistry(access TargetAccess) *Registry {
	return &Registry{
		sessions: make(map[string]models.Session),
		targets:  make(map[string]map[string]struct{}),
		subs:     make(map[string]map[string]struct{}),
		access:   access,
	}
}

// Access returns the ownership checker the registry was built with.
func (r *Registry) Access() TargetAccess {
	return r.access
}

// Attach records the session created at handshake time. A connection
// authenticates once; later attempts are rejected.
func (r *Registry) Attach(session models.Session) error {
	if session.ID == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("%w: session %s already authenticated", ErrInvalidInput, session.ID)
	}
	r.sessions[session.ID] = session
	return nil
}

// Session looks up the session of a connection.
func (r *Registry) Session(subscriberID string) (models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[subscriberID]
	return s, ok
}

// Subscribe adds subscriberID to the subscribers of targetID.
func (r *Registry) Subscribe(ctx context.Context, subscriberID, targetID string) error {
	if targetID == "" {
		return fmt.Errorf("%w: system id is required", ErrInvalidInput)
	}

	session, ok := r.Session(subscriberID)
	if !ok {
		return fmt.Errorf("subscriber %s: %w", subscriberID, ErrAuthFailure)
	}

	if err := Authorize(ctx, r.access, session.Identity, targetID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// the connection may have closed while access was being checked
	if _, ok := r.sessions[subscriberID]; !ok {
		return fmt.Errorf("subscriber %s: %w", subscriberID, ErrAuthFailure)
	}
	if r.targets[targetID] == nil {
		r.targets[targetID] = make(map[string]struct{})
	}
	r.targets[targetID][subscriberID] = struct{}{}
	if r.subs[subscriberID] == nil {
		r.subs[subscriberID] = make(map[string]struct{})
	}
	r.subs[subscriberID][targetID] = struct{}{}
	return nil
}

// Authorize returns nil when identity may read targetID. The local target is
// open to every authenticated identity. With a nil access only admins pass.
func Authorize(ctx context.Context, access TargetAccess, identity models.Identity, targetID string) error {
	if targetID == models.LocalTargetID {
		return nil
	}
	if access == nil {
		if identity.IsAdmin() {
			return nil
		}
		return fmt.Errorf("target %s: %w", targetID, ErrAccessDenied)
	}
	allowed, err := access.CanAccess(ctx, identity, targetID)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("target %s: %w", targetID, ErrAccessDenied)
	}
	return nil
}

// Unsubscribe removes one subscription. It reports whether it existed.
func (r *Registry) Unsubscribe(subscriberID, targetID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(subscriberID, targetID)
}

func (r *Registry) removeLocked(subscriberID, targetID string) bool {
	set, ok := r.targets[targetID]
	if !ok {
		return false
	}
	if _, ok := set[subscriberID]; !ok {
		return false
	}
	delete(set, subscriberID)
	if len(set) == 0 {
		delete(r.targets, targetID)
	}
	if targets, ok := r.subs[subscriberID]; ok {
		delete(targets, targetID)
		if len(targets) == 0 {
			delete(r.subs, subscriberID)
		}
	}
	return true
}

// DropAll removes every subscription and the session of a disconnected
// subscriber, returning the targets it was subscribed to.
func (r *Registry) DropAll(subscriberID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []string
	for targetID := range r.subs[subscriberID] {
		dropped = append(dropped, targetID)
	}
	for _, targetID := range dropped {
		r.removeLocked(subscriberID, targetID)
	}
	delete(r.subs, subscriberID)
	delete(r.sessions, subscriberID)
	sort.Strings(dropped)
	return dropped
}

// SubscribersOf returns the subscriber ids of targetID, sorted.
func (r *Registry) SubscribersOf(targetID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.targets[targetID])
}

// TargetsOf returns the targets subscriberID is subscribed to, sorted.
func (r *Registry) TargetsOf(subscriberID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.subs[subscriberID])
}

// Targets returns every target with at least one subscriber, sorted.
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.targets))
	for id := range r.targets {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
