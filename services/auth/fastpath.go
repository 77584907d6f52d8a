package auth

import (
	"sync"
	"time"

	"reservo/utils"
)

// DefaultFastPathMaxAge bounds how long a fast-path flag is trusted.
const DefaultFastPathMaxAge = 5 * time.Minute

// FastPath is an advisory cache of "probably signed in" hints. A persistent
// hint survives restarts of the viewer, a tab hint lives for one viewer.
// Flags older than MaxAge read as absent. Never authoritative.
type FastPath struct {
	mu         sync.Mutex
	persistent time.Time
	tab        time.Time
	MaxAge     time.Duration
}

func NewFastPath(maxAge time.Duration) *FastPath {
	if maxAge <= 0 {
		maxAge = DefaultFastPathMaxAge
	}
	return &FastPath{MaxAge: maxAge}
}

func (f *FastPath) MarkPersistent(now time.Time) {
	f.mu.Lock()
	f.persistent = now
	f.mu.Unlock()
}

func (f *FastPath) MarkTab(now time.Time) {
	f.mu.Lock()
	f.tab = now
	f.mu.Unlock()
}

// Present reports whether either flag was set within MaxAge of now.
func (f *FastPath) Present(now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fresh(f.persistent, now) || f.fresh(f.tab, now)
}

func (f *FastPath) fresh(set, now time.Time) bool {
	return !set.IsZero() && now.Sub(set) <= f.MaxAge
}

// Clear drops both flags.
func (f *FastPath) Clear() {
	f.mu.Lock()
	f.persistent = time.Time{}
	f.tab = time.Time{}
	f.mu.Unlock()
}

// FastPaths keeps one FastPath per session token.
type FastPaths struct {
	mu     sync.Mutex
	byHash map[string]*FastPath
	MaxAge time.Duration
}

func NewFastPaths(maxAge time.Duration) *FastPaths {
	return &FastPaths{byHash: map[string]*FastPath{}, MaxAge: maxAge}
}

// For returns the FastPath of token, creating an empty one if needed. Only
// tokens that just passed a session check get an entry, so the registry is
// bounded by live sessions.
func (r *FastPaths) For(token string) *FastPath {
	key := utils.HashToken(token)
	r.mu.Lock()
	defer r.mu.Unlock()
	fp, ok := r.byHash[key]
	if !ok {
		fp = NewFastPath(r.MaxAge)
		r.byHash[key] = fp
	}
	return fp
}

// Lookup returns the FastPath of token, or nil when it has none.
func (r *FastPaths) Lookup(token string) *FastPath {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byHash[utils.HashToken(token)]
}

// Touch refreshes the persistent hint of a token whose session was just verified.
func (r *FastPaths) Touch(token string, now time.Time) {
	r.For(token).MarkPersistent(now)
}

// Drop forgets token's FastPath.
func (r *FastPaths) Drop(token string) {
	r.mu.Lock()
	delete(r.byHash, utils.HashToken(token))
	r.mu.Unlock()
}

// Len is the number of tokens holding a FastPath.
func (r *FastPaths) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHash)
}
