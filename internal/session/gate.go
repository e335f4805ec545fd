// Package session tracks whether the user is signed in and drives the store
// lifecycle from that flag.
package session

import (
	"context"
	"sync"

	"financeiro/internal/core"
	"financeiro/internal/log"
)

// Listener is called with the new value after every transition.
type Listener func(authenticated bool)

// Gate exposes the authentication flag. Listeners are only called when the
// flag actually changes and must not change the gate themselves.
type Gate interface {
	Authenticated() bool
	Subscribe(fn Listener) (unsubscribe func())
}

// flag is the transition-notifying boolean shared by the gates.
type flag struct {
	// emitMu serializes transitions so listeners see them in order
	emitMu sync.Mutex

	mu        sync.Mutex
	value     bool
	listeners map[int]Listener
	next      int
}

func (f *flag) Authenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

func (f *flag) Subscribe(fn Listener) func() {
	f.mu.Lock()
	if f.listeners == nil {
		f.listeners = make(map[int]Listener)
	}
	id := f.next
	f.next++
	f.listeners[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

// set stores v and notifies listeners if it changed. It reports whether a
// transition happened.
func (f *flag) set(v bool) bool {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	f.mu.Lock()
	if f.value == v {
		f.mu.Unlock()
		return false
	}
	f.value = v
	fns := make([]Listener, 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
	return true
}

// StaticGate is a gate whose flag is set by the caller.
type StaticGate struct {
	flag
}

func NewStaticGate(authenticated bool) *StaticGate {
	g := &StaticGate{}
	g.value = authenticated
	return g
}

// Set changes the flag, notifying listeners on a transition.
func (g *StaticGate) Set(authenticated bool) {
	g.set(authenticated)
}

// Authenticator is the auth surface of the finance API.
type Authenticator interface {
	Login(ctx context.Context, creds core.Credentials) (core.User, error)
	Logout(ctx context.Context) error
	CheckAuth(ctx context.Context) (bool, *core.User, error)
}

// HTTPGate mirrors the server session held in the API client's cookie jar.
type HTTPGate struct {
	flag

	auth   Authenticator
	logger *log.Logger

	userMu sync.RWMutex
	user   *core.User
}

func NewHTTPGate(auth Authenticator, logger *log.Logger) *HTTPGate {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &HTTPGate{
		auth:   auth,
		logger: logger.WithComponent(log.ComponentSession),
	}
}

// User returns the signed-in user, if any.
func (g *HTTPGate) User() (core.User, bool) {
	g.userMu.RLock()
	defer g.userMu.RUnlock()
	if g.user == nil {
		return core.User{}, false
	}
	return *g.user, true
}

func (g *HTTPGate) setUser(u *core.User) {
	g.userMu.Lock()
	g.user = u
	g.userMu.Unlock()
}

// Login opens a session. A rejected login leaves the flag unchanged.
func (g *HTTPGate) Login(ctx context.Context, creds core.Credentials) (core.User, error) {
	user, err := g.auth.Login(ctx, creds)
	if err != nil {
		g.logger.WarnContext(ctx, "Login failed",
			log.FieldOperation, log.OpLogin,
			log.FieldUser, creds.Username,
			log.FieldErrorKind, string(core.KindOf(err)),
			log.FieldError, err)
		return core.User{}, err
	}

	g.setUser(&user)
	g.logger.InfoContext(ctx, "Signed in", log.FieldOperation, log.OpLogin, log.FieldUser, user.Username)
	g.set(true)
	return user, nil
}

// Logout closes the session. The local flag drops to false even when the
// server call fails; the error is still returned.
func (g *HTTPGate) Logout(ctx context.Context) error {
	err := g.auth.Logout(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "Server logout failed, signing out locally",
			log.FieldOperation, log.OpLogout,
			log.FieldError, err)
	}

	g.setUser(nil)
	if g.set(false) {
		g.logger.InfoContext(ctx, "Signed out", log.FieldOperation, log.OpLogout)
	}
	return err
}

// Check asks the server whether the session is still valid and updates the
// flag. On error the flag is left as is.
func (g *HTTPGate) Check(ctx context.Context) (bool, error) {
	ok, user, err := g.auth.CheckAuth(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "Session check failed", log.FieldError, err)
		return g.Authenticated(), err
	}

	if ok {
		g.setUser(user)
	} else {
		g.setUser(nil)
	}
	if g.set(ok) {
		g.logger.InfoContext(ctx, "Session state changed", "authenticated", ok)
	}
	return ok, nil
}
