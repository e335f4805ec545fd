package session

import (
	"context"
	"sync"

	"financeiro/internal/log"
)

// Hooks receive the sign-in and sign-out transitions. store.Store satisfies
// it. Epoch is read when the sign-in happens and handed to OnSignIn, which
// must do nothing once OnSignOut has run since.
type Hooks interface {
	Epoch() uint64
	OnSignIn(ctx context.Context, epoch uint64)
	OnSignOut()
}

// Lifecycle binds a gate to a set of hooks: false->true runs OnSignIn in the
// background, true->false runs OnSignOut before the transition returns.
type Lifecycle struct {
	ctx    context.Context
	hooks  Hooks
	logger *log.Logger

	wg          sync.WaitGroup
	unsubscribe func()
}

// Bind subscribes hooks to gate. If the gate is already authenticated the
// sign-in hook starts immediately. ctx bounds every sign-in load.
func Bind(ctx context.Context, gate Gate, hooks Hooks, logger *log.Logger) *Lifecycle {
	if logger == nil {
		logger = log.NewDiscard()
	}
	l := &Lifecycle{
		ctx:    ctx,
		hooks:  hooks,
		logger: logger.WithComponent(log.ComponentSession),
	}
	l.unsubscribe = gate.Subscribe(l.transition)
	// read before the flag so a sign-out racing Bind ends this epoch
	epoch := hooks.Epoch()
	if gate.Authenticated() {
		l.signIn(epoch)
	}
	return l
}

func (l *Lifecycle) transition(authenticated bool) {
	if authenticated {
		l.signIn(l.hooks.Epoch())
		return
	}
	l.logger.Debug("Sign-out transition, resetting store")
	l.hooks.OnSignOut()
}

func (l *Lifecycle) signIn(epoch uint64) {
	l.logger.Debug("Sign-in transition, populating store", "epoch", epoch)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.hooks.OnSignIn(l.ctx, epoch)
	}()
}

// Wait blocks until every sign-in load started so far has settled.
func (l *Lifecycle) Wait() {
	l.wg.Wait()
}

// Close stops reacting to the gate and waits for pending sign-in loads.
func (l *Lifecycle) Close() {
	l.unsubscribe()
	l.wg.Wait()
}
