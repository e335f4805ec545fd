package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"financeiro/internal/amqp"
)

type fakeRemote struct {
	mu       sync.Mutex
	handled  []string
	refreshes atomic.Int32
	err      error
}

func (r *fakeRemote) HandleRemoteMutation(ctx context.Context, event *amqp.MutationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handled = append(r.handled, event.RequestID)
	return r.err
}

func (r *fakeRemote) RefreshAll(ctx context.Context) error {
	r.refreshes.Add(1)
	return r.err
}

type flag bool

func (f flag) Authenticated() bool { return bool(f) }

type fakeConsumer struct {
	events []*amqp.MutationEvent
	err    error
}

func (c *fakeConsumer) ConsumeMutations(ctx context.Context, handler func(context.Context, *amqp.MutationEvent) error) error {
	for _, ev := range c.events {
		if err := handler(ctx, ev); err != nil {
			return err
		}
	}
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func event(id string) *amqp.MutationEvent {
	return amqp.NewMutationEvent(id, "other-host", "transaction", "create", 1, []string{"accounts"})
}

func TestHandleMutationMessage(t *testing.T) {
	tests := []struct {
		name       string
		signedIn   bool
		remoteErr  error
		wantErr    bool
		wantHandle int
	}{
		{"signed in", true, nil, false, 1},
		{"signed out", false, nil, false, 0},
		{"remote failure", true, errors.New("boom"), true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{err: tt.remoteErr}
			w := NewRefreshWorker(remote, flag(tt.signedIn), 0, nil)

			err := w.HandleMutationMessage(context.Background(), event("r1"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleMutationMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(remote.handled) != tt.wantHandle {
				t.Fatalf("handled %d events, want %d", len(remote.handled), tt.wantHandle)
			}
		})
	}
}

func TestPeriodicRefresh_SkipsWhenSignedOut(t *testing.T) {
	remote := &fakeRemote{}

	if err := NewRefreshWorker(remote, flag(false), time.Minute, nil).PeriodicRefresh(context.Background()); err != nil {
		t.Fatalf("PeriodicRefresh() error = %v", err)
	}
	if remote.refreshes.Load() != 0 {
		t.Fatal("signed-out worker must not refresh")
	}

	if err := NewRefreshWorker(remote, flag(true), time.Minute, nil).PeriodicRefresh(context.Background()); err != nil {
		t.Fatalf("PeriodicRefresh() error = %v", err)
	}
	if remote.refreshes.Load() != 1 {
		t.Fatalf("refreshes = %d, want 1", remote.refreshes.Load())
	}
}

func TestRun_ConsumesAndStops(t *testing.T) {
	remote := &fakeRemote{}
	consumer := &fakeConsumer{events: []*amqp.MutationEvent{event("r1"), event("r2")}}
	w := NewRefreshWorker(remote, flag(true), 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	deadline := time.After(2 * time.Second)
	for {
		remote.mu.Lock()
		n := len(remote.handled)
		remote.mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("handled %d events before timeout", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRun_ConsumerFailure(t *testing.T) {
	w := NewRefreshWorker(&fakeRemote{}, flag(true), 0, nil)
	consumer := &fakeConsumer{err: errors.New("channel closed")}

	if err := w.Run(context.Background(), consumer); err == nil {
		t.Fatal("Run() should surface consumer failure")
	}
}

func TestRun_PeriodicTick(t *testing.T) {
	remote := &fakeRemote{}
	w := NewRefreshWorker(remote, flag(true), 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if remote.refreshes.Load() == 0 {
		t.Fatal("expected at least one periodic refresh")
	}
}
