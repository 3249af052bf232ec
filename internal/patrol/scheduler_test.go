package patrol

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcode-patrol/internal/mediaserver"
)

// stubAPI is an in-memory ServerAPI that just counts session fetches.
type stubAPI struct {
	mu            sync.Mutex
	sessionsCalls int
}

func (s *stubAPI) ServerName() string { return "stub" }

func (s *stubAPI) Sessions(ctx context.Context) ([]mediaserver.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionsCalls++
	return nil, nil
}

func (s *stubAPI) Item(ctx context.Context, itemID string) (*mediaserver.Item, error) {
	return nil, errors.New("not implemented")
}

func (s *stubAPI) SendMessage(ctx context.Context, sessionID, header, text string, displayTimeout time.Duration) error {
	return nil
}

func (s *stubAPI) StopPlayback(ctx context.Context, sessionID string) error {
	return nil
}

func (s *stubAPI) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionsCalls
}

func TestSchedulerRunsCyclesUntilCancelled(t *testing.T) {
	stub := &stubAPI{}
	cfg := mediaserver.ServerConfig{Name: "stub", APIKey: "key", Enabled: true}
	sp := NewServerPatrol(cfg, stub, time.Second, zerolog.Nop())

	scheduler := NewScheduler(
		NewPatrol([]*ServerPatrol{sp}, zerolog.Nop()),
		testPolicy(),
		20*time.Millisecond,
		zerolog.Nop(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	// One immediate cycle plus at least two ticks.
	require.Eventually(t, func() bool { return stub.calls() >= 3 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}

	// No new cycles after shutdown.
	final := stub.calls()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, final, stub.calls())
}
