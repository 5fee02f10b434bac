package transport

import (
	"context"
	"time"

	"chatwidget/pkg/clock"
)

const (
	StubReply        = "Widget is working! Set an endpoint to connect your webhook."
	DefaultStubDelay = 1500 * time.Millisecond
)

// Stub answers every message with StubReply after a fixed delay. It stands in
// for the webhook when no endpoint is configured.
type Stub struct {
	clock clock.Clock
	delay time.Duration
}

func NewStub(clk clock.Clock, delay time.Duration) *Stub {
	if delay <= 0 {
		delay = DefaultStubDelay
	}
	return &Stub{clock: clk, delay: delay}
}

func (s *Stub) Send(ctx context.Context, _ Request) (string, error) {
	elapsed := make(chan struct{})
	timer := s.clock.AfterFunc(s.delay, func() { close(elapsed) })

	select {
	case <-elapsed:
		return StubReply, nil
	case <-ctx.Done():
		timer.Stop()
		return "", ctx.Err()
	}
}
