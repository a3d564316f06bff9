package main

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRequestTimeout is returned when the daemon loop did not answer in time.
var ErrRequestTimeout = errors.New("request timed out")

// panelClient submits requests to the daemon loop and waits for their
// replies. It is the only way client surfaces (IPC, HTTP, websocket) talk to
// the panel; none of them see DaemonState directly.
type panelClient struct {
	events  chan<- Event
	timeout time.Duration
}

func newPanelClient(events chan<- Event, timeout time.Duration) *panelClient {
	if timeout <= 0 {
		timeout = requestTimeout
	}
	return &panelClient{events: events, timeout: timeout}
}

// Change submits a widget value change.
func (c *panelClient) Change(ctx context.Context, key string, value any) error {
	reply := make(chan error, 1)
	err := c.roundTrip(ctx, PreferenceChange{Key: key, Value: value, Reply: reply}, reply)
	recordRequest("change", err)
	return err
}

// Click taps an action preference.
func (c *panelClient) Click(ctx context.Context, key string) error {
	reply := make(chan error, 1)
	err := c.roundTrip(ctx, PreferenceClick{Key: key, Reply: reply}, reply)
	recordRequest("click", err)
	return err
}

// Rebuild re-runs screen creation and waits until the new screen is installed.
func (c *panelClient) Rebuild(ctx context.Context) error {
	reply := make(chan error, 1)
	err := c.roundTrip(ctx, RebuildPanel{Reply: reply}, reply)
	recordRequest("rebuild", err)
	return err
}

// Snapshot returns a copy of the screen.
func (c *panelClient) Snapshot(ctx context.Context) (StateSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply := make(chan StateSnapshot, 1)
	if err := c.submit(ctx, RequestStateSnapshot{Reply: reply}); err != nil {
		return StateSnapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return StateSnapshot{}, waitError(ctx)
	}
}

// Dispatch routes a decoded client event (no reply channel attached) through
// the matching request so the caller learns its outcome.
func (c *panelClient) Dispatch(ctx context.Context, ev Event) (any, error) {
	switch e := ev.(type) {
	case PreferenceChange:
		return nil, c.Change(ctx, e.Key, e.Value)
	case PreferenceClick:
		return nil, c.Click(ctx, e.Key)
	case RebuildPanel:
		return nil, c.Rebuild(ctx)
	case RequestStateSnapshot:
		return c.Snapshot(ctx)
	default:
		return nil, fmt.Errorf("unsupported event type: %T", ev)
	}
}

func (c *panelClient) roundTrip(ctx context.Context, ev Event, reply <-chan error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.submit(ctx, ev); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return waitError(ctx)
	}
}

func (c *panelClient) submit(ctx context.Context, ev Event) error {
	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return waitError(ctx)
	}
}

func waitError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrRequestTimeout
	}
	return ctx.Err()
}
