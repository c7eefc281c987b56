package session

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultLookupTimeout bounds a shared backend read.
const DefaultLookupTimeout = 5 * time.Second

// Coalesced wraps a Registry and deduplicates concurrent Get calls for the
// same conversation, so a burst of webhook retries costs one backend read.
type Coalesced struct {
	inner   Registry
	group   singleflight.Group
	timeout time.Duration
}

// Coalesce wraps r.
func Coalesce(r Registry) *Coalesced {
	return &Coalesced{inner: r, timeout: DefaultLookupTimeout}
}

// Get returns the session ID for the conversation, sharing the result with
// any concurrent Get for the same key.
//
// The shared read is detached from the cancellation of whichever caller
// started it and bounded by the lookup timeout instead. Each caller stops
// waiting when its own ctx is done.
func (c *Coalesced) Get(ctx context.Context, conversationID string) (string, error) {
	ch := c.group.DoChan(conversationID, func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.inner.Get(readCtx, conversationID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Set writes through and drops any in-flight Get for the key so later
// readers observe the new value.
func (c *Coalesced) Set(ctx context.Context, conversationID, sessionID string) error {
	err := c.inner.Set(ctx, conversationID, sessionID)
	c.group.Forget(conversationID)
	return err
}

// Delete forwards to the wrapped registry when it supports deletion.
func (c *Coalesced) Delete(ctx context.Context, conversationID string) error {
	d, ok := c.inner.(Deleter)
	if !ok {
		return nil
	}
	err := d.Delete(ctx, conversationID)
	c.group.Forget(conversationID)
	return err
}

// Sweep forwards to the wrapped registry when it holds expirable entries.
func (c *Coalesced) Sweep(ctx context.Context) int {
	if e, ok := c.inner.(Expirer); ok {
		return e.Sweep(ctx)
	}
	return 0
}

// Unwrap returns the wrapped registry.
func (c *Coalesced) Unwrap() Registry {
	return c.inner
}
