// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"context"
	"sync"
)

// Pending is a resolution running in the background for a UI session.
type Pending struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	outcome   Outcome
	ok        bool
	cancelled bool
}

// Start runs Resolve asynchronously.
func (r *Resolver) Start(ctx context.Context, req Request) *Pending {
	ctx, cancel := context.WithCancel(ctx)

	p := &Pending{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(p.done)
		defer cancel()

		o := r.Resolve(ctx, req)

		p.mu.Lock()
		defer p.mu.Unlock()

		p.outcome, p.ok = o, true
	}()

	return p
}

// Done is closed once the resolution settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the resolution settles. ok is false once the session was
// cancelled; the outcome is then discarded.
func (p *Pending) Wait() (Outcome, bool) {
	<-p.done

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancelled || !p.ok {
		return Outcome{}, false
	}

	return p.outcome, true
}

// Cancel tears the session down. In-flight lookups are abandoned and their
// results are never delivered.
func (p *Pending) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()

	p.cancel()
}
