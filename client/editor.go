package client

import (
	"context"
	"sync"
	"time"

	"github.com/giftkart/storefront/pkg/debounce"
)

// Editor maintains optimistic local quantities for one collection. Edits
// apply to local state immediately and are coalesced per product, so five
// rapid clicks become one server call carrying the final value. A newer edit
// supersedes a pending one; the server's returned snapshot always wins over
// stale optimistic state.
type Editor struct {
	client  *Client
	kind    string
	timeout time.Duration
	sched   *debounce.Scheduler[string, int]

	// onReconcile observes every server round-trip, successful or not.
	onReconcile func(*Snapshot, error)

	mu    sync.Mutex
	local map[string]int
}

// NewEditor creates an Editor for the given collection kind. window is the
// quiet period before an edit is sent; maxDelay bounds how long continuous
// editing can postpone the send. onReconcile may be nil.
func NewEditor(c *Client, kind string, window, maxDelay time.Duration, onReconcile func(*Snapshot, error)) *Editor {
	e := &Editor{
		client:      c,
		kind:        kind,
		timeout:     10 * time.Second,
		onReconcile: onReconcile,
		local:       make(map[string]int),
	}
	e.sched = debounce.New[string, int](window, maxDelay, e.push)
	return e
}

// SetQuantity records the edit locally and schedules the coalesced send.
func (e *Editor) SetQuantity(productID string, qty int) {
	e.mu.Lock()
	e.local[productID] = qty
	e.mu.Unlock()
	e.sched.Set(productID, qty)
}

// Quantity returns the current local (possibly optimistic) quantity.
func (e *Editor) Quantity(productID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local[productID]
}

// Flush sends any pending edit for the product right away.
func (e *Editor) Flush(productID string) {
	e.sched.Flush(productID)
}

// Close flushes all pending edits and stops the editor.
func (e *Editor) Close() {
	e.sched.Stop()
}

// push runs on the scheduler's timer goroutine with the latest coalesced
// value for one product.
func (e *Editor) push(productID string, qty int) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	snap, err := e.client.SetQuantity(ctx, e.kind, productID, qty)
	if err == nil {
		e.reconcile(productID, qty, snap)
	}
	if e.onReconcile != nil {
		e.onReconcile(snap, err)
	}
}

// reconcile overwrites the optimistic value with the server's, unless a newer
// local edit arrived while the request was in flight; that edit has its own
// dispatch coming and stays authoritative locally until then.
func (e *Editor) reconcile(productID string, sent int, snap *Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.local[productID] != sent {
		return
	}
	server := 0
	for _, it := range snap.Items {
		if it.ProductID == productID {
			server = it.Quantity
			break
		}
	}
	if server == 0 {
		delete(e.local, productID)
		return
	}
	e.local[productID] = server
}
