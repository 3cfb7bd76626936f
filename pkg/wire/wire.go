// Package wire moves JSON-RPC messages between the bridge and one tool
// server, either over a child process's stdin/stdout or over streamable HTTP,
// and layers the MCP client calls on top.
//
// A Transport is safe for concurrent use. Replies are matched to requests by
// ID; a request whose context ends is abandoned locally and the server is
// sent a cancellation notice.
package wire

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/protocol"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// cancelTimeout bounds the best-effort cancellation notice.
const cancelTimeout = 2 * time.Second

// Transport sends requests and notifications to one tool server.
type Transport interface {
	// Call sends a request and waits for its result. A JSON-RPC error reply
	// is returned as *protocol.Error.
	Call(ctx context.Context, method string, params any) (protocol.RawMessage, error)
	Notify(ctx context.Context, method string, params any) error
	Close() error
}

// pending tracks requests that are waiting for a reply.
type pending struct {
	prefix string
	nextID atomic.Int64

	mu      sync.Mutex
	waiting map[string]chan *protocol.Response
	closed  bool
}

func newPending(prefix string) *pending {
	return &pending{prefix: prefix, waiting: make(map[string]chan *protocol.Response)}
}

func (p *pending) next() string {
	return fmt.Sprintf("%s_%d", p.prefix, p.nextID.Add(1))
}

// register must happen before the request is written so a fast reply is
// never missed.
func (p *pending) register(id string) (chan *protocol.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errClosed()
	}
	ch := make(chan *protocol.Response, 1)
	p.waiting[protocol.IDKey(id)] = ch
	return ch, nil
}

func (p *pending) forget(id string) {
	p.mu.Lock()
	delete(p.waiting, protocol.IDKey(id))
	p.mu.Unlock()
}

// deliver hands resp to its waiter and reports whether one existed.
func (p *pending) deliver(resp *protocol.Response) bool {
	key := protocol.IDKey(resp.ID)
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.waiting[key]
	if ok {
		delete(p.waiting, key)
		ch <- resp
	}
	return ok
}

// closeAll fails every waiter and refuses new registrations.
func (p *pending) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for key, ch := range p.waiting {
		close(ch)
		delete(p.waiting, key)
	}
}

func (p *pending) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiting)
}

func (p *pending) wait(ctx context.Context, id string, ch chan *protocol.Response) (*protocol.Response, error) {
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, errClosed()
		}
		return resp, nil
	case <-ctx.Done():
		p.forget(id)
		return nil, ctx.Err()
	}
}

func errClosed() error {
	return mcperrors.TransportUnavailable("tool server connection closed")
}

func resultOf(resp *protocol.Response) (protocol.RawMessage, error) {
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// sendCancel tells the server to drop request id. Failures are ignored.
func sendCancel(t Transport, id string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	_ = t.Notify(ctx, protocol.MethodCancelled, protocol.CancelledParams{RequestID: id, Reason: cause.Error()})
}
